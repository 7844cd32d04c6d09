package rbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// launcher names installed into bindir, one per primary R executable.
var launcherNames = []string{"R", "Rscript"}

// renderEnvFile produces the environment descriptor sourced by the
// launchers. It is regenerated wholesale on every run, so entries from a
// previous run's dependency set never linger. Each contribution is
// guarded on the directory still existing.
func renderEnvFile(libDirs []string) string {
	var b strings.Builder
	b.WriteString("# Generated by rbuild. Regenerated on every install; do not edit.\n")
	for _, dir := range libDirs {
		fmt.Fprintf(&b, "if [ -d \"%s\" ]; then\n", dir)
		fmt.Fprintf(&b, "  LD_LIBRARY_PATH=\"%s${LD_LIBRARY_PATH:+:$LD_LIBRARY_PATH}\"\n", dir)
		b.WriteString("fi\n")
	}
	b.WriteString("export LD_LIBRARY_PATH\n")
	return b.String()
}

// renderLauncher produces a thin shell launcher that loads the environment
// descriptor and delegates to the real binary under the current alias.
// exec forwards the arguments and the exit code unchanged.
func renderLauncher(envFile, name string) string {
	target := filepath.Join(runtimeDir, "current", "bin", name)
	return fmt.Sprintf("#!/bin/sh\n. \"%s\"\nexec \"%s\" \"$@\"\n", envFile, target)
}

// generateWrappers writes the environment descriptor and the bindir
// launchers. Existing files are overwritten unconditionally.
func generateWrappers(env *BuildEnv) error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("failed to create bindir %s: %w", binDir, err)
	}

	envFile := filepath.Join(runtimeDir, "env.sh")
	if err := os.WriteFile(envFile, []byte(renderEnvFile(env.LibDirs())), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", envFile, err)
	}

	for _, name := range launcherNames {
		path := filepath.Join(binDir, name)
		if err := os.WriteFile(path, []byte(renderLauncher(envFile, name)), 0o755); err != nil {
			return fmt.Errorf("failed to write launcher %s: %w", path, err)
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Launcher installed: %s\n", path)
	}
	return nil
}
