package rbuild

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Pinned prebuilt toolchain bundle. The xPack GCC releases ship gcc, g++
// and gfortran as a relocatable archive, which is what makes a no-root
// install possible on hosts without a Fortran compiler.
const toolchainVersion = "14.2.0-2"

// Toolchain is the resolved compiler set. A system toolchain has no
// managed state; a downloaded one lives under <prefix>/toolchains.
type Toolchain struct {
	System bool
	Root   string
}

func (t *Toolchain) tool(name string) string {
	if t.System {
		return name
	}
	return filepath.Join(t.Root, "bin", name)
}

func (t *Toolchain) CC() string  { return t.tool("gcc") }
func (t *Toolchain) CXX() string { return t.tool("g++") }
func (t *Toolchain) FC() string  { return t.tool("gfortran") }

func toolchainArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "arm64":
		return "arm64"
	}
	return runtime.GOARCH
}

func toolchainArchiveURL() string {
	return fmt.Sprintf("%s/v%s/xpack-gcc-%s-linux-%s.tar.gz",
		toolchainBaseURL, toolchainVersion, toolchainVersion, toolchainArch())
}

// compilerWorks probes a compiler by resolving it and running --version.
func compilerWorks(execCtx *Executor, path string) bool {
	resolved := path
	if !filepath.IsAbs(path) {
		var err error
		if resolved, err = exec.LookPath(path); err != nil {
			return false
		}
	}
	cmd := exec.Command(resolved, "--version")
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return execCtx.Run(cmd) == nil
}

// resolveToolchain guarantees a usable C/C++/Fortran compiler set. System
// compilers win unless force is set; otherwise the pinned prebuilt bundle
// is downloaded once and reused across runs. Only the passed BuildEnv is
// mutated, never the process environment.
func resolveToolchain(execCtx *Executor, env *BuildEnv, force bool) (*Toolchain, error) {
	if !force &&
		compilerWorks(execCtx, "gcc") &&
		compilerWorks(execCtx, "g++") &&
		compilerWorks(execCtx, "gfortran") {
		colArrow.Print("-> ")
		colSuccess.Println("Using system toolchain (gcc, g++, gfortran found).")
		return &Toolchain{System: true}, nil
	}

	root := filepath.Join(toolchainsDir, "gcc-"+toolchainVersion)
	state := probeInstallDir(root, filepath.Join("bin", "gfortran"), "lib*")

	if force && state != StateAbsent {
		colArrow.Print("-> ")
		colWarn.Println("Forced toolchain refresh, removing previous extraction.")
		if err := os.RemoveAll(root); err != nil {
			return nil, fmt.Errorf("failed to remove toolchain dir %s: %w", root, err)
		}
		state = StateAbsent
	}

	switch state {
	case StateComplete:
		colArrow.Print("-> ")
		colSuccess.Printf("Toolchain gcc-%s already present.\n", toolchainVersion)
	case StatePartial:
		colArrow.Print("-> ")
		colWarn.Printf("Toolchain dir %s is incomplete, re-extracting.\n", root)
		if err := os.RemoveAll(root); err != nil {
			return nil, fmt.Errorf("failed to remove partial toolchain dir: %w", err)
		}
		fallthrough
	case StateAbsent:
		url := toolchainArchiveURL()
		archive, err := fetchToCache(url)
		if err != nil {
			return nil, fmt.Errorf("toolchain download failed: %w", err)
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Extracting toolchain to %s\n", root)
		if err := extractTar(archive, root); err != nil {
			return nil, fmt.Errorf("toolchain extraction failed: %w", err)
		}
	}

	tc := &Toolchain{Root: root}
	env.AddBinDir(filepath.Join(root, "bin"))
	for _, lib := range []string{"lib64", "lib"} {
		dir := filepath.Join(root, lib)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			env.AddLibDir(dir)
		}
	}

	// A toolchain without a working Fortran compiler cannot build R.
	if !compilerWorks(execCtx, tc.FC()) {
		return nil, fmt.Errorf("no working gfortran after toolchain extraction; cannot continue")
	}
	return tc, nil
}
