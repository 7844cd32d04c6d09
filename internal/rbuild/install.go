package rbuild

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

// handleInstallCommand is the Bootstrapping Installer: toolchain, then
// dependencies in a fixed order, then the R build, then wrappers. Each
// stage's outputs are preconditions for the next, so the flow is strictly
// sequential; the only parallelism is make's own -j fan-out.
func handleInstallCommand(args []string, cfg *Config) error {
	defaultJobs := runtime.NumCPU()
	if v := cfg.Values["RBUILD_JOBS"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			defaultJobs = n
		}
	}

	installCmd := flag.NewFlagSet("install", flag.ExitOnError)
	pinVersion := installCmd.String("version", "", "R version to install (X.Y.Z). Empty detects the latest release.")
	flagPrefix := installCmd.String("prefix", "", "Install prefix (default $HOME/apps).")
	flagBinDir := installCmd.String("bindir", "", "Directory for the R/Rscript launchers (default $HOME/bin).")
	jobs := installCmd.Int("jobs", defaultJobs, "Build parallelism passed to make.")
	headless := installCmd.Bool("headless", false, "Build without X11/cairo support regardless of host headers.")
	noRecommended := installCmd.Bool("no-recommended", false, "Skip the recommended package set.")
	forceToolchain := installCmd.Bool("force-toolchain", false, "Re-download and re-extract the toolchain bundle.")

	if err := installCmd.Parse(args); err != nil {
		return err
	}
	if installCmd.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", installCmd.Arg(0))
	}

	// CLI flags override config-derived paths.
	if *flagPrefix != "" {
		cfg.Values["RBUILD_PREFIX"] = *flagPrefix
		initConfig(cfg)
	}
	if *flagBinDir != "" {
		binDir = *flagBinDir
	}
	if *pinVersion != "" {
		if err := validateVersion(*pinVersion); err != nil {
			return err
		}
	}
	if *jobs < 1 {
		*jobs = 1
	}

	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return fmt.Errorf("install prefix %s is not writable: %w", prefix, err)
	}

	// Scoped work directory for this run. Removal is registered up front
	// and runs on every exit path; downloads live in the persistent cache,
	// only extraction and build trees go here.
	workDir, err := newWorkDir()
	if err != nil {
		return err
	}
	defer removeWorkDir(workDir)
	logDir := filepath.Join(workDir, "log")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	env := &BuildEnv{}

	// Stage 1: toolchain
	tc, err := resolveToolchain(UserExec, env, *forceToolchain)
	if err != nil {
		return err
	}

	// Stage 2: dependencies, fixed order
	resolver := newDepResolver(UserExec, env, tc, *jobs, workDir, logDir)
	if err := resolver.resolveAll(); err != nil {
		return err
	}

	// Stage 3: runtime build
	req := BuildRequest{
		Version:     *pinVersion,
		Jobs:        *jobs,
		Headless:    *headless,
		Recommended: !*noRecommended,
	}
	installDir, err := buildRuntime(UserExec, env, tc, req, workDir, logDir)
	if err != nil {
		return err
	}

	// Stage 4: wrappers
	if err := generateWrappers(env); err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Done. %s is active as %s.\n", filepath.Base(installDir), filepath.Join(runtimeDir, "current"))
	return nil
}

func newWorkDir() (string, error) {
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work root %s: %w", workRoot, err)
	}
	dir := filepath.Join(workRoot, fmt.Sprintf("run-%d", time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work dir %s: %w", dir, err)
	}
	return dir, nil
}

func removeWorkDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		debugf("Failed to remove work dir %s: %v\n", dir, err)
	}
}

// handleListCommand lists the installed R versions under <prefix>/R and
// marks the one the current alias points at.
func handleListCommand() error {
	entries, err := os.ReadDir(runtimeDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No R versions installed.")
			return nil
		}
		return err
	}

	current, _ := os.Readlink(filepath.Join(runtimeDir, "current"))

	var versions []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "R-") {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		fmt.Println("No R versions installed.")
		return nil
	}
	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(strings.TrimPrefix(versions[i], "R-"), strings.TrimPrefix(versions[j], "R-")) < 0
	})

	for _, v := range versions {
		if filepath.Base(current) == v {
			colArrow.Print("-> ")
			colSuccess.Printf("%s (current)\n", v)
		} else {
			fmt.Printf("   %s\n", v)
		}
	}
	return nil
}
