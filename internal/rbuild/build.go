package rbuild

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BuildRequest captures the user-facing knobs of one runtime build.
type BuildRequest struct {
	Version     string // empty means detect the latest release
	Jobs        int
	Headless    bool // disable X11/cairo regardless of host headers
	Recommended bool // include the recommended package set
}

// sourceArchiveURL picks the archive to download for a version. The xz
// tarball is preferred for size; its existence is probed with a cheap
// HEAD request before committing, since older releases only ship gz.
func sourceArchiveURL(mirror, version string, exists func(url string) bool) string {
	base := fmt.Sprintf("%s/src/base/R-%s/R-%s", mirror, majorOf(version), version)
	if xzURL := base + ".tar.xz"; exists(xzURL) {
		return xzURL
	}
	return base + ".tar.gz"
}

// assembleConfigureArgs builds the full configure invocation for R from
// the resolved state. hasHeader is the live header probe; in headless mode
// the graphical toggles are forced off without consulting it.
func assembleConfigureArgs(installDir string, req BuildRequest, env *BuildEnv, hasHeader func(header string) bool) []string {
	args := []string{
		"--prefix=" + installDir,
		"--enable-R-shlib",
	}

	if req.Recommended {
		args = append(args, "--with-recommended-packages")
	} else {
		args = append(args, "--without-recommended-packages")
	}

	if req.Headless {
		args = append(args, "--without-x", "--without-cairo")
	} else {
		if hasHeader("X11/Xlib.h") {
			args = append(args, "--with-x")
		} else {
			args = append(args, "--without-x")
		}
		if hasHeader("cairo.h") {
			args = append(args, "--with-cairo")
		} else {
			args = append(args, "--without-cairo")
		}
		if hasHeader("readline/readline.h") {
			args = append(args, "--with-readline")
		} else {
			args = append(args, "--without-readline")
		}
	}

	// Run-path entries for every locally resolved contribution, so the
	// produced binaries work without the wrapper environment.
	if cpp := env.CPPFlags(); cpp != "" {
		args = append(args, "CPPFLAGS="+cpp)
	}
	ld := strings.TrimSpace(env.LDFlags() + " " + env.RPathFlags())
	if ld != "" {
		args = append(args, "LDFLAGS="+ld)
	}
	return args
}

// buildRuntime downloads, configures, compiles and installs one R version
// under <prefix>/R/R-<version> and repoints the current alias. There is no
// installed-runtime short-circuit: a rerun rebuilds and overwrites.
func buildRuntime(execCtx *Executor, env *BuildEnv, tc *Toolchain, req BuildRequest, workDir, logDir string) (string, error) {
	version := req.Version
	if version == "" {
		colArrow.Print("-> ")
		colSuccess.Println("No version pinned, querying CRAN for the latest release.")
		var err error
		if version, err = detectLatestVersion(cranMirror, httpGetBody); err != nil {
			return "", err
		}
	}
	if err := validateVersion(version); err != nil {
		return "", err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Building R %s\n", version)

	url := sourceArchiveURL(cranMirror, version, urlExists)
	archive, err := fetchToCache(url)
	if err != nil {
		return "", fmt.Errorf("R source download failed: %w", err)
	}

	srcDir := filepath.Join(workDir, "src", "R-"+version)
	if err := extractTar(archive, srcDir); err != nil {
		return "", fmt.Errorf("R source extraction failed: %w", err)
	}

	installDir := filepath.Join(runtimeDir, "R-"+version)
	logPath := filepath.Join(logDir, "R.log")

	buildEnv := env.Environ(os.Environ())
	buildEnv = append(buildEnv,
		"CC="+tc.CC(),
		"CXX="+tc.CXX(),
		"FC="+tc.FC(),
	)

	hasHeader := func(header string) bool {
		return headerProbe(execCtx, tc.CC(), header)
	}
	configure := assembleConfigureArgs(installDir, req, env, hasHeader)

	startTime := time.Now()
	for _, argv := range [][]string{
		append([]string{"./configure"}, configure...),
		{"make", fmt.Sprintf("-j%d", req.Jobs)},
	} {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Dir = srcDir
		cmd.Env = buildEnv
		if err := execCtx.RunLogged(cmd, logPath); err != nil {
			return "", err
		}
	}

	// Install and alias update are the critical window: an interrupt here
	// would leave a half-written version directory behind.
	isCriticalAtomic.Store(1)
	defer isCriticalAtomic.Store(0)

	installCmd := exec.Command("make", "install")
	installCmd.Dir = srcDir
	installCmd.Env = buildEnv
	if err := execCtx.RunLogged(installCmd, logPath); err != nil {
		return "", err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("R %s built and installed in %s.\n", version, time.Since(startTime).Round(time.Second))

	if err := verifyInstall(execCtx, installDir, version); err != nil {
		return "", err
	}
	if err := updateCurrentAlias(installDir); err != nil {
		return "", err
	}
	return installDir, nil
}

// verifyInstall runs the freshly installed binary and checks that it
// reports the version we just built.
func verifyInstall(execCtx *Executor, installDir, version string) error {
	rBin := filepath.Join(installDir, "bin", "R")
	var out bytes.Buffer
	cmd := exec.Command(rBin, "--version")
	cmd.Stdin = strings.NewReader("")
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := execCtx.Run(cmd); err != nil {
		return fmt.Errorf("installed R failed to run: %w\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), version) {
		return fmt.Errorf("installed R reports the wrong version: expected %s in:\n%s", version, out.String())
	}
	return nil
}

// updateCurrentAlias atomically repoints <prefix>/R/current at the given
// version directory (temp symlink + rename, so readers never see a gap).
func updateCurrentAlias(installDir string) error {
	current := filepath.Join(runtimeDir, "current")
	tmpLink := fmt.Sprintf("%s.tmp.%d", current, time.Now().UnixNano())
	if err := os.Symlink(installDir, tmpLink); err != nil {
		return fmt.Errorf("failed to create temp symlink: %w", err)
	}
	if err := os.Rename(tmpLink, current); err != nil {
		os.Remove(tmpLink)
		return fmt.Errorf("failed to update current alias: %w", err)
	}
	debugf("current -> %s\n", installDir)
	return nil
}
