package rbuild

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Dependency declares one library the R build needs: how to detect it on
// the host, where to get the source, and how its configure step differs
// from the generic autotools path.
type Dependency struct {
	Name          string
	Version       string
	Header        string // canonical header for the compile probe
	URL           string
	ConfigureArgs []string
	LibGlob       string // install marker, relative to lib*/
}

// runtimeDeps is the fixed resolution order. Later entries may link
// against earlier ones (curl against zlib), so the order matters.
var runtimeDeps = []Dependency{
	{
		Name:    "zlib",
		Version: "1.3.1",
		Header:  "zlib.h",
		URL:     "https://zlib.net/zlib-1.3.1.tar.gz",
		LibGlob: "libz.*",
	},
	{
		Name:    "bzip2",
		Version: "1.0.8",
		Header:  "bzlib.h",
		URL:     "https://sourceware.org/pub/bzip2/bzip2-1.0.8.tar.gz",
		LibGlob: "libbz2.*",
	},
	{
		Name:    "xz",
		Version: "5.4.6",
		Header:  "lzma.h",
		URL:     "https://github.com/tukaani-project/xz/releases/download/v5.4.6/xz-5.4.6.tar.gz",
		LibGlob: "liblzma.*",
	},
	{
		Name:          "pcre2",
		Version:       "10.44",
		Header:        "pcre2.h",
		URL:           "https://github.com/PCRE2Project/pcre2/releases/download/pcre2-10.44/pcre2-10.44.tar.gz",
		ConfigureArgs: []string{"--enable-jit"},
		LibGlob:       "libpcre2-8.*",
	},
	{
		Name:          "curl",
		Version:       "8.7.1",
		Header:        "curl/curl.h",
		URL:           "https://curl.se/download/curl-8.7.1.tar.gz",
		ConfigureArgs: []string{"--with-openssl", "--without-libpsl"},
		LibGlob:       "libcurl.*",
	},
}

// headerProbe checks whether a header resolves against the host system by
// preprocessing a one-line translation unit with the resolved C compiler.
// Deliberately run WITHOUT the accumulated include flags: a header from a
// locally built sibling must not shadow a real system detection.
func headerProbe(execCtx *Executor, cc, header string) bool {
	cmd := exec.Command(cc, "-E", "-xc", "-")
	cmd.Stdin = strings.NewReader(fmt.Sprintf("#include <%s>\n", header))
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return execCtx.Run(cmd) == nil
}

// depResolver carries the knobs of a dependency resolution pass. The probe
// and fetch hooks default to the real implementations and exist so tests
// can drive the resolution logic without a compiler or network.
type depResolver struct {
	execCtx *Executor
	env     *BuildEnv
	tc      *Toolchain
	jobs    int
	workDir string
	logDir  string

	probeSystem func(d Dependency) bool
	fetch       func(url string) (string, error)
}

func newDepResolver(execCtx *Executor, env *BuildEnv, tc *Toolchain, jobs int, workDir, logDir string) *depResolver {
	r := &depResolver{
		execCtx: execCtx,
		env:     env,
		tc:      tc,
		jobs:    jobs,
		workDir: workDir,
		logDir:  logDir,
		fetch:   fetchToCache,
	}
	r.probeSystem = func(d Dependency) bool {
		return headerProbe(execCtx, tc.CC(), d.Header)
	}
	return r
}

func (d Dependency) installPrefix() string {
	return filepath.Join(depsDir, d.Name)
}

// localState reports whether a previous run left a reusable install.
func (d Dependency) localState() ProbeState {
	return probeInstallDir(d.installPrefix(),
		filepath.Join("include", d.Header),
		filepath.Join("lib*", d.LibGlob))
}

// resolveAll works through the dependency list in order. Any failure is
// fatal for the run; there is no partial-success mode.
func (r *depResolver) resolveAll() error {
	for _, d := range runtimeDeps {
		if err := r.resolve(d); err != nil {
			return fmt.Errorf("dependency %s: %w", d.Name, err)
		}
	}
	return nil
}

func (r *depResolver) resolve(d Dependency) error {
	if r.probeSystem(d) {
		colArrow.Print("-> ")
		colSuccess.Printf("%s: found on system, using as-is.\n", d.Name)
		return nil
	}

	switch state := d.localState(); state {
	case StateComplete:
		colArrow.Print("-> ")
		colSuccess.Printf("%s: already built locally.\n", d.Name)
	case StatePartial:
		colArrow.Print("-> ")
		colWarn.Printf("%s: previous install is incomplete, rebuilding.\n", d.Name)
		if err := os.RemoveAll(d.installPrefix()); err != nil {
			return fmt.Errorf("failed to remove partial install: %w", err)
		}
		fallthrough
	case StateAbsent:
		if err := r.build(d); err != nil {
			return err
		}
	}

	r.contribute(d)
	return nil
}

// buildSteps returns the commands that build and install a dependency.
// bzip2 is the one deviation from the generic autotools path: it ships a
// plain Makefile with no configure script, and its install target takes
// the prefix as a make variable instead.
func buildSteps(d Dependency, jobs int, tc *Toolchain) [][]string {
	jobsFlag := fmt.Sprintf("-j%d", jobs)
	if d.Name == "bzip2" {
		return [][]string{
			{"make", jobsFlag, "CC=" + tc.CC(), "CFLAGS=-O2 -fPIC"},
			{"make", "install", "PREFIX=" + d.installPrefix()},
		}
	}
	configure := append([]string{"./configure", "--prefix=" + d.installPrefix()}, d.ConfigureArgs...)
	return [][]string{
		configure,
		{"make", jobsFlag},
		{"make", "install"},
	}
}

// build downloads, extracts, configures and installs a dependency into
// its isolated sub-prefix.
func (r *depResolver) build(d Dependency) error {
	archive, err := r.fetch(d.URL)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	srcDir := filepath.Join(r.workDir, "src", d.Name)
	if err := extractTar(archive, srcDir); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	logPath := filepath.Join(r.logDir, d.Name+".log")
	buildEnv := r.buildEnviron()

	colArrow.Print("-> ")
	colSuccess.Printf("%s: building %s from source.\n", d.Name, d.Version)

	for _, argv := range buildSteps(d, r.jobs, r.tc) {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Dir = srcDir
		cmd.Env = buildEnv
		if err := r.execCtx.RunLogged(cmd, logPath); err != nil {
			return err
		}
	}
	return nil
}

// buildEnviron renders the accumulated environment for a dependency build,
// pinning the resolved compilers and position-independent-code flags.
func (r *depResolver) buildEnviron() []string {
	env := r.env.Environ(os.Environ())
	env = append(env,
		"CC="+r.tc.CC(),
		"CXX="+r.tc.CXX(),
		"FC="+r.tc.FC(),
		"CFLAGS=-O2 -fPIC",
	)
	return env
}

// contribute threads a locally resolved dependency's directories into the
// accumulated environment. System-resolved dependencies contribute nothing.
func (r *depResolver) contribute(d Dependency) {
	sub := d.installPrefix()
	r.env.AddIncludeDir(filepath.Join(sub, "include"))
	for _, lib := range []string{"lib", "lib64"} {
		dir := filepath.Join(sub, lib)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.env.AddLibDir(dir)
			if pc := filepath.Join(dir, "pkgconfig"); dirExists(pc) {
				r.env.AddPkgConfigDir(pc)
			}
		}
	}
	if bin := filepath.Join(sub, "bin"); dirExists(bin) {
		r.env.AddBinDir(bin)
	}
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
