package rbuild

import (
	"sync/atomic"

	"github.com/gookit/color"
)

// GLOBAL STATE
// We use a value of 1 for critical and 0 for non-critical/default.
var isCriticalAtomic atomic.Int32

// Global variables
var (
	prefix           string // root install prefix, everything rbuild produces lives below it
	binDir           string // where the R/Rscript launchers go
	cacheDir         string // <prefix>/cache, downloaded archives keyed by URL hash
	toolchainsDir    string // <prefix>/toolchains
	depsDir          string // <prefix>/deps, one sub-prefix per locally built dependency
	runtimeDir       string // <prefix>/R, versioned installs plus the "current" alias
	tmpDir           string
	workRoot         string // <tmpdir>/rbuild, per-run scoped work directories
	cranMirror       string
	toolchainBaseURL string
	Debug            bool
	ConfigFile       string
	version          = "dev"     //default version; overridden at build time
	buildDate        = "unknown" // overridden at build time
	// Global executor (declared, to be assigned in Main)
	UserExec *Executor
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)
