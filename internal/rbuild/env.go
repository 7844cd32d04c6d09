package rbuild

import (
	"fmt"
	"slices"
	"strings"
)

// BuildEnv accumulates the search paths and compiler/linker flags
// contributed by the resolved toolchain and each locally built dependency.
// It is threaded explicitly through every resolution stage instead of
// mutating the ambient process environment, so the ordering of
// contributions stays visible: Toolchain -> deps (fixed order) -> R build.
type BuildEnv struct {
	binDirs       []string
	libDirs       []string
	includeDirs   []string
	pkgConfigDirs []string
}

func appendUnique(list []string, dir string) []string {
	if dir == "" || slices.Contains(list, dir) {
		return list
	}
	return append(list, dir)
}

func (b *BuildEnv) AddBinDir(dir string)       { b.binDirs = appendUnique(b.binDirs, dir) }
func (b *BuildEnv) AddLibDir(dir string)       { b.libDirs = appendUnique(b.libDirs, dir) }
func (b *BuildEnv) AddIncludeDir(dir string)   { b.includeDirs = appendUnique(b.includeDirs, dir) }
func (b *BuildEnv) AddPkgConfigDir(dir string) { b.pkgConfigDirs = appendUnique(b.pkgConfigDirs, dir) }

// LibDirs returns the accumulated library directories in contribution order.
func (b *BuildEnv) LibDirs() []string {
	return slices.Clone(b.libDirs)
}

// CPPFlags renders -I flags for every contributed include directory.
func (b *BuildEnv) CPPFlags() string {
	var parts []string
	for _, dir := range b.includeDirs {
		parts = append(parts, "-I"+dir)
	}
	return strings.Join(parts, " ")
}

// LDFlags renders -L flags for every contributed library directory.
func (b *BuildEnv) LDFlags() string {
	var parts []string
	for _, dir := range b.libDirs {
		parts = append(parts, "-L"+dir)
	}
	return strings.Join(parts, " ")
}

// RPathFlags renders run-path entries so produced binaries find the locally
// built libraries without relying on the generated wrappers.
func (b *BuildEnv) RPathFlags() string {
	var parts []string
	for _, dir := range b.libDirs {
		parts = append(parts, "-Wl,-rpath,"+dir)
	}
	return strings.Join(parts, " ")
}

// mergePathVar prepends entries to an existing colon-separated value.
func mergePathVar(entries []string, existing string) string {
	joined := strings.Join(entries, ":")
	if existing == "" {
		return joined
	}
	if joined == "" {
		return existing
	}
	return joined + ":" + existing
}

// Environ renders the accumulated state on top of a base environment
// (normally os.Environ()). PATH-like variables are prepended to, flag
// variables are replaced outright since rbuild owns the whole build.
func (b *BuildEnv) Environ(base []string) []string {
	existing := map[string]string{}
	var out []string
	managed := map[string]bool{
		"PATH": true, "LD_LIBRARY_PATH": true,
		"CPPFLAGS": true, "LDFLAGS": true, "PKG_CONFIG_PATH": true,
	}
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if ok && managed[k] {
			existing[k] = v
			continue
		}
		out = append(out, kv)
	}

	set := func(key, val string) {
		if val != "" {
			out = append(out, fmt.Sprintf("%s=%s", key, val))
		}
	}
	set("PATH", mergePathVar(b.binDirs, existing["PATH"]))
	set("LD_LIBRARY_PATH", mergePathVar(b.libDirs, existing["LD_LIBRARY_PATH"]))
	set("PKG_CONFIG_PATH", mergePathVar(b.pkgConfigDirs, existing["PKG_CONFIG_PATH"]))
	set("CPPFLAGS", b.CPPFlags())
	set("LDFLAGS", strings.TrimSpace(b.LDFlags()+" "+b.RPathFlags()))
	return out
}
