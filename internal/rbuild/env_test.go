package rbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEnvAccumulatesInOrder(t *testing.T) {
	env := &BuildEnv{}
	env.AddLibDir("/opt/tc/lib64")
	env.AddLibDir("/home/u/apps/deps/zlib/lib")
	env.AddLibDir("/home/u/apps/deps/curl/lib")

	assert.Equal(t, []string{
		"/opt/tc/lib64",
		"/home/u/apps/deps/zlib/lib",
		"/home/u/apps/deps/curl/lib",
	}, env.LibDirs())
}

func TestBuildEnvIgnoresDuplicatesAndEmpty(t *testing.T) {
	env := &BuildEnv{}
	env.AddIncludeDir("/a/include")
	env.AddIncludeDir("/a/include")
	env.AddIncludeDir("")
	env.AddIncludeDir("/b/include")

	assert.Equal(t, "-I/a/include -I/b/include", env.CPPFlags())
}

func TestBuildEnvFlagRendering(t *testing.T) {
	env := &BuildEnv{}
	env.AddLibDir("/deps/zlib/lib")
	env.AddLibDir("/deps/pcre2/lib")

	assert.Equal(t, "-L/deps/zlib/lib -L/deps/pcre2/lib", env.LDFlags())
	assert.Equal(t, "-Wl,-rpath,/deps/zlib/lib -Wl,-rpath,/deps/pcre2/lib", env.RPathFlags())
}

func TestBuildEnvEnvironMergesOverBase(t *testing.T) {
	env := &BuildEnv{}
	env.AddBinDir("/tc/bin")
	env.AddLibDir("/tc/lib64")
	env.AddPkgConfigDir("/deps/zlib/lib/pkgconfig")

	base := []string{
		"HOME=/home/u",
		"PATH=/usr/bin:/bin",
		"LD_LIBRARY_PATH=/old/lib",
		"CPPFLAGS=-DSTALE",
	}
	got := env.Environ(base)

	find := func(key string) string {
		for _, kv := range got {
			if strings.HasPrefix(kv, key+"=") {
				return strings.TrimPrefix(kv, key+"=")
			}
		}
		return ""
	}

	// New entries are prepended to PATH-like vars, flag vars are owned by us.
	assert.Equal(t, "/tc/bin:/usr/bin:/bin", find("PATH"))
	assert.Equal(t, "/tc/lib64:/old/lib", find("LD_LIBRARY_PATH"))
	assert.Equal(t, "/deps/zlib/lib/pkgconfig", find("PKG_CONFIG_PATH"))
	assert.Equal(t, "-L/tc/lib64 -Wl,-rpath,/tc/lib64", find("LDFLAGS"))
	assert.Equal(t, "/home/u", find("HOME"))

	// The stale CPPFLAGS from the base environment must not leak through.
	for _, kv := range got {
		require.False(t, strings.Contains(kv, "STALE"), "stale flag leaked: %s", kv)
	}
}

func TestBuildEnvEnvironEmptyContributions(t *testing.T) {
	env := &BuildEnv{}
	got := env.Environ([]string{"PATH=/usr/bin"})

	assert.Contains(t, got, "PATH=/usr/bin")
	for _, kv := range got {
		assert.False(t, strings.HasPrefix(kv, "LDFLAGS="), "empty env must not set LDFLAGS")
		assert.False(t, strings.HasPrefix(kv, "CPPFLAGS="), "empty env must not set CPPFLAGS")
	}
}
