package rbuild

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withWrapperDirs(t *testing.T) {
	t.Helper()
	oldRuntime, oldBin := runtimeDir, binDir
	base := t.TempDir()
	runtimeDir = filepath.Join(base, "R")
	binDir = filepath.Join(base, "bin")
	require.NoError(t, os.MkdirAll(runtimeDir, 0o755))
	t.Cleanup(func() { runtimeDir, binDir = oldRuntime, oldBin })
}

func TestRenderEnvFileGuardsEachContribution(t *testing.T) {
	got := renderEnvFile([]string{"/p/toolchains/gcc/lib64", "/p/deps/zlib/lib"})

	assert.Contains(t, got, `if [ -d "/p/toolchains/gcc/lib64" ]; then`)
	assert.Contains(t, got, `LD_LIBRARY_PATH="/p/deps/zlib/lib${LD_LIBRARY_PATH:+:$LD_LIBRARY_PATH}"`)
	assert.True(t, strings.HasSuffix(got, "export LD_LIBRARY_PATH\n"))

	// Toolchain contribution comes before dependency contributions.
	assert.Less(t,
		strings.Index(got, "gcc/lib64"),
		strings.Index(got, "zlib/lib"))
}

func TestRenderEnvFileEmpty(t *testing.T) {
	got := renderEnvFile(nil)
	assert.NotContains(t, got, "if [ -d")
	assert.Contains(t, got, "export LD_LIBRARY_PATH")
}

func TestRenderLauncherDelegatesThroughCurrent(t *testing.T) {
	withWrapperDirs(t)
	got := renderLauncher(filepath.Join(runtimeDir, "env.sh"), "Rscript")

	assert.True(t, strings.HasPrefix(got, "#!/bin/sh\n"))
	assert.Contains(t, got, filepath.Join(runtimeDir, "env.sh"))
	assert.Contains(t, got, `exec "`+filepath.Join(runtimeDir, "current", "bin", "Rscript")+`" "$@"`)
}

func TestGenerateWrappersWritesAllFiles(t *testing.T) {
	withWrapperDirs(t)
	env := &BuildEnv{}
	env.AddLibDir("/p/deps/zlib/lib")

	require.NoError(t, generateWrappers(env))

	for _, name := range []string{"R", "Rscript"} {
		path := filepath.Join(binDir, name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
	data, err := os.ReadFile(filepath.Join(runtimeDir, "env.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "/p/deps/zlib/lib")
}

func TestGenerateWrappersReplacesStaleState(t *testing.T) {
	withWrapperDirs(t)

	first := &BuildEnv{}
	first.AddLibDir("/p/deps/old-dep/lib")
	require.NoError(t, generateWrappers(first))

	// Second run with a different dependency set: no stale entries linger.
	second := &BuildEnv{}
	second.AddLibDir("/p/deps/new-dep/lib")
	require.NoError(t, generateWrappers(second))

	data, err := os.ReadFile(filepath.Join(runtimeDir, "env.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "new-dep")
	assert.NotContains(t, string(data), "old-dep")
}
