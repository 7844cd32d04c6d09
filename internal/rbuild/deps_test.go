package rbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depByName(t *testing.T, name string) Dependency {
	t.Helper()
	for _, d := range runtimeDeps {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("dependency %s not declared", name)
	return Dependency{}
}

// withDepsDir points the package-level deps prefix at a temp dir for the
// duration of one test.
func withDepsDir(t *testing.T) string {
	t.Helper()
	old := depsDir
	depsDir = t.TempDir()
	t.Cleanup(func() { depsDir = old })
	return depsDir
}

func fakeDepInstall(t *testing.T, d Dependency) {
	t.Helper()
	sub := d.installPrefix()
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "include", filepath.Dir(d.Header)), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "include", d.Header), nil, 0o644))
	lib := filepath.Join(sub, "lib", d.LibGlob[:len(d.LibGlob)-2]+".so")
	require.NoError(t, os.WriteFile(lib, nil, 0o644))
}

func TestDependencyOrderIsFixed(t *testing.T) {
	var names []string
	for _, d := range runtimeDeps {
		names = append(names, d.Name)
	}
	// curl links against zlib; the order is part of the contract.
	assert.Equal(t, []string{"zlib", "bzip2", "xz", "pcre2", "curl"}, names)
}

func TestResolveSystemFastPathHasNoSideEffects(t *testing.T) {
	withDepsDir(t)
	env := &BuildEnv{}
	r := &depResolver{
		env:         env,
		probeSystem: func(Dependency) bool { return true },
		fetch: func(url string) (string, error) {
			t.Fatalf("fast path must not download anything (got %s)", url)
			return "", nil
		},
	}

	require.NoError(t, r.resolve(depByName(t, "zlib")))

	// A system-resolved dependency contributes nothing.
	assert.Empty(t, env.LibDirs())
	assert.Empty(t, env.CPPFlags())
}

func TestResolveReusesCompleteLocalInstall(t *testing.T) {
	withDepsDir(t)
	d := depByName(t, "zlib")
	fakeDepInstall(t, d)

	env := &BuildEnv{}
	r := &depResolver{
		env:         env,
		probeSystem: func(Dependency) bool { return false },
		fetch: func(url string) (string, error) {
			t.Fatalf("complete local install must not be rebuilt (got %s)", url)
			return "", nil
		},
	}

	require.NoError(t, r.resolve(d))

	assert.Equal(t, []string{filepath.Join(d.installPrefix(), "lib")}, env.LibDirs())
	assert.Contains(t, env.CPPFlags(), filepath.Join(d.installPrefix(), "include"))
}

func TestResolvePartialInstallIsWiped(t *testing.T) {
	withDepsDir(t)
	d := depByName(t, "zlib")
	// Header present but no library: the debris of an interrupted install.
	sub := d.installPrefix()
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "include"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "include", d.Header), nil, 0o644))
	require.Equal(t, StatePartial, d.localState())

	fetched := false
	r := &depResolver{
		env:         &BuildEnv{},
		probeSystem: func(Dependency) bool { return false },
		fetch: func(url string) (string, error) {
			fetched = true
			// Abort before extraction; the wipe has already happened.
			return "", os.ErrNotExist
		},
	}

	err := r.resolve(d)
	require.Error(t, err)
	assert.True(t, fetched, "partial install must trigger a rebuild")
	assert.Equal(t, StateAbsent, d.localState(), "partial debris must be removed first")
}

func TestLocalStateTriState(t *testing.T) {
	withDepsDir(t)
	d := depByName(t, "curl")

	assert.Equal(t, StateAbsent, d.localState())

	require.NoError(t, os.MkdirAll(d.installPrefix(), 0o755))
	assert.Equal(t, StatePartial, d.localState())

	fakeDepInstall(t, d)
	assert.Equal(t, StateComplete, d.localState())
}

func TestBuildStepsGenericAutotools(t *testing.T) {
	d := depByName(t, "pcre2")
	tc := &Toolchain{System: true}
	steps := buildSteps(d, 4, tc)

	require.Len(t, steps, 3)
	assert.Equal(t, []string{"./configure", "--prefix=" + d.installPrefix(), "--enable-jit"}, steps[0])
	assert.Equal(t, []string{"make", "-j4"}, steps[1])
	assert.Equal(t, []string{"make", "install"}, steps[2])
}

func TestBuildStepsBzip2SpecialCase(t *testing.T) {
	d := depByName(t, "bzip2")
	tc := &Toolchain{Root: "/p/toolchains/gcc-14.2.0-2"}
	steps := buildSteps(d, 8, tc)

	require.Len(t, steps, 2)
	assert.Equal(t, []string{
		"make", "-j8",
		"CC=/p/toolchains/gcc-14.2.0-2/bin/gcc",
		"CFLAGS=-O2 -fPIC",
	}, steps[0])
	assert.Equal(t, []string{"make", "install", "PREFIX=" + d.installPrefix()}, steps[1])
}
