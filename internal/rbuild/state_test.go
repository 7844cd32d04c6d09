package rbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeInstallDirAbsent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	assert.Equal(t, StateAbsent, probeInstallDir(dir, "bin/gfortran"))
}

func TestProbeInstallDirPartial(t *testing.T) {
	dir := t.TempDir()
	// Directory exists (e.g. interrupted extraction) but markers are missing.
	assert.Equal(t, StatePartial, probeInstallDir(dir, "bin/gfortran", "lib*"))

	// One of two markers present is still partial.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib64"), 0o755))
	assert.Equal(t, StatePartial, probeInstallDir(dir, "bin/gfortran", "lib*"))
}

func TestProbeInstallDirComplete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib64"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "gfortran"), []byte("#!/bin/sh\n"), 0o755))

	assert.Equal(t, StateComplete, probeInstallDir(dir, "bin/gfortran", "lib*"))
}

func TestProbeInstallDirGlobMarkers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "zlib.h"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "libz.so.1.3.1"), nil, 0o644))

	assert.Equal(t, StateComplete, probeInstallDir(dir, "include/zlib.h", filepath.Join("lib*", "libz.*")))
}

func TestProbeStateString(t *testing.T) {
	assert.Equal(t, "absent", StateAbsent.String())
	assert.Equal(t, "partially present", StatePartial.String())
	assert.Equal(t, "complete", StateComplete.String())
}
