package rbuild

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVersion(t *testing.T) {
	for _, v := range []string{"4.5.1", "3.6.0", "10.20.30"} {
		assert.NoError(t, validateVersion(v), v)
	}
	for _, v := range []string{"4.5", "latest", "4.5.1-rc1", "R-4.5.1", "4.5.1.2", "", "4..1"} {
		assert.Error(t, validateVersion(v), v)
	}
}

func TestParseVersionLinks(t *testing.T) {
	index := `
<a href="R-4.4.3.tar.gz">R-4.4.3.tar.gz</a>
<a href="R-4.5.0.tar.gz">R-4.5.0.tar.gz</a>
<a href="R-4.5.1.tar.gz">R-4.5.1.tar.gz</a>
<a href="R-4.5.1.tar.gz.md5">R-4.5.1.tar.gz.md5</a>
`
	assert.Equal(t, []string{"4.4.3", "4.5.0", "4.5.1"}, parseVersionLinks(index))
}

func TestLatestOfIsNumericNotLexicographic(t *testing.T) {
	assert.Equal(t, "4.10.0", latestOf([]string{"4.9.2", "4.10.0", "4.2.1"}))
	assert.Equal(t, "", latestOf(nil))
}

func TestCompareVersions(t *testing.T) {
	assert.Positive(t, compareVersions("4.10.0", "4.9.9"))
	assert.Negative(t, compareVersions("3.6.3", "4.0.0"))
	assert.Zero(t, compareVersions("4.5.1", "4.5.1"))
}

func TestDetectLatestVersionSeriesHit(t *testing.T) {
	fetch := func(url string) ([]byte, error) {
		assert.Equal(t, "https://mirror.example/src/base/R-4/", url)
		return []byte(`<a href="R-4.5.0.tar.gz">x</a> <a href="R-4.5.1.tar.gz">y</a>`), nil
	}
	v, err := detectLatestVersion("https://mirror.example", fetch)
	require.NoError(t, err)
	assert.Equal(t, "4.5.1", v)
}

func TestDetectLatestVersionGlobalFallback(t *testing.T) {
	calls := []string{}
	fetch := func(url string) ([]byte, error) {
		calls = append(calls, url)
		switch url {
		case "https://mirror.example/src/base/R-4/":
			// Series-scoped query yields an empty listing.
			return []byte("<html></html>"), nil
		case "https://mirror.example/src/base/":
			return []byte(`<a href="R-3/">R-3</a> <a href="R-5/">R-5</a>`), nil
		case "https://mirror.example/src/base/R-5/":
			return []byte(`<a href="R-5.0.2.tar.gz">x</a>`), nil
		}
		return nil, fmt.Errorf("unexpected url %s", url)
	}
	v, err := detectLatestVersion("https://mirror.example", fetch)
	require.NoError(t, err)
	assert.Equal(t, "5.0.2", v)
	// Highest series is consulted first in the fallback.
	assert.Equal(t, "https://mirror.example/src/base/R-5/", calls[2])
}

func TestDetectLatestVersionNothingFound(t *testing.T) {
	fetch := func(url string) ([]byte, error) {
		return []byte("nothing here"), nil
	}
	_, err := detectLatestVersion("https://mirror.example", fetch)
	assert.Error(t, err)
}

func TestParseSeriesLinksHighestFirst(t *testing.T) {
	index := `<a href="R-1/">a</a> <a href="R-4/">b</a> <a href="R-3/">c</a> <a href="R-4/">dup</a>`
	assert.Equal(t, []int{4, 3, 1}, parseSeriesLinks(index))
}

func TestMajorOf(t *testing.T) {
	assert.Equal(t, "4", majorOf("4.5.1"))
	assert.Equal(t, "10", majorOf("10.0.0"))
}
