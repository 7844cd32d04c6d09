package rbuild

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// rMajorSeries is the major release series checked first when no version
// is pinned. The global fallback scans every series on the mirror, so a
// future major bump degrades to one extra index fetch rather than a break.
const rMajorSeries = 4

var (
	versionPattern     = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	versionLinkPattern = regexp.MustCompile(`R-(\d+\.\d+\.\d+)\.tar\.gz`)
	seriesLinkPattern  = regexp.MustCompile(`href="R-(\d+)/?"`)
)

// validateVersion enforces the strict numeric dotted-triplet form.
// Anything else ("4.5", "latest", "4.5.1-rc1") is a fatal detection error.
func validateVersion(v string) error {
	if !versionPattern.MatchString(v) {
		return fmt.Errorf("invalid R version %q: expected numeric X.Y.Z", v)
	}
	return nil
}

// parseVersionLinks extracts the distinct versions referenced by source
// tarball links in a mirror directory index.
func parseVersionLinks(index string) []string {
	seen := map[string]bool{}
	var versions []string
	for _, m := range versionLinkPattern.FindAllStringSubmatch(index, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			versions = append(versions, m[1])
		}
	}
	return versions
}

// parseSeriesLinks extracts the R-<major> series directories from the
// index root, highest first.
func parseSeriesLinks(index string) []int {
	seen := map[int]bool{}
	var series []int
	for _, m := range seriesLinkPattern.FindAllStringSubmatch(index, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		series = append(series, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(series)))
	return series
}

// compareVersions orders dotted triplets numerically, not lexically,
// so 4.10.0 sorts after 4.9.2.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < 3; i++ {
		var ai, bi int
		if i < len(as) {
			ai, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bi, _ = strconv.Atoi(bs[i])
		}
		if ai != bi {
			return ai - bi
		}
	}
	return 0
}

func latestOf(versions []string) string {
	latest := ""
	for _, v := range versions {
		if latest == "" || compareVersions(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

func seriesIndexURL(mirror string, major int) string {
	return fmt.Sprintf("%s/src/base/R-%d/", mirror, major)
}

// detectLatestVersion queries the mirror for the newest release in the
// current major series, falling back to scanning every series when the
// scoped query yields nothing. fetchIndex is injectable for tests and is
// httpGetBody in production.
func detectLatestVersion(mirror string, fetchIndex func(url string) ([]byte, error)) (string, error) {
	body, err := fetchIndex(seriesIndexURL(mirror, rMajorSeries))
	if err == nil {
		if v := latestOf(parseVersionLinks(string(body))); v != "" {
			if err := validateVersion(v); err != nil {
				return "", err
			}
			return v, nil
		}
	}
	debugf("Series R-%d query yielded nothing, falling back to global index\n", rMajorSeries)

	rootBody, err := fetchIndex(mirror + "/src/base/")
	if err != nil {
		return "", fmt.Errorf("version detection failed: %w", err)
	}
	for _, major := range parseSeriesLinks(string(rootBody)) {
		body, err := fetchIndex(seriesIndexURL(mirror, major))
		if err != nil {
			continue
		}
		if v := latestOf(parseVersionLinks(string(body))); v != "" {
			if err := validateVersion(v); err != nil {
				return "", err
			}
			return v, nil
		}
	}
	return "", fmt.Errorf("could not detect any R release on %s", mirror)
}

// majorOf returns the leading component of a validated version string.
func majorOf(version string) string {
	return strings.SplitN(version, ".", 2)[0]
}
