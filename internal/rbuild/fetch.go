package rbuild

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"lukechampine.com/blake3"
)

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Some upstream hosts (sourceware, tukaani) are slow to shake hands.
	transport.TLSHandshakeTimeout = 30 * time.Second
	return &http.Client{Transport: transport}
}

func hashString(s string) string {
	// Try system b3sum first
	if _, err := exec.LookPath("b3sum"); err == nil {
		cmd := exec.Command("b3sum")
		cmd.Stdin = strings.NewReader(s)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err == nil {
			fields := strings.Fields(out.String())
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}

	// Fallback: internal Go BLAKE3 (32-byte output, no key)
	h := blake3.New(32, nil)
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// cachePathFor maps a source URL to its location in the download cache.
// The key is URL-derived so two dependencies shipping the same basename
// (e.g. configure tarballs) never collide.
func cachePathFor(url string) string {
	base := filepath.Base(url)
	return filepath.Join(cacheDir, fmt.Sprintf("%s-%s", hashString(url)[:16], base))
}

// urlExists performs a lightweight existence probe before committing to a
// full download, used to pick between archive formats.
func urlExists(url string) bool {
	// curl -sIfL is cheap and follows redirects the same way the real
	// download will.
	if _, err := exec.LookPath("curl"); err == nil {
		cmd := exec.Command("curl", "-sIfL", "-o", os.DevNull, url)
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
		return cmd.Run() == nil
	}

	resp, err := newHTTPClient().Head(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// httpGetBody fetches a small document (a directory index) into memory.
func httpGetBody(url string) ([]byte, error) {
	resp, err := newHTTPClient().Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// fetchToCache downloads url into the cache unless it is already there,
// and returns the cached path. The cache entry is guarded by a flock so
// overlapping rbuild invocations do not clobber each other's downloads.
func fetchToCache(url string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}
	absPath := cachePathFor(url)

	if _, err := os.Stat(absPath); err == nil {
		debugf("Already in cache: %s\n", absPath)
		return absPath, nil
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Fetching %s\n", filepath.Base(url))

	lockPath := absPath + ".lock"
	lFile, err := os.Create(lockPath)
	if err != nil {
		return "", fmt.Errorf("failed to create lock file: %w", err)
	}
	defer lFile.Close()

	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return "", fmt.Errorf("failed to acquire lock for download: %w", err)
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// Double check: the file may have appeared while we waited for the lock.
	if _, err := os.Stat(absPath); err == nil {
		debugf("File %s appeared after acquiring lock, skipping download.\n", absPath)
		_ = os.Remove(lockPath)
		return absPath, nil
	}

	if err := downloadFile(url, absPath); err != nil {
		// Never leave a truncated archive behind; reruns trust the cache.
		_ = os.Remove(absPath)
		return "", err
	}
	_ = os.Remove(lockPath)
	return absPath, nil
}

// downloadFile downloads a URL to destFile, preferring curl, then wget,
// then a native Go HTTP client with a progress bar.
func downloadFile(finalURL, destFile string) error {
	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", destFile, err)
	}

	debugf("Downloading %s -> %s\n", finalURL, destFile)

	// --- Primary choice: curl ---
	if _, err := exec.LookPath("curl"); err == nil {
		cmd := exec.Command("curl", "-L", "--fail", "-#", "-o", destFile, finalURL)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err == nil {
			debugf("Download successful with curl.\n")
			return nil
		}
		debugf("curl failed, falling back to wget\n")
	} else {
		debugf("curl not found, trying wget\n")
	}

	// --- Fallback 1: wget ---
	if _, err := exec.LookPath("wget"); err == nil {
		cmd := exec.Command("wget", "-nv", "-O", destFile, finalURL)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err == nil {
			debugf("Download successful with wget.\n")
			return nil
		}
		debugf("wget failed, falling back to native Go HTTP client\n")
	} else {
		debugf("wget not found, using native Go HTTP client\n")
	}

	// --- Fallback 2: native Go HTTP client ---
	resp, err := newHTTPClient().Get(finalURL)
	if err != nil {
		return fmt.Errorf("native http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	out, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destFile, err)
	}
	defer out.Close()

	var w io.Writer = out
	if term.IsTerminal(int(os.Stdout.Fd())) {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(destFile))
		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write to destination file: %w", err)
	}

	debugf("Download successful with native Go HTTP client.\n")
	return nil
}
