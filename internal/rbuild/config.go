package rbuild

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load ~/.config/rbuild/rbuild.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge RBUILD_* env overrides
	mergeEnvOverrides(cfg)

	// Ensure TMPDIR has a default
	if tmp := cfg.Values["TMPDIR"]; tmp == "" {
		if tmp = os.Getenv("TMPDIR"); tmp != "" {
			cfg.Values["TMPDIR"] = tmp
		} else {
			cfg.Values["TMPDIR"] = "/tmp"
		}
	}

	return cfg, nil
}

// Merge RBUILD_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "RBUILD_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	home, _ := os.UserHomeDir()

	prefix = cfg.Values["RBUILD_PREFIX"]
	if prefix == "" {
		prefix = filepath.Join(home, "apps")
	}

	binDir = cfg.Values["RBUILD_BINDIR"]
	if binDir == "" {
		binDir = filepath.Join(home, "bin")
	}

	Debug = cfg.Values["RBUILD_DEBUG"] == "1"

	tmpDir = cfg.Values["TMPDIR"]
	if tmpDir == "" {
		tmpDir = "/tmp"
	}

	cranMirror = strings.TrimRight(cfg.Values["RBUILD_CRAN_MIRROR"], "/")
	if cranMirror == "" {
		// cloud.r-project.org is the CDN-backed CRAN mirror, a safe global default.
		cranMirror = "https://cloud.r-project.org"
		debugf("=> No CRAN mirror configured, using default: %s\n", cranMirror)
	} else {
		debugf("=> Using CRAN mirror from config: %s\n", cranMirror)
	}

	toolchainBaseURL = strings.TrimRight(cfg.Values["RBUILD_TOOLCHAIN_URL"], "/")
	if toolchainBaseURL == "" {
		toolchainBaseURL = "https://github.com/xpack-dev-tools/gcc-xpack/releases/download"
	}

	cacheDir = filepath.Join(prefix, "cache")
	toolchainsDir = filepath.Join(prefix, "toolchains")
	depsDir = filepath.Join(prefix, "deps")
	runtimeDir = filepath.Join(prefix, "R")
	workRoot = filepath.Join(tmpDir, "rbuild")
}
