package rbuild

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// IndexEntry is one published build in the mirror's index.json.
type IndexEntry struct {
	Version string `json:"version"`
	File    string `json:"file"`
	Size    int64  `json:"size"`
	Built   string `json:"built"`
}

// handlePublishCommand packs an installed version as .tar.zst and uploads
// it plus an updated index to the configured S3-compatible mirror.
func handlePublishCommand(args []string, cfg *Config) error {
	publishCmd := flag.NewFlagSet("publish", flag.ExitOnError)
	pinVersion := publishCmd.String("version", "", "Installed version to publish (default: the current alias).")
	if err := publishCmd.Parse(args); err != nil {
		return err
	}

	version := *pinVersion
	if version == "" {
		target, err := os.Readlink(filepath.Join(runtimeDir, "current"))
		if err != nil {
			return fmt.Errorf("no version given and no current alias: %w", err)
		}
		version = strings.TrimPrefix(filepath.Base(target), "R-")
	}
	if err := validateVersion(version); err != nil {
		return err
	}

	installDir := filepath.Join(runtimeDir, "R-"+version)
	if !dirExists(installDir) {
		return fmt.Errorf("R %s is not installed under %s", version, runtimeDir)
	}

	client, err := NewMirrorClient(cfg)
	if err != nil {
		return err
	}
	ctx := UserExec.Context

	workDir, err := newWorkDir()
	if err != nil {
		return err
	}
	defer removeWorkDir(workDir)

	fileName := fmt.Sprintf("R-%s-linux-%s.tar.zst", version, toolchainArch())
	tarballPath := filepath.Join(workDir, fileName)

	colArrow.Print("-> ")
	colSuccess.Printf("Packing %s\n", installDir)
	if err := createVersionTarball(installDir, tarballPath); err != nil {
		return fmt.Errorf("failed to create tarball: %w", err)
	}

	stat, err := os.Stat(tarballPath)
	if err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Uploading %s (%s)\n", fileName, humanReadableSize(stat.Size()))
	if err := client.UploadLocalFile(ctx, fileName, tarballPath); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	// Refresh the index: drop any stale entry for this version, prepend
	// the new one, newest first.
	var index []IndexEntry
	if data, err := client.DownloadFile(ctx, "index.json"); err == nil {
		if err := json.Unmarshal(data, &index); err != nil {
			debugf("Ignoring unparseable remote index: %v\n", err)
			index = nil
		}
	}
	filtered := index[:0]
	for _, e := range index {
		if e.Version != version {
			filtered = append(filtered, e)
		}
	}
	index = append([]IndexEntry{{
		Version: version,
		File:    fileName,
		Size:    stat.Size(),
		Built:   time.Now().UTC().Format(time.RFC3339),
	}}, filtered...)

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	if err := client.UploadFile(ctx, "index.json", data); err != nil {
		return fmt.Errorf("index upload failed: %w", err)
	}

	colArrow.Print("-> ")
	colSuccess.Println("Publish complete.")
	return nil
}

func humanReadableSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
