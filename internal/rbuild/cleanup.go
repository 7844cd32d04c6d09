package rbuild

import (
	"flag"
	"fmt"
	"os"
)

func handleCleanupCommand(args []string) error {
	cleanupCmd := flag.NewFlagSet("cleanup", flag.ExitOnError)
	cleanSources := cleanupCmd.Bool("sources", false, "Remove all cached downloads.")
	cleanToolchains := cleanupCmd.Bool("toolchains", false, "Remove extracted toolchains.")
	cleanDeps := cleanupCmd.Bool("deps", false, "Remove locally built dependencies.")
	cleanAll := cleanupCmd.Bool("all", false, "sources, toolchains and dependencies.")

	if err := cleanupCmd.Parse(args); err != nil {
		return err // Should not happen with flag.ExitOnError
	}

	// If no flags are provided, show help and exit
	if !*cleanSources && !*cleanToolchains && !*cleanDeps && !*cleanAll {
		fmt.Println("Usage: rbuild cleanup [flag]")
		fmt.Println("You must specify what to clean up. Use one of the following flags:")
		cleanupCmd.PrintDefaults()
		return nil
	}

	if *cleanAll {
		*cleanSources = true
		*cleanToolchains = true
		*cleanDeps = true
	}

	targets := []struct {
		enabled bool
		label   string
		dir     string
	}{
		{*cleanSources, "download cache", cacheDir},
		{*cleanToolchains, "toolchains", toolchainsDir},
		{*cleanDeps, "built dependencies", depsDir},
	}

	for _, t := range targets {
		if !t.enabled {
			continue
		}
		colArrow.Print("-> ")
		cPrintf(colWarn, "Deleting %s at %s.\n", t.label, t.dir)
		if !askForConfirmation(colArrow, "Are you sure you want to proceed?") {
			colArrow.Print("-> ")
			colSuccess.Printf("Cleanup of %s canceled.\n", t.label)
			continue
		}
		if err := os.RemoveAll(t.dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", t.dir, err)
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Removed %s.\n", t.label)
	}

	return nil
}
