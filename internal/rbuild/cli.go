package rbuild

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: rbuild <command> [arguments]")
	colSuccess.Println("Run 'rbuild <command> -h' for command options")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"install", "[options]", "Download, build and install R into the user prefix"},
		{"list, ls", "", "List installed R versions, marking the current one"},
		{"log", "", "TUI viewer for the build logs of a running install"},
		{"cleanup", "[options]", "Delete cached downloads, toolchains or built dependencies"},
		{"publish", "[-version X.Y.Z]", "Upload an installed version to the configured mirror"},
		{"version, --version", "", "Version information"},
	}

	// Find the longest usage string to calculate the first column width.
	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++ // Account for the space
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}

	fmt.Println()
}

// Main is the CLI entrypoint for rbuild.
func Main() {
	// 1. CONTEXT AND SIGNAL SETUP
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					// --- CRITICAL PHASE: block the 1st signal, force exit on the 2nd ---
					colArrow.Print("\n-> ")
					colError.Printf("Critical operation in progress (install step). Press Ctrl+C AGAIN to force exit NOW.\n")
					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						colError.Printf("Forced immediate exit.")
						os.Exit(130) // Common exit code for SIGINT
					case <-time.After(5 * time.Second):
						continue
					case <-ctx.Done():
						return
					}
				} else {
					// --- NON-CRITICAL PHASE: graceful cancellation ---
					colArrow.Print("\n-> ")
					color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
					cancel()

					// Give the child a moment to die and flush its buffers
					time.Sleep(100 * time.Millisecond)

					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						color.Danger.Printf("Second interrupt received. Forcing immediate exit.")
						os.Exit(130)
					case <-time.After(2 * time.Second):
						colArrow.Print("\n-> ")
						color.Danger.Printf("Graceful shutdown timeout. Exiting.")
						os.Exit(0)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	if ctx.Err() != nil {
		return
	}

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	// 2. CONFIGURATION
	home, _ := os.UserHomeDir()
	ConfigFile = filepath.Join(home, ".config", "rbuild", "rbuild.conf")
	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config: %v\n", err)
	}
	initConfig(cfg)

	// 3. EXECUTOR
	UserExec = &Executor{Context: ctx}

	// 4. DISPATCH
	var exitCode int

	switch os.Args[1] {
	case "install":
		if err := handleInstallCommand(os.Args[2:], cfg); err != nil {
			colArrow.Print("-> ")
			colError.Printf("Install failed: %v\n", err)
			exitCode = 1
		}

	case "list", "ls":
		if err := handleListCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = 1
		}

	case "log":
		exitCode = runTUI()

	case "cleanup":
		if err := handleCleanupCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = 1
		}

	case "publish":
		if err := handlePublishCommand(os.Args[2:], cfg); err != nil {
			colArrow.Print("-> ")
			colError.Printf("Publish failed: %v\n", err)
			exitCode = 1
		}

	case "version", "--version":
		colSuccess.Printf("rbuild %s (built %s)\n", version, buildDate)

	case "help", "-h", "--help":
		printHelp()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printHelp()
		exitCode = 2
	}

	cancel()
	os.Exit(exitCode)
}
