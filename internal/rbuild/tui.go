package rbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type logInfo struct {
	path    string
	unit    string // toolchain/dependency/runtime name derived from the file
	content string
}

var (
	tuiApp          *tview.Application
	tuiLogs         []logInfo
	tuiActiveIdx    int
	tuiPrevIdx      int // Track previous index to detect tab switches
	tuiHeaderBox    *tview.TextView
	tuiLogView      *tview.TextView
	tuiFooterBox    *tview.TextView
	tuiFlex         *tview.Flex
	tuiUpdateChan   chan []logInfo
	tuiPrevContent  map[string]string // Track previous content per log path
	tuiShouldScroll bool              // Flag to force scroll to end on next update
)

// runTUI is the 'rbuild log' viewer: it tails the per-stage build logs of
// a concurrently running install from another terminal.
func runTUI() int {
	tuiUpdateChan = make(chan []logInfo, 10)
	tuiPrevContent = make(map[string]string)
	tuiPrevIdx = -1

	tuiApp = tview.NewApplication()

	tuiHeaderBox = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	tuiHeaderBox.SetBorder(true)
	tuiHeaderBox.SetTitle("rbuild Build Log Viewer")

	// SetDynamicColors(true) enables ANSI color code support
	tuiLogView = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetScrollable(true).
		SetChangedFunc(func() {
			tuiApp.Draw()
		})
	tuiLogView.SetBorder(true)

	tuiFooterBox = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetTextAlign(tview.AlignLeft)
	tuiFooterBox.SetBorder(true)

	tuiFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tuiHeaderBox, 3, 0, false).
		AddItem(tuiLogView, 0, 1, true).
		AddItem(tuiFooterBox, 3, 0, false)

	cycle := func(delta int) {
		if len(tuiLogs) == 0 {
			return
		}
		tuiActiveIdx = (tuiActiveIdx + delta + len(tuiLogs)) % len(tuiLogs)
		tuiShouldScroll = true
		updateTUI()
	}

	tuiFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlQ, tcell.KeyEsc:
			tuiApp.Stop()
			return nil
		case tcell.KeyLeft:
			cycle(-1)
			return nil
		case tcell.KeyRight:
			cycle(1)
			return nil
		case tcell.KeyHome:
			tuiLogView.ScrollToBeginning()
			return nil
		case tcell.KeyEnd:
			tuiLogView.ScrollToEnd()
			return nil
		case tcell.KeyUp:
			row, _ := tuiLogView.GetScrollOffset()
			if row > 0 {
				tuiLogView.ScrollTo(row-1, 0)
			}
			return nil
		case tcell.KeyDown:
			row, _ := tuiLogView.GetScrollOffset()
			tuiLogView.ScrollTo(row+1, 0)
			return nil
		case tcell.KeyPgUp:
			row, _ := tuiLogView.GetScrollOffset()
			if row > 10 {
				tuiLogView.ScrollTo(row-10, 0)
			} else {
				tuiLogView.ScrollToBeginning()
			}
			return nil
		case tcell.KeyPgDn:
			row, _ := tuiLogView.GetScrollOffset()
			tuiLogView.ScrollTo(row+10, 0)
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				tuiApp.Stop()
				return nil
			case 'h':
				cycle(-1)
				return nil
			case 'l':
				cycle(1)
				return nil
			}
		}
		return event
	})

	// Poll the log files and push fresh snapshots to the UI goroutine.
	go func() {
		ticker := time.NewTicker(400 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			logs := readAllBuildLogs()
			select {
			case tuiUpdateChan <- logs:
			default:
			}
		}
	}()

	go func() {
		for logs := range tuiUpdateChan {
			// Track the currently viewed log path to maintain focus
			var currentLogPath string
			if tuiActiveIdx < len(tuiLogs) {
				currentLogPath = tuiLogs[tuiActiveIdx].path
			}

			tuiLogs = logs

			if currentLogPath != "" {
				found := false
				for i, log := range tuiLogs {
					if log.path == currentLogPath {
						tuiActiveIdx = i
						found = true
						break
					}
				}
				if !found && tuiActiveIdx >= len(tuiLogs) && len(tuiLogs) > 0 {
					tuiActiveIdx = len(tuiLogs) - 1
				}
			}

			tuiApp.QueueUpdateDraw(func() {
				updateTUI()
			})
		}
	}()

	tuiApp.SetRoot(tuiFlex, true).SetFocus(tuiLogView)

	tuiLogs = readAllBuildLogs()
	if len(tuiLogs) > 0 {
		tuiActiveIdx = 0
	}
	updateTUI()

	if err := tuiApp.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui:", err)
		return 1
	}
	return 0
}

func updateTUI() {
	if tuiApp == nil || tuiHeaderBox == nil || tuiLogView == nil || tuiFooterBox == nil {
		return
	}

	// Update header
	if len(tuiLogs) == 0 {
		tuiHeaderBox.SetText("[gray]No build logs found[white]")
	} else if tuiActiveIdx < len(tuiLogs) {
		log := tuiLogs[tuiActiveIdx]
		tuiHeaderBox.SetText(fmt.Sprintf("[gray]Log %d/%d: %s (%s)[white]",
			tuiActiveIdx+1, len(tuiLogs), log.unit, log.path))
	} else {
		tuiHeaderBox.SetText("[gray]No active log[white]")
	}

	// Update log content
	if len(tuiLogs) == 0 {
		tuiLogView.SetText("No build log yet. Run 'rbuild install' to start a build.")
	} else if tuiActiveIdx < len(tuiLogs) {
		log := tuiLogs[tuiActiveIdx]
		prevContent, hadPrevContent := tuiPrevContent[log.path]

		switchedTabs := (tuiPrevIdx != tuiActiveIdx)
		if switchedTabs {
			tuiPrevIdx = tuiActiveIdx
		}

		if log.content != prevContent || switchedTabs {
			row, _ := tuiLogView.GetScrollOffset()

			wasAtBottom := false
			if !switchedTabs && hadPrevContent {
				tuiLogView.ScrollTo(row+1, 0)
				newRow, _ := tuiLogView.GetScrollOffset()
				wasAtBottom = (newRow == row)
				tuiLogView.ScrollTo(row, 0)
			}

			tuiLogView.Clear()
			// ANSIWriter converts ANSI escape sequences to tview color tags
			ansiWriter := tview.ANSIWriter(tuiLogView)
			ansiWriter.Write([]byte(log.content))

			if switchedTabs || tuiShouldScroll {
				tuiLogView.ScrollToEnd()
				tuiShouldScroll = false
			} else if wasAtBottom {
				tuiLogView.ScrollToEnd()
			} else if hadPrevContent {
				prevLines := strings.Count(prevContent, "\n")
				newLines := strings.Count(log.content, "\n")
				if newLines > prevLines {
					tuiLogView.ScrollTo(row+(newLines-prevLines), 0)
				} else {
					tuiLogView.ScrollTo(row, 0)
				}
			}

			tuiPrevContent[log.path] = log.content
		}
	} else {
		tuiLogView.SetText("")
	}

	tuiFooterBox.SetText("[gray]Press 'q' or Ctrl+Q to quit | ← → (or h/l) to switch logs | ↑ ↓ to scroll | Home/End to jump[white]")
}

// readAllBuildLogs collects the per-unit logs of every run directory under
// the work root, newest run first.
func readAllBuildLogs() []logInfo {
	runs, err := filepath.Glob(filepath.Join(workRoot, "run-*", "log", "*.log"))
	if err != nil || len(runs) == 0 {
		return nil
	}
	// Newest run first, units alphabetical within a run.
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))

	var logs []logInfo
	for _, path := range runs {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		logs = append(logs, logInfo{
			path:    path,
			unit:    strings.TrimSuffix(filepath.Base(path), ".log"),
			content: string(data),
		})
	}
	return logs
}
