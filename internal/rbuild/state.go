package rbuild

import (
	"os"
	"path/filepath"
)

// ProbeState is the tri-state result of checking a resolvable unit's
// install directory. A bare file-exists check cannot distinguish a
// finished install from the debris of an interrupted one, so every unit
// declares marker patterns that must ALL be present to count as complete.
type ProbeState int

const (
	StateAbsent   ProbeState = iota // directory does not exist
	StatePartial                    // directory exists but markers are missing
	StateComplete                   // all markers present, safe to reuse
)

func (s ProbeState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePartial:
		return "partially present"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

// probeInstallDir checks dir against marker glob patterns (relative to dir).
// Every pattern must match at least one path for the unit to be complete.
func probeInstallDir(dir string, markers ...string) ProbeState {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return StateAbsent
	}
	for _, marker := range markers {
		matches, err := filepath.Glob(filepath.Join(dir, marker))
		if err != nil || len(matches) == 0 {
			return StatePartial
		}
	}
	return StateComplete
}
