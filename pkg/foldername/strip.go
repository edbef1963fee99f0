package foldername

import (
	"fmt"
	"os"
	"strings"
)

// StripPlan is one pending prefix removal inside a master folder
type StripPlan struct {
	From string
	To   string

	// Err is set after Apply when the rename failed
	Err error
}

// PlanStrips lists the case folders of master that carry a generated prefix,
// sorted by name. Hidden folders and plain files are ignored.
func PlanStrips(master string) ([]StripPlan, error) {
	entries, err := os.ReadDir(master)
	if err != nil {
		return nil, fmt.Errorf("error reading master folder: %w", err)
	}

	var plans []StripPlan
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if original, ok := StripPrefix(entry.Name()); ok {
			plans = append(plans, StripPlan{From: entry.Name(), To: original})
		}
	}

	return plans, nil
}

// ApplyStrips performs the planned renames in order and records each failure
// on its plan. It returns the number of folders renamed.
func ApplyStrips(master string, plans []StripPlan) int {
	renamed := 0
	for i := range plans {
		if err := Rename(master, plans[i].From, plans[i].To); err != nil {
			plans[i].Err = err
			continue
		}
		renamed++
	}
	return renamed
}
