// Package foldername encodes a case folder's quality verdict into its name and
// removes that encoding again.
//
// A generated name has the layout
//
//	{score:02d}_{CLASS}_{ORIENTATION}_{C<confidence>|C??}_{original}
//
// Stripping only accepts names that match this layout exactly (or the older
// {score}_{CLASS}_{original} layout) and leaves every other name alone.
package foldername

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"fetalbrainqc/internal/models"
)

// ErrTargetExists is returned when a rename would overwrite an existing entry
var ErrTargetExists = errors.New("target already exists")

var (
	generatedPattern = regexp.MustCompile(`^(\d{2,3})_(EXCELLENT|GOOD|FAIR|POOR)_(AXIAL|SAGITTAL|CORONAL|UNKNOWN)_(C\d{2,3}|C\?\?)_(.+)$`)
	legacyPattern    = regexp.MustCompile(`^(\d{2,3})_(EXCELLENT|GOOD|FAIR|POOR)_(.+)$`)
)

// ConfidenceToken renders the orientation confidence as C<percent>, or C??
// when the confidence is 0.5 or lower.
func ConfidenceToken(confidence float64) string {
	if confidence > 0.5 {
		return fmt.Sprintf("C%02d", int(confidence*100))
	}
	return "C??"
}

// BuildName returns the new folder name for a summarized case folder. A
// previously generated prefix on original is replaced rather than stacked.
func BuildName(score int, class models.QualityClass, orientation string, confidence float64, original string) string {
	if stripped, ok := stripGenerated(original); ok {
		original = stripped
	}
	return fmt.Sprintf("%02d_%s_%s_%s_%s", score, class, orientation, ConfidenceToken(confidence), original)
}

// StripPrefix returns the original folder name encoded in name. ok is false
// when name does not carry a generated prefix, in which case name is returned
// unchanged.
func StripPrefix(name string) (original string, ok bool) {
	if stripped, ok := stripGenerated(name); ok {
		return stripped, true
	}
	if m := legacyPattern.FindStringSubmatch(name); m != nil {
		return m[3], true
	}
	return name, false
}

func stripGenerated(name string) (string, bool) {
	m := generatedPattern.FindStringSubmatch(name)
	if m == nil {
		return name, false
	}
	return m[5], true
}

// Rename moves dir/oldName to dir/newName. It refuses to replace an existing
// entry and returns ErrTargetExists instead.
func Rename(dir, oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	target := filepath.Join(dir, newName)
	if _, err := os.Lstat(target); err == nil {
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, ErrTargetExists)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, err)
	}
	if err := os.Rename(filepath.Join(dir, oldName), target); err != nil {
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, err)
	}
	return nil
}
