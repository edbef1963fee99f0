package foldername

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"fetalbrainqc/internal/models"
)

func TestConfidenceToken(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0, "C??"},
		{0.5, "C??"},
		{0.51, "C51"},
		{0.8, "C80"},
		{0.999, "C99"},
		{1.0, "C100"},
	}
	for _, tt := range tests {
		if got := ConfidenceToken(tt.confidence); got != tt.want {
			t.Errorf("ConfidenceToken(%v) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}

func TestBuildName(t *testing.T) {
	tests := []struct {
		name       string
		score      int
		class      models.QualityClass
		orient     string
		confidence float64
		original   string
		want       string
	}{
		{"pads score", 7, models.Poor, "UNKNOWN", 0, "CASE0030", "07_POOR_UNKNOWN_C??_CASE0030"},
		{"confident axial", 82, models.Excellent, "AXIAL", 1.0, "case_01", "82_EXCELLENT_AXIAL_C100_case_01"},
		{"perfect score", 100, models.Excellent, "CORONAL", 0.6, "x", "100_EXCELLENT_CORONAL_C60_x"},
		{"replaces prefix", 55, models.Good, "SAGITTAL", 0.8, "40_FAIR_AXIAL_C??_case", "55_GOOD_SAGITTAL_C80_case"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildName(tt.score, tt.class, tt.orient, tt.confidence, tt.original)
			if got != tt.want {
				t.Errorf("BuildName = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStripPrefixRoundTrip(t *testing.T) {
	originals := []string{
		"CASE0030_0003016796 (copy)",
		"patient_12_a",
		"40_GOOD_legacy_named",
		"AXIAL_only",
		"x",
	}
	for _, orig := range originals {
		for _, conf := range []float64{0.2, 0.75, 1.0} {
			name := BuildName(64, models.Good, "CORONAL", conf, orig)
			got, ok := StripPrefix(name)
			if !ok || got != orig {
				t.Errorf("StripPrefix(%q) = %q, %v; want %q", name, got, ok, orig)
			}
		}
	}
}

func TestStripPrefixFailsClosed(t *testing.T) {
	names := []string{
		"CASE0030",
		"2024_scan_01",
		"1_GOOD_case",
		"75_AMAZING_AXIAL_C80_case",
		"75_GOOD_",
		"",
	}
	for _, name := range names {
		got, ok := StripPrefix(name)
		if ok || got != name {
			t.Errorf("StripPrefix(%q) = %q, %v; want name unchanged", name, got, ok)
		}
	}

	// A malformed generated layout only loses the older score_CLASS prefix
	if got, ok := StripPrefix("75_GOOD_OBLIQUE_C80_case"); !ok || got != "OBLIQUE_C80_case" {
		t.Errorf("StripPrefix = %q, %v; want OBLIQUE_C80_case", got, ok)
	}
}

func TestStripPrefixLegacy(t *testing.T) {
	got, ok := StripPrefix("40_FAIR_CASE0031")
	if !ok || got != "CASE0031" {
		t.Errorf("StripPrefix legacy = %q, %v", got, ok)
	}
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"a", "b"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}

	if err := Rename(dir, "a", "b"); !errors.Is(err, ErrTargetExists) {
		t.Errorf("Expected ErrTargetExists, got %v", err)
	}
	if err := Rename(dir, "a", "c"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "c")); err != nil {
		t.Errorf("Renamed folder missing: %v", err)
	}
	if err := Rename(dir, "missing", "d"); err == nil {
		t.Error("Expected error renaming a missing folder")
	}
}

func TestPlanAndApplyStrips(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{
		"82_EXCELLENT_AXIAL_C100_case1",
		"40_FAIR_case2",
		"case3",
		".55_GOOD_AXIAL_C80_hidden",
		"30_POOR_UNKNOWN_C??_case4",
		"case4",
	} {
		if err := os.Mkdir(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "70_GOOD_file.csv"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	plans, err := PlanStrips(dir)
	if err != nil {
		t.Fatalf("PlanStrips failed: %v", err)
	}
	want := []StripPlan{
		{From: "30_POOR_UNKNOWN_C??_case4", To: "case4"},
		{From: "40_FAIR_case2", To: "case2"},
		{From: "82_EXCELLENT_AXIAL_C100_case1", To: "case1"},
	}
	if diff := cmp.Diff(want, plans); diff != "" {
		t.Fatalf("Plans mismatch (-want +got):\n%s", diff)
	}

	renamed := ApplyStrips(dir, plans)
	if renamed != 2 {
		t.Errorf("Renamed %d folders, want 2", renamed)
	}
	if !errors.Is(plans[0].Err, ErrTargetExists) {
		t.Errorf("Collision not reported: %v", plans[0].Err)
	}
	for _, d := range []string{"case1", "case2", "30_POOR_UNKNOWN_C??_case4"} {
		if _, err := os.Stat(filepath.Join(dir, d)); err != nil {
			t.Errorf("Expected %s to exist: %v", d, err)
		}
	}

	if _, err := PlanStrips(filepath.Join(dir, "nope")); err == nil {
		t.Error("Expected error for a missing master folder")
	}
}
