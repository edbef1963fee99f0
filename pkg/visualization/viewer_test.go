package visualization

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"fetalbrainqc/pkg/imaging"
	"fetalbrainqc/pkg/orientation"
)

// createStages runs detection on a bright square so every stage is reached
func createStages(t *testing.T) *orientation.Stages {
	t.Helper()
	g := imaging.NewGrid(40, 40)
	for y := 10; y < 30; y++ {
		for x := 12; x < 28; x++ {
			g.Set(y, x, 1000+float64(x))
		}
	}
	_, stages := orientation.NewDetector(nil).DetermineWithStages(g)
	if stages.Region == nil {
		t.Fatal("Expected detection to find a region")
	}
	return stages
}

// TestNewViewer verifies that a new viewer clamps its scale
func TestNewViewer(t *testing.T) {
	v := NewViewer(nil, 0)
	if v.scale != 1 {
		t.Errorf("Expected scale 1, got %d", v.scale)
	}
	v = NewViewer(nil, 3)
	if v.scale != 3 {
		t.Errorf("Expected scale 3, got %d", v.scale)
	}
}

// TestExtractStage verifies that stages are rendered at their native size
func TestExtractStage(t *testing.T) {
	stages := createStages(t)
	v := NewViewer(stages, 1)

	for _, stage := range []string{"normalized", "blurred", "binary", "overlay"} {
		img, err := v.ExtractStage(stage)
		if err != nil {
			t.Fatalf("Failed to extract %s: %v", stage, err)
		}
		if img.Bounds() != image.Rect(0, 0, 40, 40) {
			t.Errorf("%s: expected 40x40 bounds, got %v", stage, img.Bounds())
		}
	}

	region, err := v.ExtractStage("region")
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}
	if region.Bounds().Dx() != stages.Bounds.Dx() || region.Bounds().Dy() != stages.Bounds.Dy() {
		t.Errorf("Region bounds %v do not match crop %v", region.Bounds(), stages.Bounds)
	}

	edges, err := v.ExtractStage("edges")
	if err != nil {
		t.Fatalf("Failed to extract edges: %v", err)
	}
	if edges.Bounds() != region.Bounds() {
		t.Errorf("Edge map %v should match region %v", edges.Bounds(), region.Bounds())
	}

	if _, err := v.ExtractStage("invalid"); err == nil {
		t.Error("Expected error for invalid stage, got nil")
	}

	empty := NewViewer(&orientation.Stages{}, 1)
	if _, err := empty.ExtractStage("edges"); err == nil {
		t.Error("Expected error for a stage that was not reached")
	}
}

// TestOverlay verifies that the region outline is drawn in red
func TestOverlay(t *testing.T) {
	stages := createStages(t)
	img, err := NewViewer(stages, 1).Overlay()
	if err != nil {
		t.Fatalf("Failed to build overlay: %v", err)
	}

	corner := color.RGBAModel.Convert(img.At(stages.Bounds.Min.X, stages.Bounds.Min.Y)).(color.RGBA)
	if corner != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected red outline at region corner, got %v", corner)
	}
	outside := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA)
	if outside.R != outside.G {
		t.Errorf("Expected gray pixel outside region, got %v", outside)
	}
}

// TestSaveStage verifies that a stage is written and upscaled
func TestSaveStage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	v := NewViewer(createStages(t), 2)

	img, err := v.ExtractStage("normalized")
	if err != nil {
		t.Fatalf("Failed to extract stage: %v", err)
	}

	filename := filepath.Join(tempDir, "test_stage.jpg")
	if err := v.SaveStage(img, filename); err != nil {
		t.Fatalf("Failed to save stage: %v", err)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Saved file does not exist: %v", err)
	}
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		t.Fatalf("Failed to decode saved stage: %v", err)
	}
	if cfg.Width != 80 || cfg.Height != 80 {
		t.Errorf("Expected 80x80 upscaled image, got %dx%d", cfg.Width, cfg.Height)
	}
}

// TestSaveAll verifies that every reached stage is saved in order
func TestSaveAll(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	outputDir := filepath.Join(t.TempDir(), "stages")
	written, err := NewViewer(createStages(t), 1).SaveAll(outputDir)
	if err != nil {
		t.Fatalf("Failed to save stages: %v", err)
	}
	if written != len(Stages) {
		t.Errorf("Expected %d files, got %d", len(Stages), written)
	}

	for i, stage := range Stages {
		filename := filepath.Join(outputDir, fmt.Sprintf("%02d_%s.jpg", i+1, stage))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected stage file does not exist: %s", filename)
		}
	}

	// A run without a region only saves the early stages
	partial := &orientation.Stages{Normalized: imaging.NewGrid(8, 8), Blurred: imaging.NewGrid(8, 8), Binary: imaging.NewGrid(8, 8)}
	written, err = NewViewer(partial, 1).SaveAll(filepath.Join(t.TempDir(), "partial"))
	if err != nil {
		t.Fatalf("Failed to save partial stages: %v", err)
	}
	if written != 4 {
		t.Errorf("Expected 4 files (3 stages and overlay), got %d", written)
	}
}
