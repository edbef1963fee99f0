package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"fetalbrainqc/pkg/imaging"
	"fetalbrainqc/pkg/orientation"
)

// Stage names accepted by ExtractStage, in pipeline order
var Stages = []string{"normalized", "blurred", "binary", "region", "mask", "edges", "overlay"}

// Viewer renders the intermediate images of one slice's orientation analysis
// so the region extraction can be inspected by eye.
type Viewer struct {
	// stages holds the images captured during detection
	stages *orientation.Stages

	// scale is the integer upscaling factor applied when saving
	scale int
}

// NewViewer creates a viewer for the captured stages. Images are upscaled by
// scale when saved; values below 1 keep the native size.
func NewViewer(stages *orientation.Stages, scale int) *Viewer {
	if scale < 1 {
		scale = 1
	}
	return &Viewer{
		stages: stages,
		scale:  scale,
	}
}

// ExtractStage returns the named stage as an 8-bit image
func (v *Viewer) ExtractStage(stage string) (image.Image, error) {
	if v.stages == nil {
		return nil, fmt.Errorf("no stages captured")
	}

	var g *imaging.Grid
	switch stage {
	case "normalized":
		g = v.stages.Normalized
	case "blurred":
		g = v.stages.Blurred
	case "binary":
		g = v.stages.Binary
	case "region":
		if v.stages.Region != nil {
			g = v.stages.Region.Image
		}
	case "mask":
		if v.stages.Region != nil {
			g = v.stages.Region.Mask
		}
	case "edges":
		g = v.stages.Edges
	case "overlay":
		return v.Overlay()
	default:
		return nil, fmt.Errorf("invalid stage: %s", stage)
	}

	if g.Empty() {
		return nil, fmt.Errorf("stage %s was not reached", stage)
	}
	return g.ToGray(), nil
}

// Overlay draws the brain region bounds in red on the normalized slice
func (v *Viewer) Overlay() (image.Image, error) {
	if v.stages == nil || v.stages.Normalized.Empty() {
		return nil, fmt.Errorf("stage normalized was not reached")
	}

	base := v.stages.Normalized.ToGray()
	img := image.NewRGBA(base.Bounds())
	draw.Draw(img, img.Bounds(), base, image.Point{}, draw.Src)

	if v.stages.Region != nil {
		r := v.stages.Bounds
		red := color.RGBA{R: 255, A: 255}
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, r.Min.Y, red)
			img.Set(x, r.Max.Y-1, red)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.Set(r.Min.X, y, red)
			img.Set(r.Max.X-1, y, red)
		}
	}
	return img, nil
}

// SaveStage saves an image as a JPEG file, upscaled by the viewer's factor
func (v *Viewer) SaveStage(img image.Image, filename string) error {
	if v.scale > 1 {
		b := img.Bounds()
		scaled := image.NewRGBA(image.Rect(0, 0, b.Dx()*v.scale, b.Dy()*v.scale))
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
		img = scaled
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveAll writes every reached stage to outputDir as NN_<stage>.jpg and
// returns the number of files written. Stages the analysis never reached are
// skipped.
func (v *Viewer) SaveAll(outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create intermediary directory: %w", err)
	}

	written := 0
	for i, stage := range Stages {
		img, err := v.ExtractStage(stage)
		if err != nil {
			continue
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%02d_%s.jpg", i+1, stage))
		if err := v.SaveStage(img, filename); err != nil {
			return written, fmt.Errorf("failed to save stage %s: %w", stage, err)
		}
		written++
	}

	return written, nil
}
