// Package quality computes the orientation-aware image quality score of a
// fetal brain MRI slice.
//
// Raw measurements (sharpness, contrast, SNR) are taken on the full slice.
// They are normalized, weighted by the per-orientation table of the
// configuration and combined with an orientation bonus derived from the
// features the orientation detector measured on the brain region.
package quality

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"fetalbrainqc/internal/models"
	"fetalbrainqc/pkg/config"
	"fetalbrainqc/pkg/imaging"
)

// Assessor computes quality metrics and composite scores
type Assessor struct {
	cfg *config.Config
}

// NewAssessor creates an assessor from cfg. A nil cfg uses the defaults.
func NewAssessor(cfg *config.Config) *Assessor {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Assessor{cfg: cfg}
}

// Metrics measures sharpness, contrast and SNR of the slice and derives the
// orientation-specific metrics from the orientation features.
func (a *Assessor) Metrics(slice *models.Slice, orientation models.Orientation, features models.FeatureSet) models.QualityMetrics {
	s := a.cfg.Scoring
	metrics := models.QualityMetrics{Orientation: orientation}

	img := slice.Pixels
	if img.Empty() {
		return metrics
	}

	// Normalize to 8-bit
	var src gocv.Mat
	if slice.Is8Bit {
		src = img.ToMat8U()
	} else {
		wide := img.ToMat()
		src = imaging.NormalizeMat(wide)
		wide.Close()
	}
	defer src.Close()
	normalized := imaging.GridFromMat(src)

	// Mild denoising before the Laplacian
	denoised := gocv.NewMat()
	defer denoised.Close()
	k := s.DenoiseKernel
	gocv.GaussianBlur(src, &denoised, image.Pt(k, k), s.DenoiseSigma, 0, gocv.BorderDefault)

	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(denoised, &laplacian, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	metrics.Sharpness = imaging.PopVariance(imaging.GridFromMat(laplacian).Pix)
	metrics.Contrast = imaging.PopStdDev(normalized.Pix)

	signal := imaging.Mean(normalized.Pix)
	noise := NoiseRegions(normalized, s.BorderDivisor)
	noiseStd := 1.0
	if len(noise) > 0 {
		noiseStd = imaging.PopStdDev(noise)
	}
	metrics.SNR = signal / (noiseStd + s.SNREpsilon)

	switch orientation {
	case models.Axial:
		metrics.BilateralSymmetry = features.HorizontalSymmetry
		metrics.ShapeRegularity = 1.0 / (math.Abs(aspectOrDefault(features)-1.0) + 0.1)
	case models.Sagittal:
		vs := 0.5
		if features.Present {
			vs = features.VerticalSymmetry
		}
		metrics.MidlineClarity = 1.0 - vs
		metrics.APStructures = features.IntensityStd / 50.0
	case models.Coronal:
		metrics.BilateralBalance = features.HorizontalSymmetry
		metrics.VerticalOrganization = features.VerticalSymmetry
	}

	return metrics
}

func aspectOrDefault(f models.FeatureSet) float64 {
	if !f.Present {
		return 1.0
	}
	return f.AspectRatio
}

// NoiseRegions returns the samples of the top, bottom, left and right border
// strips of the image, each min(rows, cols)/divisor pixels wide. Corner samples
// appear twice. A strip width of zero selects the whole image for the bottom
// and right strips and nothing for the top and left ones.
func NoiseRegions(img *imaging.Grid, divisor int) []float64 {
	h, w := img.Rows, img.Cols
	bw := min(h, w) / divisor

	top := img.Crop(rectRC(0, bw, 0, w))
	left := img.Crop(rectRC(0, h, 0, bw))

	bottomStart, rightStart := h-bw, w-bw
	if bw == 0 {
		bottomStart, rightStart = 0, 0
	}
	bottom := img.Crop(rectRC(bottomStart, h, 0, w))
	right := img.Crop(rectRC(0, h, rightStart, w))

	out := make([]float64, 0, top.Len()+bottom.Len()+left.Len()+right.Len())
	out = append(out, top.Pix...)
	out = append(out, bottom.Pix...)
	out = append(out, left.Pix...)
	out = append(out, right.Pix...)
	return out
}
