package quality

import (
	"image"
	"math"

	"fetalbrainqc/internal/models"
	"fetalbrainqc/pkg/config"
)

// Assessment is the complete quality verdict for one slice
type Assessment struct {
	Metrics models.QualityMetrics
	Score   int
	Class   models.QualityClass
}

// Assess measures the slice and scores it for the detected orientation
func (a *Assessor) Assess(slice *models.Slice, result models.OrientationResult) Assessment {
	metrics := a.Metrics(slice, result.Orientation, result.Features)
	score := a.CompositeScore(metrics)
	return Assessment{
		Metrics: metrics,
		Score:   score,
		Class:   a.Classify(score, result.Orientation),
	}
}

// CompositeScore combines the metrics into an integer score in [0, 100] using
// the weights of the metrics' orientation.
func (a *Assessor) CompositeScore(m models.QualityMetrics) int {
	s := a.cfg.Scoring
	blend := blendFor(s.AxialBlend, s.SagittalBlend, s.CoronalBlend, m.Orientation)
	return CompositeScore(m, s.Thresholds.For(m.Orientation), blend, s.SharpnessScale, s.ContrastScale, s.SNRScale)
}

// Classify maps a composite score to a quality class using the cutoffs of
// the given orientation.
func (a *Assessor) Classify(score int, orientation models.Orientation) models.QualityClass {
	return Classify(score, a.cfg.Scoring.Thresholds.For(orientation))
}

// CompositeScore is the weighting formula behind Assessor.CompositeScore.
// Each raw metric is divided by its scale and clamped to [0, 1]; the final
// score is truncated and clamped to [0, 100], with NaN treated as 0.
func CompositeScore(m models.QualityMetrics, q config.QualityThresholds, blend config.Blend, sharpnessScale, contrastScale, snrScale float64) int {
	sharpnessNorm := clamp01(m.Sharpness / sharpnessScale)
	contrastNorm := clamp01(m.Contrast / contrastScale)
	snrNorm := clamp01(m.SNR / snrScale)

	base := q.BlurWeight*sharpnessNorm +
		q.ContrastWeight*contrastNorm +
		q.SNRWeight()*snrNorm

	var bonus float64
	switch m.Orientation {
	case models.Axial:
		bonus = q.SymmetryWeight * (m.BilateralSymmetry*blend.First + m.ShapeRegularity*blend.Second)
	case models.Sagittal:
		bonus = q.SymmetryWeight * (m.MidlineClarity*blend.First + math.Min(m.APStructures, 1.0)*blend.Second)
	case models.Coronal:
		bonus = q.SymmetryWeight * (m.BilateralBalance*blend.First + m.VerticalOrganization*blend.Second)
	}

	score := (base + bonus) * 100
	switch {
	case math.IsNaN(score), score <= 0:
		return 0
	case score >= 100:
		return 100
	}
	return int(score)
}

// Classify returns the first class whose cutoff the score reaches
func Classify(score int, q config.QualityThresholds) models.QualityClass {
	s := float64(score)
	switch {
	case s >= q.Excellent:
		return models.Excellent
	case s >= q.Good:
		return models.Good
	case s >= q.Fair:
		return models.Fair
	default:
		return models.Poor
	}
}

func blendFor(axial, sagittal, coronal config.Blend, o models.Orientation) config.Blend {
	switch o {
	case models.Axial:
		return axial
	case models.Sagittal:
		return sagittal
	case models.Coronal:
		return coronal
	default:
		return config.Blend{}
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Round rounds v to the given number of decimal places, halves to even
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}

// rectRC builds a crop rectangle from row and column bounds
func rectRC(r0, r1, c0, c1 int) image.Rectangle {
	return image.Rect(c0, r0, c1, r1)
}
