package orientation

import (
	"math"

	"fetalbrainqc/internal/models"
)

// Classify scores the feature set against each orientation's rules and picks
// the highest score. Equal scores resolve in the order axial, sagittal,
// coronal. An absent feature set classifies as unknown with confidence 0.
func (d *Detector) Classify(features models.FeatureSet) models.OrientationResult {
	if !features.Present {
		return models.OrientationResult{Orientation: models.Unknown}
	}

	scores := d.ruleScores(features)

	best := models.Orientations[0]
	for _, o := range models.Orientations[1:] {
		if scores[o] > scores[best] {
			best = o
		}
	}

	confidence := math.Min(scores[best]/d.rules.ConfidenceScale, 1.0)

	return models.OrientationResult{
		Orientation: best,
		Confidence:  confidence,
		Features:    features,
		Scores:      scores,
	}
}

func (d *Detector) ruleScores(f models.FeatureSet) map[models.Orientation]float64 {
	r := d.rules
	scores := make(map[models.Orientation]float64, len(models.Orientations))

	// Axial: strong left-right symmetry, roughly round, textured
	var axial float64
	if f.HorizontalSymmetry > r.Axial.HorizontalSymmetryAbove {
		axial += r.Axial.HorizontalSymmetryPoints
	}
	if r.Axial.AspectRatio.Contains(f.AspectRatio) {
		axial += r.Axial.AspectRatioPoints
	}
	if f.IntensityStd > r.Axial.IntensityStdAbove {
		axial += r.Axial.IntensityStdPoints
	}
	scores[models.Axial] = axial

	// Sagittal: asymmetric top-bottom, elongated, vertical midline
	var sagittal float64
	if f.VerticalSymmetry < r.Sagittal.VerticalSymmetryBelow {
		sagittal += r.Sagittal.VerticalSymmetryPoints
	}
	if r.Sagittal.AspectRatio.Contains(f.AspectRatio) {
		sagittal += r.Sagittal.AspectRatioPoints
	}
	if math.Abs(f.DominantLineAngle-r.Sagittal.LineAngleTarget) < r.Sagittal.LineAngleTolerance {
		sagittal += r.Sagittal.LineAnglePoints
	}
	scores[models.Sagittal] = sagittal

	// Coronal
	var coronal float64
	if f.VerticalSymmetry > r.Coronal.VerticalSymmetryAbove {
		coronal += r.Coronal.VerticalSymmetryPoints
	}
	if r.Coronal.AspectRatio.Contains(f.AspectRatio) {
		coronal += r.Coronal.AspectRatioPoints
	}
	if f.HorizontalSymmetry > r.Coronal.HorizontalSymmetryAbove {
		coronal += r.Coronal.HorizontalSymmetryPoints
	}
	scores[models.Coronal] = coronal

	return scores
}
