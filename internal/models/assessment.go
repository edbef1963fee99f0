package models

import "strings"

// Orientation is the anatomical plane the fetal brain appears in
type Orientation string

const (
	Axial    Orientation = "axial"
	Sagittal Orientation = "sagittal"
	Coronal  Orientation = "coronal"
	Unknown  Orientation = "unknown"
)

// Orientations lists the scored orientations in tie-break priority order
var Orientations = []Orientation{Axial, Sagittal, Coronal}

// Upper returns the upper-case label used in folder names and reports
func (o Orientation) Upper() string {
	return strings.ToUpper(string(o))
}

// ParseOrientation accepts either case and falls back to Unknown
func ParseOrientation(s string) Orientation {
	switch Orientation(strings.ToLower(strings.TrimSpace(s))) {
	case Axial:
		return Axial
	case Sagittal:
		return Sagittal
	case Coronal:
		return Coronal
	default:
		return Unknown
	}
}

// QualityClass is the coarse quality bucket derived from the composite score
type QualityClass string

const (
	Excellent QualityClass = "EXCELLENT"
	Good      QualityClass = "GOOD"
	Fair      QualityClass = "FAIR"
	Poor      QualityClass = "POOR"
)

// QualityClasses lists every class from best to worst
var QualityClasses = []QualityClass{Excellent, Good, Fair, Poor}

// FeatureSet holds the image features the orientation rules are evaluated on.
// Present is false when no brain region could be extracted.
type FeatureSet struct {
	Present bool

	HorizontalSymmetry float64
	VerticalSymmetry   float64
	AspectRatio        float64
	DominantLineAngle  float64
	LineCount          int
	IntensityStd       float64
	IntensitySkewness  float64
}

// Map returns the features keyed by their report names. An absent feature set
// yields an empty map.
func (f FeatureSet) Map() map[string]float64 {
	if !f.Present {
		return map[string]float64{}
	}
	return map[string]float64{
		"horizontal_symmetry": f.HorizontalSymmetry,
		"vertical_symmetry":   f.VerticalSymmetry,
		"aspect_ratio":        f.AspectRatio,
		"dominant_line_angle": f.DominantLineAngle,
		"line_count":          float64(f.LineCount),
		"intensity_std":       f.IntensityStd,
		"intensity_skewness":  f.IntensitySkewness,
	}
}

// OrientationResult is the outcome of orientation classification
type OrientationResult struct {
	Orientation Orientation
	Confidence  float64
	Features    FeatureSet

	// Scores holds the additive rule score per orientation
	Scores map[Orientation]float64
}

// QualityMetrics holds the raw quality measurements of one slice and the
// orientation-specific derived metrics. Only the derived fields that belong to
// Orientation are meaningful.
type QualityMetrics struct {
	Orientation Orientation

	Sharpness float64
	Contrast  float64
	SNR       float64

	// axial
	BilateralSymmetry float64
	ShapeRegularity   float64

	// sagittal
	MidlineClarity float64
	APStructures   float64

	// coronal
	BilateralBalance     float64
	VerticalOrganization float64
}

// Map returns the metrics keyed by their report names, including only the
// derived metrics of the metric set's orientation.
func (m QualityMetrics) Map() map[string]float64 {
	out := map[string]float64{
		"sharpness_score": m.Sharpness,
		"contrast":        m.Contrast,
		"snr":             m.SNR,
	}
	switch m.Orientation {
	case Axial:
		out["bilateral_symmetry"] = m.BilateralSymmetry
		out["shape_regularity"] = m.ShapeRegularity
	case Sagittal:
		out["midline_clarity"] = m.MidlineClarity
		out["ap_structures"] = m.APStructures
	case Coronal:
		out["bilateral_balance"] = m.BilateralBalance
		out["vertical_organization"] = m.VerticalOrganization
	}
	return out
}
