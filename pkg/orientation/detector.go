// Package orientation guesses which anatomical plane a fetal brain is imaged
// in from a single maternal MRI slice.
//
// The detector isolates the brain as the largest bright connected component,
// measures left-right and top-bottom symmetry, shape and line structure of that
// region, and feeds the resulting FeatureSet to a fixed additive rule table.
// Every step is a pure function of its input.
package orientation

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"fetalbrainqc/internal/models"
	"fetalbrainqc/pkg/config"
	"fetalbrainqc/pkg/imaging"
)

// Detector determines fetal brain orientation using the rule thresholds of a
// configuration. A Detector holds no mutable state and is safe for
// concurrent use.
type Detector struct {
	detection struct {
		blurKernel int
		blurSigma  float64
		cannyLow   float64
		cannyHigh  float64
		houghRho   float64
		houghTheta float64
		houghVotes int
	}
	rules config.OrientationRules
}

// NewDetector creates a detector from the detection and orientation sections
// of cfg. A nil cfg uses the defaults.
func NewDetector(cfg *config.Config) *Detector {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d := &Detector{rules: cfg.Orientation}
	d.detection.blurKernel = cfg.Detection.BlurKernel
	d.detection.blurSigma = cfg.Detection.BlurSigma
	d.detection.cannyLow = cfg.Detection.CannyLow
	d.detection.cannyHigh = cfg.Detection.CannyHigh
	d.detection.houghRho = cfg.Detection.HoughRho
	d.detection.houghTheta = cfg.Detection.HoughThetaDeg * math.Pi / 180
	d.detection.houghVotes = cfg.Detection.HoughVotes
	return d
}

// Stages collects the intermediate images of one detection run so they can
// be dumped for inspection. Fields are nil when the run stopped early.
type Stages struct {
	Normalized *imaging.Grid
	Blurred    *imaging.Grid
	Binary     *imaging.Grid
	Region     *models.BrainRegion
	Edges      *imaging.Grid

	// Bounds is the crop rectangle of the region within the slice
	Bounds image.Rectangle
}

// DetectBrainRegion finds the fetal brain in a maternal MRI slice. It returns
// nil when thresholding leaves no foreground component.
func (d *Detector) DetectBrainRegion(img *imaging.Grid) *models.BrainRegion {
	region, _ := d.detectBrainRegion(img)
	return region
}

func (d *Detector) detectBrainRegion(img *imaging.Grid) (*models.BrainRegion, *Stages) {
	stages := &Stages{}
	if img.Empty() {
		return nil, stages
	}

	src := img.ToMat()
	defer src.Close()

	// Normalize image
	norm := imaging.NormalizeMat(src)
	defer norm.Close()
	stages.Normalized = imaging.GridFromMat(norm)

	// Apply Gaussian blur to reduce noise
	blurred := gocv.NewMat()
	defer blurred.Close()
	k := d.detection.blurKernel
	gocv.GaussianBlur(norm, &blurred, image.Pt(k, k), d.detection.blurSigma, 0, gocv.BorderDefault)
	stages.Blurred = imaging.GridFromMat(blurred)

	// Use Otsu's thresholding to segment brain tissue
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(blurred, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	stages.Binary = imaging.GridFromMat(binary)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return nil, stages
	}

	// Largest contour by area, the first one winning ties
	largest := 0
	largestArea := gocv.ContourArea(contours.At(0))
	for i := 1; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > largestArea {
			largest, largestArea = i, area
		}
	}
	contour := contours.At(largest)

	mask := gocv.Zeros(binary.Rows(), binary.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	fill := gocv.NewPointsVectorFromPoints([][]image.Point{contour.ToPoints()})
	defer fill.Close()
	gocv.FillPoly(&mask, fill, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	// Crop both the normalized image and the fill mask to the bounding box
	rect := gocv.BoundingRect(contour)
	normROI := norm.Region(rect)
	defer normROI.Close()
	maskROI := mask.Region(rect)
	defer maskROI.Close()

	region := &models.BrainRegion{
		Image: imaging.GridFromMat(normROI),
		Mask:  imaging.GridFromMat(maskROI),
	}
	stages.Region = region
	stages.Bounds = rect
	return region, stages
}

// AnalyzeSymmetry measures left-right and top-bottom mirror symmetry of the
// region as Pearson correlations. Undefined correlations are reported as 0.
func AnalyzeSymmetry(region *models.BrainRegion) (horizontal, vertical float64) {
	if region == nil || region.Image.Empty() {
		return 0, 0
	}
	img := region.Image
	h, w := img.Rows, img.Cols

	// Horizontal symmetry (left-right)
	left := img.Crop(rectRC(0, h, 0, w/2))
	rightFlipped := img.Crop(rectRC(0, h, w/2, w)).FlipHorizontal()
	minWidth := min(left.Cols, rightFlipped.Cols)
	left = left.Crop(rectRC(0, h, 0, minWidth))
	rightFlipped = rightFlipped.Crop(rectRC(0, h, 0, minWidth))
	horizontal = imaging.Correlation(left.Pix, rightFlipped.Pix)

	// Vertical symmetry (top-bottom)
	top := img.Crop(rectRC(0, h/2, 0, w))
	bottomFlipped := img.Crop(rectRC(h/2, h, 0, w)).FlipVertical()
	minHeight := min(top.Rows, bottomFlipped.Rows)
	top = top.Crop(rectRC(0, minHeight, 0, w))
	bottomFlipped = bottomFlipped.Crop(rectRC(0, minHeight, 0, w))
	vertical = imaging.Correlation(top.Pix, bottomFlipped.Pix)

	return horizontal, vertical
}

// DetectAnatomicalFeatures measures shape, line structure and intensity
// distribution of the region. Symmetry fields are left at zero.
func (d *Detector) DetectAnatomicalFeatures(region *models.BrainRegion) models.FeatureSet {
	features, _ := d.detectAnatomicalFeatures(region)
	return features
}

func (d *Detector) detectAnatomicalFeatures(region *models.BrainRegion) (models.FeatureSet, *imaging.Grid) {
	if region == nil || region.Image.Empty() {
		return models.FeatureSet{}, nil
	}
	img := region.Image
	features := models.FeatureSet{Present: true}

	features.AspectRatio = float64(img.Cols) / float64(img.Rows)

	src := img.ToMat8U()
	defer src.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(src, &edges, float32(d.detection.cannyLow), float32(d.detection.cannyHigh))

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, float32(d.detection.houghRho), float32(d.detection.houghTheta), d.detection.houghVotes)

	if n := lines.Rows(); n > 0 {
		angles := make([]float64, n)
		for i := range angles {
			// each row holds (rho, theta)
			theta := lines.GetVecfAt(i, 0)[1]
			angles[i] = float64(theta) * 180 / math.Pi
		}
		features.DominantLineAngle = imaging.Median(angles)
		features.LineCount = n
	}

	features.IntensityStd = imaging.PopStdDev(img.Pix)
	features.IntensitySkewness = imaging.Skewness(img.Pix)

	return features, imaging.GridFromMat(edges)
}

// Determine runs region extraction, feature extraction and classification on
// one slice. When no brain region is found the result is unknown with
// confidence 0 and an empty feature set.
func (d *Detector) Determine(img *imaging.Grid) models.OrientationResult {
	result, _ := d.DetermineWithStages(img)
	return result
}

// DetermineWithStages is Determine that also returns the intermediate images.
func (d *Detector) DetermineWithStages(img *imaging.Grid) (models.OrientationResult, *Stages) {
	region, stages := d.detectBrainRegion(img)
	if region == nil {
		return models.OrientationResult{Orientation: models.Unknown}, stages
	}

	features, edges := d.detectAnatomicalFeatures(region)
	stages.Edges = edges
	features.HorizontalSymmetry, features.VerticalSymmetry = AnalyzeSymmetry(region)

	return d.Classify(features), stages
}

// rectRC builds a crop rectangle from row and column bounds
func rectRC(r0, r1, c0, c1 int) image.Rectangle {
	return image.Rect(c0, r0, c1, r1)
}
