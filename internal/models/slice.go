package models

import (
	"fetalbrainqc/pkg/imaging"
)

// Slice represents a single 2-D MRI slice read from a DICOM file
type Slice struct {
	// Pixels holds the raw intensity samples of the selected frame
	Pixels *imaging.Grid

	// Filename is the path of the file the slice was read from
	Filename string

	// Is8Bit is true when the source stored 8-bit samples, in which case the
	// quality metrics use the samples as-is instead of renormalizing them
	Is8Bit bool

	// NumFrames is the number of frames in the source; multi-frame sources
	// contribute their middle frame
	NumFrames int

	// FrameIndex is the index of the frame the slice was taken from
	FrameIndex int

	// ImageOrientationPatient holds the direction cosines of the first row and
	// column of the acquisition, when present
	ImageOrientationPatient []float64
}

// Shape returns the slice dimensions as (rows, cols)
func (s *Slice) Shape() (int, int) {
	if s.Pixels == nil {
		return 0, 0
	}
	return s.Pixels.Rows, s.Pixels.Cols
}

// BrainRegion is the crop of the normalized slice around the largest
// connected foreground component, together with the matching fill mask
type BrainRegion struct {
	// Image is the 8-bit normalized crop
	Image *imaging.Grid

	// Mask marks the component interior with 255
	Mask *imaging.Grid
}
