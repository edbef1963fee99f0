package models

// FileResult is the outcome of scoring one DICOM file. Err is non-empty when
// the file could not be scored; the remaining fields are then zero.
type FileResult struct {
	FilePath string
	Err      string

	CompositeScore           int
	QualityClass             QualityClass
	FetalOrientation         string // upper-case orientation label
	OrientationConfidence    float64
	MaternalAcquisitionPlane string
	SharpnessScore           float64
	Contrast                 float64
	SNR                      float64
	Rows                     int
	Cols                     int
	Features                 FeatureSet
}

// Failed reports whether the file produced an error record
func (r FileResult) Failed() bool {
	return r.Err != ""
}

// FolderSummary aggregates the file results of one case folder
type FolderSummary struct {
	FolderPath string
	FolderName string

	TotalDicoms int
	ValidDicoms int

	BestScore                  int
	BestQualityClass           QualityClass
	BestFile                   string
	FetalOrientation           string
	OrientationConfidence      float64
	MaternalAcquisitionPlane   string
	MostCommonFetalOrientation string
	AvgScore                   float64

	// Results holds the successfully scored files in processing order
	Results []FileResult

	// Errors holds the files that could not be scored
	Errors []FileResult

	// Filled in by the renaming pass
	OriginalName string
	NewName      string
	Renamed      bool
	RenameError  string
}
