// Package report writes the folder and per-file CSV reports of a scoring run
// and the end-of-run summary statistics and charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fetalbrainqc/internal/models"
)

// FolderHeader is the column layout of the folder-level report
var FolderHeader = []string{
	"folder_path", "folder_name", "total_dicoms", "valid_dicoms",
	"best_score", "best_quality_class", "best_file",
	"fetal_orientation", "orientation_confidence", "maternal_acquisition_plane",
	"most_common_fetal_orientation", "avg_score",
	"original_name", "new_name", "renamed", "rename_error",
}

// FileHeader is the column layout of the per-file report
var FileHeader = []string{
	"folder_name", "file_path", "composite_score", "quality_class",
	"fetal_orientation", "orientation_confidence", "maternal_acquisition_plane",
	"sharpness_score", "contrast", "snr", "rows", "cols",
	"horizontal_symmetry", "vertical_symmetry", "aspect_ratio",
	"dominant_line_angle", "line_count", "intensity_std", "intensity_skewness",
	"error",
}

// CSVWriter wraps csv.Writer with methods for the scoring reports.
type CSVWriter struct {
	Folders *csv.Writer
	Files   *csv.Writer
}

// NewCSVWriter creates a new CSVWriter. files may be nil to skip the
// per-file report.
func NewCSVWriter(folders, files io.Writer) *CSVWriter {
	w := &CSVWriter{Folders: csv.NewWriter(folders)}
	if files != nil {
		w.Files = csv.NewWriter(files)
	}
	return w
}

// WriteHeaders writes the header row of every report.
func (c *CSVWriter) WriteHeaders() error {
	if err := c.Folders.Write(FolderHeader); err != nil {
		return err
	}
	if c.Files != nil {
		return c.Files.Write(FileHeader)
	}
	return nil
}

// WriteFolder writes one summarized folder and, when enabled, all of its
// file rows including the files that failed.
func (c *CSVWriter) WriteFolder(s *models.FolderSummary) error {
	row := []string{
		s.FolderPath,
		s.FolderName,
		strconv.Itoa(s.TotalDicoms),
		strconv.Itoa(s.ValidDicoms),
		strconv.Itoa(s.BestScore),
		string(s.BestQualityClass),
		s.BestFile,
		s.FetalOrientation,
		formatFloat(s.OrientationConfidence),
		s.MaternalAcquisitionPlane,
		s.MostCommonFetalOrientation,
		formatFloat(s.AvgScore),
		s.OriginalName,
		s.NewName,
		strconv.FormatBool(s.Renamed),
		s.RenameError,
	}
	if err := c.Folders.Write(row); err != nil {
		return err
	}

	if c.Files == nil {
		return nil
	}
	for _, r := range s.Results {
		if err := c.Files.Write(fileRow(s.FolderName, r)); err != nil {
			return err
		}
	}
	for _, r := range s.Errors {
		if err := c.Files.Write(fileRow(s.FolderName, r)); err != nil {
			return err
		}
	}
	return nil
}

func fileRow(folder string, r models.FileResult) []string {
	if r.Failed() {
		row := make([]string, len(FileHeader))
		row[0] = folder
		row[1] = r.FilePath
		row[len(row)-1] = r.Err
		return row
	}

	f := r.Features
	features := make([]string, 7)
	if f.Present {
		features = []string{
			formatFloat(f.HorizontalSymmetry),
			formatFloat(f.VerticalSymmetry),
			formatFloat(f.AspectRatio),
			formatFloat(f.DominantLineAngle),
			strconv.Itoa(f.LineCount),
			formatFloat(f.IntensityStd),
			formatFloat(f.IntensitySkewness),
		}
	}

	row := []string{
		folder,
		r.FilePath,
		strconv.Itoa(r.CompositeScore),
		string(r.QualityClass),
		r.FetalOrientation,
		formatFloat(r.OrientationConfidence),
		r.MaternalAcquisitionPlane,
		formatFloat(r.SharpnessScore),
		formatFloat(r.Contrast),
		formatFloat(r.SNR),
		strconv.Itoa(r.Rows),
		strconv.Itoa(r.Cols),
	}
	row = append(row, features...)
	return append(row, "")
}

// Flush flushes every writer and returns the first error encountered
func (c *CSVWriter) Flush() error {
	c.Folders.Flush()
	if err := c.Folders.Error(); err != nil {
		return err
	}
	if c.Files != nil {
		c.Files.Flush()
		return c.Files.Error()
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteReports writes the folder report to folderPath and, when filePath is
// not empty, the per-file report to filePath. Nothing is written when there
// are no summaries.
func WriteReports(folderPath, filePath string, summaries []*models.FolderSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	folderFile, err := os.Create(folderPath)
	if err != nil {
		return fmt.Errorf("error creating report %s: %w", folderPath, err)
	}
	defer folderFile.Close()

	var files io.Writer
	if strings.TrimSpace(filePath) != "" {
		fileFile, err := os.Create(filePath)
		if err != nil {
			return fmt.Errorf("error creating report %s: %w", filePath, err)
		}
		defer fileFile.Close()
		files = fileFile
	}

	w := NewCSVWriter(folderFile, files)
	if err := w.WriteHeaders(); err != nil {
		return fmt.Errorf("error writing report header: %w", err)
	}
	for _, s := range summaries {
		if err := w.WriteFolder(s); err != nil {
			return fmt.Errorf("error writing report row for %s: %w", s.FolderName, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("error flushing reports: %w", err)
	}
	return nil
}
