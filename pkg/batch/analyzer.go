// Package batch scores every DICOM file of a case folder, aggregates the
// results per folder and drives the renaming run over a master folder.
package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"fetalbrainqc/internal/models"
	"fetalbrainqc/pkg/config"
	"fetalbrainqc/pkg/dicomio"
	"fetalbrainqc/pkg/orientation"
	"fetalbrainqc/pkg/quality"
	"fetalbrainqc/pkg/visualization"
)

var (
	// ErrNoDicomFiles is returned for folders without any matching file
	ErrNoDicomFiles = errors.New("no DICOM files found")

	// ErrNoValidDicoms is returned when every file of a folder failed
	ErrNoValidDicoms = errors.New("no valid DICOM files processed")
)

// Analyzer scores DICOM files and case folders
type Analyzer struct {
	cfg      *config.Config
	reader   dicomio.Reader
	detector *orientation.Detector
	assessor *quality.Assessor
}

// NewAnalyzer creates an analyzer. A nil reader parses files from disk.
func NewAnalyzer(cfg *config.Config, reader dicomio.Reader) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if reader == nil {
		reader = dicomio.FileReader{}
	}
	return &Analyzer{
		cfg:      cfg,
		reader:   reader,
		detector: orientation.NewDetector(cfg),
		assessor: quality.NewAssessor(cfg),
	}
}

// AnalyzeFile scores one file. Failures, including panics raised while
// decoding a malformed file, are returned as an error record.
func (a *Analyzer) AnalyzeFile(path string) (res models.FileResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.FileResult{FilePath: path, Err: fmt.Sprintf("error analyzing %s: %v", filepath.Base(path), r)}
		}
	}()

	slice, err := a.reader.Read(path)
	if err != nil {
		return models.FileResult{FilePath: path, Err: err.Error()}
	}

	result, stages := a.detector.DetermineWithStages(slice.Pixels)
	assessment := a.assessor.Assess(slice, result)

	if a.cfg.Output.SaveIntermediaryResults {
		a.saveIntermediaryResult(path, stages)
	}

	rows, cols := slice.Shape()
	return models.FileResult{
		FilePath:                 path,
		CompositeScore:           assessment.Score,
		QualityClass:             assessment.Class,
		FetalOrientation:         result.Orientation.Upper(),
		OrientationConfidence:    quality.Round(result.Confidence, 3),
		MaternalAcquisitionPlane: dicomio.MaternalPlane(slice.ImageOrientationPatient),
		SharpnessScore:           quality.Round(assessment.Metrics.Sharpness, 2),
		Contrast:                 quality.Round(assessment.Metrics.Contrast, 2),
		SNR:                      quality.Round(assessment.Metrics.SNR, 2),
		Rows:                     rows,
		Cols:                     cols,
		Features:                 result.Features,
	}
}

// saveIntermediaryResult writes the detection stages of one file under
// <intermediaryDir>/<folder>/<file>/. Failures only warn.
func (a *Analyzer) saveIntermediaryResult(path string, stages *orientation.Stages) {
	folder := filepath.Base(filepath.Dir(path))
	stem := filepath.Base(path)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	dir := filepath.Join(a.cfg.Output.IntermediaryDir, folder, stem)

	viewer := visualization.NewViewer(stages, a.cfg.Output.IntermediaryScale)
	if _, err := viewer.SaveAll(dir); err != nil {
		fmt.Printf("Warning: Failed to save intermediary results for %s: %v\n", path, err)
	}
}

// ListDicomFiles returns the files of folder matching the configured
// patterns, de-duplicated and sorted by name.
func (a *Analyzer) ListDicomFiles(folder string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range a.cfg.Processing.DicomPatterns {
		matches, err := filepath.Glob(filepath.Join(folder, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid DICOM pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// AnalyzeFolder scores every DICOM file in folder and summarizes the results.
// Files are scored concurrently on up to NumWorkers goroutines; results keep
// the sorted file order.
func (a *Analyzer) AnalyzeFolder(folder string) (*models.FolderSummary, error) {
	files, err := a.ListDicomFiles(folder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoDicomFiles
	}

	results := a.analyzeFilesInParallel(files)
	return Summarize(folder, results)
}

func (a *Analyzer) analyzeFilesInParallel(files []string) []models.FileResult {
	numWorkers := a.cfg.Processing.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	type fileResult struct {
		idx    int
		result models.FileResult
	}
	jobs := make(chan int)
	resultChan := make(chan fileResult)

	for w := 0; w < min(numWorkers, len(files)); w++ {
		go func() {
			for idx := range jobs {
				resultChan <- fileResult{idx: idx, result: a.AnalyzeFile(files[idx])}
			}
		}()
	}
	go func() {
		for i := range files {
			jobs <- i
		}
		close(jobs)
	}()

	// Collect results by index
	results := make([]models.FileResult, len(files))
	for range files {
		res := <-resultChan
		results[res.idx] = res.result
	}
	return results
}

// Summarize aggregates the file results of one folder in processing order.
// The best file is the first with the highest score and the most common
// orientation is the first one encountered among those with the highest count.
func Summarize(folder string, results []models.FileResult) (*models.FolderSummary, error) {
	if len(results) == 0 {
		return nil, ErrNoDicomFiles
	}

	summary := &models.FolderSummary{
		FolderPath:  folder,
		FolderName:  filepath.Base(folder),
		TotalDicoms: len(results),
	}
	for _, r := range results {
		if r.Failed() {
			summary.Errors = append(summary.Errors, r)
		} else {
			summary.Results = append(summary.Results, r)
		}
	}
	summary.ValidDicoms = len(summary.Results)
	if summary.ValidDicoms == 0 {
		return summary, ErrNoValidDicoms
	}

	best := summary.Results[0]
	total := 0
	counts := make(map[string]int)
	var order []string
	for _, r := range summary.Results {
		if r.CompositeScore > best.CompositeScore {
			best = r
		}
		total += r.CompositeScore
		if counts[r.FetalOrientation] == 0 {
			order = append(order, r.FetalOrientation)
		}
		counts[r.FetalOrientation]++
	}

	mostCommon := order[0]
	for _, o := range order[1:] {
		if counts[o] > counts[mostCommon] {
			mostCommon = o
		}
	}

	summary.BestScore = best.CompositeScore
	summary.BestQualityClass = best.QualityClass
	summary.BestFile = best.FilePath
	summary.FetalOrientation = best.FetalOrientation
	summary.OrientationConfidence = best.OrientationConfidence
	summary.MaternalAcquisitionPlane = best.MaternalAcquisitionPlane
	summary.MostCommonFetalOrientation = mostCommon
	summary.AvgScore = quality.Round(float64(total)/float64(summary.ValidDicoms), 1)

	return summary, nil
}
