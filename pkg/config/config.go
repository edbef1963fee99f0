// Package config provides configuration loading and management for fetalbrainqc.
// It handles loading configuration from YAML files and provides default values.
// The defaults reproduce the empirically tuned constants of the scoring
// heuristic exactly; they are definitions, not derived quantities.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"fetalbrainqc/internal/models"
)

// Range is a closed interval [Min, Max]
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies inside the closed interval
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// QualityThresholds holds the class cutoffs and score weights of one orientation
type QualityThresholds struct {
	Excellent float64 `yaml:"excellent"`
	Good      float64 `yaml:"good"`
	Fair      float64 `yaml:"fair"`

	BlurWeight     float64 `yaml:"blurWeight"`
	ContrastWeight float64 `yaml:"contrastWeight"`
	SymmetryWeight float64 `yaml:"symmetryWeight"`
}

// SNRWeight is the residual weight left for the normalized SNR term
func (q QualityThresholds) SNRWeight() float64 {
	return 1 - q.BlurWeight - q.ContrastWeight - q.SymmetryWeight
}

// QualityTable indexes QualityThresholds by orientation
type QualityTable struct {
	Axial    QualityThresholds `yaml:"axial"`
	Sagittal QualityThresholds `yaml:"sagittal"`
	Coronal  QualityThresholds `yaml:"coronal"`
	Unknown  QualityThresholds `yaml:"unknown"`
}

// For returns a copy of the thresholds for the given orientation
func (t QualityTable) For(o models.Orientation) QualityThresholds {
	switch o {
	case models.Axial:
		return t.Axial
	case models.Sagittal:
		return t.Sagittal
	case models.Coronal:
		return t.Coronal
	default:
		return t.Unknown
	}
}

// Blend is the pair of weights applied to the two orientation-specific metrics
type Blend struct {
	First  float64 `yaml:"first"`
	Second float64 `yaml:"second"`
}

// OrientationRules holds the thresholds and points of the additive
// orientation scoring rules
type OrientationRules struct {
	Axial struct {
		HorizontalSymmetryAbove  float64 `yaml:"horizontalSymmetryAbove"`
		HorizontalSymmetryPoints float64 `yaml:"horizontalSymmetryPoints"`
		AspectRatio              Range   `yaml:"aspectRatio"`
		AspectRatioPoints        float64 `yaml:"aspectRatioPoints"`
		IntensityStdAbove        float64 `yaml:"intensityStdAbove"`
		IntensityStdPoints       float64 `yaml:"intensityStdPoints"`
	} `yaml:"axial"`

	Sagittal struct {
		VerticalSymmetryBelow  float64 `yaml:"verticalSymmetryBelow"`
		VerticalSymmetryPoints float64 `yaml:"verticalSymmetryPoints"`
		AspectRatio            Range   `yaml:"aspectRatio"`
		AspectRatioPoints      float64 `yaml:"aspectRatioPoints"`
		LineAngleTarget        float64 `yaml:"lineAngleTarget"`
		LineAngleTolerance     float64 `yaml:"lineAngleTolerance"`
		LineAnglePoints        float64 `yaml:"lineAnglePoints"`
	} `yaml:"sagittal"`

	Coronal struct {
		VerticalSymmetryAbove    float64 `yaml:"verticalSymmetryAbove"`
		VerticalSymmetryPoints   float64 `yaml:"verticalSymmetryPoints"`
		AspectRatio              Range   `yaml:"aspectRatio"`
		AspectRatioPoints        float64 `yaml:"aspectRatioPoints"`
		HorizontalSymmetryAbove  float64 `yaml:"horizontalSymmetryAbove"`
		HorizontalSymmetryPoints float64 `yaml:"horizontalSymmetryPoints"`
	} `yaml:"coronal"`

	// ConfidenceScale is the rule score that maps to confidence 1.0
	ConfidenceScale float64 `yaml:"confidenceScale"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers bounds how many files of one folder are scored concurrently
		NumWorkers int `yaml:"numWorkers"`

		// DicomPatterns are the glob patterns selecting DICOM files in a case folder
		DicomPatterns []string `yaml:"dicomPatterns"`

		// SkipHidden ignores case folders whose name starts with a dot
		SkipHidden bool `yaml:"skipHidden"`
	} `yaml:"processing"`

	// Brain-region extraction and feature parameters
	Detection struct {
		BlurKernel    int     `yaml:"blurKernel"`
		BlurSigma     float64 `yaml:"blurSigma"`
		CannyLow      float64 `yaml:"cannyLow"`
		CannyHigh     float64 `yaml:"cannyHigh"`
		HoughRho      float64 `yaml:"houghRho"`
		HoughThetaDeg float64 `yaml:"houghThetaDeg"`
		HoughVotes    int     `yaml:"houghVotes"`
	} `yaml:"detection"`

	// Orientation scoring rules
	Orientation OrientationRules `yaml:"orientation"`

	// Quality metric and composite score parameters
	Scoring struct {
		DenoiseKernel  int     `yaml:"denoiseKernel"`
		DenoiseSigma   float64 `yaml:"denoiseSigma"`
		BorderDivisor  int     `yaml:"borderDivisor"`
		SNREpsilon     float64 `yaml:"snrEpsilon"`
		SharpnessScale float64 `yaml:"sharpnessScale"`
		ContrastScale  float64 `yaml:"contrastScale"`
		SNRScale       float64 `yaml:"snrScale"`

		AxialBlend    Blend `yaml:"axialBlend"`
		SagittalBlend Blend `yaml:"sagittalBlend"`
		CoronalBlend  Blend `yaml:"coronalBlend"`

		Thresholds QualityTable `yaml:"thresholds"`
	} `yaml:"scoring"`

	// Output parameters
	Output struct {
		// ReportName is the folder-level CSV written into the master folder
		ReportName string `yaml:"reportName"`

		// PerFileReportName is the per-file CSV written next to it
		PerFileReportName string `yaml:"perFileReportName"`

		// Plot writes PNG charts of the class and orientation distributions
		Plot bool `yaml:"plot"`

		// SaveIntermediaryResults determines whether to save intermediary processing images
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary images are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// IntermediaryScale enlarges the saved stage images by this integer factor
		IntermediaryScale int `yaml:"intermediaryScale"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Registration parameters
	Registration struct {
		AtlasPattern     string `yaml:"atlasPattern"`
		AtlasMarker      string `yaml:"atlasMarker"`
		SubjectVolume    string `yaml:"subjectVolume"`
		SubjectMarker    string `yaml:"subjectMarker"`
		RegisteredName   string `yaml:"registeredName"`
		MaskSuffix       string `yaml:"maskSuffix"`
		TransformPrefix  string `yaml:"transformPrefix"`
		RegistrationExec string `yaml:"registrationExec"`
		ApplyExec        string `yaml:"applyExec"`
		TransformType    string `yaml:"transformType"`
	} `yaml:"registration"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.DicomPatterns = []string{"*.dcm", "*.DCM"}
	cfg.Processing.SkipHidden = true

	// Set default detection parameters
	cfg.Detection.BlurKernel = 5
	cfg.Detection.BlurSigma = 1.0
	cfg.Detection.CannyLow = 50
	cfg.Detection.CannyHigh = 150
	cfg.Detection.HoughRho = 1
	cfg.Detection.HoughThetaDeg = 1
	cfg.Detection.HoughVotes = 50

	// Set default orientation rules
	o := &cfg.Orientation
	o.Axial.HorizontalSymmetryAbove = 0.5
	o.Axial.HorizontalSymmetryPoints = 3.0
	o.Axial.AspectRatio = Range{Min: 0.8, Max: 1.3}
	o.Axial.AspectRatioPoints = 2.0
	o.Axial.IntensityStdAbove = 20
	o.Axial.IntensityStdPoints = 1.0

	o.Sagittal.VerticalSymmetryBelow = 0.3
	o.Sagittal.VerticalSymmetryPoints = 2.0
	o.Sagittal.AspectRatio = Range{Min: 0.6, Max: 1.0}
	o.Sagittal.AspectRatioPoints = 2.0
	o.Sagittal.LineAngleTarget = 90
	o.Sagittal.LineAngleTolerance = 20
	o.Sagittal.LineAnglePoints = 2.0

	o.Coronal.VerticalSymmetryAbove = 0.4
	o.Coronal.VerticalSymmetryPoints = 2.0
	o.Coronal.AspectRatio = Range{Min: 0.9, Max: 1.4}
	o.Coronal.AspectRatioPoints = 1.5
	o.Coronal.HorizontalSymmetryAbove = 0.3
	o.Coronal.HorizontalSymmetryPoints = 1.5

	o.ConfidenceScale = 5.0

	// Set default scoring parameters
	s := &cfg.Scoring
	s.DenoiseKernel = 3
	s.DenoiseSigma = 0.5
	s.BorderDivisor = 10
	s.SNREpsilon = 1e-10
	s.SharpnessScale = 150
	s.ContrastScale = 60
	s.SNRScale = 10
	s.AxialBlend = Blend{First: 0.6, Second: 0.4}
	s.SagittalBlend = Blend{First: 0.7, Second: 0.3}
	s.CoronalBlend = Blend{First: 0.5, Second: 0.5}
	s.Thresholds = QualityTable{
		Axial: QualityThresholds{
			Excellent: 75, Good: 60, Fair: 40,
			BlurWeight: 0.3, ContrastWeight: 0.25, SymmetryWeight: 0.2,
		},
		Sagittal: QualityThresholds{
			Excellent: 70, Good: 55, Fair: 35,
			BlurWeight: 0.35, ContrastWeight: 0.2, SymmetryWeight: 0.15,
		},
		Coronal: QualityThresholds{
			Excellent: 72, Good: 58, Fair: 38,
			BlurWeight: 0.25, ContrastWeight: 0.3, SymmetryWeight: 0.25,
		},
		Unknown: QualityThresholds{
			Excellent: 65, Good: 50, Fair: 30,
			BlurWeight: 0.4, ContrastWeight: 0.3, SymmetryWeight: 0.1,
		},
	}

	// Set default output parameters
	cfg.Output.ReportName = "fetal_brain_orientation_quality_analysis.csv"
	cfg.Output.PerFileReportName = "fetal_brain_per_file_scores.csv"
	cfg.Output.Plot = false
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.IntermediaryScale = 2
	cfg.Output.Verbose = true

	// Set default registration parameters
	r := &cfg.Registration
	r.AtlasPattern = "t2w_GA*_tissue.nii.gz"
	r.AtlasMarker = "t2w_GA"
	r.SubjectVolume = "srr_deconv.nii.gz"
	r.SubjectMarker = "srr_deconv"
	r.RegisteredName = "srr_registered.nii.gz"
	r.MaskSuffix = "_rai"
	r.TransformPrefix = "srr_to_atlas_"
	r.RegistrationExec = "antsRegistration"
	r.ApplyExec = "antsApplyTransforms"
	r.TransformType = "Rigid"

	return cfg
}

// Validate checks the configuration for values the scorer cannot work with
func (c *Config) Validate() error {
	var errs []error

	if c.Processing.NumWorkers < 1 {
		errs = append(errs, fmt.Errorf("processing.numWorkers must be at least 1, got %d", c.Processing.NumWorkers))
	}
	if len(c.Processing.DicomPatterns) == 0 {
		errs = append(errs, errors.New("processing.dicomPatterns must not be empty"))
	}
	if c.Detection.BlurKernel < 1 || c.Detection.BlurKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("detection.blurKernel must be a positive odd number, got %d", c.Detection.BlurKernel))
	}
	if c.Scoring.DenoiseKernel < 1 || c.Scoring.DenoiseKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("scoring.denoiseKernel must be a positive odd number, got %d", c.Scoring.DenoiseKernel))
	}
	if c.Detection.HoughRho <= 0 || c.Detection.HoughThetaDeg <= 0 {
		errs = append(errs, errors.New("detection.houghRho and detection.houghThetaDeg must be positive"))
	}
	if c.Orientation.ConfidenceScale <= 0 {
		errs = append(errs, errors.New("orientation.confidenceScale must be positive"))
	}
	if c.Output.IntermediaryScale < 1 {
		errs = append(errs, fmt.Errorf("output.intermediaryScale must be at least 1, got %d", c.Output.IntermediaryScale))
	}
	if c.Scoring.BorderDivisor < 1 {
		errs = append(errs, errors.New("scoring.borderDivisor must be at least 1"))
	}
	if c.Scoring.SharpnessScale <= 0 || c.Scoring.ContrastScale <= 0 || c.Scoring.SNRScale <= 0 {
		errs = append(errs, errors.New("scoring normalization scales must be positive"))
	}

	for _, o := range []models.Orientation{models.Axial, models.Sagittal, models.Coronal, models.Unknown} {
		q := c.Scoring.Thresholds.For(o)
		if q.SNRWeight() < 0 {
			errs = append(errs, fmt.Errorf("scoring.thresholds.%s: weights sum to more than 1", o))
		}
		if !(q.Excellent >= q.Good && q.Good >= q.Fair) {
			errs = append(errs, fmt.Errorf("scoring.thresholds.%s: cutoffs must satisfy excellent >= good >= fair", o))
		}
	}

	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
