package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"fetalbrainqc/pkg/batch"
	"fetalbrainqc/pkg/config"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Master folder containing one sub-folder of DICOM files per case")
	configPath := flag.String("config", "", "Optional YAML configuration file")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	dryRun := flag.Bool("dry-run", false, "Score and report without renaming any folder")
	numWorkers := flag.Int("workers", 0, "Number of files scored concurrently per folder (default: all CPUs)")
	plot := flag.Bool("plot", false, "Save PNG charts of the quality and orientation distributions")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary detection images for every file")
	intermediaryDir := flag.String("intermediary-dir", "", "Directory to save intermediary results")
	intermediaryScale := flag.Int("intermediary-scale", 0, "Integer upscaling factor for saved intermediary images (default: 2)")
	verbose := flag.Bool("verbose", true, "Print per-folder file counts and timing")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command line flags override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Processing.NumWorkers = *numWorkers
		case "plot":
			cfg.Output.Plot = *plot
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "intermediary-dir":
			cfg.Output.IntermediaryDir = *intermediaryDir
		case "intermediary-scale":
			cfg.Output.IntermediaryScale = *intermediaryScale
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Output.SaveIntermediaryResults && !filepath.IsAbs(cfg.Output.IntermediaryDir) {
		cfg.Output.IntermediaryDir = filepath.Join(*inputDir, cfg.Output.IntermediaryDir)
	}

	fmt.Println("================================")
	fmt.Println("FETAL BRAIN MRI ORIENTATION AND QUALITY SCORING")
	fmt.Println("================================")

	runner := batch.NewRunner(cfg, nil)

	startTime := time.Now()
	result, err := runner.Run(*inputDir, *dryRun)
	if err != nil {
		log.Fatalf("Scoring failed: %v", err)
	}

	fmt.Printf("\nScored %d folders in %.2f seconds\n", len(result.Summaries), time.Since(startTime).Seconds())
	if len(result.Failed) > 0 {
		fmt.Printf("%d folders could not be scored:\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Printf("- %s: %v\n", f.Name, f.Err)
		}
	}
	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", cfg.Output.IntermediaryDir)
	}
}
