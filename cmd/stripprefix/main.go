package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"fetalbrainqc/pkg/foldername"
)

func main() {
	inputDir := flag.String("input", "", "Master folder whose case folders carry a score prefix")
	apply := flag.Bool("apply", false, "Rename the folders (default: only list the planned renames)")
	flag.Parse()

	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if info, err := os.Stat(*inputDir); err != nil || !info.IsDir() {
		log.Fatalf("Master folder %s does not exist", *inputDir)
	}

	plans, err := foldername.PlanStrips(*inputDir)
	if err != nil {
		log.Fatalf("Failed to scan %s: %v", *inputDir, err)
	}
	if len(plans) == 0 {
		fmt.Println("No prefixed folders found")
		return
	}

	for _, p := range plans {
		fmt.Printf("%s -> %s\n", p.From, p.To)
	}

	if !*apply {
		fmt.Printf("\nDry run: %d folders would be renamed. Use -apply to rename them.\n", len(plans))
		return
	}

	renamed := foldername.ApplyStrips(*inputDir, plans)
	for _, p := range plans {
		if p.Err != nil {
			log.Printf("Warning: %v", p.Err)
		}
	}
	fmt.Printf("\nRenamed %d of %d folders\n", renamed, len(plans))
}
