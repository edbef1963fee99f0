package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"fetalbrainqc/pkg/config"
	"fetalbrainqc/pkg/registration"
)

func main() {
	regDir := flag.String("dir", "", "Folder holding the atlas, the subject volume and its masks")
	subject := flag.String("subject", "", "Subject volume file name inside -dir (default from config)")
	configPath := flag.String("config", "", "Optional YAML configuration file")
	dryRun := flag.Bool("dry-run", false, "Print the ANTs commands without running them")
	flag.Parse()

	if *regDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *subject != "" {
		cfg.Registration.SubjectVolume = *subject
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver := registration.NewDriver(cfg, nil)

	startTime := time.Now()
	if _, err := driver.Run(ctx, *regDir, *dryRun); err != nil {
		log.Fatalf("Registration failed: %v", err)
	}
	fmt.Printf("Finished in %.2f seconds\n", time.Since(startTime).Seconds())
}
