// Command cocoviz renders the annotations of a COCO dataset onto its images
// and writes one PNG per image.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to a YAML configuration file")
		root        = flag.String("root", "", "Local dataset root (overrides storage.root)")
		annotations = flag.String("annotations", "", "Annotation file within the store (.json, .json.gz, .json.zst, .json.lz4)")
		results     = flag.String("results", "", "Detection results file to render instead of the ground truth")
		imagePrefix = flag.String("image-prefix", "", "Prefix joined to each image file_name")
		outputDir   = flag.String("output", "", "Output directory for rendered PNGs")
		workers     = flag.Int("workers", 0, "Images rendered concurrently")
		imageIDs    = flag.String("image-ids", "", "Comma-separated image ids (default: all matching images)")
		categories  = flag.String("categories", "", "Comma-separated category names to draw")
		labels      = flag.Bool("labels", false, "Draw category labels")
		maxSide     = flag.Uint("max-side", 0, "Downscale outputs so the longer side fits")
		nms         = flag.Float64("nms", 0, "Suppress overlapping results above this IoU (0 disables)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags win over the configuration file.
	if *root != "" {
		cfg.Storage.Root = *root
	}
	if *annotations != "" {
		cfg.Annotations = *annotations
	}
	if *results != "" {
		cfg.Results = *results
	}
	if *imagePrefix != "" {
		cfg.ImagePrefix = *imagePrefix
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *labels {
		cfg.Render.Labels = true
	}
	if *maxSide > 0 {
		cfg.Render.MaxSide = *maxSide
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ids, err := parseIDs(*imageIDs)
	if err != nil {
		log.Fatalf("Invalid -image-ids: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := run(ctx, runArgs{
		Config:       cfg,
		ImageIDs:     ids,
		Categories:   splitList(*categories),
		NMSThreshold: *nms,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Render failed: %v", err)
	}
	logger.Info("done", "rendered", summary.Rendered, "output", cfg.OutputDir, "elapsed", summary.Elapsed)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	parts := splitList(s)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
