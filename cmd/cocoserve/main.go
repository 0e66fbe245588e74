// Command cocoserve loads a COCO dataset once and serves its annotations and
// rendered images over HTTP.
//
// Routes:
//
//	GET /healthz
//	GET /stats
//	GET /annotations?image_id=N
//	GET /render?image_id=N[&boxes=bool&masks=bool&labels=bool&max_side=N]
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"

	http "github.com/valyala/fasthttp"

	"github.com/nvr-ai/go-coco/blob"
	"github.com/nvr-ai/go-coco/coco"
	"github.com/nvr-ai/go-coco/config"
	"github.com/nvr-ai/go-coco/render"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to a YAML configuration file")
		root        = flag.String("root", "", "Local dataset root (overrides storage.root)")
		annotations = flag.String("annotations", "", "Annotation file within the store")
		results     = flag.String("results", "", "Detection results file served instead of the ground truth")
		listen      = flag.String("listen", "", "Listen address (overrides listen)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *root != "" {
		cfg.Storage.Root = *root
	}
	if *annotations != "" {
		cfg.Annotations = *annotations
	}
	if *results != "" {
		cfg.Results = *results
	}
	if *listen != "" {
		cfg.Listen = *listen
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h, err := newHandler(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	srv := &http.Server{Handler: h.serve, Name: "cocoserve"}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Listen)
	if err := srv.ListenAndServe(cfg.Listen); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// newHandler opens the store and loads the dataset, and the results file
// when one is configured.
func newHandler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*handler, error) {
	store, err := blob.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}
	idx, err := coco.LoadFile(ctx, coco.FileArgs{Store: store, Name: cfg.Annotations, Logger: logger})
	if err != nil {
		return nil, err
	}
	if cfg.Results != "" {
		idx, err = coco.LoadResultsFile(ctx, idx, coco.FileArgs{Store: store, Name: cfg.Results, Logger: logger})
		if err != nil {
			return nil, err
		}
	}
	return &handler{
		idx:     idx,
		store:   store,
		prefix:  cfg.ImagePrefix,
		opts:    render.FromConfig(cfg.Render),
		maxSide: cfg.Render.MaxSide,
		logger:  logger,
	}, nil
}
