// Package config - configuration for the go-coco command-line tools.
package config

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration shared by cocoviz and cocoserve.
type Config struct {
	// Storage locates annotation and image files.
	Storage Storage `json:"storage" yaml:"storage"`
	// Annotations is the annotation file name within Storage (.json, .json.gz, .json.zst, .json.lz4).
	Annotations string `json:"annotations" yaml:"annotations"`
	// Results is an optional detection-results file rendered instead of the ground truth.
	Results string `json:"results" yaml:"results"`
	// ImagePrefix is prepended to each image's file_name when fetching pixels.
	ImagePrefix string `json:"image_prefix" yaml:"image_prefix"`
	// Render controls what is drawn.
	Render Render `json:"render" yaml:"render"`
	// OutputDir is where cocoviz writes rendered PNGs.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	// Workers is the number of images rendered concurrently by cocoviz.
	Workers int `json:"workers" yaml:"workers"`
	// Listen is the cocoserve listen address.
	Listen string `json:"listen" yaml:"listen"`
	// Logging configures the slog handler.
	Logging Logging `json:"logging" yaml:"logging"`
}

// StorageKind selects the blob backend.
type StorageKind string

const (
	// StorageLocal reads files below a local directory.
	StorageLocal StorageKind = "local"
	// StorageMinio reads objects from a MinIO or other S3-compatible bucket.
	StorageMinio StorageKind = "minio"
)

// Storage configures where files are read from.
type Storage struct {
	Kind StorageKind `json:"kind" yaml:"kind"`
	// Root is the local directory for StorageLocal.
	Root string `json:"root" yaml:"root"`
	// Endpoint is host:port of the object store for StorageMinio.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// Bucket is the bucket name for StorageMinio.
	Bucket string `json:"bucket" yaml:"bucket"`
	// Prefix is prepended to every object key.
	Prefix string `json:"prefix" yaml:"prefix"`
	// AccessKey and SecretKey are static credentials; empty values fall back
	// to the MINIO_ACCESS_KEY / MINIO_SECRET_KEY environment variables.
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	// Secure enables TLS.
	Secure bool `json:"secure" yaml:"secure"`
	// Region is optional.
	Region string `json:"region" yaml:"region"`
}

// Render mirrors render.Options in configuration form.
type Render struct {
	Boxes     bool    `json:"boxes" yaml:"boxes"`
	Masks     bool    `json:"masks" yaml:"masks"`
	Labels    bool    `json:"labels" yaml:"labels"`
	Thickness int     `json:"thickness" yaml:"thickness"`
	Alpha     float64 `json:"alpha" yaml:"alpha"`
	// MaxSide downscales the rendered image so its longer side fits; 0 keeps the size.
	MaxSide uint `json:"max_side" yaml:"max_side"`
}

// Logging configures the process logger.
type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`
	// Format is text or json.
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns a configuration reading from the current directory.
//
// Returns:
//   - *Config: Defaults suitable for a local COCO checkout.
//
// @example
// cfg := config.DefaultConfig()
// cfg.Annotations = "annotations/instances_val2017.json"
func DefaultConfig() *Config {
	return &Config{
		Storage:     Storage{Kind: StorageLocal, Root: "."},
		Annotations: "annotations.json",
		Render: Render{
			Boxes:     true,
			Masks:     true,
			Thickness: 2,
			Alpha:     0.4,
		},
		OutputDir: "rendered",
		Workers:   runtime.NumCPU(),
		Listen:    "127.0.0.1:8093",
		Logging:   Logging{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - *Config: Defaults overridden by the file's values.
//   - error: An error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the tools cannot work with.
func (c *Config) Validate() error {
	switch c.Storage.Kind {
	case StorageLocal:
	case StorageMinio:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return errors.New("minio storage needs endpoint and bucket")
		}
	default:
		return errors.Errorf("unknown storage kind %q", c.Storage.Kind)
	}
	if c.Annotations == "" {
		return errors.New("annotations file is required")
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Render.Alpha < 0 || c.Render.Alpha > 1 {
		return errors.Errorf("render alpha must be in [0, 1], got %v", c.Render.Alpha)
	}
	if c.Render.Thickness < 0 {
		return errors.Errorf("render thickness must not be negative, got %d", c.Render.Thickness)
	}
	if _, err := c.Logging.level(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.Errorf("logging format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func (l Logging) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, errors.Errorf("unknown logging level %q", l.Level)
	}
	return lvl, nil
}

// NewLogger builds a slog logger writing to w in the configured format.
//
// Arguments:
//   - w: The destination, normally os.Stderr.
//
// Returns:
//   - *slog.Logger: A text or JSON logger at the configured level.
//   - error: An error for an unknown level.
//
// @example
// logger, err := cfg.Logging.NewLogger(os.Stderr)
func (l Logging) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
