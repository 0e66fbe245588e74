package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-coco/blob"
	"github.com/nvr-ai/go-coco/coco"
	"github.com/nvr-ai/go-coco/config"
	"github.com/nvr-ai/go-coco/images"
	"github.com/nvr-ai/go-coco/postprocess"
	"github.com/nvr-ai/go-coco/render"
)

type runArgs struct {
	Config *config.Config
	// ImageIDs limits rendering to these images; empty means every image.
	ImageIDs []int64
	// Categories limits drawing to these category names. Images without a
	// matching annotation are skipped.
	Categories []string
	// NMSThreshold enables class-aware suppression of overlapping annotations.
	NMSThreshold float64
	Logger       *slog.Logger
}

type summary struct {
	Rendered int
	Skipped  int
	Elapsed  time.Duration
}

func loadConfig(file string) (*config.Config, error) {
	if file == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(file)
}

func run(ctx context.Context, args runArgs) (summary, error) {
	start := time.Now()
	cfg := args.Config
	logger := args.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := blob.Open(cfg.Storage)
	if err != nil {
		return summary{}, err
	}

	target, err := coco.LoadFile(ctx, coco.FileArgs{Store: store, Name: cfg.Annotations, Logger: logger})
	if err != nil {
		return summary{}, err
	}
	var catIDs []int64
	if len(args.Categories) > 0 {
		catIDs = target.CategoryIDs(args.Categories, nil)
		if len(catIDs) == 0 {
			return summary{}, errors.Errorf("no category named %s", strings.Join(args.Categories, ", "))
		}
	}
	if cfg.Results != "" {
		target, err = coco.LoadResultsFile(ctx, target, coco.FileArgs{Store: store, Name: cfg.Results, Logger: logger})
		if err != nil {
			return summary{}, err
		}
	}

	ids := args.ImageIDs
	if len(ids) == 0 {
		ids = target.ImageIDs(nil)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return summary{}, errors.Wrap(err, "create output directory")
	}

	job := renderJob{
		store:   store,
		idx:     target,
		catIDs:  catIDs,
		prefix:  cfg.ImagePrefix,
		outDir:  cfg.OutputDir,
		maxSide: cfg.Render.MaxSide,
		opts:    render.FromConfig(cfg.Render),
		nms:     args.NMSThreshold,
		logger:  logger,
	}

	var rendered, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, id := range ids {
		g.Go(func() error {
			ok, err := job.do(gctx, id)
			if err != nil {
				return errors.WithMessagef(err, "image %d", id)
			}
			if ok {
				rendered.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	return summary{Rendered: int(rendered.Load()), Skipped: int(skipped.Load()), Elapsed: time.Since(start)}, err
}

type renderJob struct {
	store   blob.Store
	idx     *coco.Index
	catIDs  []int64
	prefix  string
	outDir  string
	maxSide uint
	opts    render.Options
	nms     float64
	logger  *slog.Logger
}

// do renders one image. It reports false when the image was skipped because
// no annotation matched the category filter.
func (j renderJob) do(ctx context.Context, imageID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	img, err := j.idx.Image(imageID)
	if err != nil {
		return false, err
	}

	anns := j.idx.FindAnnotations(coco.Filter{ImageIDs: []int64{imageID}, CategoryIDs: j.catIDs})
	if len(j.catIDs) > 0 && len(anns) == 0 {
		return false, nil
	}
	if j.nms > 0 {
		anns, err = postprocess.ApplyGreedyNMS(j.idx, anns, postprocess.NMSConfig{IoUThreshold: j.nms, ClassAware: true})
		if err != nil {
			return false, err
		}
	}

	pixels, _, err := images.Fetch(ctx, j.store, path.Join(j.prefix, img.FileName))
	if err != nil {
		return false, err
	}
	if err := images.CheckDimensions(pixels, img.Width, img.Height); err != nil {
		return false, err
	}
	out, err := render.Render(pixels, anns, j.idx, j.opts)
	if err != nil {
		return false, err
	}

	name := filepath.Join(j.outDir, outputName(img))
	if err := writePNG(name, render.Thumbnail(out, j.maxSide)); err != nil {
		return false, err
	}
	j.logger.Debug("rendered", "image_id", imageID, "annotations", len(anns), "file", name)
	return true, nil
}

// outputName is the image's base name with a .png extension, prefixed with
// its id so images sharing a base name do not collide.
func outputName(img *coco.Image) string {
	base := path.Base(img.FileName)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return fmt.Sprintf("%d_%s.png", img.ID, base)
}

func writePNG(name string, img image.Image) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return errors.Wrapf(png.Encode(f, img), "encode %s", name)
}
