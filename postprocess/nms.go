// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"cmp"
	"runtime"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-coco/coco"
	"github.com/nvr-ai/go-coco/images"
	"github.com/nvr-ai/go-coco/mask"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float64 // Overlap above which the lower-scored detection is dropped.
	ClassAware   bool    // If true, suppress only within the same category.
	UseMasks     bool    // If true, compare segmentation masks instead of boxes.
	NumWorkers   int     // Goroutines used to rasterize masks; <= 0 means GOMAXPROCS.
}

// DefaultNMSConfig returns class-aware box suppression at IoU 0.5.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: 0.5, ClassAware: true}
}

// shape is what a detection is compared by: its pixel box, or its mask.
type shape struct {
	box images.Rect
	rle mask.RLE
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression over
// detection annotations.
//
// Detections are visited by descending score (missing scores sort last, ties
// keep input order). Each kept detection suppresses every later detection of
// the same image whose IoU with it exceeds the threshold.
//
// Arguments:
//   - idx: The index owning anns, normally the result of LoadResults.
//   - anns: The detections to filter.
//   - cfg: NMS configuration.
//
// Returns:
//   - []*coco.Annotation: The kept detections in visiting order.
//   - error: An error if a box or mask cannot be resolved.
func ApplyGreedyNMS(idx *coco.Index, anns []*coco.Annotation, cfg NMSConfig) ([]*coco.Annotation, error) {
	n := len(anns)
	if n == 0 {
		return []*coco.Annotation{}, nil
	}

	order := slices.Clone(anns)
	slices.SortStableFunc(order, func(a, b *coco.Annotation) int {
		return cmp.Compare(score(b), score(a))
	})

	shapes, err := resolveShapes(idx, order, cfg)
	if err != nil {
		return nil, err
	}

	filtered := make([]*coco.Annotation, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := order[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] || order[j].ImageID != anchor.ImageID {
				continue
			}
			if cfg.ClassAware && order[j].CategoryID != anchor.CategoryID {
				continue
			}

			// Suppress if IoU exceeds threshold
			iou, err := overlap(shapes[i], shapes[j], cfg.UseMasks)
			if err != nil {
				return nil, errors.WithMessagef(err, "annotations %d and %d", anchor.ID, order[j].ID)
			}
			if iou > cfg.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered, nil
}

func score(ann *coco.Annotation) float64 {
	if ann.Score == nil {
		return -1
	}
	return *ann.Score
}

// resolveShapes computes every comparison shape up front. Masks are
// rasterized on a bounded worker pool.
func resolveShapes(idx *coco.Index, anns []*coco.Annotation, cfg NMSConfig) ([]shape, error) {
	shapes := make([]shape, len(anns))
	if !cfg.UseMasks {
		for i, ann := range anns {
			b, err := idx.BBox(ann)
			if err != nil {
				return nil, errors.WithMessagef(err, "annotation %d", ann.ID)
			}
			shapes[i].box = images.RectFromBBox(b.X, b.Y, b.Width, b.Height)
		}
		return shapes, nil
	}

	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, ann := range anns {
		g.Go(func() error {
			rle, err := idx.Mask(ann)
			if err != nil {
				return errors.WithMessagef(err, "annotation %d", ann.ID)
			}
			shapes[i].rle = rle
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shapes, nil
}

func overlap(a, b shape, useMasks bool) (float64, error) {
	if useMasks {
		return mask.IoU(a.rle, b.rle)
	}
	return float64(images.CalculateIoU(a.box, b.box)), nil
}
