package main

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"log/slog"
	"path"
	"strconv"

	gojson "github.com/goccy/go-json"
	http "github.com/valyala/fasthttp"

	"github.com/nvr-ai/go-coco/blob"
	"github.com/nvr-ai/go-coco/coco"
	"github.com/nvr-ai/go-coco/images"
	"github.com/nvr-ai/go-coco/mask"
	"github.com/nvr-ai/go-coco/render"
)

// handler serves one loaded Index. It holds no mutable state, so a single
// value serves all connections.
type handler struct {
	idx     *coco.Index
	store   blob.Store
	prefix  string
	opts    render.Options
	maxSide uint
	logger  *slog.Logger
}

// annotationView is the JSON form of an annotation returned by /annotations.
type annotationView struct {
	ID           int64      `json:"id"`
	ImageID      int64      `json:"image_id"`
	CategoryID   int64      `json:"category_id"`
	BBox         [4]float64 `json:"bbox"`
	Area         float64    `json:"area"`
	IsCrowd      bool       `json:"iscrowd"`
	Score        *float64   `json:"score,omitempty"`
	Segmentation string     `json:"segmentation"`
	// Counts is the compressed RLE of the mask.
	Counts string `json:"counts"`
}

func (h *handler) serve(c *http.RequestCtx) {
	if !c.IsGet() {
		c.Error("method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch string(c.Path()) {
	case "/healthz":
		c.SetStatusCode(http.StatusOK)
		c.SetBodyString("ok")
	case "/stats":
		h.writeJSON(c, h.idx.Stats())
	case "/annotations":
		h.annotations(c)
	case "/render":
		h.render(c)
	default:
		c.Error("not found", http.StatusNotFound)
	}
}

func (h *handler) annotations(c *http.RequestCtx) {
	imageID, ok := h.imageID(c)
	if !ok {
		return
	}
	anns, err := h.idx.AnnotationsForImage(imageID)
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]annotationView, 0, len(anns))
	for _, ann := range anns {
		v, err := h.view(ann)
		if err != nil {
			h.fail(c, err)
			return
		}
		views = append(views, v)
	}
	h.writeJSON(c, views)
}

func (h *handler) view(ann *coco.Annotation) (annotationView, error) {
	box, err := h.idx.BBox(ann)
	if err != nil {
		return annotationView{}, err
	}
	area, err := h.idx.Area(ann)
	if err != nil {
		return annotationView{}, err
	}
	rle, err := h.idx.Mask(ann)
	if err != nil {
		return annotationView{}, err
	}
	return annotationView{
		ID:           ann.ID,
		ImageID:      ann.ImageID,
		CategoryID:   ann.CategoryID,
		BBox:         box.Array(),
		Area:         area,
		IsCrowd:      ann.IsCrowd,
		Score:        ann.Score,
		Segmentation: ann.Segmentation.Kind.String(),
		Counts:       mask.EncodeString(rle),
	}, nil
}

// render answers /render?image_id=N with a PNG. The boxes, masks and labels
// query flags override the configured options; max_side downsizes.
func (h *handler) render(c *http.RequestCtx) {
	imageID, ok := h.imageID(c)
	if !ok {
		return
	}
	img, err := h.idx.Image(imageID)
	if err != nil {
		h.fail(c, err)
		return
	}

	args := c.QueryArgs()
	opts := h.opts
	for key, dst := range map[string]*bool{
		"boxes":  &opts.DrawBoxes,
		"masks":  &opts.DrawMasks,
		"labels": &opts.DrawLabels,
	} {
		if !args.Has(key) {
			continue
		}
		v, err := strconv.ParseBool(string(args.Peek(key)))
		if err != nil {
			c.Error(key+" must be a boolean", http.StatusBadRequest)
			return
		}
		*dst = v
	}
	maxSide := h.maxSide
	if args.Has("max_side") {
		n, err := args.GetUint("max_side")
		if err != nil {
			c.Error("max_side must be a non-negative integer", http.StatusBadRequest)
			return
		}
		maxSide = uint(n)
	}

	pixels, _, err := images.Fetch(context.Background(), h.store, path.Join(h.prefix, img.FileName))
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := render.RenderImage(h.idx, imageID, pixels, opts)
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, render.Thumbnail(out, maxSide)); err != nil {
		h.fail(c, err)
		return
	}
	c.SetContentType("image/png")
	c.SetBody(buf.Bytes())
}

func (h *handler) imageID(c *http.RequestCtx) (int64, bool) {
	raw := c.QueryArgs().Peek("image_id")
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		c.Error("image_id must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *handler) writeJSON(c *http.RequestCtx, v any) {
	data, err := gojson.Marshal(v)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.SetContentType("application/json")
	c.SetBody(data)
}

// fail maps error kinds to status codes.
func (h *handler) fail(c *http.RequestCtx, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, coco.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, mask.ErrShapeMismatch), errors.Is(err, mask.ErrMalformedMask):
		code = http.StatusUnprocessableEntity
	}
	h.logger.Warn("request failed", "path", string(c.Path()), "status", code, "error", err)
	c.Error(err.Error(), code)
}
