package coco

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-coco/blob"
)

// Codec names the compression applied to an annotation file.
type Codec string

const (
	// CodecNone is plain JSON.
	CodecNone Codec = ""
	// CodecGzip is gzip (.gz).
	CodecGzip Codec = "gzip"
	// CodecZstd is zstandard (.zst, .zstd).
	CodecZstd Codec = "zstd"
	// CodecLZ4 is the LZ4 frame format (.lz4).
	CodecLZ4 Codec = "lz4"
)

// CodecFor picks the codec from a file name's extension.
func CodecFor(name string) Codec {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz":
		return CodecGzip
	case ".zst", ".zstd":
		return CodecZstd
	case ".lz4":
		return CodecLZ4
	default:
		return CodecNone
	}
}

// Decompress undoes codec. CodecNone returns data unchanged.
func Decompress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "gzip header")
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		return out, errors.Wrap(err, "gzip")
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "zstd decoder")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		return out, errors.Wrap(err, "zstd")
	case CodecLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		return out, errors.Wrap(err, "lz4")
	default:
		return nil, errors.Errorf("unknown codec %q", codec)
	}
}

// FileArgs are the arguments for LoadFile and LoadResultsFile.
type FileArgs struct {
	// Store is where the file is read from.
	Store blob.Store
	// Name is the file name within Store; its extension selects decompression.
	Name string
	// Logger receives a summary line once the file is loaded. Nil disables logging.
	Logger *slog.Logger
}

// LoadFile reads an annotation document from a store, decompressing it by
// extension, and builds the Index.
//
// Arguments:
//   - ctx: Cancels the read.
//   - args: Store, file name and logger.
//
// Returns:
//   - *Index: The ready index.
//   - error: A store or decompression error, or any error from Load.
//
// Example:
//
// ```go
//
//	idx, err := coco.LoadFile(ctx, coco.FileArgs{
//	    Store:  blob.NewLocal("/data/coco"),
//	    Name:   "annotations/instances_val2017.json.zst",
//	    Logger: slog.Default(),
//	})
//
// ```
func LoadFile(ctx context.Context, args FileArgs) (*Index, error) {
	start := time.Now()
	data, err := readFile(ctx, args)
	if err != nil {
		return nil, err
	}
	idx, err := Load(data)
	if err != nil {
		return nil, errors.WithMessage(err, args.Name)
	}
	if args.Logger != nil {
		s := idx.Stats()
		args.Logger.Info("annotations loaded",
			"file", args.Name,
			"bytes", len(data),
			"images", s.Images,
			"categories", s.Categories,
			"annotations", s.Annotations,
			"crowd", s.Crowd,
			"elapsed", time.Since(start))
	}
	return idx, nil
}

// LoadResultsFile reads a detection-results file from a store and loads it
// against idx with LoadResults.
func LoadResultsFile(ctx context.Context, idx *Index, args FileArgs) (*Index, error) {
	data, err := readFile(ctx, args)
	if err != nil {
		return nil, err
	}
	res, err := idx.LoadResults(data)
	if err != nil {
		return nil, errors.WithMessage(err, args.Name)
	}
	if args.Logger != nil {
		args.Logger.Info("results loaded", "file", args.Name, "results", len(res.annotations))
	}
	return res, nil
}

func readFile(ctx context.Context, args FileArgs) ([]byte, error) {
	if args.Store == nil {
		return nil, errors.New("no store configured")
	}
	raw, err := args.Store.Get(ctx, args.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", args.Name)
	}
	data, err := Decompress(CodecFor(args.Name), raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", args.Name)
	}
	if args.Logger != nil {
		args.Logger.Debug("file read", "file", args.Name, "stored", len(raw), "bytes", len(data))
	}
	return data, nil
}
