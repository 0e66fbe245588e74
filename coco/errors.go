package coco

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrParse is returned for documents that are not valid COCO annotation JSON.
	ErrParse = errors.New("parse error")
	// ErrDanglingReference is returned when an annotation points at an unknown image or category.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrNotFound is returned by id lookups that miss.
	ErrNotFound = errors.New("not found")
)

// ParseError locates a structural problem in the document. It matches
// ErrParse with errors.Is and unwraps to the underlying cause, which may be
// one of the mask errors (for example mask.ErrInvalidPolygon).
type ParseError struct {
	// Path is a JSON-path-like location, e.g. "annotations[3].segmentation".
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse error: %v", e.Err)
	}
	return fmt.Sprintf("parse error at %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func parseErrorf(path, format string, args ...any) error {
	return &ParseError{Path: path, Err: errors.Errorf(format, args...)}
}

// NotFoundError carries the entity kind and id of a failed lookup.
type NotFoundError struct {
	// Kind is "image", "category" or "annotation".
	Kind string
	// ID is the id that was looked up.
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
