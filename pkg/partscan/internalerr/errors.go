package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicate          = errors.New("duplicate entry")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrCatalogEmpty       = errors.New("catalog is empty")
	ErrUnknownProductType = errors.New("unknown product type")
	ErrConventionMismatch = errors.New("model does not follow brand convention")
)

// CatalogLoadError reports that the catalog could not be obtained or compiled.
// It is fatal for a resolution run.
type CatalogLoadError struct {
	Source string
	Err    error
}

func (e *CatalogLoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("catalog load: %v", e.Err)
	}
	return fmt.Sprintf("catalog load (%s): %v", e.Source, e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// PatternCompileError reports a product whose matcher could not be built.
// The product stays in the index with alias-only matching.
type PatternCompileError struct {
	ProductID string
	Pattern   string
	Err       error
}

func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("compile pattern for product %s (%q): %v", e.ProductID, e.Pattern, e.Err)
}

func (e *PatternCompileError) Unwrap() error { return e.Err }
