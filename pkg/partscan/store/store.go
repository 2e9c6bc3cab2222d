package store

import (
	"context"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
)

// CatalogSource supplies the raw catalog records an index is built from.
type CatalogSource interface {
	Products(ctx context.Context) ([]catalog.Record, error)
}

// CatalogStore is a writable catalog.
type CatalogStore interface {
	CatalogSource
	Close() error

	// Product returns one record by ID; found is false when it is absent.
	Product(ctx context.Context, id string) (rec catalog.Record, found bool, err error)
	UpsertProduct(ctx context.Context, rec catalog.Record) error
	DeleteProduct(ctx context.Context, id string) error
}
