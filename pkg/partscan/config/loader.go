package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/partscan/pkg/partscan"
	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/internalerr"
	"github.com/cognicore/partscan/pkg/partscan/store"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	ParamsPath  string
	CatalogPath string

	// Source overrides CatalogPath, e.g. with a SQLite catalog store.
	Source store.CatalogSource
	Logger *zap.Logger
}

// Components holds all loaded configuration components
type Components struct {
	Params partscan.Params
	Source store.CatalogSource
	Index  *catalog.Index
}

// Load reads all configuration and builds the catalog index
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	comp := &Components{Params: partscan.DefaultParams()}

	// Load parameters
	if l.ParamsPath != "" {
		p, err := LoadParams(l.ParamsPath)
		if err != nil {
			return nil, fmt.Errorf("load params: %w", err)
		}
		comp.Params = p
	}

	// Pick the catalog source
	switch {
	case l.Source != nil:
		comp.Source = l.Source
	case l.CatalogPath != "":
		comp.Source = FileSource{Path: l.CatalogPath}
	default:
		return nil, fmt.Errorf("load catalog: %w: no catalog file or store configured", internalerr.ErrInvalidConfig)
	}

	idx, err := partscan.LoadIndex(ctx, comp.Source, catalog.BuildOptions{Logger: l.Logger})
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	comp.Index = idx

	return comp, nil
}

// Engine builds a resolution engine from the loaded components.
func (c *Components) Engine(logger *zap.Logger) (*partscan.Engine, error) {
	return partscan.New(partscan.Options{
		Index:  c.Index,
		Params: c.Params,
		Logger: logger,
	})
}
