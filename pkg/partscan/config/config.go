package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/partscan/pkg/partscan"
	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/internalerr"
)

// LoadParams reads pipeline parameters from a YAML file. Keys missing from
// the file keep their defaults; unknown keys are rejected.
func LoadParams(path string) (partscan.Params, error) {
	p := partscan.DefaultParams()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Catalog is the YAML catalog file
type Catalog struct {
	Products []Product `yaml:"products"`
}

// Product is one catalog entry as written in YAML
type Product struct {
	ID          string   `yaml:"id"`
	Type        string   `yaml:"type"`
	Brand       string   `yaml:"brand"`
	Model       string   `yaml:"model"`
	PowerW      float64  `yaml:"power_w,omitempty"`
	CapacityKWh float64  `yaml:"capacity_kwh,omitempty"`
	ACKW        float64  `yaml:"ac_kw,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty"`
}

// Record converts the entry into a catalog record.
func (p Product) Record() catalog.Record {
	return catalog.Record{
		ID:          p.ID,
		Type:        p.Type,
		Brand:       p.Brand,
		Model:       p.Model,
		PowerW:      p.PowerW,
		CapacityKWh: p.CapacityKWh,
		ACKW:        p.ACKW,
		Aliases:     p.Aliases,
	}
}

// LoadCatalog loads catalog records from a YAML file. Records are returned
// as written; validation happens when the index is built.
func LoadCatalog(path string) ([]catalog.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}

	recs := make([]catalog.Record, len(c.Products))
	for i, p := range c.Products {
		recs[i] = p.Record()
	}
	return recs, nil
}

// FileSource serves a YAML catalog file as a catalog source. The file is
// re-read on every call so a refresh picks up edits.
type FileSource struct {
	Path string
}

// Products implements store.CatalogSource.
func (f FileSource) Products(ctx context.Context) ([]catalog.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadCatalog(f.Path)
}

func (f FileSource) String() string { return "file:" + f.Path }
