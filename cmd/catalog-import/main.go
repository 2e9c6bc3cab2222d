package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/cognicore/partscan/pkg/partscan"
	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/config"
	"github.com/cognicore/partscan/pkg/partscan/store/sqlite"
)

func main() {
	var (
		catalogPath = flag.String("catalog", "", "Catalog YAML file (required)")
		dbPath      = flag.String("db", "", "SQLite catalog database (required)")
		prune       = flag.Bool("prune", false, "Delete products missing from the YAML file")
	)
	flag.Parse()

	if *catalogPath == "" {
		log.Fatal("--catalog required")
	}
	if *dbPath == "" {
		log.Fatal("--db required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	n, err := importCatalog(context.Background(), *catalogPath, *dbPath, *prune, logger)
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}
	logger.Info("catalog imported", zap.String("db", *dbPath), zap.Int("products", n))
}

// importCatalog upserts every YAML record into the database and returns
// the number of products the stored catalog compiles to. The stored catalog
// is built once so records the index would skip are reported here.
func importCatalog(ctx context.Context, catalogPath, dbPath string, prune bool, logger *zap.Logger) (int, error) {
	recs, err := config.LoadCatalog(catalogPath)
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}

	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	keep := make(map[string]bool, len(recs))
	for _, r := range recs {
		if err := st.UpsertProduct(ctx, r); err != nil {
			logger.Warn("skipping record", zap.String("product_id", r.ID), zap.Error(err))
			continue
		}
		keep[r.ID] = true
	}

	if prune {
		stored, err := st.Products(ctx)
		if err != nil {
			return 0, err
		}
		for _, r := range stored {
			if keep[r.ID] {
				continue
			}
			if err := st.DeleteProduct(ctx, r.ID); err != nil {
				return 0, err
			}
			logger.Info("pruned product", zap.String("product_id", r.ID))
		}
	}

	idx, err := partscan.LoadIndex(ctx, st, catalog.BuildOptions{Logger: logger})
	if err != nil {
		return 0, err
	}
	return idx.Len(), nil
}
