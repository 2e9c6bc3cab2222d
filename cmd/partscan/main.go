package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cognicore/partscan/pkg/partscan"
	"github.com/cognicore/partscan/pkg/partscan/config"
	"github.com/cognicore/partscan/pkg/partscan/report"
	"github.com/cognicore/partscan/pkg/partscan/store/sqlite"
)

func main() {
	var (
		inputPath   = flag.String("input", "", "Proposal text or HTML file (required)")
		catalogPath = flag.String("catalog", "", "Catalog YAML file")
		dbPath      = flag.String("db", "", "SQLite catalog database (overrides --catalog)")
		paramsPath  = flag.String("params", "", "Parameters YAML file (optional)")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		pretty      = flag.Bool("pretty", false, "Human-readable logs")
		timeout     = flag.Duration("timeout", 30*time.Second, "Resolution timeout")
	)
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("--input required")
	}
	if *catalogPath == "" && *dbPath == "" {
		log.Fatal("--catalog or --db required")
	}

	logger, err := newLogger(*logLevel, *pretty)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine, cleanup, err := buildEngine(ctx, *catalogPath, *dbPath, *paramsPath, logger)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}
	defer cleanup()

	text, err := readInput(*inputPath)
	if err != nil {
		logger.Fatal("failed to read input", zap.String("path", *inputPath), zap.Error(err))
	}

	analysis, err := engine.Analyze(ctx, text)
	if err != nil {
		logger.Fatal("resolution failed", zap.Error(err))
	}

	rep := report.New().Build(analysis)
	logger.Info("resolved proposal",
		zap.String("report_id", rep.ID),
		zap.Int("matches", len(rep.Matches)),
		zap.Int("unmatched", len(rep.Unmatched)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		logger.Fatal("failed to write report", zap.Error(err))
	}
}

// newLogger builds a production logger, or a development one when pretty
// output is requested.
func newLogger(level string, pretty bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// buildEngine loads parameters and the catalog, from SQLite when dbPath is
// set and from YAML otherwise.
func buildEngine(ctx context.Context, catalogPath, dbPath, paramsPath string, logger *zap.Logger) (*partscan.Engine, func(), error) {
	loader := config.Loader{
		ParamsPath:  paramsPath,
		CatalogPath: catalogPath,
		Logger:      logger,
	}

	cleanup := func() {}
	if dbPath != "" {
		st, err := sqlite.OpenSQLite(ctx, dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open catalog database: %w", err)
		}
		loader.Source = st
		cleanup = func() { st.Close() }
	}

	comp, err := loader.Load(ctx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	engine, err := comp.Engine(logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}

func readInput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return flattenHTML(string(data)), nil
	}
	return string(data), nil
}

// flattenHTML extracts the text of an HTML proposal. Block elements end a
// line so headings stay on their own line.
func flattenHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// Fallback to string if parsing fails
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				buf.WriteByte('\n')
			case atom.Td, atom.Th:
				if n.PrevSibling != nil {
					buf.WriteByte('\t')
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			buf.WriteByte('\n')
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Section: true,
}
