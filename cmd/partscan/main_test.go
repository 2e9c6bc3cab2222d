package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/cognicore/partscan/pkg/partscan/config"
	"github.com/cognicore/partscan/pkg/partscan/store/sqlite"
)

const (
	catalogPath = "../../pkg/partscan/config/testdata/catalog.yaml"
	paramsPath  = "../../pkg/partscan/config/testdata/params.yaml"
)

func TestFlattenHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "heading and paragraph",
			input: "<h2>System Components</h2><p>10 x EGing EG-440NT54-HL/BF-DG</p>",
			want:  "System Components\n10 x EGing EG-440NT54-HL/BF-DG",
		},
		{
			name:  "inline tags stay on one line",
			input: "<p><strong>Sungrow</strong> SG5.0RS inverter</p>",
			want:  "Sungrow SG5.0RS inverter",
		},
		{
			name:  "table rows",
			input: "<table><tr><td>Panels</td><td>JKM440N-54HL4-V</td></tr><tr><td>Battery</td><td>HVM 11.0</td></tr></table>",
			want:  "Panels\tJKM440N-54HL4-V\nBattery\tHVM 11.0",
		},
		{
			name:  "line breaks",
			input: "Line 1<br>Line 2",
			want:  "Line 1\nLine 2",
		},
		{
			name:  "script and style dropped",
			input: "<html><head><title>Quote</title><style>p{}</style></head><body><script>x()</script><p>Text</p></body></html>",
			want:  "Text",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flattenHTML(tt.input); got != tt.want {
				t.Errorf("flattenHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "quote.HTML")
	txtPath := filepath.Join(dir, "quote.txt")
	if err := os.WriteFile(htmlPath, []byte("<p>3 x EG-440NT54-HL/BF-DG</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(txtPath, []byte("<p>kept</p>"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := readInput(htmlPath)
	if err != nil || got != "3 x EG-440NT54-HL/BF-DG" {
		t.Errorf("html input = %q, %v", got, err)
	}
	got, err = readInput(txtPath)
	if err != nil || got != "<p>kept</p>" {
		t.Errorf("text input = %q, %v", got, err)
	}
	if _, err := readInput(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewLogger(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		logger, err := newLogger("debug", pretty)
		if err != nil {
			t.Fatalf("newLogger(pretty=%v): %v", pretty, err)
		}
		if !logger.Core().Enabled(zap.DebugLevel) {
			t.Error("debug level not enabled")
		}
	}
	if _, err := newLogger("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestBuildEngineFromYAML(t *testing.T) {
	engine, cleanup, err := buildEngine(context.Background(), catalogPath, "", paramsPath, zap.NewNop())
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	results, err := engine.Resolve(context.Background(), "Inverter: 1 x Sungrow SG5.0RS 5kW")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(results) != 1 || results[0].Product.ID != "sg-5" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestBuildEngineFromSQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := config.LoadCatalog(catalogPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range recs {
		if err := st.UpsertProduct(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	engine, cleanup, err := buildEngine(ctx, "", dbPath, "", zap.NewNop())
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	if n := engine.Holder().Load().Len(); n != len(recs) {
		t.Errorf("index has %d products, want %d", n, len(recs))
	}
}

func TestBuildEngineNonExistentCatalog(t *testing.T) {
	_, _, err := buildEngine(context.Background(), filepath.Join(t.TempDir(), "nonexistent.yaml"), "", "", zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing catalog")
	}
}
