package partscan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/detect"
	"github.com/cognicore/partscan/pkg/partscan/internalerr"
	"github.com/cognicore/partscan/pkg/partscan/match"
	"github.com/cognicore/partscan/pkg/partscan/store/memstore"
)

func testRecords() []catalog.Record {
	return []catalog.Record{
		{ID: "eg-440", Type: "panel", Brand: "EGing", Model: "EG-440NT54-HL/BF-DG", PowerW: 440},
		{ID: "jk-440", Type: "panel", Brand: "Jinko Solar", Model: "JKM440N-54HL4-V", PowerW: 440},
		{ID: "byd-hvm11", Type: "battery", Brand: "BYD", Model: "HVM 11.0", CapacityKWh: 11.04},
		{ID: "sg-5", Type: "inverter", Brand: "Sungrow", Model: "SG5.0RS", ACKW: 5},
		{ID: "broken-1", Type: "inverter", Brand: "Broken", Model: "BX-3000", ACKW: 3},
	}
}

// testIndex builds the test catalog with one product whose builder emits an
// invalid pattern, so it is resolved through aliases only.
func testIndex(t *testing.T) *catalog.Index {
	t.Helper()
	reg := catalog.DefaultRegistry()
	reg.Register("Broken", func(p catalog.Product) (string, error) { return "(unclosed", nil })
	idx, err := catalog.Build(testRecords(), catalog.BuildOptions{Registry: reg})
	require.NoError(t, err)
	require.Equal(t, []string{"broken-1"}, idx.Degraded())
	return idx
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Options{Index: testIndex(t), Params: DefaultParams()})
	require.NoError(t, err)
	return e
}

func TestResolveQuantityLineItem(t *testing.T) {
	e := newEngine(t)

	a, err := e.Analyze(context.Background(), "3 x EG-440NT54-HL/BF-DG panels installed")
	require.NoError(t, err)

	require.Len(t, a.Detections, 1)
	assert.Equal(t, catalog.Panel, a.Detections[0].Type)
	assert.Equal(t, 0.75, a.Detections[0].Score)

	require.Len(t, a.Results, 1)
	r := a.Results[0]
	assert.Equal(t, "eg-440", r.Product.ID)
	assert.Equal(t, match.Regex, r.MatchType)
	assert.GreaterOrEqual(t, r.Confidence, 0.70)
	assert.Equal(t, 4, r.Detection.Offset)
}

func TestResolveUnknownLabelledModel(t *testing.T) {
	e := newEngine(t)

	a, err := e.Analyze(context.Background(), "Inverter Model: XG-9999-ZZ")
	require.NoError(t, err)

	require.Len(t, a.Detections, 1)
	d := a.Detections[0]
	assert.Equal(t, detect.PassGeneric, d.Pass)
	assert.Equal(t, catalog.Inverter, d.Type)
	assert.Equal(t, "XG-9999-ZZ", d.Text)
	assert.Empty(t, a.Results)
}

func TestResolveIgnoresDatasheetAppendix(t *testing.T) {
	e := newEngine(t)

	// The appendix sits further from the quote than a context window reaches.
	text := "System Components\n10 x EGing EG-440NT54-HL/BF-DG 440W panels\n" +
		"Sungrow SG5.0RS inverter\n\n" +
		strings.Repeat("Installation includes mounting, cabling and commissioning. ", 5) + "\n\n" +
		"APPENDIX — DATASHEET\n" +
		"EGing EG-440NT54-HL/BF-DG 440W module\n" +
		"Temperature coefficient -0.30%"

	a, err := e.Analyze(context.Background(), text)
	require.NoError(t, err)

	appendix := strings.Index(a.Text, "APPENDIX")
	require.Positive(t, appendix)

	var demoted bool
	for _, c := range a.Candidates {
		if c.Offset > appendix && c.ProductID == "eg-440" {
			demoted = true
			assert.Less(t, c.Score, 0.65, "datasheet copy must not be accepted")
		}
	}
	assert.True(t, demoted, "expected the datasheet mention as a candidate")

	for _, d := range a.Detections {
		assert.Less(t, d.Offset, appendix, "detection %s inside the appendix", d.ID)
	}
	require.Len(t, a.Results, 2)
	ids := []string{a.Results[0].Product.ID, a.Results[1].Product.ID}
	assert.ElementsMatch(t, []string{"eg-440", "sg-5"}, ids)
}

func TestResolveIgnoresDatasheetDimensions(t *testing.T) {
	e := newEngine(t)

	text := "APPENDIX — DATASHEET\n" +
		"EGing EG-440NT54-HL/BF-DG 440W N-type module\n" +
		"Cell size: 182 x 182 mm\n" +
		"Temperature coefficient -0.30%/C"

	a, err := e.Analyze(context.Background(), text)
	require.NoError(t, err)

	require.NotEmpty(t, a.Candidates)
	for _, c := range a.Candidates {
		assert.Less(t, c.Score, 0.65, "candidate %s", c.Text)
	}
	assert.Empty(t, a.Detections)
	assert.Empty(t, a.Results)
}

func TestExactMentionResolvesEveryProduct(t *testing.T) {
	e := newEngine(t)
	idx := e.Holder().Load()

	for _, p := range idx.Products() {
		t.Run(p.ID, func(t *testing.T) {
			results, err := e.Resolve(context.Background(), p.Brand+" "+p.Model)
			require.NoError(t, err)
			require.NotEmpty(t, results)
			assert.Equal(t, p.ID, results[0].Product.ID)
			assert.GreaterOrEqual(t, results[0].Confidence, 0.70)
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	e := newEngine(t)
	text := "Proposed system: 12 x Jinko Solar JKM440N-54HL4-V, BYD HVM 11.0 battery, Sungrow SG5.0RS inverter"

	first, err := e.Resolve(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	for i := 0; i < 3; i++ {
		again, err := e.Resolve(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResultProperties(t *testing.T) {
	e := newEngine(t)
	texts := []string{
		"3 x EG-440NT54-HL/BF-DG panels installed",
		"Battery: BYD HVM 11.0 (11.04 kWh)\nInverter Model: SG5.0RS 5kW",
		"EC-440NT54-HL/BF-DG 440W panel",
		"quote only, no equipment here",
		"",
	}
	p := DefaultParams()

	for _, text := range texts {
		a, err := e.Analyze(context.Background(), text)
		require.NoError(t, err)

		perDetection := make(map[string]int)
		for _, d := range a.Detections {
			assert.GreaterOrEqual(t, d.Score, p.AcceptThreshold)
		}
		for _, r := range a.Results {
			assert.GreaterOrEqual(t, r.Confidence, p.MatchThreshold)
			assert.LessOrEqual(t, r.Confidence, 1.0)
			assert.Equal(t, r.Detection.Type, r.Product.Type)
			perDetection[r.Detection.ID]++
		}
		for id, n := range perDetection {
			assert.Equal(t, 1, n, "detection %s matched more than once", id)
		}
		for i := 1; i < len(a.Results); i++ {
			assert.GreaterOrEqual(t, a.Results[i-1].Confidence, a.Results[i].Confidence)
		}
	}
}

func TestQuantityPrefixNeverLowersConfidence(t *testing.T) {
	e := newEngine(t)
	compare := func(label, mention string) {
		t.Helper()
		plain, err := e.Analyze(context.Background(), label+mention)
		require.NoError(t, err)
		prefixed, err := e.Analyze(context.Background(), label+"3 x "+mention)
		require.NoError(t, err)

		require.NotEmpty(t, plain.Detections, label+mention)
		require.NotEmpty(t, prefixed.Detections, label+mention)
		assert.GreaterOrEqual(t, prefixed.Detections[0].Score, plain.Detections[0].Score, label+mention)
	}

	for _, p := range e.Holder().Load().Products() {
		compare("", p.Brand+" "+p.Model)
	}

	compare("Inverter Model: ", "XG-9999-ZZ")
	compare("Panel Model: ", "EG-440NT54-HL/BF-DG")
	compare("Battery part no: ", "BYD HVM 11.0")
}

func TestResolveConcurrentWithRefresh(t *testing.T) {
	e := newEngine(t)
	src := memstore.New(testRecords()[:4]...)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				results, err := e.Resolve(context.Background(), "3 x EG-440NT54-HL/BF-DG panels installed")
				if !assert.NoError(t, err) || !assert.Len(t, results, 1) {
					return
				}
				assert.Equal(t, "eg-440", results[0].Product.ID)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Refresh(context.Background(), src, catalog.BuildOptions{}))
	}
	wg.Wait()

	assert.Equal(t, 4, e.Holder().Load().Len())
}

func TestRefreshKeepsSnapshotOnFailure(t *testing.T) {
	e := newEngine(t)
	before := e.Holder().Load()

	err := e.Refresh(context.Background(), memstore.New(), catalog.BuildOptions{})
	var cle *internalerr.CatalogLoadError
	require.True(t, errors.As(err, &cle), "got %v", err)
	assert.Equal(t, "memstore", cle.Source)
	assert.ErrorIs(t, err, internalerr.ErrCatalogEmpty)
	assert.Same(t, before, e.Holder().Load())
}

type failingSource struct{}

func (failingSource) Products(context.Context) ([]catalog.Record, error) {
	return nil, internalerr.ErrStoreUnavailable
}

func TestLoadIndexErrors(t *testing.T) {
	_, err := LoadIndex(context.Background(), failingSource{}, catalog.BuildOptions{})
	var cle *internalerr.CatalogLoadError
	require.True(t, errors.As(err, &cle))
	assert.Equal(t, "partscan.failingSource", cle.Source)
	assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)

	idx, err := LoadIndex(context.Background(), memstore.New(testRecords()...), catalog.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(testRecords()), idx.Len())
}

func TestEngineWithoutCatalog(t *testing.T) {
	e, err := New(Options{Holder: catalog.NewHolder(nil), Params: DefaultParams()})
	require.NoError(t, err)

	_, err = e.Resolve(context.Background(), "3 x EG-440NT54-HL/BF-DG panels")
	var cle *internalerr.CatalogLoadError
	require.True(t, errors.As(err, &cle))
	assert.ErrorIs(t, err, internalerr.ErrCatalogEmpty)

	_, err = Resolve(context.Background(), "anything", nil, DefaultParams())
	assert.ErrorIs(t, err, internalerr.ErrCatalogEmpty)
}

func TestResolveFunction(t *testing.T) {
	results, err := Resolve(context.Background(), "3 x EG-440NT54-HL/BF-DG panels installed", testIndex(t), DefaultParams())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "eg-440", results[0].Product.ID)
}

func TestResolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine(t).Resolve(ctx, "3 x EG-440NT54-HL/BF-DG panels installed")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"accept threshold above one", func(p *Params) { p.AcceptThreshold = 1.2 }},
		{"negative match threshold", func(p *Params) { p.MatchThreshold = -0.1 }},
		{"zero window", func(p *Params) { p.Window = 0 }},
		{"zero anchor distance", func(p *Params) { p.AnchorDistance = 0 }},
		{"negative tolerance", func(p *Params) { p.Tolerances.PanelW = -1 }},
		{"unknown keyword type", func(p *Params) { p.TypeKeywords["wind"] = []string{"TURBINE"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), internalerr.ErrInvalidConfig)

			_, err := New(Options{Params: p})
			assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
		})
	}

	_, err := New(Options{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig, "zero Params must be rejected")
}

func TestThresholdsAreConfigurable(t *testing.T) {
	p := DefaultParams()
	p.AcceptThreshold = 0.80
	e, err := New(Options{Index: testIndex(t), Params: p})
	require.NoError(t, err)

	results, err := e.Resolve(context.Background(), "3 x EG-440NT54-HL/BF-DG panels installed")
	require.NoError(t, err)
	assert.Empty(t, results, "0.75 detection must fall under a 0.80 threshold")
}
