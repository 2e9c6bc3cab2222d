package evidence

import (
	"strings"
	"testing"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
)

func testIndex(t *testing.T) *catalog.Index {
	t.Helper()
	idx, err := catalog.Build([]catalog.Record{
		{ID: "eg-440", Type: "panel", Brand: "EGing", Model: "EG-440NT54-HL/BF-DG", PowerW: 440},
	}, catalog.BuildOptions{})
	if err != nil {
		t.Fatalf("catalog.Build: %v", err)
	}
	return idx
}

// mention locates span in text and cuts a ±200 byte context around it.
func mention(t *testing.T, text, span string, typ catalog.ProductType) Mention {
	t.Helper()
	off := strings.Index(text, span)
	if off < 0 {
		t.Fatalf("span %q not in text", span)
	}
	start := max(0, off-200)
	end := min(len(text), off+len(span)+200)
	return Mention{
		Type:         typ,
		Span:         span,
		Offset:       off,
		Lead:         off,
		Context:      text[start:end],
		ContextStart: start,
	}
}

func names(signals []Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.Name
	}
	return out
}

func TestScore(t *testing.T) {
	idx := testIndex(t)
	scorer := NewScorer(DefaultConfig())

	tests := []struct {
		name    string
		text    string
		span    string
		typ     catalog.ProductType
		base    float64
		want    float64
		signals []string
	}{
		{
			name:    "quantity line item",
			text:    "3 X EG-440NT54-HL/BF-DG PANELS INSTALLED",
			span:    "EG-440NT54-HL/BF-DG",
			typ:     catalog.Panel,
			base:    0.40,
			want:    0.75,
			signals: []string{Quantity, TypeKeyword},
		},
		{
			name:    "labelled model",
			text:    "INVERTER MODEL: XG-9999-ZZ",
			span:    "XG-9999-ZZ",
			typ:     catalog.Inverter,
			base:    0.25,
			want:    0.65,
			signals: []string{TypeKeyword, ModelLabel},
		},
		{
			name:    "bare brand and model",
			text:    "EGING EG-440NT54-HL/BF-DG",
			span:    "EGING EG-440NT54-HL/BF-DG",
			typ:     catalog.Panel,
			base:    0.40,
			want:    0.75,
			signals: []string{BrandQualified},
		},
		{
			name:    "component section clamps",
			text:    "SYSTEM COMPONENTS\nEGING PANELS: 10 X EGING EG-440NT54-HL/BF-DG 440W",
			span:    "EGING EG-440NT54-HL/BF-DG",
			typ:     catalog.Panel,
			base:    0.40,
			want:    1.0,
			signals: []string{SectionAnchor, Quantity, SpecValue, TypeKeyword, BrandQualified, BrandContext},
		},
		{
			name:    "datasheet appendix",
			text:    "APPENDIX - DATASHEET\nEGING EG-440NT54-HL/BF-DG 440W MODULE\nTEMPERATURE COEFFICIENT -0.30%",
			span:    "EGING EG-440NT54-HL/BF-DG",
			typ:     catalog.Panel,
			base:    0.40,
			want:    0,
			signals: []string{SpecValue, TypeKeyword, Datasheet, DatasheetSection},
		},
		{
			name:    "datasheet dimensions are not quantities",
			text:    "APPENDIX - DATASHEET\nEGING EG-440NT54-HL/BF-DG 440W N-TYPE MODULE\nCELL SIZE: 182 X 182 MM\nTEMPERATURE COEFFICIENT -0.30%/C",
			span:    "EGING EG-440NT54-HL/BF-DG",
			typ:     catalog.Panel,
			base:    0.40,
			want:    0,
			signals: []string{SpecValue, TypeKeyword, Datasheet, DatasheetSection},
		},
		{
			name:    "cell dimensions outside a datasheet",
			text:    "EG-440NT54-HL/BF-DG PANEL\nCELL SIZE: 182X182MM",
			span:    "EG-440NT54-HL/BF-DG",
			typ:     catalog.Panel,
			base:    0.40,
			want:    0.55,
			signals: []string{TypeKeyword},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := scorer.Prepare(tt.text, idx)
			got, signals := scorer.Score(doc, mention(t, tt.text, tt.span, tt.typ), tt.base)
			if got != tt.want {
				t.Errorf("score = %v, want %v (signals %v)", got, tt.want, signals)
			}
			if strings.Join(names(signals), ",") != strings.Join(tt.signals, ",") {
				t.Errorf("signals = %v, want %v", names(signals), tt.signals)
			}
		})
	}
}

func TestSectionAnchorReach(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	line := "3 X EG-440NT54-HL/BF-DG PANELS"

	has := func(signals []Signal, name string) bool {
		for _, s := range signals {
			if s.Name == name {
				return true
			}
		}
		return false
	}
	score := func(text string) []Signal {
		doc := scorer.Prepare(text, nil)
		_, signals := scorer.Score(doc, mention(t, text, "EG-440NT54-HL/BF-DG", catalog.Panel), 0.40)
		return signals
	}

	near := "PROPOSED SYSTEM\n" + strings.Repeat("LOREM IPSUM ", 10) + line
	if !has(score(near), SectionAnchor) {
		t.Error("heading within reach should anchor the candidate")
	}

	far := "PROPOSED SYSTEM\n" + strings.Repeat("LOREM IPSUM ", 200) + line
	if has(score(far), SectionAnchor) {
		t.Error("heading beyond the anchor distance should not count")
	}

	cut := "SYSTEM COMPONENTS\nTOTAL 6.6KW\n" + "DATA SHEET\n" + strings.Repeat("LOREM IPSUM ", 30) + line
	signals := score(cut)
	if has(signals, SectionAnchor) {
		t.Error("a datasheet heading ends the component section")
	}
	if !has(signals, DatasheetSection) {
		t.Error("candidate under a datasheet heading should be demoted")
	}
}

func TestQuantityNeverLowersScore(t *testing.T) {
	idx := testIndex(t)
	scorer := NewScorer(DefaultConfig())

	texts := []string{
		"EG-440NT54-HL/BF-DG PANELS",
		"APPENDIX\nEG-440NT54-HL/BF-DG",
		"SYSTEM COMPONENTS\nEGING EG-440NT54-HL/BF-DG 440W",
		"PANEL MODEL: EG-440NT54-HL/BF-DG",
		"INVERTER MODEL NO.: EG-440NT54-HL/BF-DG",
	}
	for _, text := range texts {
		span := "EG-440NT54-HL/BF-DG"
		plain, _ := scorer.Score(scorer.Prepare(text, idx), mention(t, text, span, catalog.Panel), 0.40)

		prefixed := strings.Replace(text, span, "3 X "+span, 1)
		m := mention(t, prefixed, span, catalog.Panel)
		m.Lead = m.Offset - len("3 X ")
		withQty, _ := scorer.Score(scorer.Prepare(prefixed, idx), m, 0.40)

		if withQty < plain {
			t.Errorf("%q: quantity prefix lowered score %v -> %v", text, plain, withQty)
		}
	}
}

func TestZeroWeightIsNotRecorded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Quantity = 0
	scorer := NewScorer(cfg)

	text := "3 X EG-440NT54-HL/BF-DG"
	got, signals := scorer.Score(scorer.Prepare(text, nil), mention(t, text, "EG-440NT54-HL/BF-DG", catalog.Panel), 0.40)
	if got != 0.40 || len(signals) != 0 {
		t.Errorf("score = %v signals = %v, want 0.4 and none", got, signals)
	}
}

func TestScoreClampsAtZero(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	text := "APPENDIX DATASHEET EG-440NT54-HL/BF-DG"
	got, _ := scorer.Score(scorer.Prepare(text, nil), mention(t, text, "EG-440NT54-HL/BF-DG", catalog.Panel), 0.10)
	if got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
}

func TestHasQuantity(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"3 X EG-440NT54-HL/BF-DG", true},
		{"12×JKM440N", true},
		{"2 X 5.0KW INVERTERS", true},
		{"CELL SIZE: 182 X 182 MM", false},
		{"182X182MM", false},
		{"1722 X 1134 X 30 MM", false},
		{"182 X 182 MM, 10 X EGING PANELS", true},
		{"NO MARKER HERE", false},
	}
	for _, tt := range tests {
		if got := hasQuantity(tt.text); got != tt.want {
			t.Errorf("hasQuantity(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
