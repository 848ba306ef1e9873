package ocr

import (
	"reflect"
	"testing"
)

func TestDecodeOutputLineBoxes(t *testing.T) {
	raw := []byte(`[
		{"text":"INVOICE","box":[[10,10],[200,10],[200,40],[10,40]],"score":0.98},
		{"text":"Total: 42.00","box":[[10,60],[180,60],[180,90],[10,90]],"score":0.91}
	]`)

	out := DecodeOutput(raw)
	lines, ok := out.(Lines)
	if !ok {
		t.Fatalf("expected Lines, got %T", out)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Text != "INVOICE" || lines[0].Score != 0.98 {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	if want := [2]float64{200, 40}; lines[0].Box[2] != want {
		t.Fatalf("unexpected box point: %v", lines[0].Box[2])
	}
	if got := Flatten(out); got != "INVOICE\nTotal: 42.00" {
		t.Fatalf("unexpected flat text: %q", got)
	}
}

func TestDecodeOutputFlatBoxPairs(t *testing.T) {
	raw := []byte(`[{"text":"ok","points":[0,0,10,0,10,5,0,5]}]`)

	lines, ok := DecodeOutput(raw).(Lines)
	if !ok {
		t.Fatalf("expected Lines for flat point list")
	}
	if len(lines[0].Box) != 4 || lines[0].Box[1] != [2]float64{10, 0} {
		t.Fatalf("unexpected decoded points: %v", lines[0].Box)
	}
}

func TestDecodeOutputRegionDicts(t *testing.T) {
	raw := []byte(`[
		{"type":"title","text":"Quarterly Report","bbox":[0,0,400,30]},
		{"type":"paragraph","text":"Revenue grew.","bbox":[0,40,400,120]},
		{"type":"figure","text":"","bbox":[0,130,400,300]}
	]`)

	out := DecodeOutput(raw)
	regions, ok := out.(Regions)
	if !ok {
		t.Fatalf("expected Regions, got %T", out)
	}
	if len(regions) != 3 {
		t.Fatalf("expected 3 regions, got %d", len(regions))
	}
	if regions[0].Label != "title" {
		t.Fatalf("unexpected label: %q", regions[0].Label)
	}
	if !reflect.DeepEqual(regions[1].BBox, []float64{0, 40, 400, 120}) {
		t.Fatalf("unexpected bbox: %v", regions[1].BBox)
	}
	// Empty-text regions are dropped from the flat representation.
	if got := Flatten(out); got != "Quarterly Report\nRevenue grew." {
		t.Fatalf("unexpected flat text: %q", got)
	}
}

func TestDecodeOutputRecTexts(t *testing.T) {
	raw := []byte(`{"rec_texts":["line one","line two"],"rec_scores":[0.99,0.87],"rec_polys":[[0,0],[1,1]]}`)

	out := DecodeOutput(raw)
	tl, ok := out.(TextList)
	if !ok {
		t.Fatalf("expected TextList, got %T", out)
	}
	if !reflect.DeepEqual(tl.Texts, []string{"line one", "line two"}) {
		t.Fatalf("unexpected texts: %v", tl.Texts)
	}
	if len(tl.Scores) != 2 || tl.Scores[1] != 0.87 {
		t.Fatalf("unexpected scores: %v", tl.Scores)
	}
	if got := Flatten(out); got != "line one\nline two" {
		t.Fatalf("unexpected flat text: %q", got)
	}
}

func TestDecodeOutputFallbacks(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		flat string
	}{
		{"bare string", `"just text"`, "just text"},
		{"unknown dict", `{"weird":true}`, "map[weird:true]"},
		{"scalar list", `[1,2,3]`, "[1 2 3]"},
		{"not json", `<html>nope</html>`, "<html>nope</html>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := DecodeOutput([]byte(tc.raw))
			if _, ok := out.(Opaque); !ok {
				t.Fatalf("expected Opaque, got %T", out)
			}
			if got := Flatten(out); got != tc.flat {
				t.Fatalf("Flatten() = %q, want %q", got, tc.flat)
			}
		})
	}
}

func TestDecodeOutputEmptyList(t *testing.T) {
	out := DecodeOutput([]byte(`[]`))
	if _, ok := out.(Lines); !ok {
		t.Fatalf("expected empty Lines, got %T", out)
	}
	if Flatten(out) != "" {
		t.Fatalf("expected empty flat text")
	}
}

func TestFlattenNil(t *testing.T) {
	if Flatten(nil) != "" {
		t.Fatalf("nil output should flatten to empty string")
	}
}

func TestValidMode(t *testing.T) {
	for _, mode := range Modes() {
		if !ValidMode(mode) {
			t.Fatalf("mode %q should be valid", mode)
		}
	}
	if ValidMode("handwriting") {
		t.Fatalf("unknown mode accepted")
	}
}
