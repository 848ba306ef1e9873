package ocr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Output is the engine-defined recognition payload. Engines return wildly
// different shapes depending on provider and mode, so the payload is modeled
// as a closed set of variants with one normalization function (Flatten)
// instead of duck-typed branching at every call site.
type Output interface {
	isOutput()
}

// Lines is the classic detector+recognizer shape: one entry per detected
// text line with its quadrilateral and confidence.
type Lines []Line

// Line is a single recognized text line.
type Line struct {
	Text  string       `json:"text"`
	Box   [][2]float64 `json:"box,omitempty"`
	Score float64      `json:"score,omitempty"`
}

// Regions is the layout-analysis shape: a list of region dicts, each carrying
// at least a text field and usually a label and bounding box.
type Regions []Region

// Region is a single layout region.
type Region struct {
	Label string    `json:"label,omitempty"`
	Text  string    `json:"text"`
	BBox  []float64 `json:"bbox,omitempty"`
}

// TextList is the batched-recognizer shape: a dict with parallel rec_texts
// and rec_scores lists.
type TextList struct {
	Texts  []string  `json:"rec_texts"`
	Scores []float64 `json:"rec_scores,omitempty"`
}

// Opaque holds any output shape the decoder does not recognize. Flatten
// falls back to stringification for it.
type Opaque struct {
	Value interface{}
}

func (Lines) isOutput()    {}
func (Regions) isOutput()  {}
func (TextList) isOutput() {}
func (Opaque) isOutput()   {}

// Flatten normalizes any engine output into a single flat text
// representation: one line of text per recognized unit, joined by newlines.
func Flatten(out Output) string {
	switch o := out.(type) {
	case Lines:
		parts := make([]string, 0, len(o))
		for _, l := range o {
			if l.Text != "" {
				parts = append(parts, l.Text)
			}
		}
		return strings.Join(parts, "\n")
	case Regions:
		parts := make([]string, 0, len(o))
		for _, r := range o {
			if r.Text != "" {
				parts = append(parts, r.Text)
			}
		}
		return strings.Join(parts, "\n")
	case TextList:
		return strings.Join(o.Texts, "\n")
	case Opaque:
		if s, ok := o.Value.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", o.Value)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", out)
	}
}

// DecodeOutput sniffs the JSON payload a remote engine returned and maps it
// onto the closest Output variant. Unparseable payloads become Opaque with
// the raw text, never an error: the engine answered, the shape is just new.
func DecodeOutput(raw []byte) Output {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return Opaque{Value: strings.TrimSpace(string(raw))}
	}
	return FromValue(v)
}

// FromValue maps an already-decoded JSON value onto an Output variant. It is
// the single place that knows which wire shapes exist.
func FromValue(v interface{}) Output {
	switch t := v.(type) {
	case []interface{}:
		return fromList(t)
	case map[string]interface{}:
		if texts, ok := stringSlice(t["rec_texts"]); ok {
			scores, _ := floatSlice(t["rec_scores"])
			return TextList{Texts: texts, Scores: scores}
		}
		return Opaque{Value: t}
	default:
		return Opaque{Value: v}
	}
}

func fromList(items []interface{}) Output {
	if len(items) == 0 {
		return Lines(nil)
	}
	first, ok := items[0].(map[string]interface{})
	if !ok {
		return Opaque{Value: items}
	}
	if _, hasText := first["text"]; !hasText {
		return Opaque{Value: items}
	}
	if _, hasBox := first["box"]; hasBox {
		return decodeLines(items)
	}
	if _, hasPoints := first["points"]; hasPoints {
		return decodeLines(items)
	}
	return decodeRegions(items)
}

func decodeLines(items []interface{}) Lines {
	lines := make(Lines, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		line := Line{Text: asString(m["text"])}
		if s, ok := asFloat(m["score"]); ok {
			line.Score = s
		} else if s, ok := asFloat(m["confidence"]); ok {
			line.Score = s
		}
		if box := m["box"]; box != nil {
			line.Box = decodePoints(box)
		} else if pts := m["points"]; pts != nil {
			line.Box = decodePoints(pts)
		}
		lines = append(lines, line)
	}
	return lines
}

func decodeRegions(items []interface{}) Regions {
	regions := make(Regions, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		reg := Region{Text: asString(m["text"]), Label: asString(m["label"])}
		if reg.Label == "" {
			reg.Label = asString(m["type"])
		}
		if bbox, ok := floatSlice(m["bbox"]); ok {
			reg.BBox = bbox
		}
		regions = append(regions, reg)
	}
	return regions
}

// decodePoints accepts either a flat [x0,y0,x1,y1,...] list or a nested
// [[x,y],...] list and returns point pairs. Anything else yields nil.
func decodePoints(v interface{}) [][2]float64 {
	list, ok := v.([]interface{})
	if ok && len(list) > 0 {
		if _, nested := list[0].([]interface{}); nested {
			pts := make([][2]float64, 0, len(list))
			for _, el := range list {
				pair, ok := el.([]interface{})
				if !ok || len(pair) < 2 {
					return nil
				}
				x, okX := asFloat(pair[0])
				y, okY := asFloat(pair[1])
				if !okX || !okY {
					return nil
				}
				pts = append(pts, [2]float64{x, y})
			}
			return pts
		}
		flat, ok := floatSlice(v)
		if !ok || len(flat)%2 != 0 {
			return nil
		}
		pts := make([][2]float64, 0, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			pts = append(pts, [2]float64{flat[i], flat[i+1]})
		}
		return pts
	}
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	}
	return 0, false
}

func stringSlice(v interface{}) ([]string, bool) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		s, ok := el.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func floatSlice(v interface{}) ([]float64, bool) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(list))
	for _, el := range list {
		f, ok := asFloat(el)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
