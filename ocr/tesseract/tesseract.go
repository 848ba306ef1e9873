package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/danwin47-sys/ocrflow/ocr"
)

func init() {
	ocr.SetDefaultEngine(NewEngine())
}

// Engine implements ocr.Engine using the gosseract client as the local
// recognition provider.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed recognition engine.
func NewEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on a single input image and returns the line-box
// output shape. A fresh client is used per call so the engine is safe for
// concurrent pipeline workers.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err == nil && len(boxes) > 0 {
		lines := make(ocr.Lines, 0, len(boxes))
		for _, b := range boxes {
			text := strings.TrimSpace(b.Word)
			if text == "" {
				continue
			}
			lines = append(lines, ocr.Line{
				Text:  text,
				Score: b.Confidence / 100.0,
				Box: [][2]float64{
					{float64(b.Box.Min.X), float64(b.Box.Min.Y)},
					{float64(b.Box.Max.X), float64(b.Box.Min.Y)},
					{float64(b.Box.Max.X), float64(b.Box.Max.Y)},
					{float64(b.Box.Min.X), float64(b.Box.Max.Y)},
				},
			})
		}
		return lines, nil
	}

	// Line segmentation unavailable: fall back to the whole-image text.
	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ocr.Lines(nil), nil
	}
	return ocr.Lines{{Text: text}}, nil
}
