// Package report renders a completed job's recognized text as a standalone
// HTML page. Structure and table modes produce markdown, formula mode
// produces LaTeX; both render through goldmark, with treeblood turning math
// into MathML the browser displays natively.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"github.com/danwin47-sys/ocrflow/ocr"
)

// Renderer converts recognized text to HTML. Safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer builds the shared goldmark instance. Hard wraps keep the
// engine's line structure visible in basic-mode output.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				treeblood.MathML(),
				extension.Table,
			),
			goldmark.WithRendererOptions(
				ghtml.WithHardWraps(),
			),
		),
	}
}

// Render produces a full HTML document for one job result. Formula-mode text
// that carries no math delimiters of its own is wrapped in display math.
func (r *Renderer) Render(jobID, mode, text string) ([]byte, error) {
	source := text
	if mode == ocr.ModeFormula && !strings.Contains(source, "$") {
		source = "$$" + source + "$$"
	}

	var body bytes.Buffer
	if err := r.md.Convert([]byte(source), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>recognition report %s</title>\n", html.EscapeString(jobID))
	page.WriteString("</head>\n<body>\n<article>\n")
	page.Write(body.Bytes())
	page.WriteString("</article>\n</body>\n</html>\n")
	return page.Bytes(), nil
}
