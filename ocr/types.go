package ocr

import "context"

// Recognition modes accepted by the service. A mode selects which model
// family the engine runs; it is also half of every cache key, so two modes
// must never alias each other.
const (
	ModeBasic     = "basic"     // plain text detection + recognition
	ModeStructure = "structure" // layout-aware extraction, markdown-shaped text
	ModeFormula   = "formula"   // formula recognition, LaTeX-shaped text
	ModeTable     = "table"     // table extraction
)

var supportedModes = map[string]struct{}{
	ModeBasic:     {},
	ModeStructure: {},
	ModeFormula:   {},
	ModeTable:     {},
}

// ValidMode reports whether mode names a supported recognition mode.
func ValidMode(mode string) bool {
	_, ok := supportedModes[mode]
	return ok
}

// Modes returns the supported mode names in a stable order.
func Modes() []string {
	return []string{ModeBasic, ModeStructure, ModeFormula, ModeTable}
}

// Input encapsulates a single image submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier that engines echo back in
	// logs and errors; the pipeline sets it to the job id.
	ID string
	// Image is the encoded image payload (PNG or JPEG bytes).
	Image []byte
	// Mode selects the recognition mode (see Mode constants).
	Mode string
	// Languages is a list of language hints (e.g., "eng", "chi_sim") that
	// providers can use to select trained data.
	Languages []string
	// Metadata passes engine-specific knobs (e.g., "psm" for Tesseract)
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// Engine is the recognition provider contract: one image in, one
// engine-defined output out. Implementations must be safe for concurrent use
// by multiple pipeline workers.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Output, error)
}
