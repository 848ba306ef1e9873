package ocr

import "context"

var defaultEngine Engine = &nopEngine{}

// DefaultEngine returns the process-wide default recognition engine.
// Importing the tesseract subpackage replaces it with the Tesseract provider.
func DefaultEngine() Engine {
	return defaultEngine
}

// SetDefaultEngine sets the process-wide default recognition engine.
func SetDefaultEngine(engine Engine) {
	defaultEngine = engine
}

type nopEngine struct{}

// NewNopEngine returns an engine that recognizes nothing. It exists for
// wiring tests and for running the service without a recognition backend.
func NewNopEngine() Engine { return &nopEngine{} }

func (n nopEngine) Name() string { return "nop" }

func (n nopEngine) Recognize(ctx context.Context, in Input) (Output, error) {
	return Lines(nil), nil
}
