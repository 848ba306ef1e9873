// Package ocr defines the boundary between the job pipeline and recognition
// engines (local Tesseract, remote model servers, test stubs). The interfaces
// are intentionally small and transport-agnostic; heterogeneous engine output
// is modeled as a closed set of variants with a single normalization point so
// provider-specific shapes never leak into callers.
package ocr
