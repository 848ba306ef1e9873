// Package textproc post-processes recognized text. Transformers run after
// correction; each is independent and best effort, so the pipeline skips any
// transformer that errors instead of failing the job.
package textproc

import "context"

// Transformer rewrites recognized text.
type Transformer interface {
	// Name identifies the transformer in logs.
	Name() string

	Apply(ctx context.Context, text string) (string, error)
}
