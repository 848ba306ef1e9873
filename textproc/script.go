package textproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// Script runs an operator-supplied JavaScript transform. The source must
// define a global transform(text) returning the rewritten string. One VM is
// shared across jobs; goja runtimes are not goroutine safe, so calls are
// serialized.
type Script struct {
	mu        sync.Mutex
	vm        *goja.Runtime
	transform goja.Callable
}

// NewScript compiles the source and resolves transform.
func NewScript(source string) (*Script, error) {
	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("transform"))
	if !ok {
		return nil, fmt.Errorf("script does not define transform(text)")
	}
	return &Script{vm: vm, transform: fn}, nil
}

func (s *Script) Name() string { return "script" }

// Apply invokes transform(text). Cancelling ctx interrupts a running script,
// so a looping transform cannot wedge a worker.
func (s *Script) Apply(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	done := make(chan struct{})
	defer close(done)
	defer s.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			s.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := s.transform(goja.Undefined(), s.vm.ToValue(text))
	if err != nil {
		if interrupted, ok := err.(*goja.InterruptedError); ok {
			if cause := interrupted.Unwrap(); cause != nil {
				return "", cause
			}
			return "", context.Canceled
		}
		return "", fmt.Errorf("transform failed: %w", err)
	}
	return val.String(), nil
}
