package textproc

import (
	"context"
	"testing"
	"time"
)

func TestScriptTransform(t *testing.T) {
	s, err := NewScript(`function transform(text) { return text.toUpperCase(); }`)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	got, err := s.Apply(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "HELLO" {
		t.Fatalf("got %q", got)
	}
}

func TestScriptStateAcrossCalls(t *testing.T) {
	s, err := NewScript(`
var calls = 0;
function transform(text) { calls++; return text + " #" + calls; }`)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	for i, want := range []string{"x #1", "x #2"} {
		got, err := s.Apply(context.Background(), "x")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("call %d = %q, want %q", i, got, want)
		}
	}
}

func TestScriptMissingTransform(t *testing.T) {
	if _, err := NewScript(`var x = 1;`); err == nil {
		t.Fatal("expected error when transform is undefined")
	}
}

func TestScriptSyntaxError(t *testing.T) {
	if _, err := NewScript(`function transform(text) {`); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestScriptRuntimeErrorSurfaces(t *testing.T) {
	s, err := NewScript(`function transform(text) { throw new Error("nope"); }`)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	if _, err := s.Apply(context.Background(), "x"); err == nil {
		t.Fatal("expected error from throwing transform")
	}
}

func TestScriptInterruptedByContext(t *testing.T) {
	s, err := NewScript(`function transform(text) { while (true) {} }`)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := s.Apply(ctx, "x"); err == nil {
		t.Fatal("expected interruption error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("interrupt took far too long")
	}
}
