package errors

import (
	"fmt"
	"sync"
	"testing"
)

func TestFastPathNoReporter(t *testing.T) {
	SetReporter(nil)

	// No reporter installed, Build should use the fast path
	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != "unknown" {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderSetsMetadata(t *testing.T) {
	t.Parallel()

	ee := Newf("cannot decode sample %d", 3).
		Component("audiobatch").
		Category(CategoryDecode).
		Context("source", "clip-3.wav").
		Priority(PriorityHigh).
		Build()

	if ee.GetComponent() != "audiobatch" {
		t.Errorf("Expected component 'audiobatch', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryDecode {
		t.Errorf("Expected category 'decode', got '%s'", ee.Category)
	}
	if ee.GetPriority() != PriorityHigh {
		t.Errorf("Expected priority 'high', got '%s'", ee.GetPriority())
	}

	ctx := ee.GetContext()
	if ctx["source"] != "clip-3.wav" {
		t.Errorf("Expected context source 'clip-3.wav', got '%v'", ctx["source"])
	}
}

func TestInvalidPriorityFallsBack(t *testing.T) {
	t.Parallel()

	ee := Newf("boom").Priority("urgent-ish").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("Expected invalid priority to fall back to medium, got '%s'", ee.GetPriority())
	}
}

func TestUnwrapAndIs(t *testing.T) {
	t.Parallel()

	base := NewStd("base failure")
	ee := New(fmt.Errorf("wrapped: %w", base)).Category(CategoryCodec).Build()

	if !Is(ee, base) {
		t.Error("Expected Is to find the base error through the wrap chain")
	}

	var target *EnhancedError
	if !As(ee, &target) {
		t.Error("Expected As to find the EnhancedError")
	}
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	ee := Newf("bad rate").Category(CategoryResample).Build()
	if !IsCategory(ee, CategoryResample) {
		t.Error("Expected IsCategory to match resample")
	}
	if IsCategory(ee, CategoryCodec) {
		t.Error("Expected IsCategory not to match codec")
	}

	// Wrapped one level deeper
	wrapped := fmt.Errorf("outer: %w", ee)
	if !IsCategory(wrapped, CategoryResample) {
		t.Error("Expected IsCategory to match through wrapping")
	}
}

func TestContextCopyIsIsolated(t *testing.T) {
	t.Parallel()

	ee := Newf("x").Context("k", "v").Build()
	ctx := ee.GetContext()
	ctx["k"] = "mutated"

	if ee.GetContext()["k"] != "v" {
		t.Error("Expected GetContext to return an isolated copy")
	}
}

func TestFileContextAnonymizes(t *testing.T) {
	t.Parallel()

	ee := FileError(NewStd("open failed"), "/data/clips/a.flac", 2048)
	ctx := ee.GetContext()

	if ctx["file_type"] != "absolute-path" {
		t.Errorf("Expected file_type 'absolute-path', got '%v'", ctx["file_type"])
	}
	if ctx["file_extension"] != "flac" {
		t.Errorf("Expected file_extension 'flac', got '%v'", ctx["file_extension"])
	}
	if ctx["file_size_category"] != "small" {
		t.Errorf("Expected file_size_category 'small', got '%v'", ctx["file_size_category"])
	}
}

type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (rr *recordingReporter) ReportError(ee *EnhancedError) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.reported = append(rr.reported, ee)
}

func (rr *recordingReporter) IsEnabled() bool { return true }

func TestReporterReceivesBuiltErrors(t *testing.T) {
	rr := &recordingReporter{}
	SetReporter(rr)
	t.Cleanup(func() { SetReporter(nil) })

	ee := Newf("decode exploded").Component("audiobatch").Category(CategoryDecode).Build()

	rr.mu.Lock()
	defer rr.mu.Unlock()
	if len(rr.reported) != 1 {
		t.Fatalf("Expected 1 reported error, got %d", len(rr.reported))
	}
	if rr.reported[0] != ee {
		t.Error("Expected the built error to reach the reporter")
	}
	if !ee.IsReported() {
		t.Error("Expected the error to be marked reported")
	}
}

func TestCategoryDetectionFromMessage(t *testing.T) {
	rr := &recordingReporter{}
	SetReporter(rr)
	t.Cleanup(func() { SetReporter(nil) })

	cases := []struct {
		msg  string
		want ErrorCategory
	}{
		{"resample kernel out of range", CategoryResample},
		{"unsupported codec frame", CategoryCodec},
		{"mismatch between plan and destination", CategoryValidation},
		{"cannot open file", CategoryFileIO},
	}
	for _, tc := range cases {
		ee := New(NewStd(tc.msg)).Component("x").Build()
		if ee.Category != tc.want {
			t.Errorf("Message %q: expected category %q, got %q", tc.msg, tc.want, ee.Category)
		}
	}
}
