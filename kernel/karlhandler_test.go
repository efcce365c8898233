package kernel

import (
	"context"
	"testing"
)

type fakeSink struct {
	streamed []string
}

func (f *fakeSink) Stream(name, text string) {
	f.streamed = append(f.streamed, text)
}

func (f *fakeSink) RequestInput(prompt string, password bool) (string, error) {
	return "", newWireError(ErrUnknownMsgType, "stdin not available in test")
}

func TestKarlHandlerIsComplete(t *testing.T) {
	h := NewKarlHandler()

	cases := []struct {
		code string
		want completionStatus
	}{
		{"1 + 1", statusComplete},
		{"1 +", statusIncomplete},
		{"{", statusIncomplete},
		{"let x = {", statusIncomplete},
	}
	for _, c := range cases {
		if got := h.IsComplete(c.code); got != c.want {
			t.Errorf("IsComplete(%q) = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestKarlHandlerExecuteResult(t *testing.T) {
	h := NewKarlHandler()
	sink := &fakeSink{}

	outcome := h.Execute(context.Background(), executeRequestContent{Code: "1 + 1"}, sink)
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.Incomplete {
		t.Fatal("unexpected incomplete outcome for complete code")
	}
	if outcome.Result != "2" {
		t.Fatalf("Result = %q, want %q", outcome.Result, "2")
	}
}

func TestKarlHandlerExecutePreservesEnvironment(t *testing.T) {
	h := NewKarlHandler()
	sink := &fakeSink{}

	if out := h.Execute(context.Background(), executeRequestContent{Code: "let x = 41"}, sink); out.Err != nil {
		t.Fatalf("first execute: %v", out.Err)
	}
	out := h.Execute(context.Background(), executeRequestContent{Code: "x + 1"}, sink)
	if out.Err != nil {
		t.Fatalf("second execute: %v", out.Err)
	}
	if out.Result != "42" {
		t.Fatalf("Result = %q, want %q", out.Result, "42")
	}
}

func TestKarlHandlerExecuteIncompleteInput(t *testing.T) {
	h := NewKarlHandler()
	sink := &fakeSink{}

	out := h.Execute(context.Background(), executeRequestContent{Code: "1 +"}, sink)
	if !out.Incomplete {
		t.Fatal("expected Incomplete outcome")
	}
}

func TestKarlHandlerInfo(t *testing.T) {
	h := NewKarlHandler()
	info, err := h.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.LanguageInfo.Name != "karl" {
		t.Fatalf("language name = %q, want karl", info.LanguageInfo.Name)
	}
}
