package diag_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tmlang/tmlc/internal/diag"
)

func TestFromCodegenError(t *testing.T) {
	ce := diag.NewAt(diag.UnknownSymbol, diag.Span{Filename: "a.tml", Line: 3, Column: 5}, "unknown type %q", "Foo")

	d := diag.FromCodegenError(ce)

	if d.Severity != diag.SeverityError {
		t.Fatalf("expected severity %q, got %q", diag.SeverityError, d.Severity)
	}
	if d.Code != diag.UnknownSymbol {
		t.Fatalf("expected code %q, got %q", diag.UnknownSymbol, d.Code)
	}
	if d.Message != `unknown type "Foo"` {
		t.Fatalf("unexpected message %q", d.Message)
	}
	if !d.Span.IsValid() {
		t.Fatalf("expected a valid span")
	}
}

func TestErrorListCollectsAndReports(t *testing.T) {
	var l diag.ErrorList
	if !l.Empty() {
		t.Fatalf("expected empty list")
	}

	l.Add(diag.New(diag.UnknownSymbol, "unknown type Foo"))
	l.Add(diag.New(diag.DuplicateDefinition, "duplicate Bar"))
	l.Add(nil) // ignored

	if l.Empty() {
		t.Fatalf("expected non-empty list")
	}
	if got := len(l.CodegenErrors()); got != 2 {
		t.Fatalf("expected 2 codegen errors, got %d", got)
	}
	if err := l.Err(); err == nil || !strings.Contains(err.Error(), "unknown type Foo") {
		t.Fatalf("expected combined error to mention first failure, got %v", err)
	}
}

func TestFormatterJSONLines(t *testing.T) {
	diags := []diag.Diagnostic{
		diag.FromCodegenError(diag.New(diag.LayoutOverflow, "payload exceeds 64 KiB")),
	}

	var buf bytes.Buffer
	if err := diag.NewFormatter(true).Write(&buf, diags); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"code":"LayoutOverflow"`) {
		t.Fatalf("expected JSON to contain code field, got %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one JSON line, got %q", out)
	}
}

func TestFormatterProse(t *testing.T) {
	diags := []diag.Diagnostic{
		diag.FromCodegenError(diag.NewAt(diag.MalformedMangledName, diag.Span{Filename: "b.tml", Line: 1, Column: 1}, "bad mangled name")),
	}

	var buf bytes.Buffer
	if err := diag.NewFormatter(false).Write(&buf, diags); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "error[MalformedMangledName]: bad mangled name") {
		t.Fatalf("unexpected prose output: %q", out)
	}
	if !strings.Contains(out, "--> b.tml:1:1") {
		t.Fatalf("expected span line, got %q", out)
	}
}
