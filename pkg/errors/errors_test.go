package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	if MetadataFor(CodeNotFound).HTTPStatus != http.StatusNotFound {
		t.Fatalf("not found should map to 404")
	}
	if MetadataFor(CodeQuotaExceeded).HTTPStatus != http.StatusForbidden {
		t.Fatalf("quota exceeded should map to 403")
	}
	if MetadataFor(Code("bogus")).HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown code should fall back to 500")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("db down")
	err := Wrap(CodeDependency, cause, "query invoices")

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be preserved")
	}
	if err.Error() != "query invoices: db down" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestAsThroughWrappedChain(t *testing.T) {
	inner := New(CodeValidation, "bad input")
	outer := fmt.Errorf("handler: %w", inner)

	typed := As(outer)
	if typed == nil || typed.Code() != CodeValidation {
		t.Fatalf("expected validation error, got %v", typed)
	}
	if !Is(outer, CodeValidation) {
		t.Fatalf("Is should match the wrapped code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeInternal, fmt.Errorf("root"), "outer")
	dump := Dump(err)
	if dump.Code != CodeInternal {
		t.Fatalf("expected code in dump")
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain entries, got %d", len(dump.Chain))
	}
}
