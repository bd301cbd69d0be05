package kv

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	wrapped := &Error{Code: CodeWrongLastSequence, APICode: 10071, Description: "wrong last sequence"}

	if !errors.Is(wrapped, ErrWrongLastSequence) {
		t.Fatal("errors.Is should match on Code alone, ignoring server diagnostics")
	}

	if errors.Is(wrapped, ErrNotFound) {
		t.Fatal("errors.Is should not match a different Code")
	}
}

func TestMapAPIErrorPrefersAPICode(t *testing.T) {
	err := mapAPIError(apiErrorEnvelope{APICode: 10071, Status: 400, Description: "wrong last sequence"})
	if err.Code != CodeWrongLastSequence {
		t.Fatalf("mapAPIError() Code = %v, want CodeWrongLastSequence", err.Code)
	}

	err = mapAPIError(apiErrorEnvelope{APICode: 10058, Status: 400, Description: "already in use"})
	if err.Code != CodeAlreadyExists {
		t.Fatalf("mapAPIError() Code = %v, want CodeAlreadyExists", err.Code)
	}
}

func TestMapAPIErrorFallsBackToStatus(t *testing.T) {
	err := mapAPIError(apiErrorEnvelope{APICode: 0, Status: 404, Description: "stream not found"})
	if err.Code != CodeNotFound {
		t.Fatalf("mapAPIError() Code = %v, want CodeNotFound", err.Code)
	}

	err = mapAPIError(apiErrorEnvelope{APICode: 99999, Status: 500, Description: "unknown"})
	if err.Code != CodeAPIError {
		t.Fatalf("mapAPIError() Code = %v, want CodeAPIError for an unrecognized envelope", err.Code)
	}
}

func TestMapTransportErrorPassesThroughTaxonomy(t *testing.T) {
	original := &Error{Code: CodeNotFound, Description: "gone"}

	if got := mapTransportError(original); got != original {
		t.Fatalf("mapTransportError() should pass an *Error through unchanged, got %v", got)
	}

	wrapped := mapTransportError(errors.New("connection reset"))

	var kvErr *Error
	if !errors.As(wrapped, &kvErr) || kvErr.Code != CodeTransport {
		t.Fatalf("mapTransportError() = %v, want CodeTransport", wrapped)
	}
}
