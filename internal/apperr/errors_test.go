package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/newspulse/aggregator/internal/apperr"
)

func TestNewFetchStatus(t *testing.T) {
	err := apperr.NewFetchStatus("reuters", 503)

	if err.Error() != "fetch reuters: unexpected status 503" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Errorf("expected nil unwrap, got %v", err.Unwrap())
	}
}

func TestNewFetch_WrapsTransportError(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := apperr.NewFetch("reuters", inner)

	if err.Error() != "fetch reuters: connection refused" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("expected Unwrap to return inner error")
	}
}

func TestParseError_SurvivesFmtWrapping(t *testing.T) {
	original := apperr.NewParse("xml", fmt.Errorf("unexpected EOF"))

	wrapped := fmt.Errorf("source feed: %w", original)
	doubleWrapped := fmt.Errorf("fetch run: %w", wrapped)

	var pe *apperr.ParseError
	if !errors.As(doubleWrapped, &pe) {
		t.Fatal("errors.As should find ParseError through double wrapping")
	}
	if pe.Format != "xml" {
		t.Errorf("expected format xml, got %q", pe.Format)
	}
}

func TestStorageError_NotFoundForPlainErrors(t *testing.T) {
	plain := fmt.Errorf("database connection failed")
	wrapped := fmt.Errorf("insert batch: %w", plain)

	var se *apperr.StorageError
	if errors.As(wrapped, &se) {
		t.Fatal("errors.As should NOT find StorageError in plain error chain")
	}
}
