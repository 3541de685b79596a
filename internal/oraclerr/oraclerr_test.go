package oraclerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindStringCoversAllKinds(t *testing.T) {
	kinds := []Kind{
		KindParseError, KindFiltered, KindInsufficientData, KindNumericDegenerate,
		KindTransient, KindAuthFailure, KindRateLimited, KindFatal,
	}
	for _, k := range kinds {
		if k.String() == "unknown" {
			t.Errorf("Kind(%d).String() = unknown, want a named value", k)
		}
	}
}

func TestNewWrapsUnderlyingError(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(KindTransient, "rpcclient.BlockCount", cause)

	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped error to unwrap to cause")
	}
	if err.Error() == "" {
		t.Errorf("expected non-empty error message")
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := New(KindAuthFailure, "api.Validate", nil)

	if !Is(err, KindAuthFailure) {
		t.Errorf("Is(err, KindAuthFailure) = false, want true")
	}
	if Is(err, KindTransient) {
		t.Errorf("Is(err, KindTransient) = true, want false")
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	plain := fmt.Errorf("not tagged")
	if Is(plain, KindFatal) {
		t.Errorf("Is(plain error, ...) = true, want false")
	}
}

func TestErrorMessageOmitsNilCause(t *testing.T) {
	err := New(KindFatal, "config.MustLoad", nil)
	want := "config.MustLoad: fatal"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
