package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestSentinelMatchesDetailedCopy(t *testing.T) {
	err := fmt.Errorf("estimate: %w", ErrInsufficientSamples.WithDetail("got %d closes", 1))
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("detailed copy should match its sentinel")
	}
	if errors.Is(err, ErrEmptySample) {
		t.Errorf("different codes must not match")
	}
	if ErrInsufficientSamples.Detail == "got 1 closes" {
		t.Errorf("WithDetail must not mutate the sentinel")
	}
}

func TestWrapKeepsCode(t *testing.T) {
	wrapped := Wrap(ErrCacheMiss, ErrInternal, "lookup failed")
	if wrapped.Code != ErrCacheMiss.Code || wrapped.Type != ErrNotFound {
		t.Errorf("wrap changed classification: %+v", wrapped)
	}
	plain := WrapInternal(errors.New("disk full"), "write report")
	if plain.Type != ErrInternal || plain.Cause == nil {
		t.Errorf("unexpected wrap of plain error: %+v", plain)
	}
	if Wrap(nil, ErrInternal, "x") != nil {
		t.Errorf("wrapping nil should return nil")
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		code   codes.Code
	}{
		{ErrInvalidSpec, http.StatusBadRequest, codes.InvalidArgument},
		{ErrNoReport, http.StatusNotFound, codes.NotFound},
		{ErrRequestTooLarge, http.StatusRequestEntityTooLarge, codes.ResourceExhausted},
		{ErrMathConvergence, http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.status {
			t.Errorf("%d: http status = %d, want %d", tc.err.Code, got, tc.status)
		}
		if got := tc.err.ToGRPCStatus().Code(); got != tc.code {
			t.Errorf("%d: grpc code = %v, want %v", tc.err.Code, got, tc.code)
		}
	}
}

func TestFromError(t *testing.T) {
	if _, ok := FromError(errors.New("plain")); ok {
		t.Errorf("plain error should not convert")
	}
	e, ok := FromError(fmt.Errorf("ctx: %w", ErrInvalidOptionType))
	if !ok || e.Code != 400004 {
		t.Errorf("FromError = %v, %v", e, ok)
	}
	if ErrTooLarge.String() != "TooLarge" || ErrorType(99).String() != "Unknown" {
		t.Errorf("unexpected type names")
	}
}
