package contextx

import (
	"context"
	"testing"
)

func TestRequestAndRunID(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetRunID(ctx) != "" {
		t.Fatalf("empty context should carry no ids")
	}
	ctx = WithRunID(WithRequestID(ctx, "req-1"), "run-7")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("request id = %q", got)
	}
	if got := GetRunID(ctx); got != "run-7" {
		t.Errorf("run id = %q", got)
	}
}
