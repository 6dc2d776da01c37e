package types

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestSessionIDRoundTrip(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-1")
	if got := GetSessionID(ctx); got != "sess-1" {
		t.Errorf("GetSessionID() = %q", got)
	}
	if got := GetSessionID(context.Background()); got != "" {
		t.Errorf("GetSessionID() on empty context = %q", got)
	}
}
