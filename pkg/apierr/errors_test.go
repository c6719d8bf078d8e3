package apierr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIErrorTruncatesBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 800))
	e := NewAPIError(401, "Unauthorized", body)
	if len(e.Body) != MaxBodyLen {
		t.Fatalf("expected %d bytes, got %d", MaxBodyLen, len(e.Body))
	}
	if !strings.HasPrefix(e.Error(), "API Error: 401 Unauthorized - xxx") {
		t.Errorf("unexpected message %q", e.Error())
	}
}

func TestIsCancelled(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", Cancelled())
	if !IsCancelled(wrapped) {
		t.Error("expected wrapped cancel to be detected")
	}
	transport := &StreamError{Kind: KindTransport, Err: errors.New("connection reset")}
	if IsCancelled(transport) {
		t.Error("transport failure must not count as cancelled")
	}
	if IsCancelled(&NetworkError{Msg: "timed out"}) {
		t.Error("timeout must not count as cancelled")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&NetworkError{Msg: "timed out"}) {
		t.Error("network errors are retryable")
	}
	if IsRetryable(NewAPIError(400, "Bad Request", nil)) {
		t.Error("api errors are not retryable")
	}
	if IsRetryable(Cancelled()) {
		t.Error("cancel is not retryable")
	}
}

func TestNetworkErrorTimeout(t *testing.T) {
	e := &NetworkError{Msg: "timed out"}
	if !e.Timeout() {
		t.Error("expected timeout")
	}
	if e.Error() != "Network error: timed out" {
		t.Errorf("unexpected message %q", e.Error())
	}
}
