package ai

import (
	"net/http"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{http.StatusUnauthorized, ErrKindAuth, false},
		{http.StatusForbidden, ErrKindAuth, false},
		{http.StatusRequestTimeout, ErrKindTimeout, true},
		{http.StatusGatewayTimeout, ErrKindTimeout, true},
		{http.StatusTooManyRequests, ErrKindUnavailable, true},
		{http.StatusBadGateway, ErrKindUnavailable, true},
		{http.StatusServiceUnavailable, ErrKindUnavailable, true},
		{http.StatusInternalServerError, ErrKindUnavailable, false},
		{http.StatusBadRequest, ErrKindUnknown, false},
	}
	for _, c := range cases {
		e := ClassifyStatus(c.status, "boom")
		if e.Kind != c.kind || e.Retryable != c.retryable {
			t.Fatalf("status %d: got kind=%s retryable=%v, want kind=%s retryable=%v",
				c.status, e.Kind, e.Retryable, c.kind, c.retryable)
		}
	}
}

func TestIsAuth(t *testing.T) {
	if !IsAuth(ClassifyStatus(http.StatusUnauthorized, "")) {
		t.Fatalf("401 should classify as auth")
	}
	if IsAuth(ClassifyStatus(http.StatusServiceUnavailable, "")) {
		t.Fatalf("503 should not classify as auth")
	}
}
