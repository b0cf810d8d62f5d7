package resilience

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped", fmt.Errorf("search deals: %w", NewTransientError(errors.New("rate limited"), 429)), true},
		{"permanent", NewPermanentError(errors.New("i/o timeout"), 400), false},
		{"plain", errors.New("invalid input"), false},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, true},
		{"dropped connection", &url.Error{Op: "Post", URL: "https://api.hubapi.com/crm/v3/objects/deals/search", Err: io.EOF}, true},
		{"truncated body", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), true},
		{"pattern", errors.New("Get https://api.hubapi.com: unexpected EOF"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyHTTPStatus(t *testing.T) {
	base := errors.New("hubspot: status")
	tests := []struct {
		code      int
		transient bool
		permanent bool
	}{
		{200, false, false},
		{400, false, true},
		{401, false, true},
		{403, false, true},
		{404, false, true},
		{408, true, false},
		{429, true, false},
		{500, true, false},
		{502, true, false},
		{507, true, false},
	}
	for _, tt := range tests {
		err := ClassifyHTTPStatus(tt.code, base)
		if got := IsTransient(err); got != tt.transient {
			t.Errorf("status %d: transient = %v, want %v", tt.code, got, tt.transient)
		}
		if got := IsPermanent(err); got != tt.permanent {
			t.Errorf("status %d: permanent = %v, want %v", tt.code, got, tt.permanent)
		}
		if !errors.Is(err, base) {
			t.Errorf("status %d: classification lost the wrapped error", tt.code)
		}
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(fmt.Errorf("get owner: %w", NewTransientError(errors.New("x"), 429))) {
		t.Error("expected 429 to be rate limited")
	}
	if IsRateLimited(NewTransientError(errors.New("x"), 503)) {
		t.Error("503 is not a rate limit")
	}
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	if d := ParseRetryAfter(h); d != 0 {
		t.Errorf("missing header: expected 0, got %v", d)
	}
	h.Set("Retry-After", "7")
	if d := ParseRetryAfter(h); d != 7*time.Second {
		t.Errorf("expected 7s, got %v", d)
	}
	h.Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
	if d := ParseRetryAfter(h); d != 0 {
		t.Errorf("http-date: expected 0, got %v", d)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)
	if !errors.Is(te, inner) {
		t.Error("TransientError should unwrap to its cause")
	}
	if te.Error() != "root cause" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
