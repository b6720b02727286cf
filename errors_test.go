package fabrik

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "without underlying error",
			err:  &Error{Op: "Gateway.Generate", Kind: KindNetwork},
			want: []string{"fabrik:", "Gateway.Generate", KindNetwork},
		},
		{
			name: "with underlying error",
			err:  &Error{Op: "Store.SaveRun", Kind: KindStorage, Err: errors.New("disk full")},
			want: []string{"Store.SaveRun", KindStorage, "disk full"},
		},
		{
			name: "with context",
			err: &Error{
				Op:      "HTTPAdapter.Send",
				Kind:    KindNetwork,
				Err:     ErrTransport,
				Context: map[string]any{"status": 502},
			},
			want: []string{"HTTPAdapter.Send", "502"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, fragment := range tt.want {
				if !strings.Contains(got, fragment) {
					t.Errorf("Error() = %q, missing %q", got, fragment)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := NewAuthError("SessionGateway.loadToken",
		fmt.Errorf("%w: run `codex login`", ErrAuthExpired))

	if !errors.Is(err, ErrAuthExpired) {
		t.Error("errors.Is should find the sentinel through wrapping")
	}

	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatal("errors.As should extract *Error")
	}
	if typed.Kind != KindAuth {
		t.Errorf("Kind = %q, want %q", typed.Kind, KindAuth)
	}
}

func TestError_Is_KindMatching(t *testing.T) {
	err := NewTimeoutError("Runner.runOnce", ErrScenarioTimeout)

	if !errors.Is(err, &Error{Kind: KindTimeout}) {
		t.Error("kind-only target should match")
	}
	if !errors.Is(err, &Error{Op: "Runner.runOnce", Kind: KindTimeout}) {
		t.Error("op+kind target should match")
	}
	if errors.Is(err, &Error{Kind: KindNetwork}) {
		t.Error("different kind should not match")
	}
	if errors.Is(err, &Error{Op: "Other.op", Kind: KindTimeout}) {
		t.Error("different op should not match")
	}
}

func TestError_WithContext(t *testing.T) {
	base := NewNetworkError("HTTPAdapter.Send", ErrTransport)
	enriched := base.WithContext(map[string]any{"url": "http://x"})

	if base.Context != nil {
		t.Error("WithContext must not mutate the receiver")
	}
	if enriched.Context["url"] != "http://x" {
		t.Error("context not added")
	}

	twice := enriched.WithContext(map[string]any{"status": 502})
	if twice.Context["url"] != "http://x" || twice.Context["status"] != 502 {
		t.Errorf("contexts should merge, got %+v", twice.Context)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		kind string
	}{
		{NewNetworkError("op", nil), KindNetwork},
		{NewAuthError("op", nil), KindAuth},
		{NewTimeoutError("op", nil), KindTimeout},
		{NewValidationError("op", nil), KindValidation},
		{NewExecutionError("op", nil), KindExecution},
		{NewConfigurationError("op", nil), KindConfiguration},
		{NewStorageError("op", nil), KindStorage},
		{NewInternalError("op", nil), KindInternal},
	}

	for _, tt := range tests {
		if tt.err.Kind != tt.kind {
			t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.kind)
		}
	}
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("close failed") }

type okCloser struct{ closed bool }

func (c *okCloser) Close() error { c.closed = true; return nil }

func TestCloseWithLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	CloseWithLog(failingCloser{}, logger, "trace store")
	if !strings.Contains(buf.String(), "trace store") {
		t.Errorf("expected warning naming the resource, log: %s", buf.String())
	}

	c := &okCloser{}
	CloseWithLog(c, nil, "ok resource")
	if !c.closed {
		t.Error("closer not closed")
	}

	// Nil closer must not panic.
	CloseWithLog(nil, logger, "nothing")
}
