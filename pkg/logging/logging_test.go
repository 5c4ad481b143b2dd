package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info(context.Background(), "dropped")
	log.With(String("component", "bridge")).Warn(context.Background(), "slow query",
		Int("routes", 3), Float("ms", 12.5), Err(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at warn level, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if rec["msg"] != "slow query" || rec["component"] != "bridge" || rec["error"] != "boom" {
		t.Errorf("unexpected record: %v", rec)
	}
	if rec["routes"] != float64(3) || rec["ms"] != 12.5 {
		t.Errorf("unexpected numeric fields: %v", rec)
	}
}

func TestNew_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf}).Info(context.Background(), "hello", String("k", "v"))
	if out := buf.String(); !strings.Contains(out, "msg=hello") || !strings.Contains(out, "k=v") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var buf bytes.Buffer
	log := NewFromEnv(Config{Level: "debug", Output: &buf})
	log.Warn(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("LOG_LEVEL should override the default, got %q", buf.String())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, l := WithRequestLogger(context.Background(), base)
	id := RequestIDFromContext(ctx)
	if len(id) != 36 {
		t.Fatalf("expected a uuid request id, got %q", id)
	}
	if again, _ := EnsureRequestID(ctx); RequestIDFromContext(again) != id {
		t.Error("existing request id should be kept")
	}
	if FromContext(ctx, nil) != l {
		t.Error("request logger should be stored on the context")
	}
	FromContext(ctx, nil).Info(ctx, "served")
	if !strings.Contains(buf.String(), id) {
		t.Errorf("log line should carry the request id: %q", buf.String())
	}

	if FromContext(context.Background(), nil) == nil {
		t.Error("missing logger should fall back to noop")
	}
}
