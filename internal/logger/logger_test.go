package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitWithWriterTextFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	Info("hello", "lcid", "drb1")

	out := buf.String()
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "lcid=drb1") {
		t.Fatalf("expected attribute in output, got %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("InitWithWriter output must never be colorized, got %q", out)
	}
}

func TestInitWithWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")

	Info("should be dropped")
	Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("info message leaked below configured level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn message missing: %q", out)
	}
}

func TestInitWithWriterJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")

	Info("pdu delivered", "bytes", 42)

	var decoded map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", line, err)
	}
	if decoded["msg"] != "pdu delivered" {
		t.Fatalf("unexpected msg field: %v", decoded["msg"])
	}
}

func TestColorTextHandlerOmitsEscapesWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	h := newColorTextHandler(&buf, nil, false)
	slog.New(h).Info("plain", "key", "value")

	if strings.Contains(buf.String(), "\033[") {
		t.Fatalf("useColor=false must never emit ANSI escapes, got %q", buf.String())
	}
}

func TestColorTextHandlerEmitsEscapesWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	h := newColorTextHandler(&buf, nil, true)
	slog.New(h).Info("colorized", "key", "value")

	if !strings.Contains(buf.String(), "\033[") {
		t.Fatalf("useColor=true should emit ANSI escapes, got %q", buf.String())
	}
}
