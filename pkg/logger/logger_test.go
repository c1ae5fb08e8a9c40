package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelDebug, false)

	l.Info("timer paused",
		Int64("timer_id", 42),
		String("action", "pause"),
		Duration("took", 150*time.Millisecond),
		Error(errors.New("boom")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}

	if entry["message"] != "timer paused" {
		t.Errorf("message = %v, want %q", entry["message"], "timer paused")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["timer_id"] != float64(42) {
		t.Errorf("timer_id = %v, want 42", entry["timer_id"])
	}
	if entry["action"] != "pause" {
		t.Errorf("action = %v, want pause", entry["action"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelWarn, false)

	l.Debug("hidden")
	l.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	l.Warn("visible")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}

	buf.Reset()
	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	if buf.Len() == 0 {
		t.Fatal("expected debug output after SetLevel")
	}
}

func TestFieldLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelInfo, false).WithFields(String("component", "engine"))

	l.Info("tick", Int("records", 3))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "engine" || entry["records"] != float64(3) {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
