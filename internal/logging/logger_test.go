package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"Error", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNewTextFormat(t *testing.T) {
	logger, closeFn, err := New(Options{Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.WithField("component", "capture").Debug("started")

	out := buf.String()
	if !strings.Contains(out, "started") || !strings.Contains(out, "capture") {
		t.Errorf("unexpected log line: %q", out)
	}
}

func TestNewJSONFormat(t *testing.T) {
	logger, closeFn, err := New(Options{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.WithField("packets", 3).Info("capture complete")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "capture complete" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["packets"] != float64(3) {
		t.Errorf("packets = %v", entry["packets"])
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.log")
	logger, closeFn, err := New(Options{Level: "info", FilePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Warn("suspicious traffic")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "suspicious traffic") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected an error for a bad level")
	}
	bad := filepath.Join(t.TempDir(), "missing", "ids.log")
	if _, _, err := New(Options{FilePath: bad}); err == nil {
		t.Error("expected an error for an unwritable log path")
	}
}
