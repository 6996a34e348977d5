package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "warn", "text")
	defer Init("info", "text")

	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Warn("game %s aborted", "g1")
	Error("flush failed")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level lines written: %q", out)
	}
	if !strings.Contains(out, "[WARN] game g1 aborted") || !strings.Contains(out, "[ERROR] flush failed") {
		t.Errorf("missing lines: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug", "json")
	defer Init("info", "text")

	Debug("stored %d snapshots", 18)
	var line map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("not JSON: %q (%v)", buf.String(), err)
	}
	if line["level"] != "debug" || line["msg"] != "stored 18 snapshots" {
		t.Errorf("line = %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"DEBUG": DebugLevel, "warn": WarnLevel, "error": ErrorLevel, "bogus": InfoLevel} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
