package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONWithServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	root := New(Options{Level: "debug", Output: &buf, Service: "adminauth"})

	auth := Component(root, "auth")
	auth.Info().Str("account_id", "u-1").Msg("account registered")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "adminauth" || entry["component"] != "auth" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if entry["message"] != "account registered" || entry["level"] != "info" || entry["account_id"] != "u-1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := New(Options{Level: "error", Output: &buf})
	log.Warn().Msg("dropped")
	log.Error().Msg("kept")

	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("level filtering wrong: %q", buf.String())
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := New(Options{Format: "console", Output: &buf})
	log.Info().Msg("hello")

	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("console output should not be JSON: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("message missing: %q", buf.String())
	}
}

func TestLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := Level(in); got != want {
			t.Fatalf("Level(%q) = %s, want %s", in, got, want)
		}
	}
}
