package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

// Not parallel: both tests swap the global logger.
func TestInitWriterJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, Config{Service: "svc-a"})
	log.Debug().Msg("hidden")
	log.Info().Str("agent", "tax_optimizer").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the info line, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["service"] != "svc-a" || entry["agent"] != "tax_optimizer" || entry["message"] != "visible" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestInitWriterDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, Config{Debug: true})
	log.Debug().Msg("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("debug line missing: %s", buf.String())
	}
}
