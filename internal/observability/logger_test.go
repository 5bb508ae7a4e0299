package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithCorrelationID(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "given id", id: "call-42"},
		{name: "generated id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := ForComponent(zerolog.New(&buf), "transport")

			logger := WithCorrelationID(base, tt.id)
			logger.Info().Msg("connected")

			var entry map[string]string
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("Failed to decode log entry: %v", err)
			}
			if entry["component"] != "transport" {
				t.Errorf("Expected component to be kept, got %q", entry["component"])
			}
			got := entry["correlation_id"]
			if tt.id != "" && got != tt.id {
				t.Errorf("correlation_id = %q, want %q", got, tt.id)
			}
			if tt.id == "" && len(got) != 36 {
				t.Errorf("Expected a generated uuid, got %q", got)
			}
		})
	}
}
