//go:build !coqui && !whispercpp

package backend

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-engine/internal/config"
)

func TestNativeBackendsUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		backend string
	}{
		{"coqui", "coqui"},
		{"whisper", "whisper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Backend: tt.backend, ModelPath: "/models/model.bin"}
			model, err := New(cfg, zerolog.Nop())
			if !errors.Is(err, ErrBackendUnavailable) {
				t.Fatalf("Expected ErrBackendUnavailable, got %v", err)
			}
			if model != nil {
				t.Errorf("Expected nil model, got %T", model)
			}
		})
	}
}
