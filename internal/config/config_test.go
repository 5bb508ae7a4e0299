package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.Backend != "stub" {
		t.Errorf("Expected default Backend 'stub', got '%s'", cfg.Backend)
	}
	if cfg.SpeechMode != "automatic" {
		t.Errorf("Expected default SpeechMode 'automatic', got '%s'", cfg.SpeechMode)
	}
	if cfg.SentenceTimeout != 5000 {
		t.Errorf("Expected default SentenceTimeout 5000, got %d", cfg.SentenceTimeout)
	}
	if cfg.MaxSpeechBufferSize != 480000 {
		t.Errorf("Expected default MaxSpeechBufferSize 480000, got %d", cfg.MaxSpeechBufferSize)
	}
	if cfg.InputBufferSize != 16000 {
		t.Errorf("Expected default InputBufferSize 16000, got %d", cfg.InputBufferSize)
	}
	if cfg.VADEnergyThreshold != 500.0 {
		t.Errorf("Expected default VADEnergyThreshold 500.0, got %f", cfg.VADEnergyThreshold)
	}
	if cfg.VADSilenceFrames != 10 {
		t.Errorf("Expected default VADSilenceFrames 10, got %d", cfg.VADSilenceFrames)
	}
	if cfg.CoquiLibrary != "libstt.so" {
		t.Errorf("Expected default CoquiLibrary 'libstt.so', got '%s'", cfg.CoquiLibrary)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BACKEND", "deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("SPEECH_MODE", "single_sentence")
	t.Setenv("SENTENCE_TIMEOUT_MS", "1500")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
	if cfg.SpeechMode != "single_sentence" {
		t.Errorf("Expected SpeechMode 'single_sentence', got '%s'", cfg.SpeechMode)
	}
	if cfg.SentenceTimeoutDuration() != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s sentence timeout, got %v", cfg.SentenceTimeoutDuration())
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("BACKEND", "deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error when DEEPGRAM_API_KEY is missing")
	}
	if !strings.Contains(err.Error(), "DEEPGRAM_API_KEY") {
		t.Errorf("Expected error to mention DEEPGRAM_API_KEY, got %v", err)
	}
}

func TestLoad_ModelPathRequired(t *testing.T) {
	t.Setenv("BACKEND", "coqui")

	if _, err := Load(); err == nil {
		t.Error("Expected error when MODEL_PATH is missing for coqui")
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"SPEECH_MODE":         "continuous",
		"VAD_ENGINE":          "silero",
		"BACKEND":             "vosk",
		"SENTENCE_TIMEOUT_MS": "0",
		"VAD_WEBRTC_MODE":     "7",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("Expected error for %s=%s", key, value)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("Expected error to mention %s, got %v", key, err)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := "speech_mode: manual\nvad_silence_frames: 4\nport: \"9999\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	// Environment wins over the file
	t.Setenv("PORT", "7000")
	// Keys the file sets are exported; make sure they are cleaned up
	t.Setenv("SPEECH_MODE", "")
	os.Unsetenv("SPEECH_MODE")
	t.Setenv("VAD_SILENCE_FRAMES", "")
	os.Unsetenv("VAD_SILENCE_FRAMES")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.SpeechMode != "manual" {
		t.Errorf("Expected SpeechMode 'manual' from file, got '%s'", cfg.SpeechMode)
	}
	if cfg.VADSilenceFrames != 4 {
		t.Errorf("Expected VADSilenceFrames 4 from file, got %d", cfg.VADSilenceFrames)
	}
	if cfg.Port != "7000" {
		t.Errorf("Expected Port '7000' from environment, got '%s'", cfg.Port)
	}
}

func TestLoad_ConfigFileUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("tts_voice: sonic\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unknown config key")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_KEY", "test-value")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}
	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}
}
