package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the speech engine service
type Config struct {
	// Server configuration
	Port     string `envconfig:"PORT" default:"8080" yaml:"port"`
	GRPCPort string `envconfig:"GRPC_PORT" default:"9090" yaml:"grpc_port"` // gRPC health service

	// Recognition backend: stub, coqui, whisper, deepgram
	Backend       string `envconfig:"BACKEND" default:"stub" yaml:"backend"`
	ModelPath     string `envconfig:"MODEL_PATH" default:"" yaml:"model_path"`
	ScorerPath    string `envconfig:"SCORER_PATH" default:"" yaml:"scorer_path"` // Optional external scorer
	CoquiLibrary  string `envconfig:"COQUI_LIBRARY" default:"libstt.so" yaml:"coqui_library"`
	WhisperLang   string `envconfig:"WHISPER_LANGUAGE" default:"en" yaml:"whisper_language"`
	WhisperThread int    `envconfig:"WHISPER_THREADS" default:"0" yaml:"whisper_threads"` // 0 lets whisper.cpp decide

	// Deepgram live API (BACKEND=deepgram)
	DeepgramAPIKey          string `envconfig:"DEEPGRAM_API_KEY" default:"" yaml:"deepgram_api_key"`
	DeepgramModel           string `envconfig:"DEEPGRAM_MODEL" default:"nova-2" yaml:"deepgram_model"`
	DeepgramLanguage        string `envconfig:"DEEPGRAM_LANGUAGE" default:"en" yaml:"deepgram_language"`
	DeepgramFinalizeTimeout int    `envconfig:"DEEPGRAM_FINALIZE_TIMEOUT" default:"2000" yaml:"deepgram_finalize_timeout"` // milliseconds

	// Segmentation
	SpeechMode          string `envconfig:"SPEECH_MODE" default:"automatic" yaml:"speech_mode"`          // manual, single_sentence, automatic
	SentenceTimeout     int    `envconfig:"SENTENCE_TIMEOUT_MS" default:"5000" yaml:"sentence_timeout_ms"` // milliseconds
	MaxSpeechBufferSize int    `envconfig:"MAX_SPEECH_BUFFER_SIZE" default:"480000" yaml:"max_speech_buffer_size"` // samples reserved for one utterance
	InputBufferSize     int    `envconfig:"INPUT_BUFFER_SIZE" default:"16000" yaml:"input_buffer_size"`    // samples in the shared input slot
	SampleRate          int    `envconfig:"SAMPLE_RATE" default:"16000" yaml:"sample_rate"`

	// Voice activity detection
	VADEngine          string  `envconfig:"VAD_ENGINE" default:"energy" yaml:"vad_engine"` // energy, webrtc
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0" yaml:"vad_energy_threshold"`
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"10" yaml:"vad_silence_frames"` // hangover frames kept after speech
	VADFrameSize       int     `envconfig:"VAD_FRAME_SIZE" default:"320" yaml:"vad_frame_size"`       // samples per VAD frame
	VADWebRTCMode      int     `envconfig:"VAD_WEBRTC_MODE" default:"2" yaml:"vad_webrtc_mode"`       // 0-3

	// Resilience configuration (network backends only, never retried)
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5" yaml:"circuit_breaker_max_failures"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30" yaml:"circuit_breaker_reset_timeout"` // seconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false" yaml:"log_pretty"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true" yaml:"metrics_enabled"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment.
// When CONFIG_FILE points at a YAML file, its values are applied as the
// environment before envconfig runs, so real environment variables win.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyFile exports the YAML file's keys as environment variables that are not
// already set
func applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("config: decode %q: %w", path, err)
	}

	for key, value := range values {
		envKey := envNameFor(key)
		if envKey == "" {
			return fmt.Errorf("config: unknown key %q in %q", key, path)
		}
		if _, set := os.LookupEnv(envKey); set {
			continue
		}
		if err := os.Setenv(envKey, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("config: set %s: %w", envKey, err)
		}
	}
	return nil
}

// envNameFor maps a YAML key to the environment variable of the same field
func envNameFor(yamlKey string) string {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("yaml") == yamlKey {
			return f.Tag.Get("envconfig")
		}
	}
	return ""
}

// Validate checks enumerations, sizes and backend specific requirements
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case "stub":
	case "coqui", "whisper":
		if strings.TrimSpace(c.ModelPath) == "" {
			errs = append(errs, fmt.Errorf("MODEL_PATH is required for backend %q", c.Backend))
		}
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			errs = append(errs, fmt.Errorf("DEEPGRAM_API_KEY is required for backend %q", c.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("BACKEND %q is invalid; valid values: stub, coqui, whisper, deepgram", c.Backend))
	}

	switch c.SpeechMode {
	case "manual", "single_sentence", "automatic":
	default:
		errs = append(errs, fmt.Errorf("SPEECH_MODE %q is invalid; valid values: manual, single_sentence, automatic", c.SpeechMode))
	}

	switch c.VADEngine {
	case "energy", "webrtc":
	default:
		errs = append(errs, fmt.Errorf("VAD_ENGINE %q is invalid; valid values: energy, webrtc", c.VADEngine))
	}

	if c.SentenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SENTENCE_TIMEOUT_MS must be > 0, got %d", c.SentenceTimeout))
	}
	if c.MaxSpeechBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_SPEECH_BUFFER_SIZE must be > 0, got %d", c.MaxSpeechBufferSize))
	}
	if c.InputBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("INPUT_BUFFER_SIZE must be > 0, got %d", c.InputBufferSize))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("SAMPLE_RATE must be > 0, got %d", c.SampleRate))
	}
	if c.VADFrameSize <= 0 {
		errs = append(errs, fmt.Errorf("VAD_FRAME_SIZE must be > 0, got %d", c.VADFrameSize))
	}
	if c.VADSilenceFrames < 0 {
		errs = append(errs, fmt.Errorf("VAD_SILENCE_FRAMES must be >= 0, got %d", c.VADSilenceFrames))
	}
	if c.VADWebRTCMode < 0 || c.VADWebRTCMode > 3 {
		errs = append(errs, fmt.Errorf("VAD_WEBRTC_MODE must be within 0-3, got %d", c.VADWebRTCMode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SentenceTimeoutDuration returns the sentence timeout as a duration
func (c *Config) SentenceTimeoutDuration() time.Duration {
	return time.Duration(c.SentenceTimeout) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
