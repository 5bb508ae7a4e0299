package backend

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-engine/internal/config"
)

// New loads the model of the configured backend. Failures are returned as is;
// no partially initialised model is ever handed out.
func New(cfg *config.Config, logger zerolog.Logger) (Model, error) {
	var (
		model Model
		err   error
	)

	switch cfg.Backend {
	case "stub":
		model = NewStubModel(logger)
	case "coqui":
		model, err = NewCoquiModel(cfg.CoquiLibrary, cfg.ModelPath)
	case "whisper":
		model, err = NewWhisperModel(cfg.ModelPath, cfg.WhisperLang, cfg.WhisperThread)
	case "deepgram":
		model, err = NewDeepgramModel(cfg, logger)
	default:
		return nil, fmt.Errorf("backend: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("backend: create %s model: %w", cfg.Backend, err)
	}

	if cfg.ScorerPath != "" {
		// Best effort: a missing scorer degrades accuracy but not function
		if err := model.EnableExternalScorer(cfg.ScorerPath); err != nil {
			logger.Warn().Err(err).Str("scorer_path", cfg.ScorerPath).Msg("failed to enable external scorer")
		}
	}

	logger.Info().
		Str("backend", cfg.Backend).
		Str("model_path", cfg.ModelPath).
		Msg("recognition model ready")

	return model, nil
}
