package segmenter

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-engine/internal/backend"
	"github.com/lexiqai/speech-engine/internal/observability"
)

var (
	// ErrModelNotInitialized is returned when no backend model is available
	ErrModelNotInitialized = errors.New("segmenter: backend model is not initialized")

	// ErrStreamCreate wraps backend failures to open a decode stream
	ErrStreamCreate = errors.New("segmenter: failed to create decode stream")

	// ErrNoSession is returned when a decode is attempted without an open stream
	ErrNoSession = errors.New("segmenter: no open decode stream")
)

// SessionManager owns the single decode stream of an engine. It is used only
// from the engine's processing step and is not safe for concurrent use.
type SessionManager struct {
	model   backend.Model
	stream  backend.Stream
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewSessionManager creates a manager without an open stream
func NewSessionManager(model backend.Model, logger zerolog.Logger, metrics *observability.Metrics) *SessionManager {
	return &SessionManager{
		model:   model,
		logger:  logger,
		metrics: metrics,
	}
}

// Create opens a stream unless one is already open. Failures are not retried.
func (m *SessionManager) Create() error {
	if m.stream != nil {
		return nil
	}
	if m.model == nil {
		return ErrModelNotInitialized
	}

	stream, err := m.model.CreateStream()
	if err == nil && stream == nil {
		err = errors.New("backend returned no stream")
	}
	m.metrics.RecordStreamCreate(err == nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamCreate, err)
	}

	m.stream = stream
	m.logger.Debug().Msg("decode stream created")
	return nil
}

// Destroy closes the open stream, if any
func (m *SessionManager) Destroy() {
	if m.stream == nil {
		return
	}
	if err := m.stream.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to close decode stream")
	}
	m.stream = nil
	m.logger.Debug().Msg("decode stream destroyed")
}

// Open reports whether a stream is open
func (m *SessionManager) Open() bool {
	return m.stream != nil
}

// Feed passes samples to the open stream
func (m *SessionManager) Feed(samples []int16) error {
	if m.stream == nil {
		return ErrNoSession
	}
	return m.stream.Feed(samples)
}

// Intermediate returns the current transcript without ending the stream
func (m *SessionManager) Intermediate() (string, error) {
	if m.stream == nil {
		return "", ErrNoSession
	}
	return m.stream.IntermediateDecode()
}

// Finish ends the stream and returns its final transcript. The stream is
// forgotten whether or not the backend succeeded.
func (m *SessionManager) Finish() (string, error) {
	if m.stream == nil {
		return "", ErrNoSession
	}
	stream := m.stream
	m.stream = nil

	text, err := stream.Finish()
	_ = stream.Close()
	m.logger.Debug().Bool("ok", err == nil).Msg("decode stream finished")
	return text, err
}
