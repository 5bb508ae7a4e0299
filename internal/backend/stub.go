package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// StubModel produces deterministic transcripts without a recognition model.
// Useful for exercising the pipeline end to end.
type StubModel struct {
	logger zerolog.Logger

	mu      sync.Mutex
	scorer  string
	streams int
	closed  bool
}

// NewStubModel returns a Model whose streams describe the audio they were fed
func NewStubModel(logger zerolog.Logger) *StubModel {
	return &StubModel{
		logger: logger.With().Str("component", "backend.stub").Logger(),
	}
}

// CreateStream implements Model
func (m *StubModel) CreateStream() (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("backend: stub model is closed")
	}
	m.streams++
	return &stubStream{id: m.streams, logger: m.logger}, nil
}

// EnableExternalScorer implements Model
func (m *StubModel) EnableExternalScorer(path string) error {
	m.mu.Lock()
	m.scorer = path
	m.mu.Unlock()
	return nil
}

// Ready implements HealthChecker
func (m *StubModel) Ready(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("backend: stub model is closed")
	}
	return nil
}

// Close implements Model
func (m *StubModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type stubStream struct {
	id      int
	logger  zerolog.Logger
	samples int
	closed  bool
}

func (s *stubStream) Feed(samples []int16) error {
	if s.closed {
		return ErrStreamClosed
	}
	s.samples += len(samples)
	return nil
}

func (s *stubStream) IntermediateDecode() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	return s.text(), nil
}

func (s *stubStream) Finish() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	text := s.text()
	s.closed = true
	s.logger.Debug().Int("stream", s.id).Int("samples", s.samples).Msg("stub stream finished")
	return text, nil
}

func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

func (s *stubStream) text() string {
	if s.samples == 0 {
		return ""
	}
	return fmt.Sprintf("[stub] utterance %d: %d samples", s.id, s.samples)
}
