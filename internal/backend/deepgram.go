package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-engine/internal/audio"
	"github.com/lexiqai/speech-engine/internal/config"
	"github.com/lexiqai/speech-engine/internal/resilience"
)

// messageCallbackHandler embeds the default handler and overrides only the
// methods a stream needs
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	stream *deepgramStream
}

// Message records interim and final transcripts
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.stream.handleMessage(message)
	return nil
}

// Error marks the stream failed; it is not reconnected
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	m.stream.handleError(errorResponse)
	return nil
}

// Close signals that Deepgram has delivered everything for the stream
func (m *messageCallbackHandler) Close(closeResponse *msginterfaces.CloseResponse) error {
	m.stream.markClosed()
	return nil
}

// DeepgramModel opens one Deepgram live transcription socket per stream
type DeepgramModel struct {
	config         *config.Config
	logger         zerolog.Logger
	circuitBreaker *resilience.CircuitBreaker
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewDeepgramModel creates a Deepgram backend. No connection is made until a
// stream is created.
func NewDeepgramModel(cfg *config.Config, logger zerolog.Logger) (*DeepgramModel, error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, errors.New("deepgram: api key is required")
	}

	listenClient.InitWithDefault()

	ctx, cancel := context.WithCancel(context.Background())
	return &DeepgramModel{
		config: cfg,
		logger: logger.With().Str("component", "backend.deepgram").Logger(),
		circuitBreaker: resilience.NewCircuitBreaker(
			"deepgram",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// CreateStream implements Model. Failures count against the circuit breaker
// and are never retried.
func (m *DeepgramModel) CreateStream() (Stream, error) {
	var stream *deepgramStream
	err := m.circuitBreaker.Call(func() error {
		s, err := m.connect()
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: create stream: %w", err)
	}
	return stream, nil
}

func (m *DeepgramModel) connect() (*deepgramStream, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          m.config.DeepgramModel,
		Language:       m.config.DeepgramLanguage,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     m.config.SampleRate,
	}

	stream := &deepgramStream{
		logger:          m.logger,
		closedCh:        make(chan struct{}),
		finalizeTimeout: time.Duration(m.config.DeepgramFinalizeTimeout) * time.Millisecond,
	}
	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		stream:                 stream,
	}

	client, err := listenClient.NewWSUsingCallback(m.ctx, m.config.DeepgramAPIKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		return nil, errors.New("failed to connect to Deepgram")
	}
	stream.client = client

	m.logger.Debug().
		Str("model", m.config.DeepgramModel).
		Str("language", m.config.DeepgramLanguage).
		Msg("deepgram stream opened")
	return stream, nil
}

// Ready implements HealthChecker. The model is unavailable while the circuit
// breaker is open.
func (m *DeepgramModel) Ready(ctx context.Context) error {
	state, requests, failures, rate := m.circuitBreaker.GetStats()
	if state == resilience.StateOpen {
		return fmt.Errorf("deepgram: circuit open, %d of %d stream requests failed (%.1f%%)", failures, requests, rate)
	}
	return nil
}

// EnableExternalScorer implements Model. Deepgram has no external scorer.
func (m *DeepgramModel) EnableExternalScorer(path string) error {
	return nil
}

// Close implements Model
func (m *DeepgramModel) Close() error {
	m.cancel()
	return nil
}

// deepgramStream accumulates Deepgram results. The transcript is every final
// segment followed by the latest interim one.
type deepgramStream struct {
	logger          zerolog.Logger
	client          *listenClient.WSCallback
	finalizeTimeout time.Duration

	mu       sync.Mutex
	finals   []string
	interim  string
	err      error
	finished bool

	closeOnce sync.Once
	closedCh  chan struct{}
}

func (s *deepgramStream) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return
	}
	text := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript)

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.IsFinal {
		if text != "" {
			s.finals = append(s.finals, text)
		}
		s.interim = ""
		return
	}
	s.interim = text
}

func (s *deepgramStream) handleError(errorResponse *msginterfaces.ErrorResponse) {
	s.logger.Error().Interface("response", errorResponse).Msg("deepgram stream error")

	s.mu.Lock()
	if s.err == nil {
		s.err = errors.New("deepgram: stream reported an error")
	}
	s.mu.Unlock()
	s.markClosed()
}

func (s *deepgramStream) markClosed() {
	s.closeOnce.Do(func() { close(s.closedCh) })
}

func (s *deepgramStream) transcript() string {
	parts := make([]string, 0, len(s.finals)+1)
	parts = append(parts, s.finals...)
	if s.interim != "" {
		parts = append(parts, s.interim)
	}
	return strings.Join(parts, " ")
}

func (s *deepgramStream) Feed(samples []int16) error {
	s.mu.Lock()
	finished, err := s.finished, s.err
	s.mu.Unlock()
	if finished {
		return ErrStreamClosed
	}
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	if _, err := s.client.Write(audio.EncodePCM16(samples)); err != nil {
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	return nil
}

func (s *deepgramStream) IntermediateDecode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return "", ErrStreamClosed
	}
	if s.err != nil {
		return "", s.err
	}
	return s.transcript(), nil
}

// Finish asks Deepgram to flush and waits for the socket to close, bounded by
// the finalize timeout
func (s *deepgramStream) Finish() (string, error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return "", ErrStreamClosed
	}
	s.finished = true
	s.mu.Unlock()

	s.client.Finish()

	select {
	case <-s.closedCh:
	case <-time.After(s.finalizeTimeout):
		s.logger.Warn().Dur("timeout", s.finalizeTimeout).Msg("deepgram did not close in time, using partial transcript")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.transcript(), nil
}

func (s *deepgramStream) Close() error {
	s.mu.Lock()
	already := s.finished
	s.finished = true
	s.mu.Unlock()

	if !already && s.client != nil {
		s.client.Finish()
	}
	s.markClosed()
	return nil
}
