// Package transport exposes the segmentation engine over WebSocket. Each
// connection streams audio in and receives engine events back as JSON.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-engine/internal/audio"
	"github.com/lexiqai/speech-engine/internal/backend"
	"github.com/lexiqai/speech-engine/internal/config"
	"github.com/lexiqai/speech-engine/internal/observability"
	"github.com/lexiqai/speech-engine/internal/segmenter"
)

// maxMessageSize bounds a single audio or control message
const maxMessageSize = 1 << 20

// ControlMessage is a text message from the client
type ControlMessage struct {
	Event   string `json:"event"`             // start, stop, reset, speech
	Started *bool  `json:"started,omitempty"` // speech: open or close a manual utterance
}

// EventMessage is sent to the client for every engine callback
type EventMessage struct {
	Event  string `json:"event"` // status, text, flush, sentence_timeout, error
	Status string `json:"status,omitempty"`
	Text   string `json:"text,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StreamHandler upgrades requests to WebSocket audio streams. All streams share
// one loaded model; each gets its own engine.
type StreamHandler struct {
	config   *config.Config
	model    backend.Model
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	active   atomic.Int64
}

// NewStreamHandler creates a handler serving streams over model
func NewStreamHandler(cfg *config.Config, model backend.Model, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		config: cfg,
		model:  model,
		logger: observability.ForComponent(logger, "transport"),
		upgrader: websocket.Upgrader{
			// Origin checks are left to the fronting proxy
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ActiveStreams returns the number of open streams
func (h *StreamHandler) ActiveStreams() int64 {
	return h.active.Load()
}

// streamParams are the per-connection query parameters
type streamParams struct {
	mode       segmenter.SpeechMode
	encoding   string
	sampleRate int
}

func (h *StreamHandler) parseParams(r *http.Request) (streamParams, error) {
	q := r.URL.Query()

	modeName := q.Get("mode")
	if modeName == "" {
		modeName = h.config.SpeechMode
	}
	mode, err := segmenter.ParseSpeechMode(modeName)
	if err != nil {
		return streamParams{}, err
	}

	encoding := q.Get("encoding")
	if encoding == "" {
		encoding = "pcm16"
	}
	if encoding != "pcm16" && encoding != "mulaw" {
		return streamParams{}, fmt.Errorf("unsupported encoding %q", encoding)
	}

	sampleRate := h.config.SampleRate
	if encoding == "mulaw" {
		sampleRate = 8000
	}
	if raw := q.Get("sample_rate"); raw != "" {
		sampleRate, err = strconv.Atoi(raw)
		if err != nil || sampleRate <= 0 {
			return streamParams{}, fmt.Errorf("invalid sample_rate %q", raw)
		}
	}

	return streamParams{mode: mode, encoding: encoding, sampleRate: sampleRate}, nil
}

// ServeHTTP implements http.Handler
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Warn().Err(err).Msg("failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	session, err := h.newSession(conn, r, params)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create stream session")
		_ = conn.WriteJSON(EventMessage{Event: "error", Error: err.Error()})
		return
	}

	h.active.Add(1)
	defer h.active.Add(-1)

	session.run(r.Context())
}

// streamSession is the state of one WebSocket stream
type streamSession struct {
	conn    *websocket.Conn
	engine  *segmenter.Engine
	params  streamParams
	rate    int // engine sample rate
	logger  zerolog.Logger
	metrics *observability.Metrics

	writeMu sync.Mutex
}

func (h *StreamHandler) newSession(conn *websocket.Conn, r *http.Request, params streamParams) (*streamSession, error) {
	logger := observability.WithCorrelationID(h.logger, r.Header.Get("X-Correlation-ID"))
	logger = logger.With().Str("mode", params.mode.String()).Logger()

	vad, err := audio.NewVAD(&audio.VADConfig{
		Engine:          h.config.VADEngine,
		SampleRate:      h.config.SampleRate,
		EnergyThreshold: h.config.VADEnergyThreshold,
		SilenceFrames:   h.config.VADSilenceFrames,
		FrameSize:       h.config.VADFrameSize,
		WebRTCMode:      h.config.VADWebRTCMode,
	})
	if err != nil {
		return nil, fmt.Errorf("create vad: %w", err)
	}

	opts, err := segmenter.OptionsFromConfig(h.config)
	if err != nil {
		return nil, err
	}
	opts.Mode = params.mode

	s := &streamSession{
		conn:   conn,
		params: params,
		rate:   h.config.SampleRate,
		logger: logger,
	}
	if h.config.MetricsEnabled {
		s.metrics = observability.NewEngineMetrics(params.mode.String())
	}

	engine, err := segmenter.New(h.model, vad, opts, s.callbacks(), logger)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	s.engine = engine

	return s, nil
}

func (s *streamSession) callbacks() segmenter.Callbacks {
	return segmenter.Callbacks{
		OnStatusChanged: func(status segmenter.SpeechStatus) {
			s.send(EventMessage{Event: "status", Status: status.String()})
		},
		OnIntermediateText: func(text string) {
			s.send(EventMessage{Event: "text", Text: text})
		},
		OnSentenceTimeout: func() {
			s.send(EventMessage{Event: "sentence_timeout"})
		},
		OnFlush: func(kind segmenter.FlushKind) {
			s.send(EventMessage{Event: "flush", Kind: kind.String()})
		},
		OnError: func(err error) {
			s.send(EventMessage{Event: "error", Error: err.Error()})
		},
	}
}

// send writes one event. gorilla connections allow a single concurrent writer.
func (s *streamSession) send(msg EventMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Debug().Err(err).Str("event", msg.Event).Msg("failed to send event")
	}
}

func (s *streamSession) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if err := s.engine.Start(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to start engine")
		return
	}
	defer s.engine.Stop()

	s.logger.Info().
		Str("encoding", s.params.encoding).
		Int("sample_rate", s.params.sampleRate).
		Msg("audio stream connected")

	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			s.logger.Info().Msg("audio stream disconnected")
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			err = s.handleAudio(ctx, message)
		case websocket.TextMessage:
			err = s.handleControl(ctx, message)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn().Err(err).Msg("failed to handle message")
			s.metrics.RecordError("message_error", "transport")
			s.send(EventMessage{Event: "error", Error: err.Error()})
		}
	}
}

func (s *streamSession) handleAudio(ctx context.Context, payload []byte) error {
	var samples []int16
	switch s.params.encoding {
	case "mulaw":
		var err error
		samples, err = audio.ConvertPCMUToPCM(payload)
		if err != nil {
			return err
		}
	default:
		samples = audio.DecodePCM16(payload)
	}

	samples = audio.Resample(samples, s.params.sampleRate, s.rate)
	return s.engine.DepositWait(ctx, samples, false, false)
}

func (s *streamSession) handleControl(ctx context.Context, payload []byte) error {
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("invalid control message: %w", err)
	}

	switch msg.Event {
	case "start":
		return s.engine.DepositWait(ctx, nil, true, false)
	case "stop":
		return s.engine.DepositWait(ctx, nil, false, true)
	case "reset":
		s.engine.Reset()
		return nil
	case "speech":
		if msg.Started == nil {
			return errors.New("speech event requires \"started\"")
		}
		s.engine.SetSpeechStarted(*msg.Started)
		return nil
	default:
		return fmt.Errorf("unknown control event %q", msg.Event)
	}
}
