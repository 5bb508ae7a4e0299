//go:build whispercpp

// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.

package backend

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/lexiqai/speech-engine/internal/audio"
)

// WhisperModel runs whisper.cpp over the audio accumulated by each stream.
// Whisper is not a streaming recognizer, so intermediate decodes re-run the
// model over everything fed so far.
type WhisperModel struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
	threads  int
}

// NewWhisperModel loads the ggml model at modelPath
func NewWhisperModel(modelPath, language string, threads int) (*WhisperModel, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	if language == "" {
		language = "en"
	}
	return &WhisperModel{model: model, language: language, threads: threads}, nil
}

// CreateStream implements Model
func (m *WhisperModel) CreateStream() (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return nil, errors.New("whisper: model is closed")
	}
	return &whisperStream{model: m}, nil
}

// EnableExternalScorer implements Model. Whisper has no external scorer.
func (m *WhisperModel) EnableExternalScorer(path string) error {
	return nil
}

// Close implements Model
func (m *WhisperModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return nil
	}
	err := m.model.Close()
	m.model = nil
	return err
}

// transcribe runs one whisper pass over samples
func (m *WhisperModel) transcribe(samples []float32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return "", errors.New("whisper: model is closed")
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: new context: %w", err)
	}
	if err := wctx.SetLanguage(m.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", m.language, err)
	}
	if m.threads > 0 {
		wctx.SetThreads(uint(m.threads))
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: next segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

type whisperStream struct {
	model   *WhisperModel
	samples []float32
	closed  bool

	// last intermediate result and the sample count it covered
	cached     string
	cachedSize int
}

func (s *whisperStream) Feed(samples []int16) error {
	if s.closed {
		return ErrStreamClosed
	}
	s.samples = append(s.samples, audio.SamplesToFloat32(samples)...)
	return nil
}

func (s *whisperStream) IntermediateDecode() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	if len(s.samples) == 0 {
		return "", nil
	}
	if len(s.samples) == s.cachedSize {
		return s.cached, nil
	}
	text, err := s.model.transcribe(s.samples)
	if err != nil {
		return "", err
	}
	s.cached, s.cachedSize = text, len(s.samples)
	return text, nil
}

func (s *whisperStream) Finish() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	defer s.Close()
	if len(s.samples) == 0 {
		return "", nil
	}
	if len(s.samples) == s.cachedSize {
		return s.cached, nil
	}
	return s.model.transcribe(s.samples)
}

func (s *whisperStream) Close() error {
	s.closed = true
	s.samples = nil
	return nil
}
