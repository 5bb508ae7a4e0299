//go:build !whispercpp

package backend

import "fmt"

// WhisperModel is unavailable unless built with -tags whispercpp
type WhisperModel struct{}

// NewWhisperModel reports that the whisper.cpp backend was not compiled in
func NewWhisperModel(modelPath, language string, threads int) (*WhisperModel, error) {
	return nil, fmt.Errorf("whisper: %w (build with -tags whispercpp)", ErrBackendUnavailable)
}

func (m *WhisperModel) CreateStream() (Stream, error) { return nil, ErrBackendUnavailable }

func (m *WhisperModel) EnableExternalScorer(path string) error { return nil }

func (m *WhisperModel) Close() error { return nil }
