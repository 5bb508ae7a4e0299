//go:build !coqui

package backend

import "fmt"

// CoquiModel is unavailable unless built with -tags coqui
type CoquiModel struct{}

// NewCoquiModel reports that the Coqui backend was not compiled in
func NewCoquiModel(libraryPath, modelPath string) (*CoquiModel, error) {
	return nil, fmt.Errorf("coqui: %w (build with -tags coqui)", ErrBackendUnavailable)
}

func (m *CoquiModel) CreateStream() (Stream, error) { return nil, ErrBackendUnavailable }

func (m *CoquiModel) EnableExternalScorer(path string) error { return ErrBackendUnavailable }

func (m *CoquiModel) Close() error { return nil }
