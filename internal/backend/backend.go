// Package backend defines the contract of the speech recognition engine the
// segmenter drives, and the implementations that can be selected at startup.
//
// A Model is created once per process and is read-mostly afterwards. Streams are
// per-utterance: created, fed, decoded and finished, never reused. Text returned
// by a backend is always a Go string copied out of backend-owned memory.
package backend

import (
	"context"
	"errors"
)

var (
	// ErrBackendUnavailable is returned when a backend is not compiled into the binary
	ErrBackendUnavailable = errors.New("backend: not available in this build")

	// ErrSymbolMissing is returned when a required library symbol cannot be resolved
	ErrSymbolMissing = errors.New("backend: required symbol missing")

	// ErrStreamClosed is returned when a finished or closed stream is used
	ErrStreamClosed = errors.New("backend: stream is closed")
)

// Model is a loaded recognition model
type Model interface {
	// CreateStream opens a decode stream for one utterance
	CreateStream() (Stream, error)

	// EnableExternalScorer attaches an auxiliary scorer. Backends without scorer
	// support return nil.
	EnableExternalScorer(path string) error

	// Close frees the model. Streams must be closed first.
	Close() error
}

// HealthChecker is implemented by models whose availability can change after
// they are loaded
type HealthChecker interface {
	// Ready returns an error while the model cannot open new streams
	Ready(ctx context.Context) error
}

// Stream is a single-use decode stream
type Stream interface {
	// Feed appends audio to the stream
	Feed(samples []int16) error

	// IntermediateDecode returns the current best transcript without ending the stream
	IntermediateDecode() (string, error)

	// Finish returns the final transcript and invalidates the stream
	Finish() (string, error)

	// Close frees the stream. Calling Close more than once is safe.
	Close() error
}
