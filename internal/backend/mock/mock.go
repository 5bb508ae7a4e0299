// Package mock provides test doubles for the backend package interfaces.
//
// Use Model to inject stream creation errors and to inspect every Stream that
// was handed out. Streams return the texts configured on the Model at the time
// they were created.
//
// Example:
//
//	model := &mock.Model{IntermediateText: "hello", FinalText: "hello world"}
//	stream, _ := model.CreateStream()
package mock

import (
	"sync"

	"github.com/lexiqai/speech-engine/internal/backend"
)

// Model is a mock implementation of backend.Model.
type Model struct {
	mu sync.Mutex

	// IntermediateText is returned by IntermediateDecode when TextFunc is nil.
	IntermediateText string

	// FinalText is returned by Finish when TextFunc is nil.
	FinalText string

	// TextFunc, if set, computes the transcript from the number of samples fed
	// so far. It is used for both intermediate and final decodes.
	TextFunc func(samples int) string

	// CreateStreamErr, if non-nil, is returned by CreateStream.
	CreateStreamErr error

	// FeedErr, IntermediateErr and FinishErr are copied into every new Stream.
	FeedErr         error
	IntermediateErr error
	FinishErr       error

	// ScorerErr, if non-nil, is returned by EnableExternalScorer.
	ScorerErr error

	// --- Call records ---

	// Streams holds every stream returned by CreateStream in order.
	Streams []*Stream

	// CreateStreamCalls is the number of times CreateStream was called.
	CreateStreamCalls int

	// ScorerPaths records every path passed to EnableExternalScorer.
	ScorerPaths []string

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// CreateStream records the call and returns a new Stream or CreateStreamErr.
func (m *Model) CreateStream() (backend.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateStreamCalls++
	if m.CreateStreamErr != nil {
		return nil, m.CreateStreamErr
	}
	s := &Stream{
		intermediateText: m.IntermediateText,
		finalText:        m.FinalText,
		textFunc:         m.TextFunc,
		FeedErr:          m.FeedErr,
		IntermediateErr:  m.IntermediateErr,
		FinishErr:        m.FinishErr,
	}
	m.Streams = append(m.Streams, s)
	return s, nil
}

// EnableExternalScorer records the path and returns ScorerErr.
func (m *Model) EnableExternalScorer(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScorerPaths = append(m.ScorerPaths, path)
	return m.ScorerErr
}

// Close records the call.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCallCount++
	return nil
}

// StreamCount returns the number of streams created so far. Thread-safe.
func (m *Model) StreamCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Streams)
}

// Stream returns the i-th created stream. Thread-safe.
func (m *Model) Stream(i int) *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Streams[i]
}

// Ensure Model implements backend.Model at compile time.
var _ backend.Model = (*Model)(nil)

// Stream is a mock implementation of backend.Stream.
type Stream struct {
	mu sync.Mutex

	intermediateText string
	finalText        string
	textFunc         func(samples int) string

	// FeedErr, if non-nil, is returned by every Feed call.
	FeedErr error

	// IntermediateErr, if non-nil, is returned by every IntermediateDecode call.
	IntermediateErr error

	// FinishErr, if non-nil, is returned by Finish.
	FinishErr error

	// --- Call records ---

	// Fed holds a copy of every block passed to Feed.
	Fed [][]int16

	// IntermediateCalls is the number of times IntermediateDecode was called.
	IntermediateCalls int

	// FinishCalls is the number of times Finish was called.
	FinishCalls int

	// CloseCalls is the number of times Close was called.
	CloseCalls int
}

// Feed records a copy of samples and returns FeedErr.
func (s *Stream) Feed(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FeedErr != nil {
		return s.FeedErr
	}
	cp := make([]int16, len(samples))
	copy(cp, samples)
	s.Fed = append(s.Fed, cp)
	return nil
}

// IntermediateDecode records the call and returns the intermediate text.
func (s *Stream) IntermediateDecode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IntermediateCalls++
	if s.IntermediateErr != nil {
		return "", s.IntermediateErr
	}
	if s.textFunc != nil {
		return s.textFunc(s.fedSamples()), nil
	}
	return s.intermediateText, nil
}

// Finish records the call and returns the final text.
func (s *Stream) Finish() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinishCalls++
	if s.FinishErr != nil {
		return "", s.FinishErr
	}
	if s.textFunc != nil {
		return s.textFunc(s.fedSamples()), nil
	}
	return s.finalText, nil
}

// Close records the call.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

// FedSamples returns the total number of samples fed. Thread-safe.
func (s *Stream) FedSamples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fedSamples()
}

// Calls returns the decode, finish and close call counts. Thread-safe.
func (s *Stream) Calls() (intermediate, finish, close int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IntermediateCalls, s.FinishCalls, s.CloseCalls
}

func (s *Stream) fedSamples() int {
	n := 0
	for _, b := range s.Fed {
		n += len(b)
	}
	return n
}

// Ensure Stream implements backend.Stream at compile time.
var _ backend.Stream = (*Stream)(nil)
