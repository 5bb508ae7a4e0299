// Package mock provides test doubles for the audio package interfaces.
//
// VAD classifies whole blocks: a block is speech when Speech is set, or when
// the next entry of Script says so.
package mock

import (
	"sync"

	"github.com/lexiqai/speech-engine/internal/audio"
)

// VAD is a mock implementation of audio.VAD.
type VAD struct {
	mu sync.Mutex

	// Speech marks every block as speech when Script is exhausted.
	Speech bool

	// Script, if non-empty, decides block by block. Entries are consumed in order.
	Script []bool

	// --- Call records ---

	// Blocks holds a copy of every block passed to RemoveSilence.
	Blocks [][]int16

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int
}

// SetSpeech changes the default classification. Thread-safe.
func (v *VAD) SetSpeech(speech bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Speech = speech
}

// RemoveSilence records the block and returns it whole or empty.
func (v *VAD) RemoveSilence(samples []int16) []int16 {
	v.mu.Lock()
	defer v.mu.Unlock()

	cp := make([]int16, len(samples))
	copy(cp, samples)
	v.Blocks = append(v.Blocks, cp)

	speech := v.Speech
	if len(v.Script) > 0 {
		speech = v.Script[0]
		v.Script = v.Script[1:]
	}
	if !speech {
		return samples[:0]
	}
	return samples
}

// Reset records the call.
func (v *VAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ResetCallCount++
}

// Resets returns the number of Reset calls. Thread-safe.
func (v *VAD) Resets() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ResetCallCount
}

// Ensure VAD implements audio.VAD at compile time.
var _ audio.VAD = (*VAD)(nil)
