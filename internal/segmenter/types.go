package segmenter

import (
	"fmt"
	"time"

	"github.com/lexiqai/speech-engine/internal/config"
)

// SpeechMode selects how utterance boundaries are decided
type SpeechMode int

const (
	// ModeManual leaves boundaries to the host: an utterance runs from a start
	// marker until the end of the stream
	ModeManual SpeechMode = iota
	// ModeSingleSentence ends the utterance at the first silence after text was
	// recognized, and reports a sentence timeout when nothing is said
	ModeSingleSentence
	// ModeAutomatic ends an utterance at every silence and keeps listening
	ModeAutomatic
)

func (m SpeechMode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeSingleSentence:
		return "single_sentence"
	case ModeAutomatic:
		return "automatic"
	default:
		return fmt.Sprintf("SpeechMode(%d)", int(m))
	}
}

// ParseSpeechMode parses the configuration name of a mode
func ParseSpeechMode(s string) (SpeechMode, error) {
	switch s {
	case "manual":
		return ModeManual, nil
	case "single_sentence":
		return ModeSingleSentence, nil
	case "automatic":
		return ModeAutomatic, nil
	default:
		return 0, fmt.Errorf("segmenter: unknown speech mode %q", s)
	}
}

// SpeechStatus is the speech detection state reported to the host
type SpeechStatus int

const (
	StatusNoSpeech SpeechStatus = iota
	StatusSpeechDetected
	StatusDecoding
)

func (s SpeechStatus) String() string {
	switch s {
	case StatusNoSpeech:
		return "no_speech"
	case StatusSpeechDetected:
		return "speech_detected"
	case StatusDecoding:
		return "decoding"
	default:
		return fmt.Sprintf("SpeechStatus(%d)", int(s))
	}
}

// FlushKind tells the host why an utterance ended
type FlushKind int

const (
	// FlushRegular marks a boundary in the middle of the stream; more audio follows
	FlushRegular FlushKind = iota
	// FlushEOF marks the end of the stream
	FlushEOF
)

func (k FlushKind) String() string {
	switch k {
	case FlushRegular:
		return "regular"
	case FlushEOF:
		return "eof"
	default:
		return fmt.Sprintf("FlushKind(%d)", int(k))
	}
}

// Callbacks receive engine events. Nil fields are skipped. Callbacks run on the
// goroutine that processed the step, after the step has finished, so they may
// call back into the Engine.
type Callbacks struct {
	OnStatusChanged    func(status SpeechStatus)
	OnIntermediateText func(text string)
	OnSentenceTimeout  func()
	OnFlush            func(kind FlushKind)
	OnError            func(err error)
}

// Options configures an Engine
type Options struct {
	Mode            SpeechMode
	SentenceTimeout time.Duration

	// MaxSpeechBufferSize is the capacity reserved for the utterance buffer, in samples
	MaxSpeechBufferSize int

	// InputBufferSize bounds the shared input slot, in samples
	InputBufferSize int

	// TextTransform, if set, post-processes every decoded text before it is
	// compared and emitted
	TextTransform func(string) string

	MetricsEnabled bool
}

// OptionsFromConfig builds engine options from the service configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := ParseSpeechMode(cfg.SpeechMode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Mode:                mode,
		SentenceTimeout:     cfg.SentenceTimeoutDuration(),
		MaxSpeechBufferSize: cfg.MaxSpeechBufferSize,
		InputBufferSize:     cfg.InputBufferSize,
		MetricsEnabled:      cfg.MetricsEnabled,
	}, nil
}
