package audio

import "fmt"

// VAD filters a block of samples down to the spans that contain speech.
// Implementations keep rolling state between calls and are not safe for
// concurrent use.
type VAD interface {
	// RemoveSilence returns the speech part of samples, or an empty slice when the
	// block holds no speech. The result is only valid until the next call.
	RemoveSilence(samples []int16) []int16

	// Reset clears rolling state (hangover counters, model state)
	Reset()
}

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	Engine          string  // "energy" or "webrtc"
	SampleRate      int     // Input sample rate in Hz
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Silent frames kept after speech before it is cut (hangover)
	FrameSize       int     // Number of samples per frame (320 for 16kHz = 20ms)
	WebRTCMode      int     // Aggressiveness 0-3 for the webrtc engine
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		Engine:          "energy",
		SampleRate:      16000,
		EnergyThreshold: 500.0,
		SilenceFrames:   10,  // 200ms of hangover (10 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
		WebRTCMode:      2,
	}
}

// NewVAD builds the detector selected by config.Engine
func NewVAD(config *VADConfig) (VAD, error) {
	if config == nil {
		config = DefaultVADConfig()
	}
	switch config.Engine {
	case "", "energy":
		return NewVADDetector(config), nil
	case "webrtc":
		v, err := NewWebRTCVAD(config)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("audio: unknown vad engine %q", config.Engine)
	}
}

// VADDetector performs energy based Voice Activity Detection
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
	out            []int16
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	if config.FrameSize <= 0 {
		config.FrameSize = DefaultVADConfig().FrameSize
	}
	return &VADDetector{
		config: config,
	}
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold
	return v.track(frameHasSpeech)
}

// track advances the hangover state machine by one frame
func (v *VADDetector) track(frameHasSpeech bool) (bool, bool, bool) {
	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else if v.isSpeaking {
		v.silenceCounter++
		if v.silenceCounter > v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// RemoveSilence keeps speech frames plus up to SilenceFrames trailing silent
// frames after each speech run. Leading silence is dropped.
func (v *VADDetector) RemoveSilence(samples []int16) []int16 {
	v.out = v.out[:0]
	size := v.config.FrameSize

	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		frame := samples[start:end]

		if speaking, _, _ := v.ProcessFrame(frame); speaking {
			v.out = append(v.out, frame...)
		}
	}

	return v.out
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
	v.out = v.out[:0]
}
