//go:build cgo

package audio

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTCVAD classifies frames with the WebRTC voice activity model and applies
// the same hangover policy as the energy detector.
type WebRTCVAD struct {
	vad     *webrtcvad.VAD
	tracker *VADDetector
	rate    int
	size    int
	frame   []byte
	out     []int16
}

// NewWebRTCVAD creates a WebRTC backed detector. The sample rate must be 8, 16,
// 32 or 48kHz and the frame size 10, 20 or 30ms worth of samples.
func NewWebRTCVAD(config *VADConfig) (*WebRTCVAD, error) {
	if config == nil {
		config = DefaultVADConfig()
	}
	if !validWebRTCFrame(config.SampleRate, config.FrameSize) {
		return nil, fmt.Errorf("audio: webrtc vad does not support %d samples at %dHz", config.FrameSize, config.SampleRate)
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("audio: create webrtc vad: %w", err)
	}
	if err := v.SetMode(config.WebRTCMode); err != nil {
		return nil, fmt.Errorf("audio: set webrtc vad mode %d: %w", config.WebRTCMode, err)
	}

	return &WebRTCVAD{
		vad:     v,
		tracker: NewVADDetector(config),
		rate:    config.SampleRate,
		size:    config.FrameSize,
		frame:   make([]byte, config.FrameSize*2),
	}, nil
}

// RemoveSilence implements VAD. A trailing partial frame is zero padded for
// classification but only its real samples are returned.
func (w *WebRTCVAD) RemoveSilence(samples []int16) []int16 {
	w.out = w.out[:0]

	for start := 0; start < len(samples); start += w.size {
		end := start + w.size
		if end > len(samples) {
			end = len(samples)
		}
		chunk := samples[start:end]

		clear(w.frame)
		EncodePCM16Into(w.frame, chunk)

		active, err := w.vad.Process(w.rate, w.frame)
		if err != nil {
			active = false
		}
		if speaking, _, _ := w.tracker.track(active); speaking {
			w.out = append(w.out, chunk...)
		}
	}

	return w.out
}

// Reset implements VAD
func (w *WebRTCVAD) Reset() {
	w.tracker.Reset()
	w.out = w.out[:0]
}

func validWebRTCFrame(rate, size int) bool {
	switch rate {
	case 8000, 16000, 32000, 48000:
	default:
		return false
	}
	for _, ms := range []int{10, 20, 30} {
		if size == rate*ms/1000 {
			return true
		}
	}
	return false
}
