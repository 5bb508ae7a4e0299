//go:build !cgo

package audio

import "errors"

// ErrWebRTCUnavailable is returned when the binary was built without cgo
var ErrWebRTCUnavailable = errors.New("audio: webrtc vad requires cgo")

// WebRTCVAD is unavailable without cgo
type WebRTCVAD struct{}

// NewWebRTCVAD always fails when cgo is disabled
func NewWebRTCVAD(config *VADConfig) (*WebRTCVAD, error) {
	return nil, ErrWebRTCUnavailable
}

func (w *WebRTCVAD) RemoveSilence(samples []int16) []int16 { return nil }

func (w *WebRTCVAD) Reset() {}
