package audio

import (
	"testing"
)

func constantFrame(n int, value int16) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = value
	}
	return samples
}

func TestVADDetector_ProcessFrame_Speech(t *testing.T) {
	config := &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       160,
	}
	vad := NewVADDetector(config)

	samples := constantFrame(160, 5000)

	for i := 0; i < 5; i++ {
		isSpeaking, speechStarted, _ := vad.ProcessFrame(samples)
		if !isSpeaking {
			t.Errorf("Expected speech detection on frame %d", i)
		}
		if i == 0 && !speechStarted {
			t.Error("Expected speech to start on first frame")
		}
	}
}

func TestVADDetector_ProcessFrame_SpeechToSilence(t *testing.T) {
	config := &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       160,
	}
	vad := NewVADDetector(config)

	for i := 0; i < 5; i++ {
		vad.ProcessFrame(constantFrame(160, 5000))
	}

	endedAt := -1
	for i := 0; i < 15; i++ {
		_, _, ended := vad.ProcessFrame(constantFrame(160, 10))
		if ended {
			endedAt = i
			break
		}
	}

	// SilenceFrames silent frames are kept as hangover, the next one ends speech
	if endedAt != 10 {
		t.Errorf("Expected speech to end on silent frame 10, got %d", endedAt)
	}
}

func TestVADDetector_RemoveSilence_Silence(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500, SilenceFrames: 2, FrameSize: 160})

	out := vad.RemoveSilence(constantFrame(1600, 10))
	if len(out) != 0 {
		t.Errorf("Expected no speech in silent block, got %d samples", len(out))
	}
}

func TestVADDetector_RemoveSilence_TrimsLeadingSilence(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500, SilenceFrames: 0, FrameSize: 160})

	block := append(constantFrame(320, 10), constantFrame(480, 5000)...)
	out := vad.RemoveSilence(block)
	if len(out) != 480 {
		t.Fatalf("Expected 480 speech samples, got %d", len(out))
	}
	for i, s := range out {
		if s != 5000 {
			t.Fatalf("Expected only speech samples, got %d at %d", s, i)
		}
	}
}

func TestVADDetector_RemoveSilence_HangoverAcrossCalls(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500, SilenceFrames: 2, FrameSize: 160})

	if out := vad.RemoveSilence(constantFrame(160, 5000)); len(out) != 160 {
		t.Fatalf("Expected speech frame to pass, got %d samples", len(out))
	}

	// Two silent frames of hangover survive, the third is cut
	out := vad.RemoveSilence(constantFrame(480, 10))
	if len(out) != 320 {
		t.Errorf("Expected 320 hangover samples, got %d", len(out))
	}

	out = vad.RemoveSilence(constantFrame(160, 10))
	if len(out) != 0 {
		t.Errorf("Expected silence after hangover, got %d samples", len(out))
	}
}

func TestVADDetector_RemoveSilence_PartialFrame(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500, SilenceFrames: 0, FrameSize: 160})

	out := vad.RemoveSilence(constantFrame(200, 5000))
	if len(out) != 200 {
		t.Errorf("Expected trailing partial frame to be kept, got %d samples", len(out))
	}
}

func TestVADDetector_Reset(t *testing.T) {
	vad := NewVADDetector(&VADConfig{EnergyThreshold: 500, SilenceFrames: 5, FrameSize: 160})

	if speaking, _, _ := vad.ProcessFrame(constantFrame(160, 5000)); !speaking {
		t.Fatal("Expected speech to be detected")
	}

	vad.Reset()
	if vad.isSpeaking {
		t.Error("Expected speech state to be false after reset")
	}

	// Without hangover state the silent block is dropped entirely
	if out := vad.RemoveSilence(constantFrame(160, 10)); len(out) != 0 {
		t.Errorf("Expected no hangover after reset, got %d samples", len(out))
	}
}

func TestDefaultVADConfig(t *testing.T) {
	config := DefaultVADConfig()
	if config.EnergyThreshold != 500.0 {
		t.Errorf("Expected default EnergyThreshold 500.0, got %f", config.EnergyThreshold)
	}
	if config.SilenceFrames != 10 {
		t.Errorf("Expected default SilenceFrames 10, got %d", config.SilenceFrames)
	}
	if config.FrameSize != 320 {
		t.Errorf("Expected default FrameSize 320, got %d", config.FrameSize)
	}
}

func TestNewVAD(t *testing.T) {
	v, err := NewVAD(&VADConfig{Engine: "energy", EnergyThreshold: 500, FrameSize: 160})
	if err != nil {
		t.Fatalf("NewVAD failed: %v", err)
	}
	if _, ok := v.(*VADDetector); !ok {
		t.Errorf("Expected *VADDetector, got %T", v)
	}

	if _, err := NewVAD(&VADConfig{Engine: "silero"}); err == nil {
		t.Error("Expected error for unknown vad engine")
	}
}
