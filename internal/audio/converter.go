package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodePCM16 converts 16-bit signed little-endian PCM bytes to samples.
// A trailing odd byte is ignored.
func DecodePCM16(pcmData []byte) []int16 {
	samples := make([]int16, len(pcmData)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcmData[i*2:]))
	}
	return samples
}

// EncodePCM16 converts samples to 16-bit signed little-endian PCM bytes
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	EncodePCM16Into(out, samples)
	return out
}

// EncodePCM16Into writes samples into dst, which must hold len(samples)*2 bytes
func EncodePCM16Into(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}

// SamplesToFloat32 normalises samples to the range [-1.0, 1.0]
func SamplesToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// ConvertPCMUToPCM converts G.711 PCMU (μ-law) to linear PCM samples.
// Telephony sources deliver 8kHz μ-law audio.
func ConvertPCMUToPCM(pcmuData []byte) ([]int16, error) {
	if len(pcmuData) == 0 {
		return nil, fmt.Errorf("empty PCMU data")
	}

	samples := make([]int16, len(pcmuData))
	for i, mulawByte := range pcmuData {
		samples[i] = mulawToLinear(mulawByte)
	}

	return samples, nil
}

// Resample performs simple linear interpolation resampling
func Resample(samples []int16, inputRate, outputRate int) []int16 {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(float64(len(samples)) * ratio)
	output := make([]int16, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		fraction := srcPos - float64(idx0)
		output[i] = int16(float64(samples[idx0])*(1.0-fraction) + float64(samples[idx1])*fraction)
	}

	return output
}

// mulawToLinear converts an 8-bit μ-law sample to 16-bit linear PCM
func mulawToLinear(mulawByte byte) int16 {
	// μ-law uses inverted representation
	mulawByte = ^mulawByte

	sign := mulawByte & 0x80
	segment := int32((mulawByte >> 4) & 0x07)
	mantissa := int32(mulawByte & 0x0F)

	// step = (mantissa << (segment + 1)) + (33 << segment), minus the bias
	step := mantissa << (segment + 1)
	step += int32(33) << segment
	magnitude := step - 33

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
// Useful for detecting audio levels and silence
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
