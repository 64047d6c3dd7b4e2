package audio

import "math"

// Default energy thresholds on the 16-bit sample scale.
const (
	// Below this RMS a frame counts as silence
	DefaultSilenceThreshold = 200.0

	// Barge-in detection uses a higher bar to reject speaker bleed
	DefaultInterruptThreshold = 500.0
)

// RMS computes root-mean-square energy of a frame. Pure: the same frame
// always yields the same value.
func RMS(frame Frame) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// IsSilence classifies a frame against an RMS threshold.
func IsSilence(frame Frame, threshold float64) bool {
	return RMS(frame) < threshold
}
