package audio

import (
	"math"
	"sync"
)

// RMSEnergy computes the root-mean-square energy of linear PCM samples,
// normalized to 0.0..1.0.
func RMSEnergy(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		normalized := float64(s) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// PeakAmplitude returns the maximum absolute amplitude, normalized to 0.0..1.0.
func PeakAmplitude(pcm []int16) float64 {
	var maxAbs float64
	for _, s := range pcm {
		abs := math.Abs(float64(s))
		if abs > maxAbs {
			maxAbs = abs
		}
	}
	return maxAbs / 32768.0
}

// Buffer accumulates linear PCM samples up to a configurable maximum.
// When the maximum is exceeded, the oldest samples are discarded.
type Buffer struct {
	mu         sync.Mutex
	data       []int16
	maxSamples int
	config     Config
}

// NewBuffer creates a buffer holding up to maxDurationMs of audio.
func NewBuffer(config Config, maxDurationMs int) *Buffer {
	maxSamples := config.SampleRate * maxDurationMs / 1000
	if maxSamples <= 0 {
		maxSamples = config.SampleRate
	}
	return &Buffer{
		data:       make([]int16, 0, maxSamples),
		maxSamples: maxSamples,
		config:     config,
	}
}

// Append adds samples to the buffer, trimming from the front on overflow.
func (b *Buffer) Append(pcm []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, pcm...)
	if len(b.data) > b.maxSamples {
		excess := len(b.data) - b.maxSamples
		b.data = b.data[excess:]
	}
}

// Samples returns a copy of all buffered samples.
func (b *Buffer) Samples() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]int16, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the current sample count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}

// Take returns all buffered samples and clears the buffer in one step.
// Used when a turn closes: the utterance is handed off and the buffer
// must be empty before the next frame arrives.
func (b *Buffer) Take() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]int16, len(b.data))
	copy(out, b.data)
	b.data = b.data[:0]
	return out
}

// RMS returns the RMS energy of the buffered audio.
func (b *Buffer) RMS() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return RMSEnergy(b.data)
}
