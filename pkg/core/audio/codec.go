// Package audio implements the narrow-band wire codec and PCM helpers used
// by the call engine.
//
// The wire format is fixed: G.711 mu-law, 8000 Hz, mono, 20 ms frames.
// All conversion functions are pure and safe to call concurrently.
package audio

import "time"

const (
	// WireSampleRate is the telephony sample rate in Hz.
	WireSampleRate = 8000
	// FrameDuration is the fixed duration of one wire frame.
	FrameDuration = 20 * time.Millisecond
	// FrameSamples is the sample count of one wire frame at WireSampleRate.
	FrameSamples = WireSampleRate / 50
)

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// DecodeMulaw converts G.711 mu-law bytes to 16-bit linear PCM samples.
func DecodeMulaw(data []byte) []int16 {
	pcm := make([]int16, len(data))
	for i, b := range data {
		pcm[i] = DecodeMulawSample(b)
	}
	return pcm
}

// EncodeMulaw converts 16-bit linear PCM samples to G.711 mu-law bytes.
func EncodeMulaw(pcm []int16) []byte {
	data := make([]byte, len(pcm))
	for i, s := range pcm {
		data[i] = EncodeMulawSample(s)
	}
	return data
}

// DecodeMulawSample expands a single mu-law byte to a linear sample.
func DecodeMulawSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int32(mant) << 3) + mulawBias
	value <<= uint(exp)
	value -= mulawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// EncodeMulawSample compresses a single linear sample to a mu-law byte.
//
// Round-trip note: every mu-law byte except 0x7F survives decode/encode
// unchanged. 0x7F (negative zero) decodes to 0 and re-encodes as 0xFF
// (positive zero); both bytes represent silence.
func EncodeMulawSample(s int16) byte {
	value := int32(s)
	sign := byte(0)
	if value < 0 {
		value = -value
		sign = 0x80
	}
	if value > mulawClip {
		value = mulawClip
	}
	value += mulawBias

	exp := byte(7)
	for mask := int32(0x4000); value&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := byte((value >> (uint(exp) + 3)) & 0x0F)
	return ^(sign | exp<<4 | mant)
}

// Resample converts pcm from fromHz to toHz using nearest-sample selection.
//
// Nearest-sample is a deliberate latency/quality tradeoff: the call leg is
// narrow-band telephone audio, and a windowed-sinc resampler would add CPU
// and buffering latency for quality the wire codec throws away anyway.
func Resample(pcm []int16, fromHz, toHz int) []int16 {
	if fromHz <= 0 || toHz <= 0 || len(pcm) == 0 {
		return nil
	}
	if fromHz == toHz {
		out := make([]int16, len(pcm))
		copy(out, pcm)
		return out
	}

	n := int(int64(len(pcm)) * int64(toHz) / int64(fromHz))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	for i := range out {
		src := int(int64(i) * int64(fromHz) / int64(toHz))
		if src >= len(pcm) {
			src = len(pcm) - 1
		}
		out[i] = pcm[src]
	}
	return out
}

// Config specifies linear PCM format parameters.
type Config struct {
	// SampleRate in Hz. The wire side is always 8000; STT/TTS legs vary.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono. The call leg is always mono.
	Channels int `json:"channels"`
}

// DefaultConfig returns the wire-side audio configuration.
func DefaultConfig() Config {
	return Config{SampleRate: WireSampleRate, Channels: 1}
}

// SamplesForDuration returns the sample count covering d.
func (c Config) SamplesForDuration(d time.Duration) int {
	if c.SampleRate <= 0 {
		return 0
	}
	return int(int64(c.SampleRate) * int64(d) / int64(time.Second))
}

// Duration returns the play time of the given sample count.
func (c Config) Duration(samples int) time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(samples) * int64(time.Second) / int64(c.SampleRate))
}
