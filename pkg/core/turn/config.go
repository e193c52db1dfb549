package turn

import (
	"time"

	"github.com/voicelane/frontdesk/pkg/core/audio"
)

// Config holds the endpointing and barge-in thresholds for one call.
type Config struct {
	// SilenceThreshold is how long the caller must be silent before the
	// accumulated utterance is finalized. Default: 800ms.
	SilenceThreshold time.Duration `json:"silence_threshold"`

	// MaxUtteranceDuration caps a single utterance so a caller who never
	// pauses cannot accumulate audio without bound. Default: 6s.
	MaxUtteranceDuration time.Duration `json:"max_utterance_duration"`

	// MinUtteranceSamples is the floor below which a finalization is
	// skipped and the buffer discarded: short noise bursts are not worth
	// an STT round trip. Default: 2400 (300ms at 8kHz).
	MinUtteranceSamples int `json:"min_utterance_samples"`

	// BargeInThreshold is how much continuous caller audio during
	// Speaking cancels outbound speech. Default: 400ms.
	BargeInThreshold time.Duration `json:"barge_in_threshold"`

	// TickInterval is how often the boundary check runs. Default: 150ms.
	TickInterval time.Duration `json:"tick_interval"`

	// MaxUtteranceBufferMs bounds the utterance buffer itself.
	// Default: 8000 (MaxUtteranceDuration plus margin).
	MaxUtteranceBufferMs int `json:"max_utterance_buffer_ms"`

	// Audio is the PCM format of inbound frames after transcoding.
	Audio audio.Config `json:"audio"`
}

// DefaultConfig returns thresholds tuned for a telephone call leg.
func DefaultConfig() Config {
	return Config{
		SilenceThreshold:     800 * time.Millisecond,
		MaxUtteranceDuration: 6 * time.Second,
		MinUtteranceSamples:  2400,
		BargeInThreshold:     400 * time.Millisecond,
		TickInterval:         150 * time.Millisecond,
		MaxUtteranceBufferMs: 8000,
		Audio:                audio.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = d.SilenceThreshold
	}
	if c.MaxUtteranceDuration <= 0 {
		c.MaxUtteranceDuration = d.MaxUtteranceDuration
	}
	if c.MinUtteranceSamples <= 0 {
		c.MinUtteranceSamples = d.MinUtteranceSamples
	}
	if c.BargeInThreshold <= 0 {
		c.BargeInThreshold = d.BargeInThreshold
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.MaxUtteranceBufferMs <= 0 {
		c.MaxUtteranceBufferMs = d.MaxUtteranceBufferMs
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio = d.Audio
	}
	return c
}
