// Package tts renders reply text to PCM audio.
package tts

import (
	"context"
)

// Options configures one synthesis request.
type Options struct {
	Voice      string  // provider voice identifier
	Model      string  // provider-specific model
	Language   string  // language code (default "en")
	Speed      float64 // speed multiplier, 0 means provider default
	SampleRate int     // output PCM sample rate in Hz
}

// Provider synthesizes one reply per call, returning signed 16-bit PCM
// at the requested sample rate. Replies on a phone call are short, so a
// whole-utterance round trip keeps the surface simple; pacing to the
// wire happens downstream.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts Options) ([]int16, error)
}
