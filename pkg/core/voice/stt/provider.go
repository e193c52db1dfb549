// Package stt converts finalized utterance audio to text.
package stt

import (
	"context"
)

// Options configures one transcription request.
type Options struct {
	Model      string // provider-specific model (default "ink-whisper")
	Language   string // ISO language code (default "en")
	SampleRate int    // PCM sample rate in Hz
}

// Result is a completed transcription.
type Result struct {
	Text     string  // transcribed text
	Language string  // detected or requested language
	Duration float64 // audio duration in seconds, when reported
}

// Provider transcribes one utterance per call. Utterances arrive as
// signed 16-bit PCM already bounded by turn detection, so there is no
// streaming surface here.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, pcm []int16, opts Options) (*Result, error)
}
