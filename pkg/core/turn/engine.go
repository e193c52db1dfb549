// Package turn implements the per-call turn-taking engine: the authoritative
// state machine, the silence/duration boundary detector, and the barge-in
// monitor.
//
// Two concurrent sources drive a call's turn state: the inbound frame
// handler and the periodic boundary check. Both serialize through one owner
// goroutine fed typed commands, so no turn field is ever written from two
// goroutines.
package turn

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicelane/frontdesk/pkg/core/audio"
)

// Frame is one fixed-duration chunk of linear PCM tagged with a monotonic
// sequence number. Frames are immutable once produced.
type Frame struct {
	Seq int64
	PCM []int16
}

// Hooks are the engine's outbound notifications. They are invoked from the
// owner goroutine and must not block; spawn work elsewhere.
type Hooks struct {
	// OnUtterance fires when a turn boundary closes with enough audio.
	// The engine has already transitioned to Thinking.
	OnUtterance func(pcm []int16)

	// OnBargeIn fires when continuous caller audio during Speaking crosses
	// the threshold. Outbound speech has already been canceled and the
	// triggering audio seeds the new utterance buffer.
	OnBargeIn func()
}

type cmdKind int

const (
	cmdFrame cmdKind = iota
	cmdTick
	cmdBeginSpeaking
	cmdSpeechDone
	cmdResumeListening
	cmdClose
)

type command struct {
	kind   cmdKind
	frame  Frame
	cancel context.CancelFunc
}

// Engine is the single owner of one call's turn state.
type Engine struct {
	cfg    Config
	hooks  Hooks
	logger *slog.Logger
	now    func() time.Time

	cmds chan command
	done chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	// state mirrors the owner goroutine's view for observers.
	state atomic.Int32

	// Fields below are touched only by the owner goroutine.
	utterance      *audio.Buffer
	interrupt      *audio.Buffer
	lastFrameAt    time.Time
	utteranceStart time.Time
	interruptStart time.Time
	lastSeq        int64
	speechCancel   context.CancelFunc
}

// NewEngine creates an engine in StateIdle. Call Start to begin listening.
func NewEngine(cfg Config, hooks Hooks, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:       cfg,
		hooks:     hooks,
		logger:    logger,
		now:       time.Now,
		cmds:      make(chan command, 64),
		done:      make(chan struct{}),
		utterance: audio.NewBuffer(cfg.Audio, cfg.MaxUtteranceBufferMs),
		interrupt: audio.NewBuffer(cfg.Audio, int(cfg.BargeInThreshold/time.Millisecond)+200),
		lastSeq:   -1,
	}
	e.state.Store(int32(StateIdle))
	return e
}

// Start transitions Idle -> Listening and begins the boundary-check loop.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.state.Store(int32(StateListening))
		go e.run()
	})
}

// State returns the current turn state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// HandleFrame feeds one inbound PCM frame to the engine. Frames arriving
// after Close are dropped.
func (e *Engine) HandleFrame(f Frame) {
	select {
	case e.cmds <- command{kind: cmdFrame, frame: f}:
	case <-e.done:
	}
}

// BeginSpeaking transitions Thinking -> Speaking and arms the barge-in
// monitor. cancel is invoked when barge-in triggers; the session's outbound
// pacer must observe it before every frame write.
func (e *Engine) BeginSpeaking(cancel context.CancelFunc) {
	select {
	case e.cmds <- command{kind: cmdBeginSpeaking, cancel: cancel}:
	case <-e.done:
		if cancel != nil {
			cancel()
		}
	}
}

// SpeechDone transitions Speaking -> Listening after playback completes
// naturally. Any interrupt audio accumulated during playback is incidental
// and discarded.
func (e *Engine) SpeechDone() {
	select {
	case e.cmds <- command{kind: cmdSpeechDone}:
	case <-e.done:
	}
}

// ResumeListening transitions Thinking -> Listening when a turn produced no
// speech (empty transcript, no reply).
func (e *Engine) ResumeListening() {
	select {
	case e.cmds <- command{kind: cmdResumeListening}:
	case <-e.done:
	}
}

// Close tears the engine down from any state. It stops the ticker, releases
// buffers, cancels pending outbound speech, and guarantees no hook fires
// after it returns.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.Start() // a never-started engine still needs its goroutine to drain the close
		e.cmds <- command{kind: cmdClose}
		<-e.done
	})
}

func (e *Engine) run() {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.checkBoundary()
		case cmd := <-e.cmds:
			switch cmd.kind {
			case cmdFrame:
				e.handleFrame(cmd.frame)
			case cmdTick:
				e.checkBoundary()
			case cmdBeginSpeaking:
				e.beginSpeaking(cmd.cancel)
			case cmdSpeechDone:
				e.speechDone()
			case cmdResumeListening:
				e.resumeListening()
			case cmdClose:
				e.teardown()
				return
			}
		}
	}
}

func (e *Engine) handleFrame(f Frame) {
	if f.Seq <= e.lastSeq {
		return
	}
	e.lastSeq = f.Seq

	switch e.State() {
	case StateListening:
		now := e.now()
		if e.utterance.Len() == 0 {
			e.utteranceStart = now
		}
		e.utterance.Append(f.PCM)
		e.lastFrameAt = now

	case StateSpeaking:
		now := e.now()
		if e.interrupt.Len() == 0 {
			e.interruptStart = now
		}
		e.interrupt.Append(f.PCM)
		if e.cfg.Audio.Duration(e.interrupt.Len()) > e.cfg.BargeInThreshold {
			e.bargeIn(now)
		}

	default:
		// Idle and Thinking drop inbound audio: queueing it would grow
		// memory and produce stale utterances.
	}
}

func (e *Engine) checkBoundary() {
	if e.State() != StateListening || e.utterance.Len() == 0 {
		return
	}

	now := e.now()
	silence := now.Sub(e.lastFrameAt)
	span := now.Sub(e.utteranceStart)
	if silence <= e.cfg.SilenceThreshold && span <= e.cfg.MaxUtteranceDuration {
		return
	}

	if e.utterance.Len() < e.cfg.MinUtteranceSamples {
		// Noise burst: not worth an STT round trip.
		e.logger.Debug("discarding short utterance",
			"samples", e.utterance.Len(),
			"min_samples", e.cfg.MinUtteranceSamples,
		)
		e.utterance.Clear()
		e.resetTimestamps()
		return
	}

	pcm := e.utterance.Take()
	e.resetTimestamps()
	e.state.Store(int32(StateThinking))
	e.logger.Debug("turn finalized",
		"samples", len(pcm),
		"silence_ms", silence.Milliseconds(),
		"span_ms", span.Milliseconds(),
	)
	if e.hooks.OnUtterance != nil {
		e.hooks.OnUtterance(pcm)
	}
}

func (e *Engine) beginSpeaking(cancel context.CancelFunc) {
	if e.State() != StateThinking {
		if cancel != nil {
			cancel()
		}
		return
	}
	e.speechCancel = cancel
	e.interrupt.Clear()
	e.interruptStart = time.Time{}
	e.state.Store(int32(StateSpeaking))
}

func (e *Engine) bargeIn(now time.Time) {
	if e.speechCancel != nil {
		e.speechCancel()
		e.speechCancel = nil
	}

	// The audio that triggered the barge-in is the caller talking over us.
	// It is the start of their next utterance, not garbage.
	seed := e.interrupt.Take()
	e.utterance.Clear()
	e.utterance.Append(seed)
	e.utteranceStart = e.interruptStart
	e.lastFrameAt = now
	e.interruptStart = time.Time{}
	e.state.Store(int32(StateListening))
	e.logger.Debug("barge-in", "seed_samples", len(seed))
	if e.hooks.OnBargeIn != nil {
		e.hooks.OnBargeIn()
	}
}

func (e *Engine) speechDone() {
	if e.State() != StateSpeaking {
		return
	}
	e.speechCancel = nil
	e.interrupt.Clear()
	e.interruptStart = time.Time{}
	e.state.Store(int32(StateListening))
}

func (e *Engine) resumeListening() {
	if e.State() != StateThinking {
		return
	}
	e.state.Store(int32(StateListening))
}

func (e *Engine) teardown() {
	if e.speechCancel != nil {
		e.speechCancel()
		e.speechCancel = nil
	}
	e.utterance.Clear()
	e.interrupt.Clear()
	e.resetTimestamps()
	e.state.Store(int32(StateClosed))
	close(e.done)
}

func (e *Engine) resetTimestamps() {
	e.lastFrameAt = time.Time{}
	e.utteranceStart = time.Time{}
	e.interruptStart = time.Time{}
}
