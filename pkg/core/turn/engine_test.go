package turn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voicelane/frontdesk/pkg/core/audio"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Audio = audio.Config{SampleRate: 8000, Channels: 1}
	cfg.MinUtteranceSamples = 100
	// Keep the background ticker out of the way; tests drive ticks directly.
	cfg.TickInterval = time.Hour
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, hooks Hooks) (*Engine, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	e := NewEngine(cfg, hooks, nil)
	e.now = clk.Now
	e.Start()
	t.Cleanup(e.Close)
	return e, clk
}

func (e *Engine) tickForTest() {
	e.cmds <- command{kind: cmdTick}
}

func frame(seq int64, samples int) Frame {
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(seq + 1)
	}
	return Frame{Seq: seq, PCM: pcm}
}

func waitState(t *testing.T, e *Engine, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("State() = %v, want %v", e.State(), want)
}

func TestEngine_StartEntersListening(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), Hooks{})
	if e.State() != StateListening {
		t.Fatalf("State() = %v, want %v", e.State(), StateListening)
	}
}

func TestEngine_FinalizesOnSilence(t *testing.T) {
	utterances := make(chan []int16, 1)
	e, clk := newTestEngine(t, testConfig(), Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(0, 160))
	e.HandleFrame(frame(1, 160))
	clk.Advance(900 * time.Millisecond) // past the 800ms silence threshold
	e.tickForTest()

	select {
	case pcm := <-utterances:
		if len(pcm) != 320 {
			t.Fatalf("len(pcm) = %d, want 320", len(pcm))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no utterance emitted")
	}
	waitState(t, e, StateThinking)
}

func TestEngine_NoFinalizeBelowSilenceThreshold(t *testing.T) {
	utterances := make(chan []int16, 1)
	e, clk := newTestEngine(t, testConfig(), Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(0, 160))
	clk.Advance(500 * time.Millisecond)
	e.tickForTest()

	select {
	case <-utterances:
		t.Fatalf("utterance emitted before silence threshold")
	case <-time.After(50 * time.Millisecond):
	}
	if e.State() != StateListening {
		t.Fatalf("State() = %v, want %v", e.State(), StateListening)
	}
}

func TestEngine_FinalizesOnMaxUtteranceDuration(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUtteranceDuration = time.Second
	utterances := make(chan []int16, 1)
	e, clk := newTestEngine(t, cfg, Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	// The caller never pauses: frames every 100ms, silence always small.
	var seq int64
	for i := 0; i < 12; i++ {
		e.HandleFrame(frame(seq, 160))
		seq++
		clk.Advance(100 * time.Millisecond)
	}
	e.tickForTest()

	select {
	case <-utterances:
	case <-time.After(2 * time.Second):
		t.Fatalf("max-duration cap did not finalize the turn")
	}
}

func TestEngine_SkipsShortNoiseBurst(t *testing.T) {
	cfg := testConfig()
	cfg.MinUtteranceSamples = 1000
	utterances := make(chan []int16, 1)
	e, clk := newTestEngine(t, cfg, Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(0, 160)) // 160 samples, below the 1000 floor
	clk.Advance(time.Second)
	e.tickForTest()

	select {
	case <-utterances:
		t.Fatalf("noise burst below floor produced an utterance")
	case <-time.After(50 * time.Millisecond):
	}
	waitState(t, e, StateListening)

	// The discarded audio must not leak into the next utterance.
	e.HandleFrame(frame(1, 1200))
	clk.Advance(time.Second)
	e.tickForTest()
	select {
	case pcm := <-utterances:
		if len(pcm) != 1200 {
			t.Fatalf("len(pcm) = %d, want 1200 (discarded burst leaked)", len(pcm))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no utterance after real speech")
	}
}

func TestEngine_DropsFramesWhileThinking(t *testing.T) {
	utterances := make(chan []int16, 2)
	e, clk := newTestEngine(t, testConfig(), Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(0, 160))
	clk.Advance(time.Second)
	e.tickForTest()
	<-utterances
	waitState(t, e, StateThinking)

	e.HandleFrame(frame(1, 160))
	clk.Advance(time.Second)
	e.tickForTest()
	select {
	case <-utterances:
		t.Fatalf("frame accepted while Thinking")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_TickWhileThinkingNeverFinalizes(t *testing.T) {
	utterances := make(chan []int16, 2)
	e, clk := newTestEngine(t, testConfig(), Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(0, 160))
	clk.Advance(time.Second)
	e.tickForTest()
	<-utterances
	waitState(t, e, StateThinking)

	clk.Advance(time.Minute)
	e.tickForTest()
	select {
	case <-utterances:
		t.Fatalf("tick finalized a turn while Thinking")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_BargeInCancelsSpeechAndSeedsUtterance(t *testing.T) {
	cfg := testConfig()
	cfg.BargeInThreshold = 40 * time.Millisecond
	utterances := make(chan []int16, 2)
	bargeIns := make(chan struct{}, 1)
	e, clk := newTestEngine(t, cfg, Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
		OnBargeIn:   func() { bargeIns <- struct{}{} },
	})

	// Finalize a first turn to reach Thinking, then start speaking.
	e.HandleFrame(frame(0, 160))
	clk.Advance(time.Second)
	e.tickForTest()
	<-utterances
	waitState(t, e, StateThinking)

	speechCtx, speechCancel := context.WithCancel(context.Background())
	e.BeginSpeaking(speechCancel)
	waitState(t, e, StateSpeaking)

	// 3 frames x 20ms = 60ms of continuous audio, past the 40ms threshold.
	e.HandleFrame(frame(1, 160))
	e.HandleFrame(frame(2, 160))
	e.HandleFrame(frame(3, 160))

	select {
	case <-bargeIns:
	case <-time.After(2 * time.Second):
		t.Fatalf("barge-in did not trigger")
	}
	select {
	case <-speechCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("speech context not canceled on barge-in")
	}
	waitState(t, e, StateListening)

	// The interrupting audio is the start of the next utterance.
	clk.Advance(time.Second)
	e.tickForTest()
	select {
	case pcm := <-utterances:
		if len(pcm) != 480 {
			t.Fatalf("len(pcm) = %d, want 480 (barge-in audio preserved)", len(pcm))
		}
		if pcm[0] != 2 {
			t.Fatalf("pcm[0] = %d, want 2 (first interrupt frame)", pcm[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no utterance from barge-in seed")
	}
}

func TestEngine_NaturalSpeechEndDiscardsInterruptAudio(t *testing.T) {
	cfg := testConfig()
	cfg.BargeInThreshold = time.Second
	utterances := make(chan []int16, 2)
	e, clk := newTestEngine(t, cfg, Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(0, 160))
	clk.Advance(time.Second)
	e.tickForTest()
	<-utterances
	waitState(t, e, StateThinking)

	_, cancel := context.WithCancel(context.Background())
	e.BeginSpeaking(cancel)
	waitState(t, e, StateSpeaking)

	// Incidental audio during playback, below the barge-in threshold.
	e.HandleFrame(frame(1, 160))
	e.SpeechDone()
	waitState(t, e, StateListening)

	clk.Advance(time.Minute)
	e.tickForTest()
	select {
	case <-utterances:
		t.Fatalf("incidental playback audio became an utterance")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_ResumeListeningFromThinking(t *testing.T) {
	utterances := make(chan []int16, 1)
	e, clk := newTestEngine(t, testConfig(), Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(0, 160))
	clk.Advance(time.Second)
	e.tickForTest()
	<-utterances
	waitState(t, e, StateThinking)

	e.ResumeListening()
	waitState(t, e, StateListening)
}

func TestEngine_OutOfOrderFramesDropped(t *testing.T) {
	utterances := make(chan []int16, 1)
	e, clk := newTestEngine(t, testConfig(), Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(5, 160))
	e.HandleFrame(frame(3, 160)) // stale, dropped
	e.HandleFrame(frame(5, 160)) // duplicate, dropped
	clk.Advance(time.Second)
	e.tickForTest()

	select {
	case pcm := <-utterances:
		if len(pcm) != 160 {
			t.Fatalf("len(pcm) = %d, want 160", len(pcm))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no utterance emitted")
	}
}

func TestEngine_CloseCancelsSpeechDeterministically(t *testing.T) {
	utterances := make(chan []int16, 1)
	e, clk := newTestEngine(t, testConfig(), Hooks{
		OnUtterance: func(pcm []int16) { utterances <- pcm },
	})

	e.HandleFrame(frame(0, 160))
	clk.Advance(time.Second)
	e.tickForTest()
	<-utterances
	waitState(t, e, StateThinking)

	speechCtx, cancel := context.WithCancel(context.Background())
	e.BeginSpeaking(cancel)
	waitState(t, e, StateSpeaking)

	e.Close()
	select {
	case <-speechCtx.Done():
	default:
		t.Fatalf("Close did not cancel in-flight speech")
	}
	if e.State() != StateClosed {
		t.Fatalf("State() = %v, want %v", e.State(), StateClosed)
	}

	// Post-close traffic must be dropped without panicking or firing hooks.
	e.HandleFrame(frame(9, 160))
	e.SpeechDone()
	e.Close()
}
