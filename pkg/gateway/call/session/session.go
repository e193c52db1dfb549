// Package session runs one phone call end to end: it reads the media
// stream off the websocket, feeds the turn engine, and drives the
// transcribe / orchestrate / synthesize pipeline for each finalized
// utterance. Every session writes exactly one audit record at teardown.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicelane/frontdesk/pkg/core/audio"
	"github.com/voicelane/frontdesk/pkg/core/dialog"
	"github.com/voicelane/frontdesk/pkg/core/policy"
	"github.com/voicelane/frontdesk/pkg/core/turn"
	"github.com/voicelane/frontdesk/pkg/core/voice/stt"
	"github.com/voicelane/frontdesk/pkg/core/voice/tts"
	"github.com/voicelane/frontdesk/pkg/gateway/audit"
	"github.com/voicelane/frontdesk/pkg/gateway/call/protocol"
)

// End reasons recorded on the audit record.
const (
	EndReasonHangup    = "caller_hangup"
	EndReasonTransport = "transport_error"
	EndReasonMaxAge    = "max_duration"
	EndReasonShutdown  = "server_shutdown"
)

// frameInterval is the pacing of outbound media frames. One frame is
// 20ms of audio at the wire rate.
const frameInterval = 20 * time.Millisecond

// Config carries the per-call tunables, normally taken straight from the
// gateway config.
type Config struct {
	Turn               turn.Config
	WriteTimeout       time.Duration
	PingInterval       time.Duration
	MaxSessionDuration time.Duration
	MaxFrameBytes      int
	MaxMessageBytes    int64
	TTSVoice           string
	PolicySTT          policy.Policy
	PolicyTTS          policy.Policy
}

// Sink is where the finished call record goes. The audit sinks satisfy
// it; the session never closes the sink, the server owns that.
type Sink interface {
	Write(ctx context.Context, rec audit.Record) error
}

// Deps are the collaborators a session needs. All of them are interfaces
// so tests can run a call entirely in memory.
type Deps struct {
	STT          stt.Provider
	TTS          tts.Provider
	Orchestrator *dialog.Orchestrator
	Audit        Sink
	Logger       *slog.Logger
}

// Session owns one caller connection from upgrade to close.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	writer *connWriter
	conn   Conn
	engine *turn.Engine
	logger *slog.Logger

	sttRunner *policy.Runner[*stt.Result]
	ttsRunner *policy.Runner[[]int16]

	// utterances carries finalized turn audio from the engine hook to
	// the turn worker. The engine sits in Thinking until the worker
	// releases it, so at most one utterance is ever in flight.
	utterances chan []int16

	mu             sync.Mutex
	started        bool
	streamSID      string
	callSID        string
	from           string
	startedAt      time.Time
	endReason      string
	seq            int64
	turns          []audit.TurnEntry
	toolCalls      []dialog.ToolCallRecord
	pendingBargeIn bool

	convo *dialog.Context
}

// New builds a session around an upgraded connection. Run must be called
// to start it.
func New(id string, conn Conn, cfg Config, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)

	if cfg.PolicySTT.Name == "" {
		cfg.PolicySTT = policy.Default("stt")
	}
	if cfg.PolicyTTS.Name == "" {
		cfg.PolicyTTS = policy.Default("tts")
	}

	s := &Session{
		id:         id,
		cfg:        cfg,
		deps:       deps,
		conn:       conn,
		writer:     newConnWriter(conn, cfg.WriteTimeout),
		logger:     logger,
		sttRunner:  policy.NewRunner[*stt.Result](cfg.PolicySTT, logger),
		ttsRunner:  policy.NewRunner[[]int16](cfg.PolicyTTS, logger),
		utterances: make(chan []int16, 1),
		convo:      dialog.NewContext(id),
		startedAt:  time.Now(),
		endReason:  EndReasonTransport,
	}

	s.engine = turn.NewEngine(cfg.Turn, turn.Hooks{
		OnUtterance: s.onUtterance,
		OnBargeIn:   s.onBargeIn,
	}, logger)

	return s
}

// Run blocks until the call ends, for whatever reason, then tears the
// session down and writes the audit record. It never panics the server
// on a bad stream: malformed events are logged and skipped.
func (s *Session) Run(ctx context.Context) {
	if s.cfg.MaxSessionDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.MaxSessionDuration)
		defer cancel()
	}
	if s.cfg.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		s.turnLoop(ctx)
	}()

	// ReadMessage does not observe the context. Closing the conn is the
	// only way to unblock it when the deadline or shutdown hits.
	readDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-readDone:
		}
	}()

	if s.cfg.PingInterval > 0 {
		workers.Add(1)
		go func() {
			defer workers.Done()
			s.keepalive(readDone)
		}()
	}

	s.readLoop(ctx)
	close(readDone)

	// Engine first: after Close returns no hook fires, so closing the
	// utterance channel afterwards is safe.
	s.engine.Close()
	close(s.utterances)
	workers.Wait()

	s.writeAudit()
	_ = s.writer.Close()
	s.logger.Info("session closed", "reason", s.endReason)
}

// keepalive pings the peer so idle stretches of a quiet call do not trip
// intermediary timeouts. A failed ping means the conn is gone; the read
// loop observes the same failure and ends the session.
func (s *Session) keepalive(done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.writer.Ping(); err != nil {
				s.logger.Debug("keepalive ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.setEndReason(endReasonFor(ctx))
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setEndReason(EndReasonHangup)
			} else if ctx.Err() != nil {
				s.setEndReason(endReasonFor(ctx))
			} else {
				s.setEndReason(EndReasonTransport)
				s.logger.Warn("read failed", "error", err)
			}
			return
		}

		event, err := protocol.DecodeInbound(data)
		if err != nil {
			s.logger.Warn("dropping malformed event", "error", err)
			continue
		}

		switch ev := event.(type) {
		case protocol.StartEvent:
			s.handleStart(ev)
		case protocol.MediaEvent:
			s.handleMedia(ev)
		case protocol.StopEvent:
			s.setEndReason(EndReasonHangup)
			s.logger.Info("stop received", "call_sid", ev.Stop.CallSID)
			return
		case protocol.MarkEvent:
			s.logger.Debug("mark acknowledged", "name", ev.Mark.Name)
		}
	}
}

func (s *Session) handleStart(ev protocol.StartEvent) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.logger.Warn("duplicate start event ignored")
		return
	}
	s.started = true
	s.streamSID = ev.Start.StreamSID
	s.callSID = ev.Start.CallSID
	s.from = ev.Start.From
	s.mu.Unlock()

	s.engine.Start()
	s.logger.Info("stream started",
		"stream_sid", ev.Start.StreamSID,
		"call_sid", ev.Start.CallSID,
	)
}

func (s *Session) handleMedia(ev protocol.MediaEvent) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		// Audio before start has no stream identity. Drop it.
		return
	}

	raw, err := ev.Audio()
	if err != nil {
		s.logger.Warn("dropping undecodable media payload", "error", err)
		return
	}
	if s.cfg.MaxFrameBytes > 0 && len(raw) > s.cfg.MaxFrameBytes {
		s.logger.Warn("dropping oversized media frame", "bytes", len(raw))
		return
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.engine.HandleFrame(turn.Frame{Seq: seq, PCM: audio.DecodeMulaw(raw)})
}

// onUtterance runs on the engine goroutine. The engine is in Thinking
// and will not produce another utterance until the worker releases it,
// so the buffered send cannot block.
func (s *Session) onUtterance(pcm []int16) {
	select {
	case s.utterances <- pcm:
	default:
		s.logger.Error("utterance dropped, worker wedged")
	}
}

// onBargeIn runs on the engine goroutine after outbound speech was
// cancelled. Flush whatever the carrier has buffered so the caller
// stops hearing us quickly. The socket write happens off the engine
/// goroutine: hooks must not block, and a slow peer would otherwise
// stall frame processing mid-barge-in.
func (s *Session) onBargeIn() {
	s.mu.Lock()
	s.pendingBargeIn = true
	streamSID := s.streamSID
	s.mu.Unlock()

	go func() {
		if err := s.writer.SendJSON(protocol.OutboundClear(streamSID)); err != nil {
			s.logger.Warn("clear event failed", "error", err)
		}
	}()
	s.logger.Info("barge-in, outbound speech cancelled")
}

func (s *Session) turnLoop(ctx context.Context) {
	for pcm := range s.utterances {
		s.runTurn(ctx, pcm)
	}
}

// runTurn drives one utterance through transcribe, orchestrate, and
// speak. Nothing that fails here ends the call: a dead transcriber or
// synthesizer degrades the turn and the engine goes back to listening.
func (s *Session) runTurn(ctx context.Context, pcm []int16) {
	text, ok := s.transcribe(ctx, pcm)
	if !ok {
		s.recordTurn("", dialog.FallbackReply, true)
		s.speak(ctx, dialog.FallbackReply)
		return
	}
	text = strings.TrimSpace(text)
	if len(text) < 3 {
		// Noise that cleared the sample floor but carried no speech.
		s.engine.ResumeListening()
		return
	}

	result := s.deps.Orchestrator.RunTurn(ctx, text, s.convo)

	s.mu.Lock()
	s.toolCalls = append(s.toolCalls, result.Calls...)
	s.mu.Unlock()
	s.recordTurn(text, result.Reply, result.Degraded)

	s.speak(ctx, result.Reply)
}

func (s *Session) transcribe(ctx context.Context, pcm []int16) (string, bool) {
	res, err := s.sttRunner.Do(ctx, func(ctx context.Context) (*stt.Result, error) {
		return s.deps.STT.Transcribe(ctx, pcm, stt.Options{
			SampleRate: s.cfg.Turn.Audio.SampleRate,
		})
	})
	if err != nil {
		s.logger.Warn("transcription failed", "error", err)
		return "", false
	}
	return res.Text, true
}

// speak synthesizes the reply and paces it onto the wire in 20ms frames.
// BeginSpeaking hands the engine a cancel func; if the caller barges in
// the engine fires it and the pacer stops before its next frame.
func (s *Session) speak(ctx context.Context, text string) {
	pcm, err := s.ttsRunner.Do(ctx, func(ctx context.Context) ([]int16, error) {
		return s.deps.TTS.Synthesize(ctx, text, tts.Options{
			Voice:      s.cfg.TTSVoice,
			SampleRate: s.cfg.Turn.Audio.SampleRate,
		})
	})
	if err != nil {
		s.logger.Warn("synthesis failed, skipping reply", "error", err)
		s.engine.ResumeListening()
		return
	}

	speechCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.engine.BeginSpeaking(cancel)

	s.mu.Lock()
	streamSID := s.streamSID
	s.mu.Unlock()

	frameSamples := s.cfg.Turn.Audio.SamplesForDuration(frameInterval)
	if frameSamples <= 0 {
		frameSamples = audio.FrameSamples
	}

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for off := 0; off < len(pcm); off += frameSamples {
		if speechCtx.Err() != nil {
			return
		}
		end := off + frameSamples
		if end > len(pcm) {
			end = len(pcm)
		}
		frame := protocol.OutboundMedia(streamSID, audio.EncodeMulaw(pcm[off:end]))
		if err := s.writer.SendJSON(frame); err != nil {
			s.logger.Warn("outbound media failed", "error", err)
			s.engine.SpeechDone()
			return
		}
		select {
		case <-speechCtx.Done():
			return
		case <-ticker.C:
		}
	}

	if err := s.writer.SendJSON(protocol.OutboundMark(streamSID, "reply-end")); err != nil {
		s.logger.Warn("reply mark failed", "error", err)
	}
	s.engine.SpeechDone()
}

func (s *Session) recordTurn(utterance, reply string, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, audit.TurnEntry{
		At:        time.Now(),
		Utterance: utterance,
		Reply:     reply,
		Degraded:  degraded,
		BargedIn:  s.pendingBargeIn,
	})
	s.pendingBargeIn = false
}

func (s *Session) setEndReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endReason = reason
}

func endReasonFor(ctx context.Context) string {
	if ctx.Err() == context.DeadlineExceeded {
		return EndReasonMaxAge
	}
	return EndReasonShutdown
}

// writeAudit assembles and persists the one record this call produces.
// It runs after both loops have stopped, so the collected state is
// stable. A failed write is logged, never surfaced.
func (s *Session) writeAudit() {
	if s.deps.Audit == nil {
		return
	}

	s.mu.Lock()
	rec := audit.Record{
		SessionID: s.id,
		CallSID:   s.callSID,
		From:      s.from,
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
		EndReason: s.endReason,
		Turns:     s.turns,
		Facts:     map[string]string(s.convo.Facts),
		Intents:   s.convo.Intents.List(),
		ToolCalls: s.toolCalls,
		Outcome:   audit.DeriveOutcome(s.toolCalls),
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Audit.Write(ctx, rec); err != nil {
		s.logger.Error("audit write failed", "error", err)
	}
}
