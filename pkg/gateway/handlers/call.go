// Package handlers holds the gateway's HTTP endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voicelane/frontdesk/pkg/gateway/call/session"
	"github.com/voicelane/frontdesk/pkg/gateway/config"
	"github.com/voicelane/frontdesk/pkg/gateway/mw"
)

// CallHandler upgrades /v1/call to a websocket and runs one session per
// connection. Concurrency shedding happens in middleware before the
// upgrade, so by the time this runs the call has a slot.
type CallHandler struct {
	Config    config.Config
	Deps      session.Deps
	Directory session.Directory
	Logger    *slog.Logger
}

func (h CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := h.assignHandle(r.Context())

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	if h.Logger != nil {
		reqID := mw.RequestIDFromContext(r.Context())
		h.Logger.Info("call connected", "session_id", id, "request_id", reqID)
	}

	sess := session.New(id, conn, sessionConfig(h.Config), h.Deps)
	sess.Run(r.Context())
}

// assignHandle asks the directory for the call's session handle. A dead
// directory degrades to a locally minted handle, never a refused call.
func (h CallHandler) assignHandle(ctx context.Context) string {
	dir := h.Directory
	if dir == nil {
		dir = session.LocalDirectory{}
	}
	id, err := dir.Assign(ctx)
	if err == nil && id != "" {
		return id
	}
	if err != nil && h.Logger != nil {
		h.Logger.Warn("session directory unavailable, using local handle", "error", err)
	}
	id, _ = session.LocalDirectory{}.Assign(ctx)
	return id
}

func sessionConfig(cfg config.Config) session.Config {
	return session.Config{
		Turn:               cfg.Turn,
		WriteTimeout:       cfg.WSWriteTimeout,
		PingInterval:       cfg.WSPingInterval,
		MaxSessionDuration: cfg.MaxSessionDuration,
		MaxFrameBytes:      cfg.MaxAudioFrameBytes,
		MaxMessageBytes:    cfg.MaxJSONMessageBytes,
		TTSVoice:           cfg.TTSVoice,
		PolicySTT:          cfg.PolicySTT,
		PolicyTTS:          cfg.PolicyTTS,
	}
}
