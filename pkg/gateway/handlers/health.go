package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/voicelane/frontdesk/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		AuthMode string   `json:"auth_mode"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	if h.Config.Turn.SilenceThreshold <= 0 || h.Config.Turn.MaxUtteranceDuration <= 0 {
		issues = append(issues, "turn thresholds must be > 0")
	}
	if h.Config.MaxAudioFrameBytes <= 0 || h.Config.MaxJSONMessageBytes <= 0 {
		issues = append(issues, "frame and message limits must be > 0")
	}
	if h.Config.MaxSessionDuration <= 0 {
		issues = append(issues, "max session duration must be > 0")
	}
	if h.Config.MaxConcurrentCalls <= 0 {
		issues = append(issues, "max concurrent calls must be > 0")
	}
	if h.Config.CartesiaAPIKey == "" {
		issues = append(issues, "no speech provider key configured, turns will degrade")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:       ok,
		AuthMode: string(h.Config.AuthMode),
		Issues:   issues,
	})
}
