// Package config loads gateway configuration from the environment, with
// an optional YAML overlay for the pieces that are awkward as env vars
// (call policies, the office profile).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voicelane/frontdesk/pkg/core/policy"
	"github.com/voicelane/frontdesk/pkg/core/turn"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// Turn detection for live calls.
	Turn turn.Config

	// WebSocket call stream limits.
	MaxAudioFrameBytes  int
	MaxJSONMessageBytes int64
	MaxSessionDuration  time.Duration
	MaxConcurrentCalls  int
	WSWriteTimeout      time.Duration
	WSPingInterval      time.Duration

	// Upstream voice and dialogue providers. Empty keys select the
	// built-in offline stand-ins, which keeps the gateway runnable
	// without any accounts.
	CartesiaAPIKey string
	GeminiAPIKey   string
	GeminiModel    string
	TTSVoice       string

	// External-call policies, keyed by call class.
	PolicySTT       policy.Policy
	PolicyTTS       policy.Policy
	PolicyExtractor policy.Policy

	// Audit persistence. A Postgres URL selects the database sink;
	// otherwise records append to AuditFilePath as JSONL.
	DatabaseURL   string
	AuditFilePath string

	// Office profile served by the built-in tools.
	Office OfficeConfig

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

// OfficeConfig is the practice profile; zero values fall back to the
// built-in demo office.
type OfficeConfig struct {
	Name           string   `yaml:"name"`
	Hours          string   `yaml:"hours"`
	Address        string   `yaml:"address"`
	Phone          string   `yaml:"phone"`
	AcceptedPayers []string `yaml:"accepted_payers"`
}

// fileConfig is the YAML overlay shape; only set fields override.
type fileConfig struct {
	Policies struct {
		STT       *policy.Policy `yaml:"stt"`
		TTS       *policy.Policy `yaml:"tts"`
		Extractor *policy.Policy `yaml:"extractor"`
	} `yaml:"policies"`
	Office *OfficeConfig `yaml:"office"`
}

// LoadFromEnv builds the configuration from FRONTDESK_* variables, then
// applies the YAML overlay named by FRONTDESK_CONFIG if present.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:     envOr("FRONTDESK_ADDR", ":8080"),
		AuthMode: AuthMode(envOr("FRONTDESK_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:  make(map[string]struct{}),
		Turn: turn.Config{
			SilenceThreshold:     envDurationOr("FRONTDESK_TURN_SILENCE_MS", 800*time.Millisecond),
			MaxUtteranceDuration: envDurationOr("FRONTDESK_TURN_MAX_UTTERANCE_MS", 6*time.Second),
			MinUtteranceSamples:  envIntOr("FRONTDESK_TURN_MIN_SAMPLES", 2400),
			BargeInThreshold:     envDurationOr("FRONTDESK_TURN_BARGE_IN_MS", 400*time.Millisecond),
			TickInterval:         envDurationOr("FRONTDESK_TURN_TICK_MS", 150*time.Millisecond),
		},
		MaxAudioFrameBytes:  envIntOr("FRONTDESK_MAX_AUDIO_FRAME_BYTES", 8192),
		MaxJSONMessageBytes: envInt64Or("FRONTDESK_MAX_JSON_MESSAGE_BYTES", 64*1024),
		MaxSessionDuration:  envDurationOr("FRONTDESK_MAX_SESSION_DURATION", time.Hour),
		MaxConcurrentCalls:  envIntOr("FRONTDESK_MAX_CONCURRENT_CALLS", 50),
		WSWriteTimeout:      envDurationOr("FRONTDESK_WS_WRITE_TIMEOUT", 5*time.Second),
		WSPingInterval:      envDurationOr("FRONTDESK_WS_PING_INTERVAL", 20*time.Second),
		CartesiaAPIKey:      envOr("FRONTDESK_CARTESIA_API_KEY", ""),
		GeminiAPIKey:        envOr("FRONTDESK_GEMINI_API_KEY", ""),
		GeminiModel:         envOr("FRONTDESK_GEMINI_MODEL", "gemini-2.0-flash"),
		TTSVoice:            envOr("FRONTDESK_TTS_VOICE", ""),
		PolicySTT:           policy.Default("stt"),
		PolicyTTS:           policy.Default("tts"),
		PolicyExtractor:     policy.Default("extractor"),
		DatabaseURL:         envOr("FRONTDESK_DATABASE_URL", ""),
		AuditFilePath:       envOr("FRONTDESK_AUDIT_FILE", "frontdesk-calls.jsonl"),
		ReadHeaderTimeout:   envDurationOr("FRONTDESK_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("FRONTDESK_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("FRONTDESK_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("FRONTDESK_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	if path := strings.TrimSpace(os.Getenv("FRONTDESK_CONFIG")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read FRONTDESK_CONFIG: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse FRONTDESK_CONFIG: %w", err)
	}
	if fc.Policies.STT != nil {
		cfg.PolicySTT = withPolicyName(*fc.Policies.STT, "stt")
	}
	if fc.Policies.TTS != nil {
		cfg.PolicyTTS = withPolicyName(*fc.Policies.TTS, "tts")
	}
	if fc.Policies.Extractor != nil {
		cfg.PolicyExtractor = withPolicyName(*fc.Policies.Extractor, "extractor")
	}
	if fc.Office != nil {
		cfg.Office = *fc.Office
	}
	return nil
}

func withPolicyName(p policy.Policy, name string) policy.Policy {
	if p.Name == "" {
		p.Name = name
	}
	return p
}

func (cfg Config) validate() error {
	if cfg.Turn.SilenceThreshold <= 0 {
		return fmt.Errorf("FRONTDESK_TURN_SILENCE_MS must be > 0")
	}
	if cfg.Turn.MaxUtteranceDuration <= 0 {
		return fmt.Errorf("FRONTDESK_TURN_MAX_UTTERANCE_MS must be > 0")
	}
	if cfg.Turn.MinUtteranceSamples < 0 {
		return fmt.Errorf("FRONTDESK_TURN_MIN_SAMPLES must be >= 0")
	}
	if cfg.Turn.BargeInThreshold <= 0 {
		return fmt.Errorf("FRONTDESK_TURN_BARGE_IN_MS must be > 0")
	}
	if cfg.Turn.TickInterval <= 0 {
		return fmt.Errorf("FRONTDESK_TURN_TICK_MS must be > 0")
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		return fmt.Errorf("FRONTDESK_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		return fmt.Errorf("FRONTDESK_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.MaxSessionDuration <= 0 {
		return fmt.Errorf("FRONTDESK_MAX_SESSION_DURATION must be > 0")
	}
	if cfg.MaxConcurrentCalls <= 0 {
		return fmt.Errorf("FRONTDESK_MAX_CONCURRENT_CALLS must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return fmt.Errorf("FRONTDESK_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return fmt.Errorf("FRONTDESK_WS_PING_INTERVAL must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("FRONTDESK_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("FRONTDESK_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return fmt.Errorf("FRONTDESK_API_KEYS must be set when FRONTDESK_AUTH_MODE=required")
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	// Accept bare integers as milliseconds for the *_MS variables.
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
