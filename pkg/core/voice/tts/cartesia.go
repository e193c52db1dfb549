package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/voicelane/frontdesk/pkg/core"
)

const (
	cartesiaBaseURL = "https://api.cartesia.ai"
	cartesiaVersion = "2025-04-16"

	defaultModel = "sonic-2"
	defaultVoice = "694f9389-aac1-45b6-b726-9d9369183238"
)

// CartesiaProvider implements Provider against Cartesia's TTS bytes API.
type CartesiaProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewCartesia creates a Cartesia TTS provider.
func NewCartesia(apiKey string) *CartesiaProvider {
	return &CartesiaProvider{
		apiKey:     apiKey,
		baseURL:    cartesiaBaseURL,
		httpClient: &http.Client{},
	}
}

// NewCartesiaWithClient creates a Cartesia TTS provider with a custom base
// URL and HTTP client, used by tests.
func NewCartesiaWithClient(apiKey, baseURL string, client *http.Client) *CartesiaProvider {
	return &CartesiaProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: client,
	}
}

// Name returns the provider identifier.
func (c *CartesiaProvider) Name() string {
	return "cartesia"
}

type cartesiaTTSRequest struct {
	ModelID      string         `json:"model_id"`
	Transcript   string         `json:"transcript"`
	Voice        cartesiaVoice  `json:"voice"`
	OutputFormat cartesiaOutput `json:"output_format"`
	Language     string         `json:"language,omitempty"`
	Speed        float64        `json:"speed,omitempty"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutput struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// Synthesize renders text as raw little-endian PCM.
func (c *CartesiaProvider) Synthesize(ctx context.Context, text string, opts Options) ([]int16, error) {
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	voice := opts.Voice
	if voice == "" {
		voice = defaultVoice
	}
	rate := opts.SampleRate
	if rate <= 0 {
		rate = 8000
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}

	payload := cartesiaTTSRequest{
		ModelID:    model,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: voice},
		OutputFormat: cartesiaOutput{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: rate,
		},
		Language: language,
		Speed:    opts.Speed,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.NewTransientError(fmt.Sprintf("cartesia tts request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError("cartesia tts", resp.StatusCode, msg)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewTransientError(fmt.Sprintf("cartesia tts read: %v", err))
	}
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}
	pcm := make([]int16, len(raw)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return pcm, nil
}

func statusError(op string, status int, body []byte) error {
	msg := fmt.Sprintf("%s: status %d: %s", op, status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &core.Error{Type: core.ErrAuthentication, Message: msg}
	case status == http.StatusTooManyRequests:
		return core.NewOverloadedError(msg)
	case status >= 500:
		return core.NewTransientError(msg)
	default:
		return core.NewAPIError(msg)
	}
}
