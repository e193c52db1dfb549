package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/voicelane/frontdesk/pkg/core"
)

const (
	cartesiaBaseURL = "https://api.cartesia.ai"
	cartesiaVersion = "2025-04-16"
)

// CartesiaProvider implements Provider against Cartesia's STT API.
type CartesiaProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewCartesia creates a Cartesia STT provider.
func NewCartesia(apiKey string) *CartesiaProvider {
	return &CartesiaProvider{
		apiKey:     apiKey,
		baseURL:    cartesiaBaseURL,
		httpClient: &http.Client{},
	}
}

// NewCartesiaWithClient creates a Cartesia STT provider with a custom base
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

type cartesiaTranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe uploads the utterance as raw little-endian PCM and returns
// the transcript.
func (c *CartesiaProvider) Transcribe(ctx context.Context, pcm []int16, opts Options) (*Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "utterance.pcm")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := binary.Write(fw, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "ink-whisper"
	}
	if err := mw.WriteField("model", model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}
	if err := mw.WriteField("language", language); err != nil {
		return nil, fmt.Errorf("write language field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/stt")
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "pcm_s16le")
	if opts.SampleRate > 0 {
		q.Set("sample_rate", fmt.Sprintf("%d", opts.SampleRate))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.NewTransientError(fmt.Sprintf("cartesia stt request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError("cartesia stt", resp.StatusCode, body)
	}

	var cr cartesiaTranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, core.NewTransientError(fmt.Sprintf("cartesia stt decode: %v", err))
	}

	return &Result{
		Text:     cr.Text,
		Language: cr.Language,
		Duration: cr.Duration,
	}, nil
}

// statusError classifies an upstream status so the call policy retries
// only what is worth retrying.
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
