package dialog

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/voicelane/frontdesk/pkg/core"
)

const extractionPrompt = `You are the extraction step of a dental front-desk phone agent.

The caller just said: %q

Known facts so far: %s
Intents recognized so far: %s

Extract new information as JSON with this exact shape:
{"slots": {...}, "intents": [...], "reply": "..."}

Allowed slot names: patient_first, patient_last, date_of_birth, phone,
insurance_payer, insurance_plan, service, preferred_time.
Allowed intents: coverage_check, availability_check, book_appointment, office_info.

Only include slots the caller actually stated this turn. "reply" is one
short conversational sentence acknowledging the caller; leave it empty if
a tool result will carry the reply. Respond with JSON only.`

// GeminiExtractor runs extraction through the Gemini API in JSON mode.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiExtractor creates an extractor against the Gemini API.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

// Extract implements Extractor.
func (g *GeminiExtractor) Extract(ctx context.Context, utterance string, facts Facts, intents []string) (Extraction, error) {
	prompt := fmt.Sprintf(extractionPrompt, utterance, formatFacts(facts), formatIntents(intents))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return Extraction{}, core.NewTransientError(fmt.Sprintf("gemini extraction: %v", err))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Extraction{}, fmt.Errorf("empty gemini response")
	}
	return ParseExtraction(text)
}

func formatFacts(facts Facts) string {
	if len(facts) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(facts))
	for name, value := range facts {
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, ", ")
}

func formatIntents(intents []string) string {
	if len(intents) == 0 {
		return "none"
	}
	return strings.Join(intents, ", ")
}
