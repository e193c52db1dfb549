package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Extraction is the structured output of one extraction pass over an
// utterance. It arrives from a generative model and is untrusted until
// sanitized.
type Extraction struct {
	Slots   map[string]string `json:"slots,omitempty"`
	Intents []string          `json:"intents,omitempty"`
	Reply   string            `json:"reply,omitempty"`
}

// Extractor turns utterance text plus conversation state into an Extraction.
type Extractor interface {
	Extract(ctx context.Context, utterance string, facts Facts, intents []string) (Extraction, error)
}

// codeFenceRe matches markdown code fences wrapping JSON.
var codeFenceRe = regexp.MustCompile("(?si)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseExtraction decodes a raw model payload. A malformed payload is an
// error for the caller to log; it never aborts the turn.
func ParseExtraction(raw string) (Extraction, error) {
	raw = stripCodeFences(raw)
	if raw == "" {
		return Extraction{}, fmt.Errorf("empty extraction payload")
	}

	// Models sometimes hand back loosely typed slot values; decode into a
	// permissive shape first and coerce strings field by field.
	var loose struct {
		Slots   map[string]any `json:"slots"`
		Intents []any          `json:"intents"`
		Reply   string         `json:"reply"`
	}
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return Extraction{}, fmt.Errorf("decode extraction: %w", err)
	}

	out := Extraction{Reply: strings.TrimSpace(loose.Reply)}
	if len(loose.Slots) > 0 {
		out.Slots = make(map[string]string, len(loose.Slots))
		for name, v := range loose.Slots {
			if s, ok := coerceString(v); ok {
				out.Slots[name] = s
			}
		}
	}
	for _, v := range loose.Intents {
		if s, ok := coerceString(v); ok {
			out.Intents = append(out.Intents, s)
		}
	}
	return out, nil
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", t)), true
	default:
		return "", false
	}
}

// Sanitize drops unknown slots and intents field by field, returning what
// was dropped so the caller can log it. Invalid fields never reject the
// rest of the extraction.
func (e *Extraction) Sanitize() (dropped []string) {
	for name := range e.Slots {
		if !KnownSlot(name) {
			dropped = append(dropped, "slot:"+name)
			delete(e.Slots, name)
		}
	}
	kept := e.Intents[:0]
	for _, intent := range e.Intents {
		if _, ok := intentTools[intent]; !ok {
			dropped = append(dropped, "intent:"+intent)
			continue
		}
		kept = append(kept, intent)
	}
	e.Intents = kept
	return dropped
}
