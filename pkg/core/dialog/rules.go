package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// RuleExtractor is a deterministic extractor built from keyword and pattern
// rules. It backs standalone mode when no generative extractor is
// configured, and the degraded path when the generative one is down.
type RuleExtractor struct{}

// NewRuleExtractor returns the rule-based extractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

var knownPayers = []string{
	"delta dental",
	"blue cross blue shield",
	"blue cross",
	"aetna",
	"cigna",
	"metlife",
	"guardian",
	"humana",
	"united healthcare",
	"unitedhealthcare",
}

var knownServices = []string{
	"cleaning",
	"checkup",
	"check-up",
	"filling",
	"crown",
	"root canal",
	"whitening",
	"extraction",
}

var (
	nameRe  = regexp.MustCompile(`\b(?:[Ii]'?m|[Ii] am|[Mm]y name is|[Tt]his is)\s+([A-Z][a-z]+)(?:\s+([A-Z][a-z]+))?`)
	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	planRe  = regexp.MustCompile(`(?i)\b(ppo|hmo|epo)\b`)
	dobRe   = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	timeRe  = regexp.MustCompile(`(?i)\b(?:next week|tomorrow|today|monday|tuesday|wednesday|thursday|friday|saturday|sunday)(?:\s+(?:morning|afternoon|evening))?\b|\b(?:morning|afternoon|evening)\b`)

	// Unknown payers show up as capitalized phrases after take/accept:
	// "do you take Acme Health?". Case-sensitive so it skips common words.
	payerPhraseRe = regexp.MustCompile(`\b(?:[Tt]ake|[Aa]ccept)\s+((?:[A-Z][A-Za-z]*\s?){1,3})`)
)

// Extract implements Extractor with deterministic rules.
func (r *RuleExtractor) Extract(_ context.Context, utterance string, facts Facts, _ []string) (Extraction, error) {
	lower := strings.ToLower(utterance)
	slots := make(map[string]string)

	if m := nameRe.FindStringSubmatch(utterance); m != nil {
		slots[SlotPatientFirst] = m[1]
		if m[2] != "" {
			slots[SlotPatientLast] = m[2]
		}
	}
	if m := phoneRe.FindString(utterance); m != "" {
		slots[SlotPhone] = m
	}
	if m := dobRe.FindString(utterance); m != "" {
		slots[SlotDateOfBirth] = m
	}
	if m := planRe.FindStringSubmatch(utterance); m != nil {
		slots[SlotPlan] = strings.ToUpper(m[1])
	}
	if m := timeRe.FindString(utterance); m != "" {
		slots[SlotPreferredTime] = strings.ToLower(m)
	}

	payer := matchPayer(utterance, lower)
	if payer != "" {
		slots[SlotPayer] = payer
	}
	for _, svc := range knownServices {
		if strings.Contains(lower, svc) {
			slots[SlotService] = svc
			break
		}
	}

	var intents []string
	if payer != "" || strings.Contains(lower, "insurance") {
		intents = append(intents, IntentCoverageCheck)
	}
	if slots[SlotService] != "" || containsAny(lower, "appointment", "opening", "available", "availability") {
		intents = append(intents, IntentAvailabilityCheck)
	}
	if containsAny(lower, "book", "schedule", "reserve") {
		intents = append(intents, IntentBookAppointment)
	}
	if containsAny(lower, "hours", "address", "located", "location") {
		intents = append(intents, IntentOfficeInfo)
	}

	reply := ""
	if first := slots[SlotPatientFirst]; first != "" && facts[SlotPatientFirst] == "" {
		reply = fmt.Sprintf("Thanks, %s.", first)
	}

	return Extraction{Slots: slots, Intents: intents, Reply: reply}, nil
}

func matchPayer(utterance, lower string) string {
	for _, payer := range knownPayers {
		if strings.Contains(lower, payer) {
			return titleCase(payer)
		}
	}
	if m := payerPhraseRe.FindStringSubmatch(utterance); m != nil {
		phrase := strings.TrimSpace(m[1])
		// The plan type often trails the payer name; it is its own slot.
		phrase = strings.TrimSpace(planRe.ReplaceAllString(phrase, ""))
		if phrase != "" {
			return phrase
		}
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
