// Package dialog turns finalized utterance text into structured facts,
// recognized intents, tool-call decisions, and reply text.
package dialog

import (
	"strings"
)

// Slot names the orchestrator knows how to fill. Anything else coming back
// from an extractor is dropped.
const (
	SlotPatientFirst  = "patient_first"
	SlotPatientLast   = "patient_last"
	SlotDateOfBirth   = "date_of_birth"
	SlotPhone         = "phone"
	SlotPayer         = "insurance_payer"
	SlotPlan          = "insurance_plan"
	SlotService       = "service"
	SlotPreferredTime = "preferred_time"
)

// identitySlots are fixed once set: a later turn can never rename the
// patient, even with a non-null value.
var identitySlots = map[string]bool{
	SlotPatientFirst: true,
	SlotPatientLast:  true,
	SlotDateOfBirth:  true,
}

var knownSlots = map[string]bool{
	SlotPatientFirst:  true,
	SlotPatientLast:   true,
	SlotDateOfBirth:   true,
	SlotPhone:         true,
	SlotPayer:         true,
	SlotPlan:          true,
	SlotService:       true,
	SlotPreferredTime: true,
}

// KnownSlot reports whether name is a slot the orchestrator tracks.
func KnownSlot(name string) bool {
	return knownSlots[name]
}

// Facts is the monotonically filled slot mapping for one call. Values are
// never rolled back: a populated slot cannot be reset to empty, and
// identity slots cannot change at all.
type Facts map[string]string

// Merge applies updates and returns the slots that actually changed.
//
// Rules: empty values never overwrite populated slots; identity slots are
// write-once; other slots are last-non-null-wins. Phone values are
// normalized to E.164 and dropped when normalization fails.
func (f Facts) Merge(updates map[string]string) map[string]string {
	changed := make(map[string]string)
	for name, value := range updates {
		if !knownSlots[name] {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if name == SlotPhone {
			value = NormalizePhone(value)
			if value == "" {
				continue
			}
		}
		existing, populated := f[name]
		if populated && existing != "" {
			if identitySlots[name] {
				continue
			}
			if existing == value {
				continue
			}
		}
		f[name] = value
		changed[name] = value
	}
	return changed
}

// Has reports whether every named slot is populated.
func (f Facts) Has(names ...string) bool {
	for _, name := range names {
		if strings.TrimSpace(f[name]) == "" {
			return false
		}
	}
	return true
}

// Clone returns a copy of the fact mapping.
func (f Facts) Clone() Facts {
	out := make(Facts, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// NormalizePhone converts a spoken or formatted phone number to E.164.
// Returns "" when the input cannot be a valid number. Bare 10-digit
// numbers are assumed to be NANP.
func NormalizePhone(s string) string {
	hasPlus := strings.HasPrefix(strings.TrimSpace(s), "+")
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && strings.HasPrefix(d, "1"):
		return "+" + d
	case hasPlus && len(d) >= 8 && len(d) <= 15:
		return "+" + d
	default:
		return ""
	}
}

// Intents is an insertion-ordered, deduplicated set of recognized intents.
type Intents struct {
	order []string
	seen  map[string]struct{}
}

// NewIntents returns an empty intent set.
func NewIntents() *Intents {
	return &Intents{seen: make(map[string]struct{})}
}

// Add records an intent; duplicates are ignored. Returns true when the
// intent was new.
func (s *Intents) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if _, ok := s.seen[name]; ok {
		return false
	}
	s.seen[name] = struct{}{}
	s.order = append(s.order, name)
	return true
}

// Has reports whether the intent has been recorded.
func (s *Intents) Has(name string) bool {
	_, ok := s.seen[name]
	return ok
}

// List returns the intents in first-recognized order.
func (s *Intents) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
