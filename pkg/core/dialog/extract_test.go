package dialog

import (
	"testing"
)

func TestParseExtraction_Plain(t *testing.T) {
	raw := `{"slots":{"patient_first":"Maya","insurance_payer":"Delta Dental"},"intents":["coverage_check"],"reply":"Hi Maya!"}`
	ext, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction() error = %v", err)
	}
	if ext.Slots[SlotPatientFirst] != "Maya" {
		t.Errorf("patient_first = %q, want Maya", ext.Slots[SlotPatientFirst])
	}
	if len(ext.Intents) != 1 || ext.Intents[0] != IntentCoverageCheck {
		t.Errorf("intents = %v, want [coverage_check]", ext.Intents)
	}
	if ext.Reply != "Hi Maya!" {
		t.Errorf("reply = %q, want %q", ext.Reply, "Hi Maya!")
	}
}

func TestParseExtraction_StripsCodeFences(t *testing.T) {
	raw := "```json\n{\"slots\":{\"service\":\"cleaning\"}}\n```"
	ext, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction() error = %v", err)
	}
	if ext.Slots[SlotService] != "cleaning" {
		t.Errorf("service = %q, want cleaning", ext.Slots[SlotService])
	}
}

func TestParseExtraction_CoercesLooseTypes(t *testing.T) {
	raw := `{"slots":{"phone":5551234567,"service":"cleaning","preferred_time":null},"intents":["availability_check",42]}`
	ext, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction() error = %v", err)
	}
	if ext.Slots[SlotPhone] == "" {
		t.Errorf("numeric phone dropped, want coerced string")
	}
	if _, ok := ext.Slots[SlotPreferredTime]; ok {
		t.Errorf("null slot kept, want dropped")
	}
	if len(ext.Intents) != 1 {
		t.Errorf("intents = %v, want only the string intent", ext.Intents)
	}
}

func TestParseExtraction_MalformedIsError(t *testing.T) {
	if _, err := ParseExtraction("not json at all"); err == nil {
		t.Fatalf("ParseExtraction(garbage) error = nil, want error")
	}
	if _, err := ParseExtraction(""); err == nil {
		t.Fatalf("ParseExtraction(empty) error = nil, want error")
	}
}

func TestExtraction_SanitizeDropsFieldsIndividually(t *testing.T) {
	ext := Extraction{
		Slots: map[string]string{
			SlotService:      "cleaning",
			"shoe_size":      "11",
			SlotPatientFirst: "Maya",
		},
		Intents: []string{IntentCoverageCheck, "order_pizza"},
	}

	dropped := ext.Sanitize()
	if len(dropped) != 2 {
		t.Errorf("dropped = %v, want 2 entries", dropped)
	}
	if _, ok := ext.Slots["shoe_size"]; ok {
		t.Errorf("unknown slot survived sanitize")
	}
	if ext.Slots[SlotService] != "cleaning" || ext.Slots[SlotPatientFirst] != "Maya" {
		t.Errorf("valid slots dropped: %v", ext.Slots)
	}
	if len(ext.Intents) != 1 || ext.Intents[0] != IntentCoverageCheck {
		t.Errorf("intents = %v, want [coverage_check]", ext.Intents)
	}
}
