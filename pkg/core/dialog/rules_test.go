package dialog

import (
	"context"
	"testing"
)

func extract(t *testing.T, utterance string) Extraction {
	t.Helper()
	ext, err := NewRuleExtractor().Extract(context.Background(), utterance, make(Facts), nil)
	if err != nil {
		t.Fatalf("Extract(%q) error = %v", utterance, err)
	}
	return ext
}

func TestRuleExtractor_NameAndCoverage(t *testing.T) {
	ext := extract(t, "Hi, I'm Maya Patel. Do you take Delta Dental PPO for a cleaning?")

	if ext.Slots[SlotPatientFirst] != "Maya" {
		t.Errorf("patient_first = %q, want Maya", ext.Slots[SlotPatientFirst])
	}
	if ext.Slots[SlotPatientLast] != "Patel" {
		t.Errorf("patient_last = %q, want Patel", ext.Slots[SlotPatientLast])
	}
	if ext.Slots[SlotPayer] != "Delta Dental" {
		t.Errorf("insurance_payer = %q, want Delta Dental", ext.Slots[SlotPayer])
	}
	if ext.Slots[SlotPlan] != "PPO" {
		t.Errorf("insurance_plan = %q, want PPO", ext.Slots[SlotPlan])
	}
	if ext.Slots[SlotService] != "cleaning" {
		t.Errorf("service = %q, want cleaning", ext.Slots[SlotService])
	}

	hasCoverage := false
	for _, intent := range ext.Intents {
		if intent == IntentCoverageCheck {
			hasCoverage = true
		}
	}
	if !hasCoverage {
		t.Errorf("intents = %v, want coverage_check present", ext.Intents)
	}
}

func TestRuleExtractor_UnknownPayerStillCaptured(t *testing.T) {
	ext := extract(t, "Do you take Acme Health?")
	if ext.Slots[SlotPayer] != "Acme Health" {
		t.Errorf("insurance_payer = %q, want Acme Health", ext.Slots[SlotPayer])
	}
}

func TestRuleExtractor_Phone(t *testing.T) {
	ext := extract(t, "My number is 555-123-4567.")
	if ext.Slots[SlotPhone] != "555-123-4567" {
		t.Errorf("phone = %q, want raw capture", ext.Slots[SlotPhone])
	}
}

func TestRuleExtractor_BookingAndTime(t *testing.T) {
	ext := extract(t, "Can you book me for tomorrow morning?")

	if ext.Slots[SlotPreferredTime] != "tomorrow morning" {
		t.Errorf("preferred_time = %q, want %q", ext.Slots[SlotPreferredTime], "tomorrow morning")
	}
	hasBooking := false
	for _, intent := range ext.Intents {
		if intent == IntentBookAppointment {
			hasBooking = true
		}
	}
	if !hasBooking {
		t.Errorf("intents = %v, want book_appointment present", ext.Intents)
	}
}

func TestRuleExtractor_OfficeInfo(t *testing.T) {
	ext := extract(t, "What are your hours?")
	hasInfo := false
	for _, intent := range ext.Intents {
		if intent == IntentOfficeInfo {
			hasInfo = true
		}
	}
	if !hasInfo {
		t.Errorf("intents = %v, want office_info present", ext.Intents)
	}
}

func TestRuleExtractor_NoFalseNameFromLowercase(t *testing.T) {
	ext := extract(t, "I'm calling about an appointment.")
	if _, ok := ext.Slots[SlotPatientFirst]; ok {
		t.Errorf("patient_first = %q, want no capture from 'I'm calling'", ext.Slots[SlotPatientFirst])
	}
}
