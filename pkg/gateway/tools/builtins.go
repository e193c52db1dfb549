package tools

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Builtins returns the four front-desk tools backed by the office
// directory. Booking confirmations are minted with ULIDs so records sort
// by creation time.
func Builtins(office Office) []Executor {
	return []Executor{
		&coverageCheck{office: office},
		&availabilityCheck{office: office},
		&bookAppointment{office: office},
		&officeInfo{office: office},
	}
}

// Office is the practice data the built-in tools consult. A real
// deployment would put a practice-management system behind this; the
// defaults make the gateway fully usable standalone.
type Office struct {
	Name           string
	Hours          string
	Address        string
	Phone          string
	AcceptedPayers []string
}

// DefaultOffice returns the demo practice profile.
func DefaultOffice() Office {
	return Office{
		Name:    "Lakeview Dental",
		Hours:   "Monday through Friday, 8 AM to 5 PM",
		Address: "200 Lakeview Avenue, Suite 310",
		Phone:   "+15550100200",
		AcceptedPayers: []string{
			"Delta Dental",
			"Blue Cross Blue Shield",
			"Aetna",
			"Cigna",
			"MetLife",
			"Guardian",
		},
	}
}

func (o Office) accepts(payer string) bool {
	for _, p := range o.AcceptedPayers {
		if strings.EqualFold(p, payer) {
			return true
		}
	}
	return false
}

type coverageCheck struct {
	office Office
}

func (t *coverageCheck) Name() string { return "coverage_check" }

func (t *coverageCheck) Definition() Definition {
	return Definition{
		Name:        "coverage_check",
		Description: "Checks whether the practice accepts an insurance payer.",
		InputSchema: []byte(`{
			"type": "object",
			"properties": {
				"insurance_payer": {"type": "string", "minLength": 1},
				"insurance_plan": {"type": "string"},
				"service": {"type": "string"}
			},
			"required": ["insurance_payer"],
			"additionalProperties": false
		}`),
		OutputSchema: []byte(`{
			"type": "object",
			"properties": {
				"ok": {"type": "boolean"},
				"accepted": {"type": "boolean"},
				"payer": {"type": "string"}
			},
			"required": ["ok", "accepted", "payer"],
			"additionalProperties": true
		}`),
	}
}

func (t *coverageCheck) Execute(_ context.Context, input map[string]any) (map[string]any, error) {
	payer, _ := input["insurance_payer"].(string)
	return map[string]any{
		"ok":       true,
		"accepted": t.office.accepts(payer),
		"payer":    payer,
	}, nil
}

type availabilityCheck struct {
	office Office
}

func (t *availabilityCheck) Name() string { return "availability_check" }

func (t *availabilityCheck) Definition() Definition {
	return Definition{
		Name:        "availability_check",
		Description: "Lists upcoming appointment openings for a service.",
		InputSchema: []byte(`{
			"type": "object",
			"properties": {
				"service": {"type": "string", "minLength": 1},
				"phone": {"type": "string", "pattern": "^\\+[0-9]{8,15}$"},
				"preferred_time": {"type": "string"}
			},
			"required": ["service", "phone"],
			"additionalProperties": false
		}`),
		OutputSchema: []byte(`{
			"type": "object",
			"properties": {
				"ok": {"type": "boolean"},
				"slots": {"type": "array", "items": {"type": "string"}}
			},
			"required": ["ok", "slots"],
			"additionalProperties": true
		}`),
	}
}

// Execute derives a stable slate of openings from the request, so the
// same question gets the same answer within a call.
func (t *availabilityCheck) Execute(_ context.Context, input map[string]any) (map[string]any, error) {
	service, _ := input["service"].(string)
	preferred, _ := input["preferred_time"].(string)

	seed := sha256.Sum256([]byte(service + "|" + preferred))
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:8]))))

	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	hours := []string{"9:00 AM", "10:30 AM", "1:00 PM", "2:30 PM", "4:00 PM"}
	slots := make([]any, 0, 3)
	for len(slots) < 3 {
		slot := days[rng.Intn(len(days))] + " " + hours[rng.Intn(len(hours))]
		dup := false
		for _, s := range slots {
			if s == slot {
				dup = true
			}
		}
		if !dup {
			slots = append(slots, slot)
		}
	}
	return map[string]any{"ok": true, "slots": slots}, nil
}

type bookAppointment struct {
	office Office

	mu sync.Mutex
	// entropy is lazily seeded; tests never depend on the ID value.
	entropy *ulid.MonotonicEntropy
}

func (t *bookAppointment) Name() string { return "book_appointment" }

func (t *bookAppointment) Definition() Definition {
	return Definition{
		Name:        "book_appointment",
		Description: "Books an appointment. Idempotent per booking key.",
		Booking:     true,
		InputSchema: []byte(`{
			"type": "object",
			"properties": {
				"patient_first": {"type": "string", "minLength": 1},
				"patient_last": {"type": "string"},
				"phone": {"type": "string", "pattern": "^\\+[0-9]{8,15}$"},
				"service": {"type": "string", "minLength": 1},
				"preferred_time": {"type": "string", "minLength": 1},
				"insurance_payer": {"type": "string"}
			},
			"required": ["patient_first", "phone", "service", "preferred_time"],
			"additionalProperties": false
		}`),
		OutputSchema: []byte(`{
			"type": "object",
			"properties": {
				"ok": {"type": "boolean"},
				"confirmation_id": {"type": "string", "minLength": 1},
				"scheduled_for": {"type": "string"}
			},
			"required": ["ok", "confirmation_id", "scheduled_for"],
			"additionalProperties": true
		}`),
	}
}

func (t *bookAppointment) Execute(_ context.Context, input map[string]any) (map[string]any, error) {
	preferred, _ := input["preferred_time"].(string)

	t.mu.Lock()
	if t.entropy == nil {
		t.entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	}
	id := ulid.MustNew(ulid.Timestamp(time.Now()), t.entropy)
	t.mu.Unlock()

	return map[string]any{
		"ok":              true,
		"confirmation_id": fmt.Sprintf("APT-%s", id),
		"scheduled_for":   preferred,
	}, nil
}

type officeInfo struct {
	office Office
}

func (t *officeInfo) Name() string { return "office_info" }

func (t *officeInfo) Definition() Definition {
	return Definition{
		Name:        "office_info",
		Description: "Returns practice hours, address, and phone.",
		InputSchema: []byte(`{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
		OutputSchema: []byte(`{
			"type": "object",
			"properties": {
				"ok": {"type": "boolean"},
				"hours": {"type": "string"},
				"address": {"type": "string"},
				"phone": {"type": "string"}
			},
			"required": ["ok", "hours", "address", "phone"],
			"additionalProperties": true
		}`),
	}
}

func (t *officeInfo) Execute(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		"ok":      true,
		"hours":   t.office.Hours,
		"address": t.office.Address,
		"phone":   t.office.Phone,
	}, nil
}
