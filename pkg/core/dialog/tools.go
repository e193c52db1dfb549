package dialog

import (
	"context"
)

// Intent names. Each maps to the tool that serves it.
const (
	IntentCoverageCheck     = "coverage_check"
	IntentAvailabilityCheck = "availability_check"
	IntentBookAppointment   = "book_appointment"
	IntentOfficeInfo        = "office_info"
)

// toolPlan declares when a tool becomes callable: all required slots
// populated, its intent recognized, and any prerequisite tool already
// successful in the trace. Eligibility is re-evaluated every turn, so a
// tool fires the turn its last required slot is filled.
type toolPlan struct {
	intent   string
	tool     string
	required []string
	optional []string
	after    string
	booking  bool
}

var toolPlans = []toolPlan{
	{
		intent:   IntentCoverageCheck,
		tool:     "coverage_check",
		required: []string{SlotPayer},
		optional: []string{SlotPlan, SlotService},
	},
	{
		intent:   IntentAvailabilityCheck,
		tool:     "availability_check",
		required: []string{SlotService, SlotPhone},
		optional: []string{SlotPreferredTime},
	},
	{
		intent:   IntentBookAppointment,
		tool:     "book_appointment",
		required: []string{SlotPatientFirst, SlotPhone, SlotService, SlotPreferredTime},
		optional: []string{SlotPatientLast, SlotPayer},
		after:    "availability_check",
		booking:  true,
	},
	{
		intent: IntentOfficeInfo,
		tool:   "office_info",
	},
}

// intentTools is the recognized-intent allowlist used when sanitizing
// extraction output.
var intentTools = func() map[string]toolPlan {
	m := make(map[string]toolPlan, len(toolPlans))
	for _, p := range toolPlans {
		m[p.intent] = p
	}
	return m
}()

// ToolCallRecord is one entry in a session's tool-call trace, immutable
// once created.
type ToolCallRecord struct {
	Tool           string         `json:"tool"`
	Input          map[string]any `json:"input"`
	Output         map[string]any `json:"output,omitempty"`
	OK             bool           `json:"ok"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// ToolInvoker executes a named tool. idemKey is empty for non-booking
// tools. Implemented by the gateway's tool registry.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, input map[string]any, idemKey string) (map[string]any, error)
}

// Context is the per-call conversation state the orchestrator reads and
// updates. It is owned by the call's session; the orchestrator only
// touches it from the session's turn pipeline.
type Context struct {
	SessionID string
	Facts     Facts
	Intents   *Intents
	Trace     []ToolCallRecord
}

// NewContext returns empty conversation state for a session.
func NewContext(sessionID string) *Context {
	return &Context{
		SessionID: sessionID,
		Facts:     make(Facts),
		Intents:   NewIntents(),
	}
}

// succeeded reports whether the trace already holds a successful call of
// the named tool.
func (c *Context) succeeded(tool string) bool {
	for _, rec := range c.Trace {
		if rec.Tool == tool && rec.OK {
			return true
		}
	}
	return false
}
