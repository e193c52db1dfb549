// Package audit persists one record per finished call: what was said,
// what was learned, what was done.
package audit

import (
	"context"
	"time"

	"github.com/voicelane/frontdesk/pkg/core/dialog"
)

// TurnEntry is one exchange in the call transcript.
type TurnEntry struct {
	At        time.Time `json:"at"`
	Utterance string    `json:"utterance"`
	Reply     string    `json:"reply"`
	Degraded  bool      `json:"degraded,omitempty"`
	BargedIn  bool      `json:"barged_in,omitempty"`
}

// Record is the full session record assembled at teardown. Exactly one
// is written per call, whatever way the call ended.
type Record struct {
	SessionID string                  `json:"session_id"`
	CallSID   string                  `json:"call_sid,omitempty"`
	From      string                  `json:"from,omitempty"`
	StartedAt time.Time               `json:"started_at"`
	EndedAt   time.Time               `json:"ended_at"`
	EndReason string                  `json:"end_reason"`
	Turns     []TurnEntry             `json:"turns"`
	Facts     map[string]string       `json:"facts"`
	Intents   []string                `json:"intents"`
	ToolCalls []dialog.ToolCallRecord `json:"tool_calls"`
	Outcome   string                  `json:"outcome"`
}

// Outcome values, most specific first.
const (
	OutcomeBooked   = "booked"
	OutcomeAnswered = "answered"
	OutcomeNoAction = "no_action"
)

// DeriveOutcome summarizes what the call accomplished from its tool
// trace: a successful booking beats everything, any other successful
// call means the caller got an answer.
func DeriveOutcome(calls []dialog.ToolCallRecord) string {
	answered := false
	for _, call := range calls {
		if !call.OK {
			continue
		}
		if call.Tool == "book_appointment" {
			return OutcomeBooked
		}
		answered = true
	}
	if answered {
		return OutcomeAnswered
	}
	return OutcomeNoAction
}

// Sink persists call records. Write is called once per call from the
// session's teardown path; a failed write is logged there, never
// surfaced to the caller.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}
