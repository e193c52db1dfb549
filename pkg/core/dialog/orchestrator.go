package dialog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/voicelane/frontdesk/pkg/core/policy"
)

// FallbackReply is spoken whenever a turn cannot be processed. The caller
// hears a request to repeat, never a dropped line.
const FallbackReply = "I'm sorry, I didn't catch that. Could you say it again?"

// TurnResult is what one utterance produced.
type TurnResult struct {
	Reply        string
	ChangedFacts map[string]string
	NewIntents   []string
	Calls        []ToolCallRecord
	Degraded     bool
}

// Orchestrator drives the dialogue policy for finalized utterances.
type Orchestrator struct {
	extractor Extractor
	invoker   ToolInvoker
	runner    *policy.Runner[Extraction]
	logger    *slog.Logger
}

// NewOrchestrator wires an extractor and tool invoker under the given
// external-call policy.
func NewOrchestrator(extractor Extractor, invoker ToolInvoker, pol policy.Policy, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if pol.Name == "" {
		pol = policy.Default("extractor")
	}
	return &Orchestrator{
		extractor: extractor,
		invoker:   invoker,
		runner:    policy.NewRunner[Extraction](pol, logger),
		logger:    logger,
	}
}

// RunTurn processes one utterance against the conversation state: extract,
// merge facts, record intents, issue eligible tool calls, compose the
// reply. Extraction failure is non-fatal; the turn degrades to a spoken
// fallback with facts unchanged.
func (o *Orchestrator) RunTurn(ctx context.Context, utterance string, convo *Context) TurnResult {
	result := TurnResult{ChangedFacts: map[string]string{}}

	ext, err := o.runner.Do(ctx, func(ctx context.Context) (Extraction, error) {
		return o.extractor.Extract(ctx, utterance, convo.Facts.Clone(), convo.Intents.List())
	})
	if err != nil {
		o.logger.Warn("extraction failed, continuing with facts unchanged",
			"session_id", convo.SessionID,
			"error", err,
		)
		result.Reply = FallbackReply
		result.Degraded = true
		return result
	}

	if dropped := ext.Sanitize(); len(dropped) > 0 {
		o.logger.Info("dropped invalid extraction fields",
			"session_id", convo.SessionID,
			"fields", dropped,
		)
	}

	result.ChangedFacts = convo.Facts.Merge(ext.Slots)
	for _, intent := range ext.Intents {
		if convo.Intents.Add(intent) {
			result.NewIntents = append(result.NewIntents, intent)
		}
	}

	result.Calls = o.issueCalls(ctx, convo)
	result.Reply = o.composeReply(ext.Reply, result.Calls)
	return result
}

// issueCalls walks the tool plans and invokes every tool whose intent is
// recognized, whose required slots are all populated, whose prerequisite
// tool (if any) has succeeded, and which has not already succeeded for
// this session.
func (o *Orchestrator) issueCalls(ctx context.Context, convo *Context) []ToolCallRecord {
	if o.invoker == nil {
		return nil
	}

	var calls []ToolCallRecord
	for _, plan := range toolPlans {
		if !convo.Intents.Has(plan.intent) {
			continue
		}
		if convo.succeeded(plan.tool) {
			continue
		}
		if plan.after != "" && !convo.succeeded(plan.after) {
			continue
		}
		if !convo.Facts.Has(plan.required...) {
			continue
		}

		input := make(map[string]any, len(plan.required)+len(plan.optional))
		for _, slot := range plan.required {
			input[slot] = convo.Facts[slot]
		}
		for _, slot := range plan.optional {
			if v := convo.Facts[slot]; v != "" {
				input[slot] = v
			}
		}

		idemKey := ""
		if plan.booking {
			idemKey = bookingKey(convo.SessionID, plan.tool, input)
		}

		rec := ToolCallRecord{Tool: plan.tool, Input: input, IdempotencyKey: idemKey}
		output, err := o.invoker.Invoke(ctx, plan.tool, input, idemKey)
		if err != nil {
			o.logger.Warn("tool call failed",
				"session_id", convo.SessionID,
				"tool", plan.tool,
				"error", err,
			)
		} else {
			rec.Output = output
			rec.OK = true
		}
		convo.Trace = append(convo.Trace, rec)
		calls = append(calls, rec)
	}
	return calls
}

// bookingKey derives a stable idempotency key from the session and the
// booking inputs, so a re-decided booking within a call repeats the same
// key and cannot double-book.
func bookingKey(sessionID, tool string, input map[string]any) string {
	names := make([]string, 0, len(input))
	for name := range input {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s", sessionID, tool)
	for _, name := range names {
		fmt.Fprintf(h, "|%s=%v", name, input[name])
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func (o *Orchestrator) composeReply(base string, calls []ToolCallRecord) string {
	parts := make([]string, 0, 1+len(calls))
	if base = strings.TrimSpace(base); base != "" {
		parts = append(parts, base)
	}
	for _, call := range calls {
		if s := describeCall(call); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return FallbackReply
	}
	return strings.Join(parts, " ")
}

func describeCall(rec ToolCallRecord) string {
	if !rec.OK {
		return "I'm having trouble checking that right now, but I can try again in a moment."
	}
	switch rec.Tool {
	case "coverage_check":
		payer, _ := rec.Input[SlotPayer].(string)
		if accepted, _ := rec.Output["accepted"].(bool); accepted {
			return fmt.Sprintf("Good news — we do accept %s.", payer)
		}
		return fmt.Sprintf("I'm sorry, we don't currently accept %s.", payer)
	case "availability_check":
		if slots, ok := rec.Output["slots"].([]any); ok && len(slots) > 0 {
			first, _ := slots[0].(string)
			return fmt.Sprintf("The earliest opening I see is %s.", first)
		}
		return "I don't see any openings right now."
	case "book_appointment":
		if id, _ := rec.Output["confirmation_id"].(string); id != "" {
			return fmt.Sprintf("You're all set — your confirmation number is %s.", id)
		}
		return "Your appointment is booked."
	case "office_info":
		if hours, _ := rec.Output["hours"].(string); hours != "" {
			return fmt.Sprintf("We're open %s.", hours)
		}
	}
	return ""
}
