package mw

import (
	"net/http"

	"github.com/voicelane/frontdesk/pkg/core"
)

// CallGate caps concurrent call sessions. A full gate sheds the new call
// before the websocket upgrade rather than degrading the calls already
// in flight.
type CallGate struct {
	sem chan struct{}
}

// NewCallGate returns a gate admitting up to max concurrent calls.
func NewCallGate(max int) *CallGate {
	if max <= 0 {
		max = 1
	}
	return &CallGate{sem: make(chan struct{}, max)}
}

// Acquire claims a slot; release by calling the returned func.
func (g *CallGate) Acquire() (release func(), ok bool) {
	select {
	case g.sem <- struct{}{}:
		return func() { <-g.sem }, true
	default:
		return nil, false
	}
}

// InFlight reports the number of claimed slots.
func (g *CallGate) InFlight() int {
	return len(g.sem)
}

// LimitCalls sheds requests when the gate is full.
func LimitCalls(gate *CallGate, next http.Handler) http.Handler {
	if gate == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release, ok := gate.Acquire()
		if !ok {
			reqID, _ := RequestIDFrom(r.Context())
			writeJSONError(w, http.StatusTooManyRequests, &core.Error{
				Type:      core.ErrOverloaded,
				Message:   "concurrent call limit reached",
				RequestID: reqID,
			})
			return
		}
		defer release()
		next.ServeHTTP(w, r)
	})
}
