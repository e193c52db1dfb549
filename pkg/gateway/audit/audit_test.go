package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voicelane/frontdesk/pkg/core/dialog"
)

func TestDeriveOutcome(t *testing.T) {
	tests := []struct {
		name  string
		calls []dialog.ToolCallRecord
		want  string
	}{
		{"no calls", nil, OutcomeNoAction},
		{"only failures", []dialog.ToolCallRecord{{Tool: "coverage_check", OK: false}}, OutcomeNoAction},
		{"answered", []dialog.ToolCallRecord{{Tool: "coverage_check", OK: true}}, OutcomeAnswered},
		{"booked wins", []dialog.ToolCallRecord{
			{Tool: "coverage_check", OK: true},
			{Tool: "book_appointment", OK: true},
		}, OutcomeBooked},
		{"failed booking is not booked", []dialog.ToolCallRecord{
			{Tool: "coverage_check", OK: true},
			{Tool: "book_appointment", OK: false},
		}, OutcomeAnswered},
	}
	for _, tt := range tests {
		if got := DeriveOutcome(tt.calls); got != tt.want {
			t.Errorf("%s: DeriveOutcome() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func sampleRecord() Record {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	return Record{
		SessionID: "sess-9",
		CallSID:   "CA123",
		From:      "+15551234567",
		StartedAt: start,
		EndedAt:   start.Add(90 * time.Second),
		EndReason: "caller_hangup",
		Turns: []TurnEntry{
			{At: start.Add(2 * time.Second), Utterance: "do you take aetna", Reply: "Good news — we do accept Aetna."},
		},
		Facts:   map[string]string{"insurance_payer": "Aetna"},
		Intents: []string{"coverage_check"},
		ToolCalls: []dialog.ToolCallRecord{
			{Tool: "coverage_check", OK: true, Output: map[string]any{"accepted": true}},
		},
		Outcome: OutcomeAnswered,
	}
}

func TestFileSink_AppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink() error = %v", err)
	}

	rec := sampleRecord()
	if err := sink.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	rec.SessionID = "sess-10"
	if err := sink.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var got Record
		if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		ids = append(ids, got.SessionID)
	}
	if len(ids) != 2 || ids[0] != "sess-9" || ids[1] != "sess-10" {
		t.Errorf("session ids = %v", ids)
	}
}

type fakeConn struct {
	sql    string
	args   []any
	closed bool
}

func (f *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeConn) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestPostgresSink_WriteShapesRow(t *testing.T) {
	conn := &fakeConn{}
	sink := NewPostgresSinkWithConn(conn)

	rec := sampleRecord()
	if err := sink.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(conn.args) != 11 {
		t.Fatalf("args = %d, want 11", len(conn.args))
	}
	if conn.args[0] != "sess-9" || conn.args[6] != OutcomeAnswered {
		t.Errorf("args = %v", conn.args)
	}

	var facts map[string]string
	if err := json.Unmarshal(conn.args[8].([]byte), &facts); err != nil {
		t.Fatalf("facts arg not JSON: %v", err)
	}
	if facts["insurance_payer"] != "Aetna" {
		t.Errorf("facts = %v", facts)
	}

	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
}
