package audit

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Execer is the database surface the sink needs; *pgx.Conn satisfies it,
// tests substitute a recorder.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// PostgresSink writes call records to the call_records table.
type PostgresSink struct {
	conn Execer
}

// NewPostgresSink connects to the database and applies pending
// migrations before accepting writes.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	if err := migrate(dsn); err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	return &PostgresSink{conn: conn}, nil
}

// NewPostgresSinkWithConn wraps an existing connection, used by tests.
func NewPostgresSinkWithConn(conn Execer) *PostgresSink {
	return &PostgresSink{conn: conn}
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply audit migrations: %w", err)
	}
	return nil
}

const insertRecordSQL = `
INSERT INTO call_records
    (session_id, call_sid, caller, started_at, ended_at, end_reason, outcome, turns, facts, intents, tool_calls)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (session_id) DO NOTHING`

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	turns, err := json.Marshal(rec.Turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}
	facts, err := json.Marshal(rec.Facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	intents, err := json.Marshal(rec.Intents)
	if err != nil {
		return fmt.Errorf("marshal intents: %w", err)
	}
	toolCalls, err := json.Marshal(rec.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}

	_, err = s.conn.Exec(ctx, insertRecordSQL,
		rec.SessionID, rec.CallSID, rec.From,
		rec.StartedAt, rec.EndedAt, rec.EndReason, rec.Outcome,
		turns, facts, intents, toolCalls,
	)
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
