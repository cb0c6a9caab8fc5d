package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

// JournalRepository stores workflow events, one row per event id.
type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JournalRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS workflow_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	applicant_id TEXT NOT NULL,
	subject_id TEXT,
	attributes JSONB NOT NULL DEFAULT '{}'::jsonb,
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_workflow_events_applicant ON workflow_events(applicant_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_workflow_events_type ON workflow_events(event_type);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Append records event. Redelivered events with a known id are ignored.
func (r *JournalRepository) Append(ctx context.Context, event domain.WorkflowEvent) error {
	if event.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "append workflow event", fmt.Errorf("event id is empty"))
	}
	attributes := event.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}
	attrsJSON, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO workflow_events (id, event_type, applicant_id, subject_id, attributes, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING
`, event.ID, string(event.Type), event.ApplicantID, nullableString(event.SubjectID), attrsJSON, occurredAt)
	if err != nil {
		return fmt.Errorf("insert workflow event: %w", err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
