package core

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activitySchema = `
CREATE TABLE IF NOT EXISTS sheetmark_activity (
	id          UUID PRIMARY KEY,
	session_id  UUID NOT NULL,
	action      TEXT NOT NULL,
	row_index   INTEGER,
	file_name   TEXT,
	row_count   INTEGER NOT NULL DEFAULT 0,
	col_count   INTEGER NOT NULL DEFAULT 0,
	ip_address  INET,
	user_agent  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sheetmark_activity_session_idx
	ON sheetmark_activity (session_id, created_at DESC);
`

// PostgresAuditSink writes activity entries to the sheetmark_activity table.
type PostgresAuditSink struct {
	pool *pgxpool.Pool
}

func NewPostgresAuditSink(pool *pgxpool.Pool) *PostgresAuditSink {
	return &PostgresAuditSink{pool: pool}
}

// EnsureSchema creates the activity table and its index if they are missing.
func (p *PostgresAuditSink) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, activitySchema); err != nil {
		return fmt.Errorf("create activity schema: %w", err)
	}
	return nil
}

func (p *PostgresAuditSink) Record(ctx context.Context, e AuditEntry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("activity id: %w", err)
	}
	sessionID, err := uuid.Parse(e.SessionID)
	if err != nil {
		return fmt.Errorf("activity session id: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO sheetmark_activity
			(id, session_id, action, row_index, file_name, row_count, col_count, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pgtype.UUID{Bytes: id, Valid: true},
		pgtype.UUID{Bytes: sessionID, Valid: true},
		string(e.Action),
		pgtype.Int4{Int32: int32(e.Row), Valid: e.Row > 0},
		pgtype.Text{String: e.FileName, Valid: e.FileName != ""},
		e.Rows,
		e.Columns,
		parseAddr(e.IPAddress),
		pgtype.Text{String: e.UserAgent, Valid: e.UserAgent != ""},
		pgtype.Timestamptz{Time: e.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (p *PostgresAuditSink) List(ctx context.Context, sessionID string, limit int) ([]AuditEntry, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultAuditMemoryLimit
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, action, row_index, file_name, row_count, col_count, ip_address, user_agent, created_at
		FROM sheetmark_activity
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		pgtype.UUID{Bytes: sid, Valid: true}, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		e, err := scanActivityRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}
	return out, nil
}

func scanActivityRow(rows pgx.Rows) (AuditEntry, error) {
	var (
		id, sessionID pgtype.UUID
		action        string
		rowIndex      pgtype.Int4
		fileName      pgtype.Text
		rowCount      int32
		colCount      int32
		ipAddress     *netip.Addr
		userAgent     pgtype.Text
		createdAt     pgtype.Timestamptz
	)
	if err := rows.Scan(&id, &sessionID, &action, &rowIndex, &fileName, &rowCount, &colCount, &ipAddress, &userAgent, &createdAt); err != nil {
		return AuditEntry{}, fmt.Errorf("scan activity: %w", err)
	}

	e := AuditEntry{
		ID:        uuid.UUID(id.Bytes).String(),
		SessionID: uuid.UUID(sessionID.Bytes).String(),
		Action:    AuditAction(action),
		Row:       int(rowIndex.Int32),
		FileName:  fileName.String,
		Rows:      int(rowCount),
		Columns:   int(colCount),
		UserAgent: userAgent.String,
		CreatedAt: createdAt.Time,
	}
	if ipAddress != nil {
		e.IPAddress = ipAddress.String()
	}
	return e, nil
}

// parseAddr returns nil for anything that is not a bare IP so the INET
// column stores NULL instead of failing the insert.
func parseAddr(s string) *netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil
	}
	return &addr
}
