package sessionstore

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/orbitgw/orbit/internal/domain"
)

// SQLiteBackend is the authoritative-across-restarts Backend for single-node
// deployments that don't want Redis, mirroring the spec's note that "schema-
// equivalent relational implementation is acceptable" for session storage.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	_, err := b.db.Exec(`
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	last_activity_at DATETIME NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	blocked INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, ordinal)
);
`)

	return err
}

func (b *SQLiteBackend) Append(ctx context.Context, msg domain.Message) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, ordinal, role, content, created_at, blocked) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Ordinal, string(msg.Role), msg.Content, msg.CreatedAt, msg.Blocked,
	)

	return err
}

func (b *SQLiteBackend) Recent(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT session_id, ordinal, role, content, created_at, blocked FROM messages WHERE session_id = ? ORDER BY ordinal DESC`
	args := []any{sessionID}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message

	for rows.Next() {
		var (
			m    domain.Message
			role string
		)

		if err := rows.Scan(&m.SessionID, &m.Ordinal, &role, &m.Content, &m.CreatedAt, &m.Blocked); err != nil {
			return nil, err
		}

		m.Role = domain.Role(role)
		out = append(out, m)
	}

	// reverse: we queried newest-first for the LIMIT, but callers expect order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, rows.Err()
}

func (b *SQLiteBackend) Clear(ctx context.Context, sessionID string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}

	_, err = b.db.ExecContext(ctx, `UPDATE sessions SET message_count = 0 WHERE session_id = ?`, sessionID)

	return err
}

func (b *SQLiteBackend) PruneOlderThan(ctx context.Context, sessionID string, keepLast int) error {
	_, err := b.db.ExecContext(ctx, `
DELETE FROM messages
WHERE session_id = ? AND role != 'system' AND ordinal NOT IN (
	SELECT ordinal FROM messages WHERE session_id = ? ORDER BY ordinal DESC LIMIT ?
)`, sessionID, sessionID, keepLast)

	return err
}

func (b *SQLiteBackend) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := b.db.QueryRowContext(ctx, `SELECT session_id, created_at, last_activity_at, message_count FROM sessions WHERE session_id = ?`, sessionID)

	var s domain.Session
	if err := row.Scan(&s.SessionID, &s.CreatedAt, &s.LastActivityAt, &s.MessageCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &s, nil
}

func (b *SQLiteBackend) UpsertSession(ctx context.Context, s *domain.Session) error {
	_, err := b.db.ExecContext(ctx, `
INSERT INTO sessions (session_id, created_at, last_activity_at, message_count) VALUES (?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET last_activity_at = excluded.last_activity_at, message_count = excluded.message_count
`, s.SessionID, s.CreatedAt, s.LastActivityAt, s.MessageCount)

	return err
}

// Close releases the underlying connection pool.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
