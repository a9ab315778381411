package keystore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/orbitgw/orbit/internal/domain"
)

// SQLiteBackend is the authoritative-across-restarts Backend for single-node
// deployments, mirroring sessionstore's SQLiteBackend: the api_keys and
// system_prompts collections named in spec §6's persisted state layout,
// expressed as a schema-equivalent relational table pair.
type SQLiteBackend struct {
	db          *sql.DB
	tokenPrefix string
}

func NewSQLiteBackend(dsn, tokenPrefix string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	b := &SQLiteBackend{db: db, tokenPrefix: tokenPrefix}
	if err := b.migrate(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	_, err := b.db.Exec(`
CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	token TEXT NOT NULL UNIQUE,
	client_name TEXT NOT NULL,
	adapter_name TEXT NOT NULL,
	system_prompt_id TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	last_used_at DATETIME,
	notes TEXT
);
CREATE TABLE IF NOT EXISTS system_prompts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	text TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`)

	return err
}

func (b *SQLiteBackend) CreateKey(ctx context.Context, clientName, adapterName, promptID string) (*domain.ApiKey, error) {
	key := &domain.ApiKey{
		ID:             newToken("key_"),
		Token:          newToken(b.tokenPrefix),
		ClientName:     clientName,
		AdapterName:    adapterName,
		SystemPromptID: promptID,
		Active:         true,
		CreatedAt:      time.Now(),
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, token, client_name, adapter_name, system_prompt_id, active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Token, key.ClientName, key.AdapterName, nullable(key.SystemPromptID), key.Active, key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return key, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func scanKey(row interface{ Scan(...any) error }) (*domain.ApiKey, error) {
	var (
		k          domain.ApiKey
		promptID   sql.NullString
		lastUsedAt sql.NullTime
		notes      sql.NullString
	)

	if err := row.Scan(&k.ID, &k.Token, &k.ClientName, &k.AdapterName, &promptID, &k.Active, &k.CreatedAt, &lastUsedAt, &notes); err != nil {
		return nil, err
	}

	k.SystemPromptID = promptID.String
	k.LastUsedAt = lastUsedAt.Time
	k.Notes = notes.String

	return &k, nil
}

const selectKeyColumns = `id, token, client_name, adapter_name, system_prompt_id, active, created_at, last_used_at, notes`

func (b *SQLiteBackend) Lookup(ctx context.Context, token string) (*domain.ApiKey, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+selectKeyColumns+` FROM api_keys WHERE token = ?`, token)

	k, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownToken
	}

	return k, err
}

func (b *SQLiteBackend) List(ctx context.Context) ([]*domain.ApiKey, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT `+selectKeyColumns+` FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ApiKey

	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, k)
	}

	return out, rows.Err()
}

func (b *SQLiteBackend) Rename(ctx context.Context, token, clientName string) error {
	res, err := b.db.ExecContext(ctx, `UPDATE api_keys SET client_name = ? WHERE token = ?`, clientName, token)
	return checkAffected(res, err)
}

func (b *SQLiteBackend) Deactivate(ctx context.Context, token string) error {
	res, err := b.db.ExecContext(ctx, `UPDATE api_keys SET active = 0 WHERE token = ?`, token)
	return checkAffected(res, err)
}

func (b *SQLiteBackend) Delete(ctx context.Context, token string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM api_keys WHERE token = ?`, token)
	return checkAffected(res, err)
}

func (b *SQLiteBackend) Touch(ctx context.Context, token string, at time.Time) error {
	res, err := b.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE token = ?`, at, token)
	return checkAffected(res, err)
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrUnknownToken
	}

	return nil
}

func (b *SQLiteBackend) CreatePrompt(ctx context.Context, p *domain.SystemPrompt) error {
	if p.ID == "" {
		p.ID = newToken("prompt_")
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO system_prompts (id, name, text, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Text, p.Version, p.CreatedAt, p.UpdatedAt,
	)

	return err
}

func (b *SQLiteBackend) GetPrompt(ctx context.Context, id string) (*domain.SystemPrompt, error) {
	row := b.db.QueryRowContext(ctx, `SELECT id, name, text, version, created_at, updated_at FROM system_prompts WHERE id = ?`, id)

	var p domain.SystemPrompt
	if err := row.Scan(&p.ID, &p.Name, &p.Text, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &p, nil
}

func (b *SQLiteBackend) ListPrompts(ctx context.Context) ([]*domain.SystemPrompt, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, name, text, version, created_at, updated_at FROM system_prompts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SystemPrompt

	for rows.Next() {
		var p domain.SystemPrompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Text, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}

		out = append(out, &p)
	}

	return out, rows.Err()
}

// UpdatePrompt bumps version and updated_at; prompts are otherwise immutable
// once bound to a live key (spec §3).
func (b *SQLiteBackend) UpdatePrompt(ctx context.Context, id, text string) (*domain.SystemPrompt, error) {
	res, err := b.db.ExecContext(ctx,
		`UPDATE system_prompts SET text = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		text, time.Now(), id,
	)
	if err := checkAffectedPrompt(res, err); err != nil {
		return nil, err
	}

	return b.GetPrompt(ctx, id)
}

func checkAffectedPrompt(res sql.Result, err error) error {
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return errors.New("keystore: unknown prompt id")
	}

	return nil
}

func (b *SQLiteBackend) DeletePrompt(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM system_prompts WHERE id = ?`, id)
	return err
}

func (b *SQLiteBackend) AssociatePrompt(ctx context.Context, token, promptID string) error {
	if p, err := b.GetPrompt(ctx, promptID); err != nil || p == nil {
		if err == nil {
			err = errors.New("keystore: unknown prompt id")
		}

		return err
	}

	res, err := b.db.ExecContext(ctx, `UPDATE api_keys SET system_prompt_id = ? WHERE token = ?`, promptID, token)

	return checkAffected(res, err)
}

// Close releases the underlying connection pool.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
