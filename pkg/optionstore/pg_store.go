package optionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultTable is the table created by the bundled migration.
const DefaultTable = "settings_options"

// Querier is the subset of pgx used by PGStore. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore persists option records as JSONB rows.
type PGStore struct {
	db    Querier
	table string
}

// PGOption configures a PGStore.
type PGOption func(*PGStore)

// WithTable overrides the table name.
func WithTable(table string) PGOption {
	return func(s *PGStore) {
		if table != "" {
			s.table = table
		}
	}
}

// NewPGStore wraps db. It panics when db is nil.
func NewPGStore(db Querier, opts ...PGOption) *PGStore {
	if db == nil {
		panic("optionstore: nil querier")
	}
	s := &PGStore{db: db, table: DefaultTable}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *PGStore) tableName() string {
	return pgx.Identifier{s.table}.Sanitize()
}

func (s *PGStore) Get(ctx context.Context, name string) (any, bool, error) {
	if name == "" {
		return nil, false, ErrNameRequired
	}
	var raw []byte
	query := fmt.Sprintf(`SELECT option_value FROM %s WHERE option_name = $1`, s.tableName())
	if err := s.db.QueryRow(ctx, query, name).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("optionstore: get %q: %w", name, err)
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, false, fmt.Errorf("optionstore: decode %q: %w", name, err)
	}
	return value, true, nil
}

func (s *PGStore) Set(ctx context.Context, name string, value any, autoload bool) error {
	if name == "" {
		return ErrNameRequired
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("optionstore: encode %q: %w", name, err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (option_name, option_value, autoload, updated_at)
VALUES ($1, $2::jsonb, $3, now())
ON CONFLICT (option_name) DO UPDATE
SET option_value = EXCLUDED.option_value,
    autoload = EXCLUDED.autoload,
    updated_at = EXCLUDED.updated_at`, s.tableName())
	if _, err := s.db.Exec(ctx, query, name, string(raw), autoload); err != nil {
		return fmt.Errorf("optionstore: set %q: %w", name, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, name string) error {
	if name == "" {
		return ErrNameRequired
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE option_name = $1`, s.tableName())
	if _, err := s.db.Exec(ctx, query, name); err != nil {
		return fmt.Errorf("optionstore: delete %q: %w", name, err)
	}
	return nil
}

func (s *PGStore) LoadAutoloaded(ctx context.Context) (map[string]any, error) {
	query := fmt.Sprintf(`SELECT option_name, option_value FROM %s WHERE autoload ORDER BY option_name`, s.tableName())
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("optionstore: load autoloaded: %w", err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("optionstore: scan autoloaded: %w", err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("optionstore: decode %q: %w", name, err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("optionstore: load autoloaded: %w", err)
	}
	return out, nil
}

func decodeValue(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}
