package optionstore

import (
	"context"
	"errors"
	"io/fs"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type scanRow struct {
	scan func(dest ...any) error
}

func (r scanRow) Scan(dest ...any) error { return r.scan(dest...) }

type stubQuerier struct {
	row      pgx.Row
	rows     pgx.Rows
	queryErr error
	execErr  error
	execSQL  []string
	execArgs [][]any
}

func (s *stubQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	s.execArgs = append(s.execArgs, args)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.CommandTag{}, nil
}

func (s *stubQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return s.row
}

func (s *stubQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.rows, nil
}

type fakeRows struct {
	idx  int
	data [][]any
	err  error
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = row[i].(string)
		case *[]byte:
			*d = []byte(row[i].(string))
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func rawRow(raw string) pgx.Row {
	return scanRow{scan: func(dest ...any) error {
		*(dest[0].(*[]byte)) = []byte(raw)
		return nil
	}}
}

func TestPGStoreGetDecodesJSON(t *testing.T) {
	store := NewPGStore(&stubQuerier{row: rawRow(`{"x":"1","y":"2"}`)})

	got, ok, err := store.Get(context.Background(), "acme_general")
	if err != nil || !ok {
		t.Fatalf("expected record, ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, map[string]any{"x": "1", "y": "2"}) {
		t.Fatalf("unexpected value: %#v", got)
	}
}

func TestPGStoreGetMissing(t *testing.T) {
	row := scanRow{scan: func(...any) error { return pgx.ErrNoRows }}
	store := NewPGStore(&stubQuerier{row: row})

	got, ok, err := store.Get(context.Background(), "acme_general")
	if err != nil || ok || got != nil {
		t.Fatalf("expected missing record, got=%v ok=%v err=%v", got, ok, err)
	}
}

func TestPGStoreGetPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	store := NewPGStore(&stubQuerier{row: scanRow{scan: func(...any) error { return boom }}})
	if _, _, err := store.Get(context.Background(), "acme_general"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}

	store = NewPGStore(&stubQuerier{row: rawRow(`{not json`)})
	if _, _, err := store.Get(context.Background(), "acme_general"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPGStoreSetUpserts(t *testing.T) {
	q := &stubQuerier{}
	store := NewPGStore(q, WithTable("custom_options"))

	if err := store.Set(context.Background(), "acme_general", map[string]any{"title": "Acme"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(q.execSQL) != 1 {
		t.Fatalf("expected one exec, got %d", len(q.execSQL))
	}
	if !strings.Contains(q.execSQL[0], `"custom_options"`) || !strings.Contains(q.execSQL[0], "ON CONFLICT") {
		t.Fatalf("unexpected sql: %s", q.execSQL[0])
	}
	args := q.execArgs[0]
	if args[0] != "acme_general" || args[1] != `{"title":"Acme"}` || args[2] != false {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestPGStoreSetErrors(t *testing.T) {
	boom := errors.New("boom")
	store := NewPGStore(&stubQuerier{execErr: boom})
	if err := store.Set(context.Background(), "acme_general", "x", true); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if err := store.Set(context.Background(), "", "x", true); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if err := store.Set(context.Background(), "bad", func() {}, true); err == nil {
		t.Fatalf("expected encode error")
	}
}

func TestPGStoreLoadAutoloaded(t *testing.T) {
	rows := &fakeRows{data: [][]any{
		{"acme_general", `{"title":"Acme"}`},
		{"acme_flag", `"yes"`},
	}}
	store := NewPGStore(&stubQuerier{rows: rows})

	got, err := store.LoadAutoloaded(context.Background())
	if err != nil {
		t.Fatalf("load autoloaded: %v", err)
	}
	want := map[string]any{
		"acme_general": map[string]any{"title": "Acme"},
		"acme_flag":    "yes",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected records: %#v", got)
	}

	boom := errors.New("boom")
	store = NewPGStore(&stubQuerier{queryErr: boom})
	if _, err := store.LoadAutoloaded(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fsReadDir(Migrations())
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) == 0 || entries[0] != "00001_settings_options.sql" {
		t.Fatalf("unexpected migrations: %v", entries)
	}
}

func fsReadDir(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
