package settings

import (
	"context"

	"github.com/goliatone/go-settings/layering"
	"github.com/goliatone/go-settings/pkg/optionstore"
	"github.com/google/uuid"
)

// SkipReason explains why a field was not written.
type SkipReason string

const (
	SkipAbsent  SkipReason = "absent"
	SkipInvalid SkipReason = "invalid"
	SkipVetoed  SkipReason = "vetoed"
)

// SkippedField is a persisted field that produced no write.
type SkippedField struct {
	Key    string     `json:"key"`
	Reason SkipReason `json:"reason"`
}

// RecordWrite is one option store write.
type RecordWrite struct {
	Name     string `json:"name"`
	Value    any    `json:"value"`
	Autoload bool   `json:"autoload"`
}

// SaveResult summarizes one save.
type SaveResult struct {
	ID      uuid.UUID      `json:"id"`
	Page    string         `json:"page,omitempty"`
	Section string         `json:"section,omitempty"`
	Records []RecordWrite  `json:"records"`
	Written []string       `json:"written"`
	Skipped []SkippedField `json:"skipped,omitempty"`
}

// RecordNames lists the records written, in write order.
func (r SaveResult) RecordNames() []string {
	names := make([]string, 0, len(r.Records))
	for _, record := range r.Records {
		names = append(names, record.Name)
	}
	return names
}

// SkippedKeys lists the keys of skipped fields.
func (r SaveResult) SkippedKeys() []string {
	keys := make([]string, 0, len(r.Skipped))
	for _, skipped := range r.Skipped {
		keys = append(keys, skipped.Key)
	}
	return keys
}

// Engine sanitizes posted data and writes it back to the option store.
type Engine struct {
	store optionstore.Store
	cfg   config
}

// NewEngine returns an engine writing to store.
func NewEngine(store optionstore.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	return &Engine{store: store, cfg: applyOptions(opts)}, nil
}

func newEngine(store optionstore.Store, cfg config) *Engine {
	return &Engine{store: store, cfg: cfg}
}

type stagedRecord struct {
	name     string
	value    any
	autoload bool
}

// SaveFields sanitizes the posted value of every persisted field and writes
// the affected records. Nested keys are merged into the currently stored
// record so keys owned by other sections survive. Records are written in the
// order they were first touched; the autoload hint of the last field staged
// into a record wins. The first store failure aborts the save.
func (e *Engine) SaveFields(ctx context.Context, fields []Field, posted Posted) (SaveResult, error) {
	result := SaveResult{ID: e.cfg.newID()}
	logger := e.cfg.log()

	staged := map[string]*stagedRecord{}
	var order []string

	for _, field := range fields {
		if !field.Persisted() {
			if field.ID == "" || field.Type == "" {
				logger.Debug("settings: skipping field without id or type", "id", field.ID, "type", field.Type)
			}
			continue
		}
		key := field.Key
		if key == "" {
			key = field.StorageID()
		}

		k, raw, present := DecodeKey(key, posted)
		value, ok := e.cfg.sanitizer.Sanitize(field, raw, present)
		if !ok {
			reason := SkipInvalid
			if !present {
				reason = SkipAbsent
			}
			result.Skipped = append(result.Skipped, SkippedField{Key: key, Reason: reason})
			continue
		}
		value, ok = e.cfg.registry.sanitize(ctx, field, value, raw)
		if !ok || value == nil {
			result.Skipped = append(result.Skipped, SkippedField{Key: key, Reason: SkipVetoed})
			continue
		}

		record, exists := staged[k.Record]
		if !exists {
			record = &stagedRecord{name: k.Record}
			staged[k.Record] = record
			order = append(order, k.Record)
		}

		if k.Nested == "" {
			record.value = value
		} else {
			current, ok := record.value.(map[string]any)
			if !ok {
				loaded, err := e.loadRecord(ctx, k.Record)
				if err != nil {
					return result, err
				}
				current = loaded
				record.value = current
			}
			current[k.Nested] = value
		}
		record.autoload = field.AutoloadHint()
		result.Written = append(result.Written, key)
	}

	for _, name := range order {
		record := staged[name]
		if err := e.store.Set(ctx, record.name, record.value, record.autoload); err != nil {
			logger.Error("settings: write failed", "record", record.name, "error", err)
			return result, &SaveError{Record: record.name, Op: "write", Err: err}
		}
		result.Records = append(result.Records, RecordWrite{Name: record.name, Value: record.value, Autoload: record.autoload})
	}
	return result, nil
}

func (e *Engine) loadRecord(ctx context.Context, name string) (map[string]any, error) {
	value, ok, err := e.store.Get(ctx, name)
	if err != nil {
		return nil, &SaveError{Record: name, Op: "load", Err: err}
	}
	if !ok {
		return map[string]any{}, nil
	}
	record, isMap := layering.AsMap(value)
	if !isMap {
		return map[string]any{}, nil
	}
	return layering.CloneMap(record), nil
}
