package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-settings/internal/hydrate"
	"github.com/goliatone/go-settings/layering"
	"github.com/goliatone/go-settings/pkg/optionstore"
)

// Snapshot is the resolved view of one section: declared defaults overlaid
// with stored values, "yes"/"no" decoded to booleans and dash-compound ids
// expanded into nested records.
type Snapshot map[string]any

// Get walks path through nested records. It returns nil when any segment is
// missing. An empty path returns the snapshot itself.
func (s Snapshot) Get(path ...string) any {
	var current any = map[string]any(s)
	for _, segment := range path {
		record, ok := layering.AsMap(current)
		if !ok {
			return nil
		}
		current, ok = record[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// Defaults returns the declared default of every storable field, keyed by
// storage id. Fields without a default receive fallback.
func Defaults(fields []Field, fallback any) map[string]any {
	defaults := make(map[string]any, len(fields))
	for _, field := range fields {
		if !field.Storable() {
			continue
		}
		if field.Default != nil {
			defaults[field.StorageID()] = layering.Clone(field.Default)
			continue
		}
		defaults[field.StorageID()] = layering.Clone(fallback)
	}
	return defaults
}

// Merge overlays stored onto the declared defaults. Stored keys that no field
// declares are dropped.
func Merge(fields []Field, stored map[string]any, fallback any) Snapshot {
	merged := resolveValues(fields, stored, fallback)

	snapshot := make(Snapshot, len(merged))
	for _, field := range fields {
		if !field.Storable() {
			continue
		}
		id := field.StorageID()
		value, ok := merged[id]
		if !ok {
			continue
		}
		value = decodeFlag(value)

		parent, child, compound := strings.Cut(id, "-")
		if !compound || parent == "" || child == "" {
			snapshot[id] = value
			continue
		}
		nested, ok := snapshot[parent].(map[string]any)
		if !ok {
			nested = map[string]any{}
			snapshot[parent] = nested
		}
		nested[child] = value
	}
	return snapshot
}

// LoadSnapshot reads record from store and merges it with the field defaults.
// A missing or non-record stored value is treated as empty.
func LoadSnapshot(ctx context.Context, store optionstore.Store, record string, fields []Field, fallback any) (Snapshot, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	value, ok, err := store.Get(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("settings: load %q: %w", record, err)
	}
	var stored map[string]any
	if ok {
		stored, _ = layering.AsMap(value)
	}
	return Merge(fields, stored, fallback), nil
}

// DecodeSnapshot decodes snapshot into T. Form-posted numeric strings are
// converted before decoding.
func DecodeSnapshot[T any](snapshot Snapshot) (T, error) {
	payload := map[string]any(snapshot)
	if payload == nil {
		payload = map[string]any{}
	}
	decoder := hydrate.NewDecoder[T](hydrate.WithPreHook[T](hydrate.NumericStrings))
	return decoder.Decode(hydrate.Context{Record: "snapshot"}, payload)
}

// resolveValues overlays the declared keys of stored onto the defaults,
// keyed by storage id, without decoding flags or nesting compound ids.
func resolveValues(fields []Field, stored map[string]any, fallback any) map[string]any {
	defaults := Defaults(fields, fallback)
	return layering.MergeLayers(layering.Restrict(stored, layering.Keys(defaults)), defaults)
}

func decodeFlag(value any) any {
	text, ok := value.(string)
	if !ok {
		return value
	}
	switch text {
	case "yes":
		return true
	case "no":
		return false
	}
	return value
}
