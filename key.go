package settings

import (
	"strings"

	"github.com/goliatone/go-settings/layering"
)

// CoreSection is the record suffix used by the default section of a page that
// declares more than one section.
const CoreSection = "core"

// Key is a decoded storage key.
type Key struct {
	// Record is the option store record name.
	Record string
	// Nested is the key inside the record. Empty for scalar options.
	Nested string
}

// String re-encodes the key in bracket notation.
func (k Key) String() string {
	if k.Nested == "" {
		return k.Record
	}
	return k.Record + "[" + k.Nested + "]"
}

// Posted is decoded form data: strings, string lists and nested records keyed
// by record name.
type Posted map[string]any

// RecordName returns the option store record that holds a section's values.
// The section qualifier only appears when the page declares several sections.
func RecordName(namespace, pageID, sectionID string, multipleSections bool) string {
	name := namespace + "_" + pageID
	if !multipleSections {
		return name
	}
	if sectionID == "" {
		return name + "_" + CoreSection
	}
	return name + "_" + sectionID
}

// EncodeKey returns the storage key for fieldID.
func EncodeKey(namespace, pageID, sectionID string, multipleSections bool, fieldID string) string {
	return Key{
		Record: RecordName(namespace, pageID, sectionID, multipleSections),
		Nested: fieldID,
	}.String()
}

// ParseKey splits key at its first bracket. A trailing "]" is dropped from the
// nested part.
func ParseKey(key string) Key {
	idx := strings.IndexByte(key, '[')
	if idx < 0 {
		return Key{Record: key}
	}
	nested := key[idx+1:]
	if end := strings.IndexByte(nested, ']'); end >= 0 {
		nested = nested[:end]
	}
	return Key{Record: key[:idx], Nested: nested}
}

// DecodeKey parses key and looks its value up in posted. ok is false when the
// path is not present.
func DecodeKey(key string, posted Posted) (Key, any, bool) {
	k := ParseKey(key)
	if k.Record == "" || posted == nil {
		return k, nil, false
	}
	value, ok := posted[k.Record]
	if !ok {
		return k, nil, false
	}
	if k.Nested == "" {
		return k, value, true
	}
	record, isMap := layering.AsMap(value)
	if !isMap {
		return k, nil, false
	}
	value, ok = record[k.Nested]
	return k, value, ok
}

// FormatFields returns a copy of fields with Key set on every storable field.
// Pseudo fields and fields without an ID are passed through untouched.
func FormatFields(namespace, pageID, sectionID string, multipleSections bool, fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, field := range fields {
		if field.Storable() {
			field.Key = EncodeKey(namespace, pageID, sectionID, multipleSections, field.StorageID())
		}
		out = append(out, field)
	}
	return out
}
