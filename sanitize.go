package settings

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer canonicalizes posted values per field type.
type Sanitizer struct {
	text     *bluemonday.Policy
	textarea *bluemonday.Policy
}

// NewSanitizer strips all markup from text values and keeps a user-content
// allow-list for textareas.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		text:     bluemonday.StrictPolicy(),
		textarea: bluemonday.UGCPolicy(),
	}
}

// NewSanitizerWithPolicy uses textarea as the allow-list for textarea fields.
func NewSanitizerWithPolicy(textarea *bluemonday.Policy) *Sanitizer {
	s := NewSanitizer()
	if textarea != nil {
		s.textarea = textarea
	}
	return s
}

var defaultSanitizer = NewSanitizer()

// Sanitize canonicalizes raw with the default policies. See Sanitizer.Sanitize.
func Sanitize(field Field, raw any, present bool) (any, bool) {
	return defaultSanitizer.Sanitize(field, raw, present)
}

// Sanitize returns the canonical value of raw for field. ok is false when
// nothing should be written: the value was not posted, or a choice field has
// neither a valid value nor a fallback. Checkboxes are always written since
// unchecked boxes are never posted.
func (s *Sanitizer) Sanitize(field Field, raw any, present bool) (any, bool) {
	if field.Type == FieldCheckbox {
		switch scalarString(raw) {
		case "1", "yes":
			return "yes", true
		}
		return "no", true
	}
	if !present {
		return nil, false
	}

	switch {
	case field.Type == FieldTextarea:
		return strings.TrimSpace(s.textarea.Sanitize(scalarString(raw))), true
	case field.Type.Multiple():
		values := stringList(raw)
		out := make([]string, 0, len(values))
		for _, value := range values {
			cleaned := s.clean(value)
			if cleaned == "" || cleaned == "0" {
				continue
			}
			out = append(out, cleaned)
		}
		return out, true
	case field.Type == FieldSelect || field.Type == FieldRadio:
		return sanitizeChoice(field, raw)
	}

	if values, ok := raw.([]string); ok {
		out := make([]string, len(values))
		for i, value := range values {
			out[i] = s.clean(value)
		}
		return out, true
	}
	if values, ok := raw.([]any); ok {
		out := make([]string, len(values))
		for i, value := range values {
			out[i] = s.clean(scalarString(value))
		}
		return out, true
	}
	return s.clean(scalarString(raw)), true
}

func sanitizeChoice(field Field, raw any) (any, bool) {
	allowed := field.Options.Keys()
	fallback := defaultChoice(field.Default)
	if fallback == "" && len(allowed) == 0 {
		return nil, false
	}
	if fallback == "" {
		fallback = allowed[0]
	}
	value, scalar := scalarValue(raw)
	if scalar && field.Options.Has(value) {
		return value, true
	}
	return fallback, true
}

// clean strips markup and control characters and collapses whitespace. The
// result is HTML-escaped text, so encoded markup stays encoded.
func (s *Sanitizer) clean(value string) string {
	if value == "" {
		return ""
	}
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, value)
	return strings.Join(strings.Fields(s.text.Sanitize(value)), " ")
}

// defaultChoice renders a choice default as a string. "", "0" and false count
// as no default.
func defaultChoice(value any) string {
	if value == nil {
		return ""
	}
	text, ok := scalarValue(value)
	if !ok || text == "0" || text == "false" {
		return ""
	}
	return text
}

func scalarValue(raw any) (string, bool) {
	switch typed := raw.(type) {
	case nil:
		return "", false
	case string:
		return typed, true
	case bool:
		if typed {
			return "1", true
		}
		return "", true
	case fmt.Stringer:
		return typed.String(), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(typed), true
	default:
		return "", false
	}
}

func scalarString(raw any) string {
	value, _ := scalarValue(raw)
	return value
}

func stringList(raw any) []string {
	switch typed := raw.(type) {
	case nil:
		return nil
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if value, ok := scalarValue(item); ok {
				out = append(out, value)
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(typed))
		for _, key := range keys {
			if value, ok := scalarValue(typed[key]); ok {
				out = append(out, value)
			}
		}
		return out
	default:
		if value, ok := scalarValue(raw); ok {
			return []string{value}
		}
		return nil
	}
}
