package settings

// FieldType names a field's rendering and sanitizing behavior.
type FieldType string

const (
	FieldText                 FieldType = "text"
	FieldPassword             FieldType = "password"
	FieldDatetime             FieldType = "datetime"
	FieldDatetimeLocal        FieldType = "datetime-local"
	FieldDate                 FieldType = "date"
	FieldMonth                FieldType = "month"
	FieldTime                 FieldType = "time"
	FieldWeek                 FieldType = "week"
	FieldNumber               FieldType = "number"
	FieldEmail                FieldType = "email"
	FieldURL                  FieldType = "url"
	FieldTel                  FieldType = "tel"
	FieldColor                FieldType = "color"
	FieldTextarea             FieldType = "textarea"
	FieldSelect               FieldType = "select"
	FieldMultiselect          FieldType = "multiselect"
	FieldMultiSelectCountries FieldType = "multi_select_countries"
	FieldRadio                FieldType = "radio"
	FieldCheckbox             FieldType = "checkbox"
	FieldPageReference        FieldType = "single_select_page"
	FieldPageReferenceSearch  FieldType = "single_select_page_with_search"
	FieldTitle                FieldType = "title"
	FieldSectionEnd           FieldType = "sectionend"
	FieldInfo                 FieldType = "info"
)

// Pseudo reports whether the type is presentational only (title, sectionend,
// info). Pseudo fields never carry a stored value.
func (t FieldType) Pseudo() bool {
	switch t {
	case FieldTitle, FieldSectionEnd, FieldInfo:
		return true
	}
	return false
}

// TextLike reports whether the type renders as a single input element.
func (t FieldType) TextLike() bool {
	switch t {
	case FieldText, FieldPassword, FieldDatetime, FieldDatetimeLocal, FieldDate,
		FieldMonth, FieldTime, FieldWeek, FieldNumber, FieldEmail, FieldURL, FieldTel:
		return true
	}
	return false
}

// Multiple reports whether the type posts a list of values.
func (t FieldType) Multiple() bool {
	return t == FieldMultiselect || t == FieldMultiSelectCountries
}

// Builtin reports whether the renderer and sanitizer know the type. Anything
// else is dispatched through the registry.
func (t FieldType) Builtin() bool {
	if t.TextLike() || t.Pseudo() || t.Multiple() {
		return true
	}
	switch t {
	case FieldColor, FieldTextarea, FieldSelect, FieldRadio, FieldCheckbox,
		FieldPageReference, FieldPageReferenceSearch:
		return true
	}
	return false
}

// Choice is one entry of an ordered option mapping.
type Choice struct {
	Value string `json:"value" yaml:"value" toml:"value"`
	Label string `json:"label" yaml:"label" toml:"label"`
}

// Choices keeps option declaration order.
type Choices []Choice

// Keys returns the option values in declaration order.
func (c Choices) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, choice := range c {
		keys = append(keys, choice.Value)
	}
	return keys
}

// Has reports whether value is a declared option key.
func (c Choices) Has(value string) bool {
	for _, choice := range c {
		if choice.Value == value {
			return true
		}
	}
	return false
}

// Label returns the label declared for value.
func (c Choices) Label(value string) (string, bool) {
	for _, choice := range c {
		if choice.Value == value {
			return choice.Label, true
		}
	}
	return "", false
}

// Disabled is either a blanket flag or a set of option values that must not be
// selectable.
type Disabled struct {
	All    bool     `json:"all,omitempty"`
	Values []string `json:"values,omitempty"`
}

// DisableAll disables the whole control.
func DisableAll() Disabled {
	return Disabled{All: true}
}

// DisableValues disables individual options.
func DisableValues(values ...string) Disabled {
	return Disabled{Values: append([]string(nil), values...)}
}

// Has reports whether value is disabled, either individually or because the
// whole control is.
func (d Disabled) Has(value string) bool {
	if d.All {
		return true
	}
	for _, v := range d.Values {
		if v == value {
			return true
		}
	}
	return false
}

// CheckboxGroup markers.
const (
	GroupStart = "start"
	GroupEnd   = "end"
)

// Field declares one configurable value.
type Field struct {
	ID               string            `json:"id"`
	Type             FieldType         `json:"type"`
	Title            string            `json:"title,omitempty"`
	Description      string            `json:"description,omitempty"`
	Tooltip          string            `json:"tooltip,omitempty"`
	DescriptionTip   bool              `json:"description_tip,omitempty"`
	Default          any               `json:"default,omitempty"`
	Options          Choices           `json:"options,omitempty"`
	Disabled         Disabled          `json:"disabled,omitempty"`
	CustomAttributes map[string]string `json:"custom_attributes,omitempty"`
	Autoload         *bool             `json:"autoload,omitempty"`

	Placeholder   string         `json:"placeholder,omitempty"`
	Suffix        string         `json:"suffix,omitempty"`
	Class         string         `json:"class,omitempty"`
	CSS           string         `json:"css,omitempty"`
	Text          string         `json:"text,omitempty"`
	CheckboxGroup string         `json:"checkboxgroup,omitempty"`
	HideIfChecked string         `json:"hide_if_checked,omitempty"`
	ShowIfChecked string         `json:"show_if_checked,omitempty"`
	Args          map[string]any `json:"args,omitempty"`

	// FieldName replaces ID as the nested key used for storage.
	FieldName string `json:"field_name,omitempty"`
	// Transient fields render but are never persisted.
	Transient bool `json:"transient,omitempty"`
	// VisibleWhen is an expression evaluated against the section snapshot.
	VisibleWhen string `json:"visible_when,omitempty"`

	// Key is the encoded storage key, set by FormatFields.
	Key string `json:"key,omitempty"`
}

// StorageID is the key the field's value lives under inside its record.
func (f Field) StorageID() string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return f.ID
}

// Storable reports whether the field carries a value at all.
func (f Field) Storable() bool {
	return f.ID != "" && f.Type != "" && !f.Type.Pseudo()
}

// Persisted reports whether a save writes the field.
func (f Field) Persisted() bool {
	return f.Storable() && !f.Transient
}

// AutoloadHint returns the field's autoload flag, enabled unless set.
func (f Field) AutoloadHint() bool {
	if f.Autoload == nil {
		return true
	}
	return *f.Autoload
}

// Bool returns a pointer to v, for Field.Autoload literals.
func Bool(v bool) *bool {
	return &v
}

// Section is an ordered group of fields. The default section has an empty ID.
type Section struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Fields []Field `json:"fields,omitempty"`
}

// DefaultSectionLabel labels the implicit default section.
const DefaultSectionLabel = "General"
