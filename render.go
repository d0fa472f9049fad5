package settings

import (
	"context"
	"fmt"
	"strings"
)

// ControlKind identifies the presentational element a Control describes.
type ControlKind string

const (
	ControlHeading    ControlKind = "heading"
	ControlGroupOpen  ControlKind = "group_open"
	ControlGroupClose ControlKind = "group_close"
	ControlInfo       ControlKind = "info"
	ControlInput      ControlKind = "input"
	ControlTextarea   ControlKind = "textarea"
	ControlSelect     ControlKind = "select"
	ControlRadio      ControlKind = "radio"
	ControlCheckbox   ControlKind = "checkbox"
	ControlReference  ControlKind = "reference"
	ControlCustom     ControlKind = "custom"
)

// Visibility classes attached to checkbox controls.
const (
	ClassHiddenOption         = "hidden_option"
	ClassHideOptionsIfChecked = "hide_options_if_checked"
	ClassShowOptionsIfChecked = "show_options_if_checked"
)

// HideIfChecked and ShowIfChecked values.
const (
	VisibilityToggle = "yes"
	VisibilityOption = "option"
)

const referenceLabelFormat = "%s (ID: %s)"

// ControlOption is one selectable entry of a select or radio control.
type ControlOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Reference is the resolved preview of a page-reference value.
type Reference struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Control is the presentational payload for one field. It carries no markup;
// a template or client renders it.
type Control struct {
	Kind        ControlKind       `json:"kind"`
	FieldType   FieldType         `json:"field_type,omitempty"`
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name,omitempty"`
	InputType   string            `json:"input_type,omitempty"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Tooltip     string            `json:"tooltip,omitempty"`
	Text        string            `json:"text,omitempty"`
	Value       any               `json:"value,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Suffix      string            `json:"suffix,omitempty"`
	Class       string            `json:"class,omitempty"`
	CSS         string            `json:"css,omitempty"`
	Disabled    bool              `json:"disabled,omitempty"`
	Multiple    bool              `json:"multiple,omitempty"`
	Options     []ControlOption   `json:"options,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Checked     bool              `json:"checked,omitempty"`
	// GroupOpen and GroupClose mark the first and last checkbox of a
	// fieldset.
	GroupOpen  bool           `json:"group_open,omitempty"`
	GroupClose bool           `json:"group_close,omitempty"`
	Visibility []string       `json:"visibility,omitempty"`
	Hidden     bool           `json:"hidden,omitempty"`
	Swatch     string         `json:"swatch,omitempty"`
	Reference  *Reference     `json:"reference,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
}

// ReferenceResolver looks up the display title of a referenced record.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, id string) (title string, ok bool, err error)
}

// ReferenceResolverFunc adapts a function to ReferenceResolver.
type ReferenceResolverFunc func(ctx context.Context, id string) (string, bool, error)

func (f ReferenceResolverFunc) ResolveReference(ctx context.Context, id string) (string, bool, error) {
	return f(ctx, id)
}

// RenderContext identifies the section being rendered.
type RenderContext struct {
	Namespace string
	PageID    string
	SectionID string
	Snapshot  Snapshot
}

// Renderer turns fields and their resolved values into controls.
type Renderer struct {
	cfg config
}

// NewRenderer returns a standalone renderer configured by opts.
func NewRenderer(opts ...Option) *Renderer {
	return &Renderer{cfg: applyOptions(opts)}
}

func newRenderer(cfg config) *Renderer {
	return &Renderer{cfg: cfg}
}

// Render returns the controls for field. Fields without an id or type, and
// fields of an unknown type with no registered renderer, produce nothing.
func (r *Renderer) Render(ctx context.Context, rc RenderContext, field Field, value any) []Control {
	if field.Type == "" {
		return nil
	}
	if !field.Type.Pseudo() && field.ID == "" {
		r.cfg.log().Debug("settings: skipping field without id", "type", field.Type)
		return nil
	}

	switch field.Type {
	case FieldTitle:
		return r.renderTitle(ctx, rc, field)
	case FieldInfo:
		if field.Text == "" {
			return nil
		}
		return []Control{{Kind: ControlInfo, FieldType: field.Type, ID: field.ID, Text: field.Text, CSS: field.CSS}}
	case FieldSectionEnd:
		return r.renderSectionEnd(ctx, rc, field)
	}

	if !field.Type.Builtin() {
		return r.cfg.registry.renderField(ctx, rc, field, value)
	}

	control := r.base(field)
	switch {
	case field.Type.TextLike():
		control.Kind = ControlInput
		control.InputType = string(field.Type)
		control.Value = value
	case field.Type == FieldColor:
		control.Kind = ControlInput
		control.InputType = string(FieldText)
		control.Value = value
		control.Swatch = colorSwatch(value)
		control.Class = strings.TrimSpace(control.Class + " colorpick")
	case field.Type == FieldTextarea:
		control.Kind = ControlTextarea
		control.Value = value
	case field.Type == FieldSelect:
		control.Kind = ControlSelect
		control.Value = value
		control.Options = selectOptions(field, value)
	case field.Type.Multiple():
		control.Kind = ControlSelect
		control.Name += "[]"
		control.Multiple = true
		control.Value = value
		control.Options = selectOptions(field, value)
	case field.Type == FieldRadio:
		control.Kind = ControlRadio
		control.Disabled = field.Disabled.All
		control.Value = value
		control.Options = selectOptions(field, value)
	case field.Type == FieldCheckbox:
		r.checkbox(&control, field, value)
	case field.Type == FieldPageReference || field.Type == FieldPageReferenceSearch:
		control.Kind = ControlReference
		control.Args = field.Args
		control.Reference = r.reference(ctx, value)
		if control.Reference != nil {
			control.Value = control.Reference.ID
		}
	}

	control.Hidden = !r.visible(rc, field)
	return []Control{control}
}

// RenderFields renders fields in order and concatenates their controls.
func (r *Renderer) RenderFields(ctx context.Context, rc RenderContext, fields []Field, values func(Field) any) []Control {
	var out []Control
	for _, field := range fields {
		var value any
		if values != nil && field.Storable() {
			value = values(field)
		}
		out = append(out, r.Render(ctx, rc, field, value)...)
	}
	return out
}

func (r *Renderer) base(field Field) Control {
	description, tooltip := fieldDescription(field)
	name := field.Key
	if name == "" {
		name = field.StorageID()
	}
	return Control{
		FieldType:   field.Type,
		ID:          field.ID,
		Name:        name,
		Title:       field.Title,
		Description: description,
		Tooltip:     tooltip,
		Placeholder: field.Placeholder,
		Suffix:      field.Suffix,
		Class:       field.Class,
		CSS:         field.CSS,
		Disabled:    field.Disabled.All,
		Attributes:  cloneAttributes(field.CustomAttributes),
	}
}

func (r *Renderer) renderTitle(ctx context.Context, rc RenderContext, field Field) []Control {
	var out []Control
	if field.Title != "" || field.Description != "" {
		out = append(out, Control{
			Kind:        ControlHeading,
			FieldType:   field.Type,
			ID:          SanitizeSlug(field.ID),
			Title:       field.Title,
			Description: field.Description,
		})
	}
	out = append(out, Control{Kind: ControlGroupOpen, FieldType: field.Type, ID: SanitizeSlug(field.ID)})
	return append(out, r.cfg.registry.runSectionHooks(ctx, sectionStart, rc, SanitizeSlug(field.ID))...)
}

func (r *Renderer) renderSectionEnd(ctx context.Context, rc RenderContext, field Field) []Control {
	id := SanitizeSlug(field.ID)
	out := r.cfg.registry.runSectionHooks(ctx, sectionEnd, rc, id)
	out = append(out, Control{Kind: ControlGroupClose, FieldType: field.Type, ID: id})
	return append(out, r.cfg.registry.runSectionHooks(ctx, sectionAfter, rc, id)...)
}

func (r *Renderer) checkbox(control *Control, field Field, value any) {
	control.Kind = ControlCheckbox
	control.InputType = string(FieldCheckbox)
	control.Value = "1"
	control.Checked = checkedValue(value)
	control.GroupOpen = field.CheckboxGroup == "" || field.CheckboxGroup == GroupStart
	control.GroupClose = field.CheckboxGroup == "" || field.CheckboxGroup == GroupEnd

	if field.HideIfChecked == VisibilityToggle || field.ShowIfChecked == VisibilityToggle {
		control.Visibility = append(control.Visibility, ClassHiddenOption)
	}
	if field.HideIfChecked == VisibilityOption {
		control.Visibility = append(control.Visibility, ClassHideOptionsIfChecked)
	}
	if field.ShowIfChecked == VisibilityOption {
		control.Visibility = append(control.Visibility, ClassShowOptionsIfChecked)
	}
}

func (r *Renderer) reference(ctx context.Context, value any) *Reference {
	id := strings.TrimSpace(scalarString(value))
	if id == "" || id == "0" {
		return nil
	}
	if r.cfg.references == nil {
		return &Reference{ID: id, Label: fmt.Sprintf(referenceLabelFormat, id, id)}
	}
	title, ok, err := r.cfg.references.ResolveReference(ctx, id)
	if err != nil {
		r.cfg.log().Warn("settings: reference lookup failed", "id", id, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &Reference{ID: id, Label: fmt.Sprintf(referenceLabelFormat, title, id)}
}

// visible evaluates VisibleWhen against the section snapshot. Evaluation
// errors leave the field visible.
func (r *Renderer) visible(rc RenderContext, field Field) bool {
	if field.VisibleWhen == "" {
		return true
	}
	ok, err := r.cfg.evaluateRule(RuleContext{
		Snapshot: rc.Snapshot,
		Label:    scopedKey(rc.PageID, rc.SectionID) + "#" + field.ID,
		Args:     field.Args,
	}, field.VisibleWhen)
	if err != nil {
		return true
	}
	return ok
}

// fieldDescription splits a field's help text into inline description and
// tooltip. With DescriptionTip set the description moves into the tooltip;
// an explicit Tooltip is shown alongside the description.
func fieldDescription(field Field) (description, tooltip string) {
	switch {
	case field.DescriptionTip:
		return "", field.Description
	case field.Tooltip != "":
		return field.Description, field.Tooltip
	default:
		return field.Description, ""
	}
}

func selectOptions(field Field, value any) []ControlOption {
	selected := map[string]bool{}
	switch {
	case field.Type.Multiple():
		for _, v := range stringList(value) {
			selected[v] = true
		}
	default:
		if value != nil {
			selected[scalarString(value)] = true
		}
	}

	options := make([]ControlOption, 0, len(field.Options))
	for _, choice := range field.Options {
		options = append(options, ControlOption{
			Value:    choice.Value,
			Label:    choice.Label,
			Selected: selected[choice.Value],
			Disabled: !field.Disabled.All && field.Disabled.Has(choice.Value),
		})
	}
	return options
}

func checkedValue(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		return typed == "yes"
	}
	return false
}

func colorSwatch(value any) string {
	color := strings.TrimSpace(scalarString(value))
	if color == "" || strings.ContainsAny(color, ";{}<>\"'") {
		return ""
	}
	if !strings.HasPrefix(color, "#") && !isColorWord(color) {
		return ""
	}
	return color
}

func isColorWord(color string) bool {
	for _, r := range color {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '(' && r != ')' && r != ',' && r != '.' && r != ' ' && r != '%' {
			return false
		}
	}
	return true
}

func cloneAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
