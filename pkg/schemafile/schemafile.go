// Package schemafile loads settings pages from YAML or TOML files.
package schemafile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	settings "github.com/goliatone/go-settings"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("schemafile: unsupported format")

// Document is a parsed schema file.
type Document struct {
	Namespace string
	Pages     []settings.Page
}

type fileDoc struct {
	Namespace string    `yaml:"namespace" toml:"namespace"`
	Pages     []pageDoc `yaml:"pages" toml:"pages"`
}

type pageDoc struct {
	ID             string       `yaml:"id" toml:"id"`
	Label          string       `yaml:"label" toml:"label"`
	SaveWhen       string       `yaml:"save_when" toml:"save_when"`
	FormMethod     string       `yaml:"form_method" toml:"form_method"`
	HideSaveButton bool         `yaml:"hide_save_button" toml:"hide_save_button"`
	Sections       []sectionDoc `yaml:"sections" toml:"sections"`
	// Fields is shorthand for a page with only the default section.
	Fields []fieldDoc `yaml:"fields" toml:"fields"`
}

type sectionDoc struct {
	ID     string     `yaml:"id" toml:"id"`
	Label  string     `yaml:"label" toml:"label"`
	Fields []fieldDoc `yaml:"fields" toml:"fields"`
}

type fieldDoc struct {
	ID               string            `yaml:"id" toml:"id"`
	Type             string            `yaml:"type" toml:"type"`
	Title            string            `yaml:"title" toml:"title"`
	Description      string            `yaml:"description" toml:"description"`
	Tooltip          string            `yaml:"tooltip" toml:"tooltip"`
	DescriptionTip   bool              `yaml:"description_tip" toml:"description_tip"`
	Default          any               `yaml:"default" toml:"default"`
	Options          choicesDoc        `yaml:"options" toml:"options"`
	Disabled         any               `yaml:"disabled" toml:"disabled"`
	CustomAttributes map[string]string `yaml:"custom_attributes" toml:"custom_attributes"`
	Autoload         *bool             `yaml:"autoload" toml:"autoload"`
	Placeholder      string            `yaml:"placeholder" toml:"placeholder"`
	Suffix           string            `yaml:"suffix" toml:"suffix"`
	Class            string            `yaml:"class" toml:"class"`
	CSS              string            `yaml:"css" toml:"css"`
	Text             string            `yaml:"text" toml:"text"`
	CheckboxGroup    string            `yaml:"checkboxgroup" toml:"checkboxgroup"`
	HideIfChecked    string            `yaml:"hide_if_checked" toml:"hide_if_checked"`
	ShowIfChecked    string            `yaml:"show_if_checked" toml:"show_if_checked"`
	Args             map[string]any    `yaml:"args" toml:"args"`
	FieldName        string            `yaml:"field_name" toml:"field_name"`
	Transient        bool              `yaml:"transient" toml:"transient"`
	VisibleWhen      string            `yaml:"visible_when" toml:"visible_when"`
}

// choicesDoc accepts a list of {value, label} entries. YAML files may also
// use a mapping, whose key order is kept.
type choicesDoc settings.Choices

func (c *choicesDoc) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		out := make(choicesDoc, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, settings.Choice{Value: node.Content[i].Value, Label: node.Content[i+1].Value})
		}
		*c = out
		return nil
	case yaml.SequenceNode:
		var list []settings.Choice
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = list
		return nil
	}
	return fmt.Errorf("schemafile: options must be a list or mapping, line %d", node.Line)
}

// Load reads path and parses it by extension (.yaml, .yml or .toml).
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("schemafile: read %q: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	}
	return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// ParseYAML decodes a YAML schema document.
func ParseYAML(data []byte) (Document, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("schemafile: parse yaml: %w", err)
	}
	return doc.build()
}

// ParseTOML decodes a TOML schema document.
func ParseTOML(data []byte) (Document, error) {
	var doc fileDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("schemafile: parse toml: %w", err)
	}
	return doc.build()
}

// Register adds every page of d to m.
func (d Document) Register(m *settings.Manager) error {
	for _, page := range d.Pages {
		if err := m.AddPage(page); err != nil {
			return fmt.Errorf("schemafile: register page %q: %w", page.ID, err)
		}
	}
	return nil
}

func (f fileDoc) build() (Document, error) {
	doc := Document{Namespace: f.Namespace, Pages: make([]settings.Page, 0, len(f.Pages))}
	for i, p := range f.Pages {
		if strings.TrimSpace(p.ID) == "" {
			return Document{}, fmt.Errorf("schemafile: page %d: %w", i, settings.ErrPageIDRequired)
		}
		page := settings.Page{
			ID:             p.ID,
			Label:          p.Label,
			SaveWhen:       p.SaveWhen,
			FormMethod:     p.FormMethod,
			HideSaveButton: p.HideSaveButton,
		}
		if len(p.Fields) > 0 {
			fields, err := buildFields(p.ID, p.Fields)
			if err != nil {
				return Document{}, err
			}
			page.Sections = append(page.Sections, settings.Section{Label: settings.DefaultSectionLabel, Fields: fields})
		}
		for _, s := range p.Sections {
			fields, err := buildFields(p.ID, s.Fields)
			if err != nil {
				return Document{}, err
			}
			page.Sections = append(page.Sections, settings.Section{ID: s.ID, Label: s.Label, Fields: fields})
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

func buildFields(pageID string, docs []fieldDoc) ([]settings.Field, error) {
	fields := make([]settings.Field, 0, len(docs))
	for _, f := range docs {
		disabled, err := buildDisabled(f.Disabled)
		if err != nil {
			return nil, fmt.Errorf("schemafile: page %q field %q: %w", pageID, f.ID, err)
		}
		fields = append(fields, settings.Field{
			ID:               f.ID,
			Type:             settings.FieldType(f.Type),
			Title:            f.Title,
			Description:      f.Description,
			Tooltip:          f.Tooltip,
			DescriptionTip:   f.DescriptionTip,
			Default:          f.Default,
			Options:          settings.Choices(f.Options),
			Disabled:         disabled,
			CustomAttributes: f.CustomAttributes,
			Autoload:         f.Autoload,
			Placeholder:      f.Placeholder,
			Suffix:           f.Suffix,
			Class:            f.Class,
			CSS:              f.CSS,
			Text:             f.Text,
			CheckboxGroup:    f.CheckboxGroup,
			HideIfChecked:    f.HideIfChecked,
			ShowIfChecked:    f.ShowIfChecked,
			Args:             f.Args,
			FieldName:        f.FieldName,
			Transient:        f.Transient,
			VisibleWhen:      f.VisibleWhen,
		})
	}
	return fields, nil
}

// buildDisabled accepts a boolean or a list of option values.
func buildDisabled(raw any) (settings.Disabled, error) {
	switch typed := raw.(type) {
	case nil:
		return settings.Disabled{}, nil
	case bool:
		return settings.Disabled{All: typed}, nil
	case []any:
		values := make([]string, 0, len(typed))
		for _, item := range typed {
			values = append(values, fmt.Sprint(item))
		}
		return settings.DisableValues(values...), nil
	case []string:
		return settings.DisableValues(typed...), nil
	}
	return settings.Disabled{}, fmt.Errorf("disabled must be a boolean or a list, got %T", raw)
}
