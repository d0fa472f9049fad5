// Package openapi describes settings forms as OpenAPI request bodies. Each
// option record becomes a component schema posted in bracket notation.
package openapi

import (
	"fmt"

	settings "github.com/goliatone/go-settings"
)

// Form is the field list of one section. Record is used for fields whose
// Key has not been encoded.
type Form struct {
	Record string
	Title  string
	Fields []settings.Field
}

// Generator builds OpenAPI documents for settings forms.
type Generator struct {
	config generatorConfig
}

// NewGenerator returns a generator configured by opts.
func NewGenerator(opts ...GeneratorOption) *Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{config: cfg}
}

// Generate returns the document describing a save of forms. The submit
// marker and section selector are documented alongside the records.
func (g *Generator) Generate(forms ...Form) (map[string]any, error) {
	builder := newDocumentBuilder(g.config)

	records := map[string]*schemaNode{}
	var order []string
	for _, form := range forms {
		for _, field := range form.Fields {
			if !field.Storable() {
				continue
			}
			key := settings.ParseKey(field.Key)
			if field.Key == "" {
				if form.Record == "" {
					return nil, fmt.Errorf("openapi: field %q has no key and form has no record", field.ID)
				}
				key = settings.Key{Record: form.Record, Nested: field.StorageID()}
			}
			node := fieldNode(field)
			if key.Nested == "" {
				builder.addScalar(key.Record, node)
				continue
			}
			record, ok := records[key.Record]
			if !ok {
				record = newObjectNode()
				record.Description = form.Title
				records[key.Record] = record
				order = append(order, key.Record)
			}
			record.setProperty(key.Nested, node)
		}
	}
	for _, name := range order {
		builder.addRecord(name, records[name])
	}

	builder.addScalar(settings.ParamSave, &schemaNode{
		Type:        "string",
		Description: "Submit marker; a save only runs when it is non-empty",
	})
	builder.addScalar(settings.ParamSection, &schemaNode{Type: "string"})
	return builder.build()
}

func fieldNode(field settings.Field) *schemaNode {
	node := &schemaNode{Type: "string", Description: field.Description}
	formgen := node.ensureFormgen()
	formgen["widget"] = string(field.Type)
	if field.Title != "" {
		formgen["label"] = field.Title
	}
	if field.Placeholder != "" {
		formgen["placeholder"] = field.Placeholder
	}
	if field.Disabled.All {
		node.ReadOnly = true
	}

	switch {
	case field.Type == settings.FieldCheckbox:
		node.Enum = []any{"1", "yes"}
	case field.Type == settings.FieldSelect || field.Type == settings.FieldRadio:
		node.Enum = enumOf(field.Options)
	case field.Type.Multiple():
		node.Type = "array"
		node.Items = &schemaNode{Type: "string", Enum: enumOf(field.Options)}
	case field.Type == settings.FieldNumber:
		node.Type = "number"
	case field.Type == settings.FieldEmail:
		node.Format = "email"
	case field.Type == settings.FieldURL:
		node.Format = "uri"
	case field.Type == settings.FieldDate:
		node.Format = "date"
	case field.Type == settings.FieldDatetime || field.Type == settings.FieldDatetimeLocal:
		node.Format = "date-time"
	case field.Type == settings.FieldPassword:
		node.Format = "password"
	case field.Type == settings.FieldColor:
		node.Format = "color"
	case field.Type == settings.FieldPageReference || field.Type == settings.FieldPageReferenceSearch:
		relationships := node.ensureRelationships()
		relationships["kind"] = "page"
		relationships["cardinality"] = "one"
	}

	if field.Default != nil {
		node.Default = field.Default
	}
	if len(field.Disabled.Values) > 0 {
		formgen["disabled"] = fmt.Sprint(field.Disabled.Values)
	}
	return node
}

func enumOf(choices settings.Choices) []any {
	if len(choices) == 0 {
		return nil
	}
	out := make([]any, 0, len(choices))
	for _, key := range choices.Keys() {
		out = append(out, key)
	}
	return out
}
