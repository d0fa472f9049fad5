package openapi

import (
	"fmt"
	"sort"
	"strings"
)

type documentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
	body     *schemaNode
	refs     map[string]string
}

func newDocumentBuilder(config generatorConfig) *documentBuilder {
	return &documentBuilder{
		config:   config,
		registry: newComponentRegistry(),
		body:     newObjectNode(),
		refs:     map[string]string{},
	}
}

func (b *documentBuilder) addRecord(name string, node *schemaNode) {
	b.refs[name] = b.registry.reference(name, node)
	b.body.setProperty(name, nil)
}

func (b *documentBuilder) addScalar(name string, node *schemaNode) {
	b.body.setProperty(name, node)
}

func (b *documentBuilder) build() (map[string]any, error) {
	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   b.buildPaths(),
	}
	if components := b.registry.componentsMap(); components != nil {
		document["components"] = map[string]any{"schemas": components}
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *documentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *documentBuilder) bodySchema() (map[string]any, map[string]any) {
	properties := make(map[string]any, len(b.body.Properties))
	encoding := map[string]any{}
	for name, node := range b.body.Properties {
		if ref, ok := b.refs[name]; ok {
			properties[name] = map[string]any{"$ref": ref}
			encoding[name] = map[string]any{"style": "deepObject", "explode": true}
			continue
		}
		properties[name] = node.openAPI()
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(b.body.Order) > 0 {
		schema["x-order"] = append([]string(nil), b.body.Order...)
	}
	return schema, encoding
}

func (b *documentBuilder) buildPaths() map[string]any {
	method := b.config.operation.Method
	if method == "" {
		method = "post"
	}

	schema, encoding := b.bodySchema()
	media := map[string]any{"schema": schema}
	if len(encoding) > 0 && b.config.contentType == FormContentType {
		media["encoding"] = encoding
	}

	statuses := make([]string, 0, len(b.config.responses))
	for status := range b.config.responses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	responses := make(map[string]any, len(statuses))
	for _, status := range statuses {
		responses[status] = map[string]any{"description": b.config.responses[status].Description}
	}

	operation := map[string]any{
		"operationId": b.operationID(method),
		"requestBody": map[string]any{
			"required": true,
			"content":  map[string]any{b.config.contentType: media},
		},
		"responses": responses,
	}
	if summary := strings.TrimSpace(b.config.operation.Summary); summary != "" {
		operation["summary"] = summary
	}
	return map[string]any{
		b.config.operation.Path: map[string]any{method: operation},
	}
}

func (b *documentBuilder) operationID(method string) string {
	if b.config.operation.OperationID != "" {
		return b.config.operation.OperationID
	}
	return fmt.Sprintf("%s:%s", method, b.config.operation.Path)
}

func validateDocument(document map[string]any) error {
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	if v, _ := document["openapi"].(string); v == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	paths, _ := document["paths"].(map[string]any)
	for path := range paths {
		if path == "" || !strings.HasPrefix(path, "/") {
			return fmt.Errorf("openapi: path %q must start with /", path)
		}
	}
	return nil
}
