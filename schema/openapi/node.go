package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

type schemaNode struct {
	Type          string
	Format        string
	Description   string
	Properties    map[string]*schemaNode
	Order         []string
	Items         *schemaNode
	Enum          []any
	Default       any
	ReadOnly      bool
	formgen       map[string]string
	relationships map[string]string
}

func newObjectNode() *schemaNode {
	return &schemaNode{Type: "object", Properties: map[string]*schemaNode{}}
}

func (n *schemaNode) setProperty(name string, child *schemaNode) {
	if _, exists := n.Properties[name]; !exists {
		n.Order = append(n.Order, name)
	}
	n.Properties[name] = child
}

func (n *schemaNode) ensureFormgen() map[string]string {
	if n.formgen == nil {
		n.formgen = map[string]string{}
	}
	return n.formgen
}

func (n *schemaNode) ensureRelationships() map[string]string {
	if n.relationships == nil {
		n.relationships = map[string]string{}
	}
	return n.relationships
}

func (n *schemaNode) openAPI() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Description != "" {
		result["description"] = n.Description
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.ReadOnly {
		result["readOnly"] = true
	}
	if n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for name, child := range n.Properties {
			props[name] = child.openAPI()
		}
		result["properties"] = props
		if len(n.Order) > 0 {
			result["x-order"] = append([]string(nil), n.Order...)
		}
	}
	if n.Items != nil {
		result["items"] = n.Items.openAPI()
	}
	if len(n.formgen) > 0 {
		result["x-formgen"] = orderedStringMap(n.formgen)
	}
	if len(n.relationships) > 0 {
		result["x-relationships"] = orderedStringMap(n.relationships)
	}
	return result
}

// Digest identifies structurally equal nodes.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.openAPI())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func orderedStringMap(values map[string]string) map[string]any {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make(map[string]any, len(values))
	for _, key := range keys {
		out[key] = values[key]
	}
	return out
}
