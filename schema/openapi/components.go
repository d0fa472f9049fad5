package openapi

import (
	"fmt"
	"regexp"
)

// componentRegistry publishes one schema per option record. Records with
// identical schemas share a component.
type componentRegistry struct {
	byDigest map[string]string
	schemas  map[string]map[string]any
	used     map[string]struct{}
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		byDigest: map[string]string{},
		schemas:  map[string]map[string]any{},
		used:     map[string]struct{}{},
	}
}

// reference registers node under a name derived from hint and returns its
// $ref.
func (r *componentRegistry) reference(hint string, node *schemaNode) string {
	digest := node.Digest()
	if name, ok := r.byDigest[digest]; ok && digest != "" {
		return componentRef(name)
	}
	name := r.uniqueName(hint)
	r.schemas[name] = node.openAPI()
	if digest != "" {
		r.byDigest[digest] = name
	}
	return componentRef(name)
}

func componentRef(name string) string {
	return fmt.Sprintf("#/components/schemas/%s", name)
}

func (r *componentRegistry) uniqueName(hint string) string {
	safe := sanitizeComponentName(hint)
	if safe == "" {
		safe = "Record"
	}
	candidate := safe
	for suffix := 1; ; suffix++ {
		if _, exists := r.used[candidate]; !exists {
			r.used[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s%d", safe, suffix)
	}
}

func (r *componentRegistry) componentsMap() map[string]any {
	if len(r.schemas) == 0 {
		return nil
	}
	out := make(map[string]any, len(r.schemas))
	for name, schema := range r.schemas {
		out[name] = schema
	}
	return out
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = componentNameRegexp.ReplaceAllString(name, "_")
	for len(name) > 0 && name[0] == '_' {
		name = name[1:]
	}
	for len(name) > 0 && name[len(name)-1] == '_' {
		name = name[:len(name)-1]
	}
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
