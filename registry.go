package settings

import (
	"context"
	"sync"
)

// TabInfo identifies a tab in navigation.
type TabInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SectionInfo identifies a section of a tab.
type SectionInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Hook signatures. List hooks receive the current list and return the list
// to pass on; transform hooks return (value, ok) and veto with ok=false.
type (
	TabListFunc     func(ctx context.Context, tabs []TabInfo) []TabInfo
	SectionListFunc func(ctx context.Context, pageID string, sections []SectionInfo) []SectionInfo
	FieldsFunc      func(ctx context.Context, pageID, sectionID string, fields []Field) []Field
	RenderFieldFunc func(ctx context.Context, rc RenderContext, field Field, value any) []Control
	SectionHookFunc func(ctx context.Context, rc RenderContext, id string) []Control
	SanitizeFunc    func(ctx context.Context, field Field, value any, raw any) (any, bool)
	SavePermission  func(ctx context.Context, req RequestContext) bool
	PostSaveFunc    func(ctx context.Context, result SaveResult)
	TabRenderFunc   func(ctx context.Context, req RequestContext) []Control
)

type sectionHookTable map[string][]SectionHookFunc

type sectionPhase int

const (
	sectionStart sectionPhase = iota
	sectionEnd
	sectionAfter
)

// Registry holds extension points. Handlers run in registration order.
// Registration is safe while requests are being served.
type Registry struct {
	mu sync.RWMutex

	pageList       []TabListFunc
	tabList        []TabListFunc
	sectionList    map[string][]SectionListFunc
	fields         map[string][]FieldsFunc
	renderers      map[FieldType][]RenderFieldFunc
	sectionStart   sectionHookTable
	sectionEnd     sectionHookTable
	sectionAfter   sectionHookTable
	sanitizeGlobal []SanitizeFunc
	sanitizeField  map[string][]SanitizeFunc
	savePermission map[string][]SavePermission
	postSave       map[string][]PostSaveFunc
	tabRender      map[string][]TabRenderFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sectionList:    map[string][]SectionListFunc{},
		fields:         map[string][]FieldsFunc{},
		renderers:      map[FieldType][]RenderFieldFunc{},
		sectionStart:   sectionHookTable{},
		sectionEnd:     sectionHookTable{},
		sectionAfter:   sectionHookTable{},
		sanitizeField:  map[string][]SanitizeFunc{},
		savePermission: map[string][]SavePermission{},
		postSave:       map[string][]PostSaveFunc{},
		tabRender:      map[string][]TabRenderFunc{},
	}
}

func scopedKey(pageID, sectionID string) string {
	if sectionID == "" {
		return pageID
	}
	return pageID + "/" + sectionID
}

// OnPageList contributes pages to the tab list. Runs before OnTabList hooks.
func (r *Registry) OnPageList(fn TabListFunc) {
	r.mu.Lock()
	r.pageList = append(r.pageList, fn)
	r.mu.Unlock()
}

// OnTabList rewrites the final tab list.
func (r *Registry) OnTabList(fn TabListFunc) {
	r.mu.Lock()
	r.tabList = append(r.tabList, fn)
	r.mu.Unlock()
}

// OnSectionList rewrites the section list of pageID.
func (r *Registry) OnSectionList(pageID string, fn SectionListFunc) {
	r.mu.Lock()
	r.sectionList[pageID] = append(r.sectionList[pageID], fn)
	r.mu.Unlock()
}

// OnFields rewrites the raw field list of pageID before keys are encoded.
func (r *Registry) OnFields(pageID string, fn FieldsFunc) {
	r.mu.Lock()
	r.fields[pageID] = append(r.fields[pageID], fn)
	r.mu.Unlock()
}

// OnRenderField renders fields of a type the renderer does not know.
func (r *Registry) OnRenderField(fieldType FieldType, fn RenderFieldFunc) {
	r.mu.Lock()
	r.renderers[fieldType] = append(r.renderers[fieldType], fn)
	r.mu.Unlock()
}

// OnSectionStart runs after a title field opens section id (slugged).
func (r *Registry) OnSectionStart(id string, fn SectionHookFunc) {
	r.mu.Lock()
	r.sectionStart[id] = append(r.sectionStart[id], fn)
	r.mu.Unlock()
}

// OnSectionEnd runs before a sectionend field closes section id.
func (r *Registry) OnSectionEnd(id string, fn SectionHookFunc) {
	r.mu.Lock()
	r.sectionEnd[id] = append(r.sectionEnd[id], fn)
	r.mu.Unlock()
}

// OnSectionAfter runs after a sectionend field closed section id.
func (r *Registry) OnSectionAfter(id string, fn SectionHookFunc) {
	r.mu.Lock()
	r.sectionAfter[id] = append(r.sectionAfter[id], fn)
	r.mu.Unlock()
}

// OnSanitize filters every canonicalized value.
func (r *Registry) OnSanitize(fn SanitizeFunc) {
	r.mu.Lock()
	r.sanitizeGlobal = append(r.sanitizeGlobal, fn)
	r.mu.Unlock()
}

// OnSanitizeField filters values of the field with the given raw id. Runs
// after OnSanitize hooks.
func (r *Registry) OnSanitizeField(fieldID string, fn SanitizeFunc) {
	r.mu.Lock()
	r.sanitizeField[fieldID] = append(r.sanitizeField[fieldID], fn)
	r.mu.Unlock()
}

// OnSavePermission gates saves of pageID, or of one of its sections when
// sectionID is set. Every predicate must allow the save.
func (r *Registry) OnSavePermission(pageID, sectionID string, fn SavePermission) {
	key := scopedKey(pageID, sectionID)
	r.mu.Lock()
	r.savePermission[key] = append(r.savePermission[key], fn)
	r.mu.Unlock()
}

// OnPostSave reacts to a completed save of pageID, or of one of its sections
// when sectionID is set.
func (r *Registry) OnPostSave(pageID, sectionID string, fn PostSaveFunc) {
	key := scopedKey(pageID, sectionID)
	r.mu.Lock()
	r.postSave[key] = append(r.postSave[key], fn)
	r.mu.Unlock()
}

// OnTabRender renders a tab that has no registered page.
func (r *Registry) OnTabRender(tabID string, fn TabRenderFunc) {
	r.mu.Lock()
	r.tabRender[tabID] = append(r.tabRender[tabID], fn)
	r.mu.Unlock()
}

func (r *Registry) applyTabs(ctx context.Context, tabs []TabInfo) []TabInfo {
	if r == nil {
		return tabs
	}
	r.mu.RLock()
	hooks := append(append([]TabListFunc(nil), r.pageList...), r.tabList...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		if fn != nil {
			tabs = fn(ctx, tabs)
		}
	}
	return tabs
}

func (r *Registry) applySections(ctx context.Context, pageID string, sections []SectionInfo) []SectionInfo {
	if r == nil {
		return sections
	}
	r.mu.RLock()
	hooks := append([]SectionListFunc(nil), r.sectionList[pageID]...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		if fn != nil {
			sections = fn(ctx, pageID, sections)
		}
	}
	return sections
}

func (r *Registry) hasFields(pageID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fields[pageID]) > 0
}

func (r *Registry) applyFields(ctx context.Context, pageID, sectionID string, fields []Field) []Field {
	if r == nil {
		return fields
	}
	r.mu.RLock()
	hooks := append([]FieldsFunc(nil), r.fields[pageID]...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		if fn != nil {
			fields = fn(ctx, pageID, sectionID, fields)
		}
	}
	return fields
}

func (r *Registry) renderField(ctx context.Context, rc RenderContext, field Field, value any) []Control {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	hooks := append([]RenderFieldFunc(nil), r.renderers[field.Type]...)
	r.mu.RUnlock()
	var out []Control
	for _, fn := range hooks {
		if fn != nil {
			out = append(out, fn(ctx, rc, field, value)...)
		}
	}
	return out
}

func (r *Registry) runSectionHooks(ctx context.Context, phase sectionPhase, rc RenderContext, id string) []Control {
	if r == nil || id == "" {
		return nil
	}
	r.mu.RLock()
	var table sectionHookTable
	switch phase {
	case sectionStart:
		table = r.sectionStart
	case sectionEnd:
		table = r.sectionEnd
	default:
		table = r.sectionAfter
	}
	hooks := append([]SectionHookFunc(nil), table[id]...)
	r.mu.RUnlock()
	var out []Control
	for _, fn := range hooks {
		if fn != nil {
			out = append(out, fn(ctx, rc, id)...)
		}
	}
	return out
}

func (r *Registry) sanitize(ctx context.Context, field Field, value any, raw any) (any, bool) {
	if r == nil {
		return value, true
	}
	r.mu.RLock()
	hooks := append(append([]SanitizeFunc(nil), r.sanitizeGlobal...), r.sanitizeField[field.ID]...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		if fn == nil {
			continue
		}
		next, ok := fn(ctx, field, value, raw)
		if !ok {
			return nil, false
		}
		value = next
	}
	return value, true
}

func (r *Registry) allowSave(ctx context.Context, req RequestContext, pageID, sectionID string) bool {
	if r == nil {
		return true
	}
	r.mu.RLock()
	hooks := append([]SavePermission(nil), r.savePermission[pageID]...)
	if sectionID != "" {
		hooks = append(hooks, r.savePermission[scopedKey(pageID, sectionID)]...)
	}
	r.mu.RUnlock()
	for _, fn := range hooks {
		if fn != nil && !fn(ctx, req) {
			return false
		}
	}
	return true
}

func (r *Registry) runPostSave(ctx context.Context, result SaveResult) {
	if r == nil {
		return
	}
	r.mu.RLock()
	hooks := append([]PostSaveFunc(nil), r.postSave[result.Page]...)
	if result.Section != "" {
		hooks = append(hooks, r.postSave[scopedKey(result.Page, result.Section)]...)
	}
	r.mu.RUnlock()
	for _, fn := range hooks {
		if fn != nil {
			fn(ctx, result)
		}
	}
}

func (r *Registry) hasTabRender(tabID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabRender[tabID]) > 0
}

func (r *Registry) renderTab(ctx context.Context, req RequestContext) []Control {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	hooks := append([]TabRenderFunc(nil), r.tabRender[req.Tab]...)
	r.mu.RUnlock()
	var out []Control
	for _, fn := range hooks {
		if fn != nil {
			out = append(out, fn(ctx, req)...)
		}
	}
	return out
}
