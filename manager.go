package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-settings/layering"
	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/optionstore"
)

// FieldsProvider returns the fields of one section of a page.
type FieldsProvider func(ctx context.Context, sectionID string) []Field

// Page is a settings tab. Section fields come from, in order: the provider
// registered for the section, the matching static Section, then
// CoreProvider.
type Page struct {
	ID       string
	Label    string
	Sections []Section

	Providers    map[string]FieldsProvider
	CoreProvider FieldsProvider

	// SaveWhen is a rule evaluated against the current snapshot before a
	// save runs. Empty allows every save.
	SaveWhen       string
	FormMethod     string
	HideSaveButton bool
}

// OwnSections lists the sections the page declares. A page without sections
// has the single default section.
func (p Page) OwnSections() []SectionInfo {
	if len(p.Sections) == 0 {
		return []SectionInfo{{ID: "", Label: DefaultSectionLabel}}
	}
	out := make([]SectionInfo, 0, len(p.Sections))
	for _, section := range p.Sections {
		label := section.Label
		if label == "" && section.ID == "" {
			label = DefaultSectionLabel
		}
		out = append(out, SectionInfo{ID: section.ID, Label: label})
	}
	return out
}

// MultipleSections reports whether storage keys carry a section qualifier.
// Sections added through the registry do not count.
func (p Page) MultipleSections() bool {
	return len(p.Sections) > 1
}

// hasFieldSource reports whether the page declares fields of its own.
func (p Page) hasFieldSource() bool {
	if len(p.Providers) > 0 || p.CoreProvider != nil {
		return true
	}
	for _, section := range p.Sections {
		if len(section.Fields) > 0 {
			return true
		}
	}
	return false
}

func (p Page) method() string {
	if p.FormMethod == "" {
		return "post"
	}
	return strings.ToLower(p.FormMethod)
}

func (p Page) fields(ctx context.Context, sectionID string) []Field {
	if provider := p.Providers[sectionID]; provider != nil {
		return provider(ctx, sectionID)
	}
	for _, section := range p.Sections {
		if section.ID == sectionID && len(section.Fields) > 0 {
			return append([]Field(nil), section.Fields...)
		}
	}
	if p.CoreProvider != nil {
		return p.CoreProvider(ctx, sectionID)
	}
	return nil
}

// Manager ties the registry, renderer and save engine to one namespace and
// option store.
type Manager struct {
	namespace string
	store     optionstore.Store
	cfg       config

	mu    sync.RWMutex
	pages []Page
	index map[string]int

	renderer *Renderer
	engine   *Engine
	emitter  *activity.Emitter
}

// New returns a manager for namespace backed by store.
func New(namespace string, store optionstore.Store, opts ...Option) (*Manager, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	cfg := applyOptions(opts)
	return &Manager{
		namespace: namespace,
		store:     store,
		cfg:       cfg,
		index:     map[string]int{},
		renderer:  newRenderer(cfg),
		engine:    newEngine(store, cfg),
		emitter:   cfg.emitter(),
	}, nil
}

// Namespace returns the prefix of every record the manager writes.
func (m *Manager) Namespace() string { return m.namespace }

// Registry returns the extension-point registry shared by the manager.
func (m *Manager) Registry() *Registry { return m.cfg.registry }

// AddPage registers page. Page ids are slug sanitized and must be unique.
func (m *Manager) AddPage(page Page) error {
	page.ID = SanitizeSlug(page.ID)
	if page.ID == "" {
		return ErrPageIDRequired
	}
	if page.Label == "" {
		page.Label = page.ID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.index[page.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePage, page.ID)
	}
	m.index[page.ID] = len(m.pages)
	m.pages = append(m.pages, page)
	m.cfg.log().Debug("settings: page registered", "namespace", m.namespace, "page", page.ID)
	return nil
}

// Page returns the registered page with id.
func (m *Manager) Page(id string) (Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.index[id]
	if !ok {
		return Page{}, false
	}
	return m.pages[idx], true
}

// Tabs lists registered pages followed by registry contributions.
func (m *Manager) Tabs(ctx context.Context) []TabInfo {
	m.mu.RLock()
	tabs := make([]TabInfo, 0, len(m.pages))
	for _, page := range m.pages {
		tabs = append(tabs, TabInfo{ID: page.ID, Label: page.Label})
	}
	m.mu.RUnlock()
	return m.cfg.registry.applyTabs(ctx, tabs)
}

// Sections lists the page's own sections followed by registry
// contributions.
func (m *Manager) Sections(ctx context.Context, page Page) []SectionInfo {
	return m.cfg.registry.applySections(ctx, page.ID, page.OwnSections())
}

// Fields returns the encoded field list of a page section.
func (m *Manager) Fields(ctx context.Context, page Page, sectionID string) []Field {
	fields := page.fields(ctx, sectionID)
	fields = m.cfg.registry.applyFields(ctx, page.ID, sectionID, fields)
	return FormatFields(m.namespace, page.ID, sectionID, page.MultipleSections(), fields)
}

// Record returns the option store record of a page section.
func (m *Manager) Record(page Page, sectionID string) string {
	return RecordName(m.namespace, page.ID, sectionID, page.MultipleSections())
}

// Snapshot loads the resolved values of a page section.
func (m *Manager) Snapshot(ctx context.Context, pageID, sectionID string) (Snapshot, error) {
	page, ok := m.lookupPage(ctx, pageID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTabNotFound, pageID)
	}
	return LoadSnapshot(ctx, m.store, m.Record(page, sectionID), m.Fields(ctx, page, sectionID), m.cfg.fallback)
}

// PageView is the computed payload of a settings screen.
type PageView struct {
	Namespace      string        `json:"namespace"`
	Tab            string        `json:"tab,omitempty"`
	TabLabel       string        `json:"tab_label,omitempty"`
	Section        string        `json:"section,omitempty"`
	Tabs           []TabInfo     `json:"tabs"`
	Sections       []SectionInfo `json:"sections,omitempty"`
	Controls       []Control     `json:"controls,omitempty"`
	Notices        []Notice      `json:"notices,omitempty"`
	FormMethod     string        `json:"form_method,omitempty"`
	HideSaveButton bool          `json:"hide_save_button,omitempty"`
	// Empty is set when no tabs are defined at all.
	Empty bool `json:"empty,omitempty"`
}

// Render builds the view of the resolved tab and section. Notices are
// flushed into the view.
func (m *Manager) Render(ctx context.Context, req RequestContext, notices *Notices) (PageView, error) {
	res, err := m.Resolve(ctx, req)
	if err != nil {
		return PageView{}, err
	}
	return m.render(ctx, req, res, notices)
}

func (m *Manager) render(ctx context.Context, req RequestContext, res Resolution, notices *Notices) (PageView, error) {
	view := PageView{
		Namespace: m.namespace,
		Tab:       res.Tab,
		TabLabel:  res.TabLabel,
		Section:   res.Section,
		Tabs:      res.Tabs,
	}
	if len(res.Sections) > 1 {
		view.Sections = res.Sections
	}
	if notices != nil {
		view.Notices = notices.Flush()
	}

	if res.Page == nil {
		req.Tab, req.Section = res.Tab, res.Section
		view.Controls = m.cfg.registry.renderTab(ctx, req)
		view.FormMethod = "post"
		return view, nil
	}

	page := *res.Page
	view.FormMethod = page.method()
	view.HideSaveButton = page.HideSaveButton

	record := m.Record(page, res.Section)
	stored, err := m.loadStored(ctx, record)
	if err != nil {
		return view, err
	}
	values := resolveValues(res.Fields, stored, m.cfg.fallback)
	rc := RenderContext{
		Namespace: m.namespace,
		PageID:    page.ID,
		SectionID: res.Section,
		Snapshot:  Merge(res.Fields, stored, m.cfg.fallback),
	}
	view.Controls = m.renderer.RenderFields(ctx, rc, res.Fields, func(field Field) any {
		return values[field.StorageID()]
	})
	return view, nil
}

func (m *Manager) loadStored(ctx context.Context, record string) (map[string]any, error) {
	value, ok, err := m.store.Get(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("settings: load %q: %w", record, err)
	}
	if !ok {
		return nil, nil
	}
	stored, _ := layering.AsMap(value)
	return stored, nil
}

// Save persists the posted values of the resolved section. It returns
// ErrSaveNotPermitted when the submit marker is missing or a permission
// predicate refuses the save.
func (m *Manager) Save(ctx context.Context, req RequestContext) (SaveResult, error) {
	res, err := m.Resolve(ctx, req)
	if err != nil {
		return SaveResult{}, err
	}
	return m.save(ctx, req, res)
}

func (m *Manager) save(ctx context.Context, req RequestContext, res Resolution) (SaveResult, error) {
	if !m.CanSave(ctx, req, res) {
		return SaveResult{}, ErrSaveNotPermitted
	}

	start := time.Now()
	result, err := m.engine.SaveFields(ctx, res.Fields, req.Posted)
	result.Page, result.Section = res.Tab, res.Section
	m.cfg.metrics.observeSave(res.Tab, result, err, time.Since(start))

	if err != nil {
		m.cfg.log().Error("settings: save failed", "page", res.Tab, "section", res.Section, "error", err)
		m.emitSave(ctx, req, result, err)
		return result, err
	}

	m.cfg.registry.runPostSave(ctx, result)
	m.cfg.log().Info("settings: saved", "page", res.Tab, "section", res.Section,
		"records", len(result.Records), "written", len(result.Written), "skipped", len(result.Skipped))
	m.emitSave(ctx, req, result, nil)
	return result, nil
}

// lookupPage finds a registered page, or synthesizes one for a tab whose
// fields are contributed entirely through the registry.
func (m *Manager) lookupPage(ctx context.Context, id string) (Page, bool) {
	if page, ok := m.Page(id); ok {
		return page, true
	}
	if !m.cfg.registry.hasFields(id) {
		return Page{}, false
	}
	for _, tab := range m.Tabs(ctx) {
		if tab.ID == id {
			return Page{ID: tab.ID, Label: tab.Label}, true
		}
	}
	return Page{ID: id, Label: id}, true
}
