package settings

import (
	"context"
	"fmt"
)

// Resolution is the tab and section a request addresses, with the fields
// that apply to it. Page is nil for tabs rendered entirely by an OnTabRender
// hook.
type Resolution struct {
	Page     *Page
	Tab      string
	TabLabel string
	Section  string
	Tabs     []TabInfo
	Sections []SectionInfo
	Fields   []Field
}

// Resolve determines the active tab and section of req. The first tab is
// used when req.Tab is empty. It returns ErrNoTabs when nothing is
// registered, ErrTabNotFound for a tab with neither fields nor a tab
// renderer, and ErrSectionNotFound for an unknown section. A registered page
// that declares no fields and receives none from the registry counts as a
// tab without fields.
func (m *Manager) Resolve(ctx context.Context, req RequestContext) (Resolution, error) {
	tabs := m.Tabs(ctx)
	res := Resolution{Tab: req.Tab, Section: req.Section, Tabs: tabs}
	if res.Tab == "" {
		if len(tabs) == 0 {
			return res, ErrNoTabs
		}
		res.Tab = tabs[0].ID
	}
	for _, tab := range tabs {
		if tab.ID == res.Tab {
			res.TabLabel = tab.Label
			break
		}
	}

	page, ok := m.lookupPage(ctx, res.Tab)
	if ok && !page.hasFieldSource() && !m.cfg.registry.hasFields(page.ID) {
		ok = false
	}
	if !ok {
		if m.cfg.registry.hasTabRender(res.Tab) {
			return res, nil
		}
		if len(tabs) == 0 {
			return res, ErrNoTabs
		}
		return res, fmt.Errorf("%w: %q", ErrTabNotFound, res.Tab)
	}
	if res.TabLabel == "" {
		res.TabLabel = page.Label
	}

	res.Sections = m.Sections(ctx, page)
	if res.Section != "" && !hasSection(res.Sections, res.Section) {
		return res, fmt.Errorf("%w: %q in tab %q", ErrSectionNotFound, res.Section, res.Tab)
	}
	res.Page = &page
	res.Fields = m.Fields(ctx, page, res.Section)
	return res, nil
}

// CanSave reports whether the posted data of req should be persisted. The
// submit marker must be present and the resolution must carry a page. Every
// registered save-permission predicate must allow it and the page's SaveWhen
// rule must hold.
func (m *Manager) CanSave(ctx context.Context, req RequestContext, res Resolution) bool {
	if !req.Save || res.Page == nil {
		return false
	}
	if !m.cfg.registry.allowSave(ctx, req, res.Tab, res.Section) {
		m.cfg.log().Debug("settings: save refused by permission hook", "page", res.Tab, "section", res.Section)
		return false
	}
	if res.Page.SaveWhen == "" {
		return true
	}

	snapshot, err := LoadSnapshot(ctx, m.store, m.Record(*res.Page, res.Section), res.Fields, m.cfg.fallback)
	if err != nil {
		m.cfg.log().Warn("settings: save rule snapshot failed", "page", res.Tab, "error", err)
		return false
	}
	ok, err := m.cfg.evaluateRule(RuleContext{
		Snapshot: snapshot,
		Label:    scopedKey(res.Tab, res.Section) + "#save",
		Metadata: map[string]any{"actor_id": req.ActorID, "tenant_id": req.TenantID},
	}, res.Page.SaveWhen)
	if err != nil {
		return false
	}
	return ok
}

func hasSection(sections []SectionInfo, id string) bool {
	for _, section := range sections {
		if section.ID == id {
			return true
		}
	}
	return false
}
