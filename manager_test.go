package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/optionstore"
)

func generalPage() Page {
	return Page{
		ID:    "general",
		Label: "General",
		Sections: []Section{{
			Fields: []Field{
				{ID: "title", Type: FieldText, Default: "Acme"},
				{ID: "enabled", Type: FieldCheckbox},
			},
		}},
	}
}

func mailPage() Page {
	return Page{
		ID:    "mail",
		Label: "Mail",
		Sections: []Section{
			{Fields: []Field{{ID: "title", Type: FieldText}}},
			{ID: "smtp", Label: "SMTP", Fields: []Field{{ID: "host", Type: FieldText, Default: "localhost"}}},
		},
	}
}

func newTestManager(t *testing.T, store optionstore.Store, opts ...Option) *Manager {
	t.Helper()
	if store == nil {
		store = optionstore.NewMemoryStore()
	}
	m, err := New("acme", store, opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	for _, page := range []Page{generalPage(), mailPage()} {
		if err := m.AddPage(page); err != nil {
			t.Fatalf("add page %q: %v", page.ID, err)
		}
	}
	return m
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(" ", optionstore.NewMemoryStore()); !errors.Is(err, ErrNamespaceRequired) {
		t.Fatalf("expected ErrNamespaceRequired, got %v", err)
	}
	if _, err := New("acme", nil); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}

func TestAddPageSlugsAndRejectsDuplicates(t *testing.T) {
	m := newTestManager(t, nil)
	if err := m.AddPage(Page{ID: "General"}); !errors.Is(err, ErrDuplicatePage) {
		t.Fatalf("expected ErrDuplicatePage, got %v", err)
	}
	if err := m.AddPage(Page{ID: "  "}); !errors.Is(err, ErrPageIDRequired) {
		t.Fatalf("expected ErrPageIDRequired, got %v", err)
	}
	if err := m.AddPage(Page{ID: "Advanced Options"}); err != nil {
		t.Fatalf("add page: %v", err)
	}
	page, ok := m.Page("advanced-options")
	if !ok || page.Label != "advanced-options" {
		t.Fatalf("expected slugged page with id label, got %#v", page)
	}
}

func TestFieldsEncodeBySectionCount(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	general, _ := m.Page("general")
	mail, _ := m.Page("mail")
	cases := []struct {
		page    Page
		section string
		want    string
	}{
		{page: general, section: "", want: "acme_general[title]"},
		{page: mail, section: "", want: "acme_mail_core[title]"},
		{page: mail, section: "smtp", want: "acme_mail_smtp[host]"},
	}
	for _, tc := range cases {
		fields := m.Fields(ctx, tc.page, tc.section)
		if len(fields) == 0 || fields[0].Key != tc.want {
			t.Fatalf("%s/%s: expected key %q, got %#v", tc.page.ID, tc.section, tc.want, fields)
		}
	}
}

func TestPageFieldDispatchOrder(t *testing.T) {
	page := Page{
		ID: "p",
		Sections: []Section{
			{ID: "", Fields: []Field{{ID: "static", Type: FieldText}}},
			{ID: "extra"},
		},
		Providers: map[string]FieldsProvider{
			"": func(context.Context, string) []Field { return []Field{{ID: "provided", Type: FieldText}} },
		},
		CoreProvider: func(_ context.Context, section string) []Field {
			return []Field{{ID: "core-" + section, Type: FieldText}}
		},
	}
	if got := page.fields(context.Background(), ""); got[0].ID != "provided" {
		t.Fatalf("expected section provider first, got %#v", got)
	}
	if got := page.fields(context.Background(), "extra"); got[0].ID != "core-extra" {
		t.Fatalf("expected core provider fallback, got %#v", got)
	}
	delete(page.Providers, "")
	if got := page.fields(context.Background(), ""); got[0].ID != "static" {
		t.Fatalf("expected static section fields, got %#v", got)
	}
	if sections := (Page{}).OwnSections(); len(sections) != 1 || sections[0].Label != DefaultSectionLabel {
		t.Fatalf("expected implicit default section, got %#v", sections)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	empty, err := New("acme", optionstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := empty.Resolve(ctx, RequestContext{}); !errors.Is(err, ErrNoTabs) {
		t.Fatalf("expected ErrNoTabs, got %v", err)
	}

	m := newTestManager(t, nil)
	res, err := m.Resolve(ctx, RequestContext{})
	if err != nil {
		t.Fatalf("resolve default tab: %v", err)
	}
	if res.Tab != "general" || res.TabLabel != "General" || res.Page == nil {
		t.Fatalf("expected first tab, got %+v", res)
	}

	if _, err := m.Resolve(ctx, RequestContext{Tab: "missing"}); !errors.Is(err, ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
	if _, err := m.Resolve(ctx, RequestContext{Tab: "mail", Section: "imap"}); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}

	res, err = m.Resolve(ctx, RequestContext{Tab: "mail", Section: "smtp"})
	if err != nil {
		t.Fatalf("resolve section: %v", err)
	}
	wantSections := []SectionInfo{{ID: "", Label: DefaultSectionLabel}, {ID: "smtp", Label: "SMTP"}}
	if !reflect.DeepEqual(res.Sections, wantSections) || res.Fields[0].Key != "acme_mail_smtp[host]" {
		t.Fatalf("unexpected resolution %+v", res)
	}
}

func TestResolveRegistryContributions(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	registry.OnTabList(func(_ context.Context, tabs []TabInfo) []TabInfo {
		return append(tabs, TabInfo{ID: "about", Label: "About"}, TabInfo{ID: "extra", Label: "Extra"})
	})
	registry.OnTabRender("about", func(_ context.Context, req RequestContext) []Control {
		return []Control{{Kind: ControlInfo, Text: "about " + req.Tab}}
	})
	registry.OnFields("extra", func(_ context.Context, _, _ string, fields []Field) []Field {
		return append(fields, Field{ID: "flag", Type: FieldCheckbox})
	})
	registry.OnSectionList("general", func(_ context.Context, _ string, sections []SectionInfo) []SectionInfo {
		return append(sections, SectionInfo{ID: "addon", Label: "Add-on"})
	})
	m := newTestManager(t, nil, WithRegistry(registry))

	res, err := m.Resolve(ctx, RequestContext{Tab: "about"})
	if err != nil || res.Page != nil {
		t.Fatalf("expected tab render resolution, got %+v %v", res, err)
	}
	view, err := m.Render(ctx, RequestContext{Tab: "about"}, nil)
	if err != nil || len(view.Controls) != 1 || view.Controls[0].Text != "about about" {
		t.Fatalf("unexpected tab render view %#v %v", view, err)
	}

	res, err = m.Resolve(ctx, RequestContext{Tab: "extra"})
	if err != nil || res.Page == nil || res.TabLabel != "Extra" {
		t.Fatalf("expected synthesized page, got %+v %v", res, err)
	}
	if res.Fields[0].Key != "acme_extra[flag]" {
		t.Fatalf("unexpected contributed field %#v", res.Fields)
	}

	res, err = m.Resolve(ctx, RequestContext{Tab: "general", Section: "addon"})
	if err != nil {
		t.Fatalf("resolve contributed section: %v", err)
	}
	if record := m.Record(*res.Page, res.Section); record != "acme_general" {
		t.Fatalf("expected registry sections not to add a record suffix, got %q", record)
	}
}

func TestResolveFieldlessPageIsNotFound(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	m := newTestManager(t, nil, WithRegistry(registry))
	if err := m.AddPage(Page{ID: "blank", Sections: []Section{{ID: "", Label: "Nothing"}}}); err != nil {
		t.Fatalf("add page: %v", err)
	}

	if _, err := m.Resolve(ctx, RequestContext{Tab: "blank"}); !errors.Is(err, ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound for a page without fields, got %v", err)
	}

	registry.OnTabRender("blank", func(context.Context, RequestContext) []Control {
		return []Control{{Kind: ControlInfo, Text: "custom"}}
	})
	res, err := m.Resolve(ctx, RequestContext{Tab: "blank"})
	if err != nil || res.Page != nil {
		t.Fatalf("expected tab render resolution, got %+v %v", res, err)
	}

	registry.OnFields("blank", func(_ context.Context, _, _ string, fields []Field) []Field {
		return append(fields, Field{ID: "flag", Type: FieldCheckbox})
	})
	res, err = m.Resolve(ctx, RequestContext{Tab: "blank"})
	if err != nil || res.Page == nil || len(res.Fields) != 1 {
		t.Fatalf("expected contributed fields to make the page resolvable, got %+v %v", res, err)
	}
}

func TestCanSave(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	registry.OnSavePermission("mail", "smtp", func(_ context.Context, req RequestContext) bool {
		return req.ActorID == "admin"
	})
	store := optionstore.NewMemoryStore()
	m := newTestManager(t, store, WithRegistry(registry))

	cases := []struct {
		name string
		req  RequestContext
		want bool
	}{
		{name: "missing marker", req: RequestContext{Tab: "general"}, want: false},
		{name: "page without hooks", req: RequestContext{Tab: "general", Save: true}, want: true},
		{name: "section hook refuses", req: RequestContext{Tab: "mail", Section: "smtp", Save: true, ActorID: "guest"}, want: false},
		{name: "section hook allows", req: RequestContext{Tab: "mail", Section: "smtp", Save: true, ActorID: "admin"}, want: true},
		{name: "default section unaffected", req: RequestContext{Tab: "mail", Save: true, ActorID: "guest"}, want: true},
	}
	for _, tc := range cases {
		res, err := m.Resolve(ctx, tc.req)
		if err != nil {
			t.Fatalf("%s: resolve: %v", tc.name, err)
		}
		if got := m.CanSave(ctx, tc.req, res); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCanSaveEvaluatesSaveWhen(t *testing.T) {
	ctx := context.Background()
	store := optionstore.NewMemoryStore()
	m, err := New("acme", store)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	page := generalPage()
	page.SaveWhen = `enabled == true && metadata.actor_id != ""`
	if err := m.AddPage(page); err != nil {
		t.Fatalf("add page: %v", err)
	}

	req := RequestContext{Tab: "general", Save: true, ActorID: "u1"}
	res, err := m.Resolve(ctx, req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if m.CanSave(ctx, req, res) {
		t.Fatalf("expected save refused while enabled is unset")
	}

	store.Seed("acme_general", map[string]any{"enabled": "yes"})
	if !m.CanSave(ctx, req, res) {
		t.Fatalf("expected save allowed once enabled")
	}
	req.ActorID = ""
	if m.CanSave(ctx, req, res) {
		t.Fatalf("expected save refused without actor")
	}
}

func TestHandleEmptyAndRedirects(t *testing.T) {
	ctx := context.Background()
	empty, err := New("acme", optionstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	resp := empty.Handle(ctx, RequestContext{})
	if resp.Status != http.StatusOK || resp.View == nil || !resp.View.Empty {
		t.Fatalf("expected empty view, got %+v", resp)
	}

	m := newTestManager(t, nil, WithBasePath("/settings"))
	resp = m.Handle(ctx, RequestContext{Page: "acme", Tab: "missing"})
	if resp.Status != http.StatusFound || resp.Location != "/settings?page=acme" {
		t.Fatalf("unexpected tab redirect %+v", resp)
	}
	resp = m.Handle(ctx, RequestContext{Page: "acme", Tab: "mail", Section: "imap"})
	if resp.Status != http.StatusFound || resp.Location != "/settings?page=acme&tab=mail" {
		t.Fatalf("unexpected section redirect %+v", resp)
	}
}

func TestHandleFieldlessFirstTabShowsEmptyState(t *testing.T) {
	ctx := context.Background()
	m, err := New("acme", optionstore.NewMemoryStore(), WithBasePath("/settings"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.AddPage(Page{ID: "blank"}); err != nil {
		t.Fatalf("add page: %v", err)
	}
	if err := m.AddPage(generalPage()); err != nil {
		t.Fatalf("add page: %v", err)
	}

	resp := m.Handle(ctx, RequestContext{Page: "acme"})
	if resp.Status != http.StatusOK || resp.View == nil || !resp.View.Empty || len(resp.View.Tabs) != 2 {
		t.Fatalf("expected empty view with tabs, got %+v", resp)
	}
	resp = m.Handle(ctx, RequestContext{Page: "acme", Tab: "blank"})
	if resp.Status != http.StatusFound || resp.Location != "/settings?page=acme" {
		t.Fatalf("expected redirect to the default tab, got %+v", resp)
	}
}

func TestHandleSaveOnRenderedTabWritesNothing(t *testing.T) {
	store := optionstore.NewMemoryStore()
	capture := &activity.CaptureHook{}
	registry := NewRegistry()
	registry.OnTabList(func(_ context.Context, tabs []TabInfo) []TabInfo {
		return append(tabs, TabInfo{ID: "about", Label: "About"})
	})
	registry.OnTabRender("about", func(context.Context, RequestContext) []Control {
		return []Control{{Kind: ControlInfo, Text: "about"}}
	})
	m := newTestManager(t, store, WithRegistry(registry), WithActivityHooks(capture))

	resp := m.Handle(context.Background(), RequestContext{
		Tab:    "about",
		Save:   true,
		Posted: Posted{"acme_about": map[string]any{"title": "New"}},
	})
	if resp.Err != nil || resp.View == nil || len(resp.View.Notices) != 0 {
		t.Fatalf("expected no saved notice, got %+v", resp)
	}
	if len(resp.View.Controls) != 1 || resp.View.Controls[0].Text != "about" {
		t.Fatalf("expected tab render controls, got %#v", resp.View.Controls)
	}
	if len(store.Names()) != 0 || len(capture.Events()) != 0 {
		t.Fatalf("expected nothing written, got %v %#v", store.Names(), capture.Events())
	}
}

func TestHandleSaveAndRender(t *testing.T) {
	ctx := context.Background()
	store := optionstore.NewMemoryStore()
	capture := &activity.CaptureHook{}
	var postSaved []SaveResult
	registry := NewRegistry()
	registry.OnPostSave("mail", "smtp", func(_ context.Context, result SaveResult) {
		postSaved = append(postSaved, result)
	})
	m := newTestManager(t, store, WithRegistry(registry), WithActivityHooks(capture))

	resp := m.Handle(ctx, RequestContext{
		Tab:     "mail",
		Section: "smtp",
		Save:    true,
		ActorID: "u1",
		Posted:  Posted{"acme_mail_smtp": map[string]any{"host": " mx.example.com "}},
	})
	if resp.Status != http.StatusOK || resp.Err != nil || resp.View == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	view := resp.View
	if !reflect.DeepEqual(view.Notices, []Notice{{Kind: NoticeMessage, Text: SavedMessage}}) {
		t.Fatalf("expected saved notice, got %#v", view.Notices)
	}
	if len(view.Sections) != 2 || view.Section != "smtp" || view.FormMethod != "post" {
		t.Fatalf("unexpected view navigation %#v", view)
	}
	if len(view.Controls) != 1 || view.Controls[0].Name != "acme_mail_smtp[host]" || view.Controls[0].Value != "mx.example.com" {
		t.Fatalf("expected rendered stored value, got %#v", view.Controls)
	}
	if names := store.Names(); !reflect.DeepEqual(names, []string{"acme_mail_smtp"}) {
		t.Fatalf("expected only the smtp record written, got %v", names)
	}

	events := capture.Events()
	if len(events) != 1 || events[0].Verb != activity.VerbSettingsSaved || events[0].ObjectID != "acme/mail/smtp" {
		t.Fatalf("unexpected activity events %#v", events)
	}
	if len(postSaved) != 1 || postSaved[0].Page != "mail" || postSaved[0].Section != "smtp" {
		t.Fatalf("expected post-save hook, got %#v", postSaved)
	}
}

func TestHandleSaveNotPermittedIsSilent(t *testing.T) {
	registry := NewRegistry()
	registry.OnSavePermission("general", "", func(context.Context, RequestContext) bool { return false })
	store := optionstore.NewMemoryStore()
	m := newTestManager(t, store, WithRegistry(registry))

	resp := m.Handle(context.Background(), RequestContext{
		Tab:    "general",
		Save:   true,
		Posted: Posted{"acme_general": map[string]any{"title": "New"}},
	})
	if resp.Err != nil || len(resp.View.Notices) != 0 {
		t.Fatalf("expected silent refusal, got %+v", resp)
	}
	if len(store.Names()) != 0 {
		t.Fatalf("expected nothing written, got %v", store.Names())
	}
}

func TestHandleSaveFailureRendersError(t *testing.T) {
	capture := &activity.CaptureHook{}
	store := failingStore{MemoryStore: optionstore.NewMemoryStore(), failOn: "acme_general"}
	m := newTestManager(t, store, WithActivityHooks(capture))

	resp := m.Handle(context.Background(), RequestContext{
		Tab:    "general",
		Save:   true,
		Posted: Posted{"acme_general": map[string]any{"title": "New"}},
	})
	if resp.Status != http.StatusOK || !errors.Is(resp.Err, errDiskFull) {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.View.Notices) != 1 || resp.View.Notices[0].Kind != NoticeError {
		t.Fatalf("expected error notice, got %#v", resp.View.Notices)
	}
	events := capture.Events()
	if len(events) != 1 || events[0].Verb != activity.VerbSettingsSaveFailed {
		t.Fatalf("expected save_failed event, got %#v", events)
	}
}

func TestHandleForwardedNotices(t *testing.T) {
	m := newTestManager(t, nil)
	resp := m.Handle(context.Background(), RequestContext{Message: "Imported", Error: "Import failed"})
	want := []Notice{{Kind: NoticeError, Text: "Import failed"}}
	if !reflect.DeepEqual(resp.View.Notices, want) {
		t.Fatalf("expected forwarded error, got %#v", resp.View.Notices)
	}
}

func TestHandlerServesHTTP(t *testing.T) {
	store := optionstore.NewMemoryStore()
	m := newTestManager(t, store,
		WithBasePath("/settings"),
		WithRequestIdentity(func(r *http.Request) (string, string) {
			return r.Header.Get("X-Actor"), ""
		}),
	)
	handler := m.Handler()

	form := url.Values{"acme_general[title]": {"<b>New</b>"}, "acme_general[enabled]": {"1"}, ParamSave: {"1"}}
	r := httptest.NewRequest(http.MethodPost, "/settings?tab=general", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("X-Actor", "u1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %v", w.Code, w.Header())
	}
	var view PageView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Tab != "general" || len(view.Notices) != 1 || view.Notices[0].Text != SavedMessage {
		t.Fatalf("unexpected view %#v", view)
	}
	value, _, _ := store.Get(context.Background(), "acme_general")
	if !reflect.DeepEqual(value, map[string]any{"title": "New", "enabled": "yes"}) {
		t.Fatalf("unexpected stored record %#v", value)
	}

	r = httptest.NewRequest(http.MethodGet, "/settings?page=acme&tab=nope", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/settings?page=acme" {
		t.Fatalf("unexpected redirect %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestSnapshotForUnknownPage(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Snapshot(context.Background(), "nope", ""); !errors.Is(err, ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
	snapshot, err := m.Snapshot(context.Background(), "mail", "smtp")
	if err != nil || snapshot["host"] != "localhost" {
		t.Fatalf("unexpected snapshot %#v %v", snapshot, err)
	}
}
