package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
)

// Response is the fully computed outcome of a request. Nothing is written
// until WriteTo is called.
type Response struct {
	Status   int
	Location string
	View     *PageView
	Err      error
}

// Handle resolves req, saves when requested and permitted, and renders the
// resulting view. An unknown tab redirects to the first tab and an unknown
// section to its tab. With no tabs at all, or when the first tab has no
// fields, an empty view is returned.
func (m *Manager) Handle(ctx context.Context, req RequestContext) Response {
	notices := &Notices{}
	notices.AddError(req.Error)
	notices.AddMessage(req.Message)

	res, err := m.Resolve(ctx, req)
	switch {
	case errors.Is(err, ErrNoTabs), errors.Is(err, ErrTabNotFound) && req.Tab == "":
		m.cfg.metrics.observeRequest(req.Tab, "empty")
		return Response{Status: http.StatusOK, View: &PageView{Namespace: m.namespace, Tabs: res.Tabs, Empty: true, Notices: notices.Flush()}}
	case errors.Is(err, ErrTabNotFound):
		m.cfg.metrics.observeRequest(req.Tab, "redirect")
		return m.redirect(req.Page, "", err)
	case errors.Is(err, ErrSectionNotFound):
		m.cfg.metrics.observeRequest(res.Tab, "redirect")
		return m.redirect(req.Page, res.Tab, err)
	case err != nil:
		m.cfg.metrics.observeRequest(req.Tab, "error")
		return Response{Status: http.StatusInternalServerError, Err: err}
	}

	var saveErr error
	if req.Save {
		_, saveErr = m.save(ctx, req, res)
		switch {
		case errors.Is(saveErr, ErrSaveNotPermitted):
			saveErr = nil
		case saveErr != nil:
			notices.AddError(saveErr.Error())
		default:
			notices.AddMessage(SavedMessage)
		}
	}

	view, err := m.render(ctx, req, res, notices)
	if err != nil {
		m.cfg.metrics.observeRequest(res.Tab, "error")
		return Response{Status: http.StatusInternalServerError, Err: err}
	}
	outcome := "render"
	if req.Save {
		outcome = "save"
	}
	m.cfg.metrics.observeRequest(res.Tab, outcome)
	return Response{Status: http.StatusOK, View: &view, Err: saveErr}
}

func (m *Manager) redirect(page, tab string, cause error) Response {
	query := url.Values{}
	if page != "" {
		query.Set(ParamPage, page)
	}
	if tab != "" {
		query.Set(ParamTab, tab)
	}
	location := m.cfg.basePath
	if location == "" {
		location = "/"
	}
	if encoded := query.Encode(); encoded != "" {
		location += "?" + encoded
	}
	m.cfg.log().Debug("settings: redirecting", "location", location, "reason", cause)
	return Response{Status: http.StatusFound, Location: location}
}

// WriteTo commits the response to w in a single write. Views are encoded as
// JSON.
func (r Response) WriteTo(w http.ResponseWriter) error {
	if r.Location != "" {
		w.Header().Set("Location", r.Location)
		w.WriteHeader(r.Status)
		return nil
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	var payload any = r.View
	if r.View == nil {
		message := http.StatusText(status)
		if r.Err != nil {
			message = r.Err.Error()
		}
		payload = map[string]string{"error": message}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		http.Error(w, "settings: encode response", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// Handler serves the manager over HTTP.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := RequestFromHTTP(r, m.namespace)
		if err != nil {
			_ = Response{Status: http.StatusBadRequest, Err: err}.WriteTo(w)
			return
		}
		if m.cfg.identity != nil {
			req.ActorID, req.TenantID = m.cfg.identity(r)
		}
		resp := m.Handle(r.Context(), req)
		if resp.Err != nil {
			m.cfg.log().Warn("settings: request completed with error", "tab", req.Tab, "error", resp.Err)
		}
		if err := resp.WriteTo(w); err != nil {
			m.cfg.log().Error("settings: write response", "error", err)
		}
	})
}
