package settings

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Query and form parameter names read by RequestFromHTTP.
const (
	ParamPage    = "page"
	ParamTab     = "tab"
	ParamSection = "section"
	ParamSave    = "save"
)

// RequestContext is everything a request contributes to resolve, render and
// save. It is passed explicitly through every call.
type RequestContext struct {
	Page    string `json:"page,omitempty"`
	Tab     string `json:"tab,omitempty"`
	Section string `json:"section,omitempty"`
	Posted  Posted `json:"-"`
	// Save is set when the submit marker was posted.
	Save     bool   `json:"save,omitempty"`
	ActorID  string `json:"actor_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	// Message and Error carry notices forwarded through a redirect.
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MessageParam is the query parameter that forwards a success notice.
func MessageParam(namespace string) string {
	return namespace + "_message"
}

// ErrorParam is the query parameter that forwards an error notice.
func ErrorParam(namespace string) string {
	return namespace + "_error"
}

// RequestFromHTTP reads the request context from r. Tab and section are slug
// sanitized; the section may come from the query or the posted form.
func RequestFromHTTP(r *http.Request, namespace string) (RequestContext, error) {
	if r == nil {
		return RequestContext{}, fmt.Errorf("settings: request is nil")
	}
	if err := r.ParseForm(); err != nil {
		return RequestContext{}, fmt.Errorf("settings: parse form: %w", err)
	}
	query := r.URL.Query()
	req := RequestContext{
		Page:    SanitizeSlug(query.Get(ParamPage)),
		Tab:     SanitizeSlug(query.Get(ParamTab)),
		Section: SanitizeSlug(r.Form.Get(ParamSection)),
		Message: strings.TrimSpace(query.Get(MessageParam(namespace))),
		Error:   strings.TrimSpace(query.Get(ErrorParam(namespace))),
	}
	if r.Method == http.MethodPost {
		req.Posted = ParseForm(r.PostForm)
		req.Save = r.PostForm.Get(ParamSave) != ""
	}
	return req, nil
}

// ParseForm decodes bracket-notation form keys into nested records:
// "a[b]=1" becomes {"a": {"b": "1"}} and "a[b][]" collects a list. Keys
// without brackets keep their last value.
func ParseForm(values url.Values) Posted {
	posted := Posted{}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		list := values[key]
		if len(list) == 0 {
			continue
		}
		assignFormValue(posted, splitFormKey(key), list)
	}
	return posted
}

func splitFormKey(key string) []string {
	idx := strings.IndexByte(key, '[')
	if idx <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}
	segments := []string{key[:idx]}
	rest := key[idx:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{key}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{key}
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}
	return segments
}

func assignFormValue(target map[string]any, segments []string, list []string) {
	name := segments[0]
	switch {
	case len(segments) == 1:
		target[name] = list[len(list)-1]
		return
	case len(segments) == 2 && segments[1] == "":
		existing, _ := target[name].([]string)
		target[name] = append(existing, list...)
		return
	}
	child, ok := target[name].(map[string]any)
	if !ok {
		child = map[string]any{}
		target[name] = child
	}
	assignFormValue(child, segments[1:], list)
}

var slugFolding = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeSlug lower-cases s, folds accents and keeps only letters, digits,
// dashes and underscores. Whitespace and dots become dashes.
func SanitizeSlug(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(slugFolding, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	lastDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		case r == '-' || r == '.' || unicode.IsSpace(r):
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
