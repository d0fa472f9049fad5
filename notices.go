package settings

import "sync"

// NoticeKind distinguishes success messages from errors.
type NoticeKind string

const (
	NoticeMessage NoticeKind = "message"
	NoticeError   NoticeKind = "error"
)

// SavedMessage is added after a successful save.
const SavedMessage = "Your settings have been saved."

// Notice is one user-visible line of text.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Notices accumulates request-scoped messages and errors. Duplicate text is
// recorded once.
type Notices struct {
	mu       sync.Mutex
	messages []string
	errors   []string
}

// AddMessage records an informational notice. Empty text is ignored.
func (n *Notices) AddMessage(text string) {
	if text == "" {
		return
	}
	n.mu.Lock()
	n.messages = appendUnique(n.messages, text)
	n.mu.Unlock()
}

// AddError records an error notice. Empty text is ignored.
func (n *Notices) AddError(text string) {
	if text == "" {
		return
	}
	n.mu.Lock()
	n.errors = appendUnique(n.errors, text)
	n.mu.Unlock()
}

// HasErrors reports whether any error was recorded since the last Flush.
func (n *Notices) HasErrors() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors) > 0
}

// Flush returns the errors when any were recorded, the messages otherwise,
// and clears both.
func (n *Notices) Flush() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	kind, texts := NoticeMessage, n.messages
	if len(n.errors) > 0 {
		kind, texts = NoticeError, n.errors
	}
	out := make([]Notice, 0, len(texts))
	for _, text := range texts {
		out = append(out, Notice{Kind: kind, Text: text})
	}
	n.messages, n.errors = nil, nil
	return out
}

func appendUnique(list []string, text string) []string {
	for _, existing := range list {
		if existing == text {
			return list
		}
	}
	return append(list, text)
}
