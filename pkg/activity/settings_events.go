package activity

import (
	"strings"
	"time"
)

// Verbs and object types emitted by the settings manager.
const (
	VerbSettingsSaved      = "settings.saved"
	VerbSettingsSaveFailed = "settings.save_failed"

	ObjectSection = "settings.section"
)

// SaveEventInput describes one save of a settings section.
type SaveEventInput struct {
	ActorID    string
	TenantID   string
	Channel    string
	Namespace  string
	Page       string
	Section    string
	SaveID     string
	Records    []string
	Fields     []string
	Skipped    []string
	Err        error
	OccurredAt time.Time
}

// SectionObjectID is the object id used for a page or page section.
func SectionObjectID(namespace, page, section string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{namespace, page, section} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/")
}

// BuildSettingsSavedEvent reports a successful save.
func BuildSettingsSavedEvent(input SaveEventInput) Event {
	return buildSaveEvent(VerbSettingsSaved, input)
}

// BuildSettingsSaveFailedEvent reports a save aborted by a store failure.
func BuildSettingsSaveFailedEvent(input SaveEventInput) Event {
	event := buildSaveEvent(VerbSettingsSaveFailed, input)
	if input.Err != nil {
		event.Metadata["error"] = input.Err.Error()
	}
	return event
}

func buildSaveEvent(verb string, input SaveEventInput) Event {
	metadata := map[string]any{
		"namespace": input.Namespace,
		"page":      input.Page,
		"section":   input.Section,
	}
	if input.SaveID != "" {
		metadata["save_id"] = input.SaveID
	}
	if len(input.Records) > 0 {
		metadata["records"] = append([]string(nil), input.Records...)
	}
	if len(input.Fields) > 0 {
		metadata["fields"] = append([]string(nil), input.Fields...)
	}
	if len(input.Skipped) > 0 {
		metadata["skipped"] = append([]string(nil), input.Skipped...)
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectSection,
		ObjectID:   SectionObjectID(input.Namespace, input.Page, input.Section),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
