package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsSavedEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()

	event := activity.BuildSettingsSavedEvent(activity.SaveEventInput{
		ActorID:    actorID.String(),
		TenantID:   tenantID.String(),
		Channel:    "settings",
		Namespace:  "acme",
		Page:       "general",
		Records:    []string{"acme_general"},
		OccurredAt: now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenantID {
		t.Fatalf("unexpected ids: actor=%s tenant=%s", record.ActorID, record.TenantID)
	}
	if record.UserID != uuid.Nil {
		t.Fatalf("expected nil user id, got %s", record.UserID)
	}
	if record.Verb != activity.VerbSettingsSaved || record.ObjectType != activity.ObjectSection || record.ObjectID != "acme/general" {
		t.Fatalf("unexpected verb/object: %+v", record)
	}
	if record.Channel != "settings" || !record.OccurredAt.Equal(now) {
		t.Fatalf("unexpected channel/time: %+v", record)
	}
	if record.Data["page"] != "general" {
		t.Fatalf("expected metadata copied, got %#v", record.Data)
	}
}

func TestHookNotifyKeepsNonUUIDActors(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbSettingsSaved,
		ActorID:    "admin",
		ObjectType: activity.ObjectSection,
		ObjectID:   "acme/general",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	record := sink.records[0]
	if record.ActorID != uuid.Nil {
		t.Fatalf("expected nil actor uuid, got %s", record.ActorID)
	}
	if record.Data["actor_ref"] != "admin" {
		t.Fatalf("expected actor_ref in data, got %#v", record.Data)
	}
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be stamped")
	}
}

func TestHookNotifySkipsInvalidAndPropagatesErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	hook := usersink.Hook{Sink: sink}

	if err := hook.Notify(context.Background(), activity.Event{Verb: "settings.saved"}); err != nil {
		t.Fatalf("expected invalid event to be skipped, got %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no records for invalid event")
	}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbSettingsSaved,
		ObjectType: activity.ObjectSection,
		ObjectID:   "acme/general",
	})
	if err == nil || err.Error() != "sink down" {
		t.Fatalf("expected sink error, got %v", err)
	}

	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{}); err != nil {
		t.Fatalf("expected nil sink to be a no-op, got %v", err)
	}
}
