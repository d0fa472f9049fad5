package settings

import (
	"context"

	"github.com/goliatone/go-settings/pkg/activity"
)

type activityConfig struct {
	hooks   activity.Hooks
	channel string
}

// WithActivityHooks sends settings.saved and settings.save_failed events to
// hooks. Nil hooks are dropped.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	kept := make(activity.Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			kept = append(kept, hook)
		}
	}
	return func(cfg *config) {
		cfg.activity.hooks = append(cfg.activity.hooks, kept...)
	}
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.activity.channel = channel
	}
}

func (cfg *config) emitter() *activity.Emitter {
	return activity.NewEmitter(cfg.activity.hooks, activity.Config{
		Enabled: cfg.activity.hooks.Enabled(),
		Channel: cfg.activity.channel,
	})
}

func (m *Manager) emitSave(ctx context.Context, req RequestContext, result SaveResult, saveErr error) {
	if !m.emitter.Enabled() {
		return
	}
	input := activity.SaveEventInput{
		ActorID:    req.ActorID,
		TenantID:   req.TenantID,
		Namespace:  m.namespace,
		Page:       result.Page,
		Section:    result.Section,
		SaveID:     result.ID.String(),
		Records:    result.RecordNames(),
		Fields:     result.Written,
		Skipped:    result.SkippedKeys(),
		Err:        saveErr,
		OccurredAt: m.cfg.now(),
	}
	event := activity.BuildSettingsSavedEvent(input)
	if saveErr != nil {
		event = activity.BuildSettingsSaveFailedEvent(input)
	}
	if err := m.emitter.Emit(ctx, event); err != nil {
		m.cfg.log().Warn("settings: activity hooks failed", "page", result.Page, "error", err)
	}
}
