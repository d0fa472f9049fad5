package settings

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Option configures a Manager, Engine or Renderer.
type Option func(*config)

type config struct {
	registry        *Registry
	logger          Logger
	metrics         *Metrics
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	evaluatorLogger EvaluatorLogger
	activity        activityConfig
	references      ReferenceResolver
	fallback        any
	sanitizer       *Sanitizer
	basePath        string
	identity        func(*http.Request) (actorID, tenantID string)
	now             func() time.Time
	newID           func() uuid.UUID
}

func applyOptions(opts []Option) config {
	cfg := config{
		fallback: "",
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	if cfg.sanitizer == nil {
		cfg.sanitizer = NewSanitizer()
	}
	if cfg.evaluator == nil {
		cfg.evaluator = cfg.buildEvaluator()
	}
	return cfg
}

// WithRegistry shares registry between components. A fresh registry is
// created when none is supplied.
func WithRegistry(registry *Registry) Option {
	return func(cfg *config) {
		cfg.registry = registry
	}
}

// WithEvaluator sets the engine used for VisibleWhen and SaveWhen rules. The
// expr evaluator is used when unset.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithReferenceResolver resolves page-reference field values to labels.
func WithReferenceResolver(resolver ReferenceResolver) Option {
	return func(cfg *config) {
		cfg.references = resolver
	}
}

// WithFallbackDefault sets the value used for fields that declare no default.
// The empty string is used when unset.
func WithFallbackDefault(value any) Option {
	return func(cfg *config) {
		cfg.fallback = value
	}
}

// WithSanitizer replaces the HTML policies used during saves.
func WithSanitizer(s *Sanitizer) Option {
	return func(cfg *config) {
		cfg.sanitizer = s
	}
}

// WithBasePath prefixes redirect locations produced by Handle.
func WithBasePath(path string) Option {
	return func(cfg *config) {
		cfg.basePath = path
	}
}

// WithClock overrides time.Now for rules and activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithIDGenerator overrides the generator used for save ids.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(cfg *config) {
		if gen != nil {
			cfg.newID = gen
		}
	}
}

// WithRequestIdentity extracts the actor and tenant ids of HTTP requests
// served by Manager.Handler. They are stamped on activity events.
func WithRequestIdentity(fn func(*http.Request) (actorID, tenantID string)) Option {
	return func(cfg *config) {
		cfg.identity = fn
	}
}
