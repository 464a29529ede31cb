package lazyconf

import "github.com/goliatone/go-lazyconf/pkg/activity"

// Option configures a Mapping, or every Mapping built by Freeze.
type Option func(*config)

type config struct {
	shape        *Shape
	logger       EvaluationLogger
	emitter      *activity.Emitter
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithShape sets the shape, and with it the reserved names, of new mappings.
func WithShape(shape *Shape) Option {
	return func(cfg *config) {
		cfg.shape = shape
	}
}

// WithEvaluator configures the expression engine used by Mapping.Derive.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a program cache for the default expression engine.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// WithActivityHooks emits attribute lifecycle events (set, reset, state
// import) to hooks. Hook failures never fail the originating call.
func WithActivityHooks(hooks activity.Hooks, cfg ...activity.Config) Option {
	emitterCfg := activity.Config{Enabled: true}
	if len(cfg) > 0 {
		emitterCfg = cfg[0]
	}
	emitter := activity.NewEmitter(hooks, emitterCfg)
	return func(c *config) {
		c.emitter = emitter
	}
}

func (c config) shapeOrDefault() *Shape {
	if c.shape != nil {
		return c.shape
	}
	return BaseShape
}

func (c config) evaluationLogger() EvaluationLogger {
	if c.logger != nil {
		return c.logger
	}
	return noopEvaluationLogger{}
}

// AttrOption configures a single attribute at registration time.
type AttrOption func(*attrConfig)

type attrConfig struct {
	doc       string
	writeOnce bool
	preloaded bool
	value     any
}

func applyAttrOptions(opts []AttrOption) attrConfig {
	cfg := attrConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WriteOnce marks the attribute as settable exactly once through SetOnce.
func WriteOnce() AttrOption {
	return func(cfg *attrConfig) {
		cfg.writeOnce = true
	}
}

// WithDoc attaches documentation to the attribute.
func WithDoc(doc string) AttrOption {
	return func(cfg *attrConfig) {
		cfg.doc = doc
	}
}

// Preloaded registers the attribute with v already computed. Combined with
// WriteOnce the attribute starts out set.
func Preloaded(v any) AttrOption {
	return func(cfg *attrConfig) {
		cfg.preloaded = true
		cfg.value = v
	}
}
