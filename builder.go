// FILE: builder.go
package log

// Builder provides a fluent API for assembling a Dispatcher, mirroring
// the teacher's NewBuilder()...Build() chain.
type Builder struct {
	cfg *Config
	err error
}

// NewBuilder creates a configuration builder seeded with defaults.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// Build validates the accumulated configuration and returns a
// Dispatcher that has already had Init called.
func (b *Builder) Build() (*Dispatcher, error) {
	if b.err != nil {
		return nil, b.err
	}
	return NewDispatcherFromConfig(b.cfg)
}

// NewDispatcherFromConfig validates cfg and builds a Dispatcher from it
// directly — the path a caller loading settings with NewConfigFromFile
// takes instead of going through a Builder. Applies every field Config
// carries: queue capacity, drain mode, level, consumer-loop timing, and
// default templates.
func NewDispatcherFromConfig(cfg *Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	internalDiagnosticsEnabled.Store(cfg.InternalDiagnosticsToStderr)

	d := NewDispatcher(int(cfg.QueueCapacity), cfg.drainMode())
	d.level.set(cfg.Level)
	d.applyTiming(cfg)
	d.SetTemplates(cfg.LineTemplate, cfg.DateTemplate)
	d.Init()
	return d, nil
}

// QueueCapacity sets the per-generation channel size.
func (b *Builder) QueueCapacity(n int64) *Builder {
	b.cfg.QueueCapacity = n
	return b
}

// Ordered selects DrainOrdered when ordered is true, DrainUnordered
// otherwise.
func (b *Builder) Ordered(ordered bool) *Builder {
	if ordered {
		b.cfg.DrainMode = "ordered"
	} else {
		b.cfg.DrainMode = "unordered"
	}
	return b
}

// Level sets the ingress level gate by name (e.g. "LOG_DEBUG").
func (b *Builder) Level(name string) *Builder {
	b.cfg.Level = name
	return b
}

// LineTemplate sets the default line-format template new sinks
// inherit unless constructed with their own.
func (b *Builder) LineTemplate(tmpl string) *Builder {
	b.cfg.LineTemplate = tmpl
	return b
}

// DateTemplate sets the default date-format template new sinks
// inherit unless constructed with their own.
func (b *Builder) DateTemplate(tmpl string) *Builder {
	b.cfg.DateTemplate = tmpl
	return b
}

// InternalDiagnosticsToStderr toggles whether internal faults (sink
// errors, rotation failures) are written to os.Stderr.
func (b *Builder) InternalDiagnosticsToStderr(enable bool) *Builder {
	b.cfg.InternalDiagnosticsToStderr = enable
	return b
}

// Example usage:
//
//	d, err := log.NewBuilder().
//	    Ordered(true).
//	    Level("LOG_DEBUG").
//	    QueueCapacity(8192).
//	    Build()
//	if err == nil {
//	    defer d.Shutdown(5 * time.Second)
//	}
