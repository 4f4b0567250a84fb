// FILE: ergonomic.go
package log

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/lumenforge/tagpipe/format"
	"github.com/lumenforge/tagpipe/sink"
)

// RegisterFile attaches a non-rotating file sink using d's default
// templates.
func (d *Dispatcher) RegisterFile(path string, filters ...sink.Filter) (*Handle, error) {
	return d.registerFile(sink.FileConfig{Path: path, Policy: sink.RotationNone, KeepN: 1}, filters...)
}

// RegisterSizeRotated attaches a file sink that rolls over once it
// reaches maxBytes, keeping keepN files in total: the active file plus
// up to keepN-1 rotated copies.
func (d *Dispatcher) RegisterSizeRotated(path string, maxBytes int64, keepN int, compress bool, filters ...sink.Filter) (*Handle, error) {
	return d.registerFile(sink.FileConfig{
		Path:     path,
		Policy:   sink.RotationBySize,
		MaxBytes: maxBytes,
		KeepN:    keepN,
		Compress: compress,
	}, filters...)
}

// RegisterIntervalRotated attaches a file sink that rolls over every
// every duration, regardless of wall-clock alignment.
func (d *Dispatcher) RegisterIntervalRotated(path string, every time.Duration, keepN int, compress bool, filters ...sink.Filter) (*Handle, error) {
	return d.registerFile(sink.FileConfig{
		Path:        path,
		Policy:      sink.RotationByInterval,
		RotateEvery: every,
		KeepN:       keepN,
		Compress:    compress,
	}, filters...)
}

// RegisterDaily attaches a file sink that rolls over once a day at the
// given local-time hour/minute/second.
func (d *Dispatcher) RegisterDaily(path string, hour, minute, second, keepN int, compress bool, filters ...sink.Filter) (*Handle, error) {
	return d.registerFile(sink.FileConfig{
		Path:     path,
		Policy:   sink.RotationAtTime,
		AtHour:   hour,
		AtMinute: minute,
		AtSecond: second,
		KeepN:    keepN,
		Compress: compress,
	}, filters...)
}

// RegisterSizeRotatedHuman is RegisterSizeRotated with maxSize given as
// a human-readable size string ("10MB", "512KiB") instead of a raw byte
// count, for callers wiring rotation thresholds from a config file.
func (d *Dispatcher) RegisterSizeRotatedHuman(path string, maxSize string, keepN int, compress bool, filters ...sink.Filter) (*Handle, error) {
	maxBytes, err := sink.ParseMaxBytes(maxSize)
	if err != nil {
		return nil, err
	}
	return d.RegisterSizeRotated(path, maxBytes, keepN, compress, filters...)
}

func (d *Dispatcher) registerFile(cfg sink.FileConfig, filters ...sink.Filter) (*Handle, error) {
	s, err := sink.NewRotatingFileSink(d.engine(), cfg, filters...)
	if err != nil {
		return nil, err
	}
	return d.Register(s), nil
}

// RegisterUDPv4 attaches a UDP sink dialing addr over IPv4.
func (d *Dispatcher) RegisterUDPv4(addr string, filters ...sink.Filter) (*Handle, error) {
	s, err := sink.NewUDPSink(d.engine(), addr, false, filters...)
	if err != nil {
		return nil, err
	}
	return d.Register(s), nil
}

// RegisterUDPv6 attaches a UDP sink dialing addr over IPv6.
func (d *Dispatcher) RegisterUDPv6(addr string, filters ...sink.Filter) (*Handle, error) {
	s, err := sink.NewUDPSink(d.engine(), addr, true, filters...)
	if err != nil {
		return nil, err
	}
	return d.Register(s), nil
}

// engine lazily builds the format.Engine new sinks share, from the
// templates most recently installed by SetTemplates (or the package
// defaults).
func (d *Dispatcher) engine() *format.Engine {
	d.initMu.Lock()
	defer d.initMu.Unlock()
	if d.sharedEngine == nil {
		d.sharedEngine = format.New(d.lineTemplate, d.dateTemplate)
	}
	return d.sharedEngine
}

// SetTemplates installs the line/date templates sinks registered after
// this call will use. Has no effect on sinks already registered.
func (d *Dispatcher) SetTemplates(lineTemplate, dateTemplate string) {
	d.initMu.Lock()
	defer d.initMu.Unlock()
	d.lineTemplate = lineTemplate
	d.dateTemplate = dateTemplate
	d.sharedEngine = nil
}

// defaultDispatcher is lazily built on first use by the package-level
// convenience wrappers, mirroring the teacher's default.go delegation
// pattern over a single global Logger. defaultDispatcherMu guards
// construction so concurrent first callers (or a test resetting
// defaultDispatcher to nil for isolation) never race on the build.
var (
	defaultDispatcher   *Dispatcher
	defaultDispatcherMu sync.Mutex
)

func defaultDispatcherInstance() *Dispatcher {
	defaultDispatcherMu.Lock()
	defer defaultDispatcherMu.Unlock()
	if defaultDispatcher == nil {
		d, err := NewDispatcherFromConfig(DefaultConfig())
		if err != nil {
			// defaultConfig is a package-level literal validated by
			// TestConfigValidate's "valid config" case; this would mean
			// that literal itself is broken.
			panic(fmt.Sprintf("log: default config failed validation: %v", err))
		}
		defaultDispatcher = d
	}
	return defaultDispatcher
}

// Enqueue submits a record to the process-wide default dispatcher.
// Out of scope for the pipeline's own correctness surface — a thin
// convenience collaborator for callers that don't want to hold a
// *Dispatcher themselves.
func Enqueue(source string, tags []string, payload string) {
	defaultDispatcherInstance().Enqueue(source, tags, payload)
}

// Register attaches s to the default dispatcher.
func Register(s sink.Sink) *Handle {
	return defaultDispatcherInstance().Register(s)
}

// SetLevel sets the default dispatcher's level gate.
func SetLevel(name string) {
	defaultDispatcherInstance().SetLevel(name)
}

// Shutdown drains and stops the default dispatcher. A no-op if no
// package-level call has built one yet.
func Shutdown(timeout time.Duration) error {
	defaultDispatcherMu.Lock()
	d := defaultDispatcher
	defaultDispatcherMu.Unlock()
	if d == nil {
		return nil
	}
	return d.Shutdown(timeout)
}

// Write formats args the way fmt.Sprint would for primitive values,
// falling back to spew.Sdump for anything that isn't a string, error,
// or basic numeric/bool type, then enqueues the result at source
// "file::line" of the caller — the call-site ergonomics the teacher's
// Debug/Info/Warn/Error wrappers provide over the raw Init/Log API.
func Write(tags []string, args ...any) {
	_, file, line, ok := runtime.Caller(1)
	source := "unknown"
	if ok {
		source = sourceKey(file, line)
	}
	defaultDispatcherInstance().Enqueue(source, tags, dumpArgs(args))
}

// WriteTrace is Write plus a call-stack trace appended as an extra tag
// payload segment, matching the teacher's *Trace wrapper family.
func WriteTrace(depth int, tags []string, args ...any) {
	_, file, line, ok := runtime.Caller(1)
	source := "unknown"
	if ok {
		source = sourceKey(file, line)
	}
	trace := getTrace(depth, 2)
	payload := dumpArgs(args)
	if trace != "" {
		payload = fmt.Sprintf("%s (%s)", payload, trace)
	}
	defaultDispatcherInstance().Enqueue(source, tags, payload)
}

// dumpArgs renders args the way the teacher's Write-family functions
// do: simple values via fmt.Sprint, anything structured via spew so a
// struct or map argument doesn't collapse into "%!v(PANIC...)" or a Go
// pointer address.
func dumpArgs(args []any) string {
	if len(args) == 1 {
		return dumpOne(args[0])
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = dumpOne(a)
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func dumpOne(a any) string {
	switch v := a.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprint(v)
	default:
		return spew.Sdump(v)
	}
}
