// FILE: compat/fasthttp.go
package compat

import (
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/lumenforge/tagpipe"
)

// var _ pins FastHTTPAdapter to fasthttp's actual Logger interface at
// compile time.
var _ fasthttp.Logger = (*FastHTTPAdapter)(nil)

// FastHTTPAdapter wraps a *log.Dispatcher to implement fasthttp's
// Logger interface (a single Printf method).
type FastHTTPAdapter struct {
	dispatcher    *log.Dispatcher
	defaultTag    string
	levelDetector func(string) string // message -> level tag
}

// NewFastHTTPAdapter creates a new fasthttp-compatible logger adapter.
func NewFastHTTPAdapter(d *log.Dispatcher, opts ...FastHTTPOption) *FastHTTPAdapter {
	adapter := &FastHTTPAdapter{
		dispatcher:    d,
		defaultTag:    "LOG_INFO",
		levelDetector: DetectLogLevel,
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

// FastHTTPOption customizes adapter behavior.
type FastHTTPOption func(*FastHTTPAdapter)

// WithDefaultLevel sets the level tag used when no detector matches.
func WithDefaultLevel(tag string) FastHTTPOption {
	return func(a *FastHTTPAdapter) { a.defaultTag = tag }
}

// WithLevelDetector sets a custom function to detect a level tag from
// message content.
func WithLevelDetector(detector func(string) string) FastHTTPOption {
	return func(a *FastHTTPAdapter) { a.levelDetector = detector }
}

// Printf implements fasthttp's Logger interface.
func (a *FastHTTPAdapter) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	tag := a.defaultTag
	if a.levelDetector != nil {
		if detected := a.levelDetector(msg); detected != "" {
			tag = detected
		}
	}

	a.dispatcher.Enqueue("fasthttp", []string{tag}, msg)
}

// DetectLogLevel maps common substrings in msg to a level tag.
func DetectLogLevel(msg string) string {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed") ||
		strings.Contains(lower, "fatal") || strings.Contains(lower, "panic"):
		return "LOG_ERROR"
	case strings.Contains(lower, "warn") || strings.Contains(lower, "deprecated"):
		return "LOG_WARN"
	case strings.Contains(lower, "debug") || strings.Contains(lower, "trace"):
		return "LOG_DEBUG"
	default:
		return "LOG_INFO"
	}
}
