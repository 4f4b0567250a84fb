// FILE: compat/gnet.go
package compat

import (
	"fmt"
	"os"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/lumenforge/tagpipe"
)

// var _ pins GnetAdapter to gnet's actual logging.Logger shape at
// compile time, rather than relying on duck typing against a surface
// this file merely happens to resemble.
var _ logging.Logger = (*GnetAdapter)(nil)

// GnetAdapter wraps a *log.Dispatcher to implement gnet's
// logging.Logger interface.
type GnetAdapter struct {
	dispatcher   *log.Dispatcher
	fatalHandler func(msg string)
}

// NewGnetAdapter creates a new gnet-compatible logger adapter.
func NewGnetAdapter(d *log.Dispatcher, opts ...GnetOption) *GnetAdapter {
	adapter := &GnetAdapter{
		dispatcher: d,
		fatalHandler: func(string) {
			os.Exit(1)
		},
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

// GnetOption customizes adapter behavior.
type GnetOption func(*GnetAdapter)

// WithFatalHandler sets a custom fatal handler.
func WithFatalHandler(handler func(string)) GnetOption {
	return func(a *GnetAdapter) { a.fatalHandler = handler }
}

// Debugf logs at debug level with printf-style formatting.
func (a *GnetAdapter) Debugf(format string, args ...any) {
	a.dispatcher.Enqueue("gnet", []string{"LOG_DEBUG"}, fmt.Sprintf(format, args...))
}

// Infof logs at info level with printf-style formatting.
func (a *GnetAdapter) Infof(format string, args ...any) {
	a.dispatcher.Enqueue("gnet", []string{"LOG_INFO"}, fmt.Sprintf(format, args...))
}

// Warnf logs at warn level with printf-style formatting.
func (a *GnetAdapter) Warnf(format string, args ...any) {
	a.dispatcher.Enqueue("gnet", []string{"LOG_WARN"}, fmt.Sprintf(format, args...))
}

// Errorf logs at error level with printf-style formatting.
func (a *GnetAdapter) Errorf(format string, args ...any) {
	a.dispatcher.Enqueue("gnet", []string{"LOG_ERROR"}, fmt.Sprintf(format, args...))
}

// Fatalf logs at error level, waits briefly for the queue to drain,
// then invokes the fatal handler.
func (a *GnetAdapter) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.dispatcher.Enqueue("gnet", []string{"LOG_ERROR", "LOG_FATAL"}, msg)

	deadline := time.Now().Add(100 * time.Millisecond)
	for a.dispatcher.RequestsRemaining() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if a.fatalHandler != nil {
		a.fatalHandler(msg)
	}
}
