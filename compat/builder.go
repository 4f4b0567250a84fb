// FILE: compat/builder.go
package compat

import (
	"fmt"

	"github.com/lumenforge/tagpipe"
)

// Builder assembles adapters for gnet and fasthttp sharing a single
// *log.Dispatcher, so an application wires one pipeline and reuses it
// across every third-party server library it embeds.
type Builder struct {
	dispatcher *log.Dispatcher
	err        error
}

// NewBuilder creates a new adapter builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithDispatcher specifies an existing dispatcher for the adapters to
// share. If never called, a default one is built via log.NewBuilder().
func (b *Builder) WithDispatcher(d *log.Dispatcher) *Builder {
	if d == nil {
		b.err = fmt.Errorf("compat: provided dispatcher cannot be nil")
		return b
	}
	b.dispatcher = d
	return b
}

func (b *Builder) getDispatcher() (*log.Dispatcher, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.dispatcher != nil {
		return b.dispatcher, nil
	}
	d, err := log.NewBuilder().Build()
	if err != nil {
		return nil, err
	}
	b.dispatcher = d
	return d, nil
}

// BuildGnet creates a gnet logging.Logger adapter.
func (b *Builder) BuildGnet(opts ...GnetOption) (*GnetAdapter, error) {
	d, err := b.getDispatcher()
	if err != nil {
		return nil, err
	}
	return NewGnetAdapter(d, opts...), nil
}

// BuildFastHTTP creates a fasthttp Logger adapter.
func (b *Builder) BuildFastHTTP(opts ...FastHTTPOption) (*FastHTTPAdapter, error) {
	d, err := b.getDispatcher()
	if err != nil {
		return nil, err
	}
	return NewFastHTTPAdapter(d, opts...), nil
}

// GetDispatcher returns the underlying *log.Dispatcher, building a
// default one first if none has been supplied yet.
func (b *Builder) GetDispatcher() (*log.Dispatcher, error) {
	return b.getDispatcher()
}
