// FILE: registry_test.go
package log

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/tagpipe/sink"
)

type stubSink struct{ closed bool }

func (s *stubSink) Accept(sink.Record) error  { return nil }
func (s *stubSink) Loggable(sink.Record) bool { return true }
func (s *stubSink) Close() error              { s.closed = true; return nil }

func TestRegistry_RegisterAndLiveSinks(t *testing.T) {
	r := newRegistry()
	h := r.register(&stubSink{})
	require.NotNil(t, h)

	live, expired := r.liveSinks()
	assert.Len(t, live, 1)
	assert.Equal(t, 0, expired)
	assert.Equal(t, 1, r.count())
}

func TestRegistry_HandleCloseReleasesSinkImmediately(t *testing.T) {
	r := newRegistry()
	s := &stubSink{}
	h := r.register(s)

	require.NoError(t, h.Close())
	assert.True(t, s.closed)
	require.NoError(t, h.Close(), "a second Close must be a no-op, not an error")
}

func TestRegistry_DroppedHandleEventuallyExpiresAndSweeps(t *testing.T) {
	r := newRegistry()

	func() {
		h := r.register(&stubSink{})
		_ = h
	}()

	var expired int
	for i := 0; i < 50; i++ {
		runtime.GC()
		_, expired = r.liveSinks()
		if expired > 0 {
			break
		}
	}
	require.Greater(t, expired, 0, "weak reference should resolve to nil once the Handle is unreachable and collected")

	r.sweep()
	assert.Equal(t, 0, r.count())
}
