package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngine_FormatBasicLine(t *testing.T) {
	e := New("[%t] [%s] %T %m", "%H:%M:%S.$3")
	ts := time.Date(2026, 8, 6, 9, 30, 0, 250000000, time.UTC)

	out := e.Format(nil, Fields{
		Timestamp: ts,
		Source:    "net/listener",
		Tags:      []string{"net", "tcp"},
		Payload:   "connection accepted",
	})

	assert.Equal(t, "[09:30:00.250] [net/listener] net, tcp connection accepted", string(out))
}

func TestEngine_FormatSourceBasename(t *testing.T) {
	e := New("%S", "")
	out := e.Format(nil, Fields{Source: "pkg/sub/module.go"})
	assert.Equal(t, "module.go", string(out))
}

func TestEngine_TagJoinIsMemoizedPerSource(t *testing.T) {
	e := New("%T", "")

	first := string(e.Format(nil, Fields{Source: "svc", Tags: []string{"a", "b"}}))
	assert.Equal(t, "a, b", first)

	// Per invariant T1 a source's tag set is constant; even if a caller
	// passes different tags for the same source, the cached join wins.
	second := string(e.Format(nil, Fields{Source: "svc", Tags: []string{"x", "y", "z"}}))
	assert.Equal(t, "a, b", second)
}

func TestEngine_PayloadControlCharactersEscaped(t *testing.T) {
	e := New("%m", "")
	out := e.Format(nil, Fields{Payload: "line1\nline2\x07"})
	assert.Equal(t, "line1<0a>line2<07>", string(out))
}

func TestEngine_PayloadNonASCIITextPassesThroughUnescaped(t *testing.T) {
	e := New("%m", "")
	out := e.Format(nil, Fields{Payload: "café 日本語 🎉"})
	assert.Equal(t, "café 日本語 🎉", string(out), "multi-byte UTF-8 bytes are not control characters and must not be hex-escaped")
}

func TestEngine_DefaultsWhenTemplatesEmpty(t *testing.T) {
	e := New("", "")
	assert.NotNil(t, e.tmpl)
	assert.NotNil(t, e.dateTmpl)
}
