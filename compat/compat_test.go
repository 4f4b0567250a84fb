// FILE: compat/compat_test.go
package compat

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/tagpipe"
)

func newTestDispatcher(t *testing.T) (*log.Dispatcher, string) {
	t.Helper()
	dir := t.TempDir()
	d, err := log.NewBuilder().Level("LOG_ALL").Build()
	require.NoError(t, err)

	path := filepath.Join(dir, "compat.log")
	_, err = d.RegisterFile(path)
	require.NoError(t, err)

	return d, path
}

func readLines(t *testing.T, path string, expected int) []string {
	t.Helper()
	for i := 0; i < 50; i++ {
		if f, err := os.Open(path); err == nil {
			var lines []string
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				lines = append(lines, scanner.Text())
			}
			f.Close()
			if len(lines) >= expected {
				return lines
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("did not observe %d lines in %s", expected, path)
	return nil
}

func TestBuilder_DefaultDispatcherIsBuiltLazily(t *testing.T) {
	builder := NewBuilder()
	adapter, err := builder.BuildFastHTTP()
	require.NoError(t, err)
	assert.NotNil(t, adapter)

	d, err := builder.GetDispatcher()
	require.NoError(t, err)
	assert.NotNil(t, d)
	defer d.Shutdown(time.Second)
}

func TestGnetAdapter_WritesEveryLevelAndInvokesFatalHandler(t *testing.T) {
	d, path := newTestDispatcher(t)
	defer d.Shutdown(time.Second)

	var fatalCalled bool
	adapter := NewGnetAdapter(d, WithFatalHandler(func(string) { fatalCalled = true }))

	adapter.Debugf("gnet debug id=%d", 1)
	adapter.Infof("gnet info id=%d", 2)
	adapter.Warnf("gnet warn id=%d", 3)
	adapter.Errorf("gnet error id=%d", 4)
	adapter.Fatalf("gnet fatal id=%d", 5)

	lines := readLines(t, path, 5)
	assert.Contains(t, lines[0], "gnet debug id=1")
	assert.Contains(t, lines[4], "gnet fatal id=5")
	assert.True(t, fatalCalled, "custom fatal handler should have run")
}

func TestFastHTTPAdapter_DetectsLevelFromMessageContent(t *testing.T) {
	d, path := newTestDispatcher(t)
	defer d.Shutdown(time.Second)

	adapter := NewFastHTTPAdapter(d)

	adapter.Printf("%s", "this is some informational message")
	adapter.Printf("%s", "a debug message for the developers")
	adapter.Printf("%s", "warning: something might be wrong")
	adapter.Printf("%s", "an error occurred while processing")

	lines := readLines(t, path, 4)
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "debug message")
	assert.Contains(t, lines[3], "error occurred")
}

func TestFastHTTPAdapter_CustomLevelDetector(t *testing.T) {
	d, path := newTestDispatcher(t)
	defer d.Shutdown(time.Second)

	adapter := NewFastHTTPAdapter(d, WithLevelDetector(func(string) string { return "LOG_WARN" }),
		WithDefaultLevel("LOG_INFO"))

	adapter.Printf("anything at all")
	lines := readLines(t, path, 1)
	assert.Contains(t, lines[0], "anything at all")
}
