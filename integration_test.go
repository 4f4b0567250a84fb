// FILE: integration_test.go
package log

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/tagpipe/format"
	"github.com/lumenforge/tagpipe/sink"
)

func readAllLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// Scenario 1: ordered monotonicity across concurrent producers.
func TestScenario_OrderedMonotonicity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ordered.log")

	d := NewDispatcher(1<<16, DrainOrdered)
	d.Init()
	defer d.Shutdown(5 * time.Second)

	engine := format.New("%m", "")
	fileSink, err := sink.NewRotatingFileSink(engine, sink.FileConfig{Path: path, Policy: sink.RotationNone, KeepN: 1})
	require.NoError(t, err)
	d.Register(fileSink)

	const producers = 4
	const perProducer = 10000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				d.Enqueue("producer", nil, fmt.Sprintf("p%d-%d", p, i))
			}
		}(p)
	}
	wg.Wait()

	require.NoError(t, d.Shutdown(10*time.Second))

	lines := readAllLines(t, path)
	assert.Len(t, lines, producers*perProducer)

	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		seen[l] = true
	}
	for p := 0; p < producers; p++ {
		for i := 0; i < perProducer; i++ {
			assert.True(t, seen[fmt.Sprintf("p%d-%d", p, i)])
		}
	}
}

// Scenario 2: filter cache safety — a stale per-source cache entry
// trusts the first verdict over a later record's actual tags.
func TestScenario_FilterCacheSafety(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.log")

	engine := format.New("%m", "")
	fileSink, err := sink.NewRotatingFileSink(engine, sink.FileConfig{Path: path, Policy: sink.RotationNone, KeepN: 1})
	require.NoError(t, err)
	fileSink.AddFilter(sink.TagFilter("keep"))

	now := time.Now().UnixNano()
	require.NoError(t, fileSink.Accept(sink.Record{Timestamp: now, Source: "A", Tags: []string{"keep"}, Payload: "first"}))
	require.NoError(t, fileSink.Accept(sink.Record{Timestamp: now, Source: "B", Tags: []string{"drop"}, Payload: "second"}))
	require.NoError(t, fileSink.Accept(sink.Record{Timestamp: now, Source: "A", Tags: []string{"drop"}, Payload: "third"}))
	require.NoError(t, fileSink.Close())

	lines := readAllLines(t, path)
	assert.Equal(t, []string{"first", "third"}, lines, "source A's cached true verdict makes the third record log despite failing a direct tag test")
}

// Scenario 3: disabling the cache makes the third record re-evaluate
// and correctly fail the filter.
func TestScenario_CacheDisableReevaluates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nocache.log")

	engine := format.New("%m", "")
	fileSink, err := sink.NewRotatingFileSink(engine, sink.FileConfig{Path: path, Policy: sink.RotationNone, KeepN: 1})
	require.NoError(t, err)
	fileSink.AddFilter(sink.TagFilter("keep"))
	fileSink.DisableCache()

	now := time.Now().UnixNano()
	require.NoError(t, fileSink.Accept(sink.Record{Timestamp: now, Source: "A", Tags: []string{"keep"}, Payload: "first"}))
	require.NoError(t, fileSink.Accept(sink.Record{Timestamp: now, Source: "B", Tags: []string{"drop"}, Payload: "second"}))
	require.NoError(t, fileSink.Accept(sink.Record{Timestamp: now, Source: "A", Tags: []string{"drop"}, Payload: "third"}))
	require.NoError(t, fileSink.Close())

	lines := readAllLines(t, path)
	assert.Equal(t, []string{"first"}, lines, "with the cache disabled the third record is re-evaluated and correctly dropped")
}

// Scenario 4: size-based rotation keeps exactly keep_n rotated files.
func TestScenario_SizeRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")

	engine := format.New("%m", "")
	fileSink, err := sink.NewRotatingFileSink(engine, sink.FileConfig{
		Path:     path,
		Policy:   sink.RotationBySize,
		MaxBytes: 1024,
		KeepN:    3,
	})
	require.NoError(t, err)

	now := time.Now().UnixNano()
	for i := 0; i < 5000; i++ {
		require.NoError(t, fileSink.Accept(sink.Record{Timestamp: now, Source: "s", Payload: "x"}))
	}
	require.NoError(t, fileSink.Close())

	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")

	for _, p := range []string{path + ".1", path + ".2"} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, info.Size(), int64(1024))
	}
}

// Scenario 5: level filtering at the dispatcher's ingress gate.
func TestScenario_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.log")

	d := NewDispatcher(1024, DrainOrdered)
	d.Init()
	defer d.Shutdown(5 * time.Second)
	d.SetLevel("LOG_WARN")

	engine := format.New("%m", "")
	fileSink, err := sink.NewRotatingFileSink(engine, sink.FileConfig{Path: path, Policy: sink.RotationNone, KeepN: 1})
	require.NoError(t, err)
	d.Register(fileSink)

	d.Enqueue("s", []string{"LOG_FATAL"}, "fatal")
	d.Enqueue("s", []string{"LOG_ERROR"}, "error")
	d.Enqueue("s", []string{"LOG_WARN"}, "warn")
	d.Enqueue("s", []string{"LOG_INFO"}, "info")
	d.Enqueue("s", nil, "untagged")

	require.NoError(t, d.Shutdown(5*time.Second))

	lines := readAllLines(t, path)
	assert.Equal(t, []string{"fatal", "error", "warn"}, lines)
}

// Scenario 6: shutdown drains whatever is still queued before returning.
func TestScenario_ShutdownDrains(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drain.log")

	d := NewDispatcher(1<<15, DrainUnordered)
	d.Init()

	engine := format.New("%m", "")
	fileSink, err := sink.NewRotatingFileSink(engine, sink.FileConfig{Path: path, Policy: sink.RotationNone, KeepN: 1})
	require.NoError(t, err)
	d.Register(fileSink)

	for i := 0; i < 10000; i++ {
		d.Enqueue("s", nil, fmt.Sprintf("%d", i))
	}

	require.NoError(t, d.Shutdown(10*time.Second))

	lines := readAllLines(t, path)
	assert.Len(t, lines, 10000)
}
