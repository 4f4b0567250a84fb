// FILE: level.go
package log

import (
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v2"
)

// levelGate holds the process-wide level predicate and the per-source
// repetition counters described in spec.md §4.7.
type levelGate struct {
	level atomic.Int32 // index into levelTags; LevelAll means "no restriction"

	counters   *xsync.MapOf[string, *atomic.Uint32]                       // count_of(source)
	idCounters *xsync.MapOf[string, *xsync.MapOf[string, *atomic.Uint32]] // count_of_id(id, source)
}

func newLevelGate() *levelGate {
	g := &levelGate{
		counters:   xsync.NewMapOf[*atomic.Uint32](),
		idCounters: xsync.NewMapOf[*xsync.MapOf[string, *atomic.Uint32]](),
	}
	g.level.Store(int32(LevelAll))
	return g
}

// set installs level by name. An unrecognized name falls back to
// LevelAll, matching spec.md §7's "invalid log-level string" handling.
func (g *levelGate) set(name string) {
	g.level.Store(int32(parseLevelName(name)))
}

func parseLevelName(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LOG_FATAL":
		return LevelFatal
	case "LOG_ERROR":
		return LevelError
	case "LOG_WARN":
		return LevelWarn
	case "LOG_INFO":
		return LevelInfo
	case "LOG_DEBUG":
		return LevelDebug
	case "LOG_ALL":
		return LevelAll
	default:
		return LevelAll
	}
}

// allows reports whether tags contains any level tag at a position
// within the currently configured level (positions 0..L inclusive).
// LevelAll always returns true regardless of tags.
func (g *levelGate) allows(tags []string) bool {
	level := Level(g.level.Load())
	if level >= LevelAll {
		return true
	}
	for _, t := range tags {
		for i := LevelFatal; i <= level; i++ {
			if t == levelTags[i] {
				return true
			}
		}
	}
	return false
}

// countOf implements the global every-N counter: the first call for a
// given source returns 0, and each subsequent call returns the next
// integer in sequence.
func (g *levelGate) countOf(source string) uint32 {
	counter, _ := g.counters.LoadOrStore(source, new(atomic.Uint32))
	return counter.Add(1) - 1
}

// countOfID implements the per-task variant: the counter sequence is
// partitioned by id, with no visibility across distinct ids.
func (g *levelGate) countOfID(id, source string) uint32 {
	perID, _ := g.idCounters.LoadOrStore(id, xsync.NewMapOf[*atomic.Uint32]())
	counter, _ := perID.LoadOrStore(source, new(atomic.Uint32))
	return counter.Add(1) - 1
}

// EveryN reports whether count_of(source)'s latest value is an exact
// multiple of n, the building block for "log every N occurrences"
// call-site guards.
func EveryN(count uint32, n uint32) bool {
	if n == 0 {
		return false
	}
	return count%n == 0
}
