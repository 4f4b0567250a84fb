// FILE: constant.go
package log

import "time"

// Level is an ordered logging threshold. Six levels per spec.md §4.7,
// ordered fatal < error < warning < info < debug < all.
type Level int

const (
	LevelFatal Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelAll
)

// levelTags is the tag each level's predicate looks for; setting level
// L accepts any record whose Tags intersects levelTags[0:L+1].
var levelTags = [...]string{
	LevelFatal: "LOG_FATAL",
	LevelError: "LOG_ERROR",
	LevelWarn:  "LOG_WARN",
	LevelInfo:  "LOG_INFO",
	LevelDebug: "LOG_DEBUG",
}

const (
	// dequeBatch bounds how many records a single drain pulls off the
	// staging queue at once.
	dequeBatch = 1024
	// expiredSweepThreshold is the arbitrary small constant spec.md §9
	// calls out: once more than this many weak sink references are found
	// dead in a single drain, the registry takes its write lock and reaps
	// them.
	expiredSweepThreshold = 4
	// maxDatagramBytes caps a single UDP payload.
	maxDatagramBytes = 65535
)

// Timing constants for the consumer loop, shutdown poll, and monitor
// tasks; mirrors the teacher's minWaitTime-style grouping.
const (
	emptyDrainSleep      = time.Millisecond
	shutdownPollInterval = 256 * time.Millisecond
	monitorPollInterval  = 512 * time.Millisecond
	diskCheckInterval    = 5 * time.Second
)
