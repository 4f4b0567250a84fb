package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/klauspost/compress/gzip"

	"github.com/lumenforge/tagpipe/format"
)

// ParseMaxBytes parses a human-readable size ("10MB", "512KiB", "1GB")
// into the byte count FileConfig.MaxBytes expects, so config files
// and callers never have to spell out raw byte counts for rotation
// thresholds.
func ParseMaxBytes(human string) (int64, error) {
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(human)); err != nil {
		return 0, fmt.Errorf("sink: parse size %q: %w", human, err)
	}
	return int64(v.Bytes()), nil
}

// RotationPolicy selects how a RotatingFileSink decides to roll over
// to a new file, mirroring original_source/LogAsync/LogHandler.h's
// ROTATION_METHOD enum.
type RotationPolicy int

const (
	// RotationNone appends to the same file forever.
	RotationNone RotationPolicy = iota
	// RotationBySize rolls over once the active file reaches MaxBytes.
	RotationBySize
	// RotationByInterval rolls over every RotateEvery, regardless of
	// wall-clock alignment.
	RotationByInterval
	// RotationAtTime rolls over once per day at a fixed wall-clock
	// time of day (HH:MM:SS local time).
	RotationAtTime
)

// diskCheckInterval matches the teacher/original's periodic disk-space
// monitor cadence.
const diskCheckInterval = 5 * time.Second

// monitorPollInterval bounds how long the rotation and disk-space
// monitor goroutines block before re-checking the quit signal, so
// Close returns promptly instead of waiting out a long sleep.
const monitorPollInterval = 512 * time.Millisecond

const writeBufferSize = 4096

// FileConfig configures a RotatingFileSink.
type FileConfig struct {
	// Path is the base file name rotated sinks write to. Under
	// RotationBySize and RotationByInterval, rotated copies are renamed
	// Path.1, Path.2, ... up to Path.{KeepN-1}. Under RotationAtTime the
	// active file is the date-stamped Path.YYYY.M.D instead.
	Path string
	// Policy selects the rotation behavior.
	Policy RotationPolicy
	// MaxBytes is the size threshold for RotationBySize.
	MaxBytes int64
	// RotateEvery is the interval for RotationByInterval.
	RotateEvery time.Duration
	// AtHour, AtMinute, AtSecond give the daily rollover time for
	// RotationAtTime, in local time.
	AtHour, AtMinute, AtSecond int
	// KeepN is how many files RotationBySize and RotationByInterval
	// keep in total: the active Path plus KeepN-1 rotated copies. The
	// oldest copy is deleted rather than renamed further; with KeepN 1
	// the active file is discarded on rotation. RotationAtTime does not
	// use it and deletes no dated files.
	KeepN int
	// Compress gzip-compresses a file the moment it is rotated out of
	// the active slot (Path.1), rather than leaving it as plain text.
	Compress bool
	// DiskThresholdFraction is the used-space fraction, in [0, 1], at
	// or above which the disk-space governor pauses writes. The zero
	// value is treated as unset and defaults to 1.0 (100% used), so a
	// sink constructed without setting it only reports full once the
	// filesystem is actually exhausted. Matches
	// original_source/LogAsync/LogHandler.cpp's default _diskThreshold
	// of 100% expressed as a fraction; call SetDiskThresholdFraction to
	// change it, including to an explicit 0.
	DiskThresholdFraction float64
}

// RotatingFileSink writes formatted records to a local file, rotating
// it according to Policy and pausing writes under disk pressure.
// Grounded in original_source/LogAsync/LogHandler.h's RotatedLog.
type RotatingFileSink struct {
	base

	cfg FileConfig

	mu         sync.Mutex
	file       *os.File
	w          *bufio.Writer
	size       int64
	openedAt   time.Time
	activePath string // the path currently open; equals cfg.Path except under RotationAtTime

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	diskFull      bool
	diskThreshold float64 // fraction in [0, 1]; protected by mu

	onDiskFull func(bool) // optional; invoked only on a full/not-full transition
}

// NewRotatingFileSink opens cfg.Path (creating parent directories as
// needed) and starts the background rotation and disk-space monitors.
func NewRotatingFileSink(engine *format.Engine, cfg FileConfig, filters ...Filter) (*RotatingFileSink, error) {
	if cfg.KeepN <= 0 {
		cfg.KeepN = 1
	}

	s := &RotatingFileSink{
		base:          newBase(engine, filters...),
		cfg:           cfg,
		quit:          make(chan struct{}),
		diskThreshold: clampFraction(cfg.DiskThresholdFraction),
	}
	if cfg.DiskThresholdFraction <= 0 {
		s.diskThreshold = 1.0
	}

	if err := s.openLog(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.monitorRotation()

	s.wg.Add(1)
	go s.monitorDiskSpace()

	return s, nil
}

// SetDiskThresholdFraction updates the used-space fraction at or above
// which the disk-space governor pauses writes. f is clamped to [0, 1];
// unlike the original source's inverted-epsilon comparison (spec.md
// §9, treated there as a bug), any change here takes effect
// immediately regardless of the previous value.
func (s *RotatingFileSink) SetDiskThresholdFraction(f float64) {
	f = clampFraction(f)
	s.mu.Lock()
	s.diskThreshold = f
	s.mu.Unlock()
}

// SetDiskFullListener registers f to be called with the new state every
// time this sink's disk-space governor flips diskFull, so a caller
// (typically a Dispatcher aggregating across every registered file
// sink) can maintain a process-wide disk-space-exceeded flag without
// polling each sink. f must return quickly; it runs on the governor's
// own goroutine.
func (s *RotatingFileSink) SetDiskFullListener(f func(bool)) {
	s.mu.Lock()
	s.onDiskFull = f
	s.mu.Unlock()
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Accept renders r through the engine, writes the resulting line and
// flushes it to the file, then rotates if the size policy's threshold
// has been reached by the post-write size.
func (s *RotatingFileSink) Accept(r Record) error {
	select {
	case <-s.quit:
		return nil
	default:
	}

	if !s.base.Loggable(r) {
		return nil
	}

	line := s.base.formatEngine().Format(nil, format.Fields{
		Timestamp: time.Unix(0, r.Timestamp),
		Source:    r.Source,
		Tags:      r.Tags,
		Payload:   s.base.sanitize(r.Payload),
	})
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.diskFull {
		return nil
	}

	n, err := s.w.Write(line)
	s.size += int64(n)
	if err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}

	if s.cfg.Policy == RotationBySize && s.cfg.MaxBytes > 0 && s.size >= s.cfg.MaxBytes {
		return s.rotateLocked()
	}
	return nil
}

// Close flushes pending writes, stops the background monitors, and
// closes the active file.
func (s *RotatingFileSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()

	s.mu.Lock()
	if s.diskFull && s.onDiskFull != nil {
		s.diskFull = false
		listener := s.onDiskFull
		s.mu.Unlock()
		listener(false)
		s.mu.Lock()
	}
	defer s.mu.Unlock()
	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// openLog opens the sink's initial active file: cfg.Path for every
// policy except RotationAtTime, which opens the date-stamped file for
// whichever daily interval "now" currently falls in.
func (s *RotatingFileSink) openLog() error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("sink: create log directory: %w", err)
	}

	path := s.cfg.Path
	if s.cfg.Policy == RotationAtTime {
		path = s.constructFilename(s.intervalStart(time.Now()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openPathLocked(path)
}

// openPathLocked closes any currently open file and opens (creating if
// necessary) path in append mode as the new active file. Caller holds s.mu.
func (s *RotatingFileSink) openPathLocked(path string) error {
	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.file != nil {
		_ = s.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open log file %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("sink: stat log file %q: %w", path, err)
	}

	s.file = f
	s.w = bufio.NewWriterSize(f, writeBufferSize)
	s.size = info.Size()
	s.openedAt = time.Now()
	s.activePath = path
	return nil
}

// rotateLocked dispatches to the cascade-rename rotation used by
// RotationBySize/RotationByInterval, or the date-stamped reopen used by
// RotationAtTime. Caller holds s.mu.
func (s *RotatingFileSink) rotateLocked() error {
	if s.cfg.Policy == RotationAtTime {
		return s.rotateAtTimeLocked()
	}

	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	if s.cfg.KeepN <= 1 {
		if err := os.Remove(s.cfg.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("sink: discard log file %q: %w", s.cfg.Path, err)
		}
		return s.openPathLocked(s.cfg.Path)
	}

	slotName := func(n int) string {
		name := s.rotatedName(n)
		if s.cfg.Compress {
			name += ".gz"
		}
		return name
	}

	_ = os.Remove(slotName(s.cfg.KeepN - 1))

	for i := s.cfg.KeepN - 2; i >= 1; i-- {
		_ = os.Rename(slotName(i), slotName(i+1))
	}

	firstRotated := s.rotatedName(1)
	if err := os.Rename(s.cfg.Path, firstRotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sink: rotate log file %q: %w", s.cfg.Path, err)
	}

	if s.cfg.Compress {
		if err := gzipInPlace(firstRotated); err != nil {
			return fmt.Errorf("sink: compress rotated log %q: %w", firstRotated, err)
		}
	}

	return s.openPathLocked(s.cfg.Path)
}

// rotateAtTimeLocked closes out the dated file for the interval that
// just ended and opens the dated file for the interval that is
// starting. Unlike the size/interval policies, daily rotation never
// cascade-renames: the file for each day is already uniquely named by
// constructFilename, matching RotatedLog::ConstructLogFileName /
// HandleRotateAt (original_source/LogAsync/LogHandler.cpp). Caller
// holds s.mu.
func (s *RotatingFileSink) rotateAtTimeLocked() error {
	closed := s.activePath

	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	if s.cfg.Compress && closed != "" {
		if err := gzipInPlace(closed); err != nil {
			return fmt.Errorf("sink: compress rotated log %q: %w", closed, err)
		}
	}

	next := s.constructFilename(s.intervalStart(time.Now()))
	return s.openPathLocked(next)
}

// constructFilename stamps t's date onto the sink's base path as
// name.YYYY.M.D, the RotationAtTime naming scheme from
// RotatedLog::ConstructLogFileName.
func (s *RotatingFileSink) constructFilename(t time.Time) string {
	return fmt.Sprintf("%s.%d.%d.%d", s.cfg.Path, t.Year(), int(t.Month()), t.Day())
}

// intervalStart returns the start of the daily rotation interval "now"
// falls in: today's AtHour:AtMinute:AtSecond if now has already
// reached it, otherwise yesterday's.
func (s *RotatingFileSink) intervalStart(now time.Time) time.Time {
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.AtHour, s.cfg.AtMinute, s.cfg.AtSecond, 0, now.Location())
	if now.Before(scheduled) {
		scheduled = scheduled.AddDate(0, 0, -1)
	}
	return scheduled
}

func (s *RotatingFileSink) rotatedName(n int) string {
	return s.cfg.Path + "." + strconv.Itoa(n)
}

// gzipInPlace compresses path into path+".gz" and removes the original.
func gzipInPlace(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(dst)
	if _, err := copyAll(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

func copyAll(w *gzip.Writer, r *os.File) (int64, error) {
	buf := make([]byte, writeBufferSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}

// monitorRotation drives RotationByInterval and RotationAtTime,
// waking periodically to check whether a rollover is due. Grounded in
// RotatedLog::HandleRotateAfter and HandleRotateAt, collapsed into a
// single poll loop since Go's timers make the two symmetrical.
func (s *RotatingFileSink) monitorRotation() {
	defer s.wg.Done()

	if s.cfg.Policy != RotationByInterval && s.cfg.Policy != RotationAtTime {
		return
	}

	for {
		if s.sleepInterruptible(s.timeUntilNextRotation()) {
			return
		}

		s.mu.Lock()
		_ = s.rotateLocked()
		s.mu.Unlock()
	}
}

func (s *RotatingFileSink) timeUntilNextRotation() time.Duration {
	switch s.cfg.Policy {
	case RotationByInterval:
		s.mu.Lock()
		elapsed := time.Since(s.openedAt)
		s.mu.Unlock()
		if remaining := s.cfg.RotateEvery - elapsed; remaining > 0 {
			return remaining
		}
		return 0
	case RotationAtTime:
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.AtHour, s.cfg.AtMinute, s.cfg.AtSecond, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		return next.Sub(now)
	default:
		return time.Hour
	}
}

// monitorDiskSpace polls used-space fraction on the filesystem
// containing the log directory, pausing writes once it reaches the
// configured threshold. Grounded in RotatedLog::CheckDiskSpace.
func (s *RotatingFileSink) monitorDiskSpace() {
	defer s.wg.Done()

	for {
		if s.sleepInterruptible(diskCheckInterval) {
			return
		}
		s.checkDiskSpaceOnce()
	}
}

// checkDiskSpaceOnce queries the used-space fraction for the log
// directory, updates diskFull, and fires onDiskFull exactly on a
// full/not-full transition. Split out of monitorDiskSpace's loop so it
// can be exercised directly without waiting on diskCheckInterval.
func (s *RotatingFileSink) checkDiskSpaceOnce() {
	used, err := usedFraction(filepath.Dir(s.cfg.Path))

	s.mu.Lock()
	var (
		listener   func(bool)
		transition bool
		full       bool
	)
	if err == nil {
		full = used >= s.diskThreshold
		if full != s.diskFull {
			transition = true
			listener = s.onDiskFull
		}
		s.diskFull = full
	}
	s.mu.Unlock()

	if transition && listener != nil {
		listener(full)
	}
}

// sleepInterruptible sleeps for d in bounded slices so Close's quit
// signal is observed within monitorPollInterval instead of the full
// duration. Returns true if quit fired during the sleep.
func (s *RotatingFileSink) sleepInterruptible(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		wait := remaining
		if wait > monitorPollInterval {
			wait = monitorPollInterval
		}
		select {
		case <-s.quit:
			return true
		case <-time.After(wait):
		}
	}
}

// usedFraction reports the fraction of total space in use on the
// filesystem containing dir, matching
// original_source/LogAsync/LogHandler.cpp's
// (capacity - available) / capacity.
func usedFraction(dir string) (float64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	total := float64(stat.Blocks) * float64(stat.Bsize)
	if total == 0 {
		return 0, nil
	}
	avail := float64(stat.Bavail) * float64(stat.Bsize)
	return (total - avail) / total, nil
}
