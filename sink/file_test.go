package sink

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/tagpipe/format"
	"github.com/lumenforge/tagpipe/sanitizer"
)

func TestRotatingFileSink_WritesAndRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{
		Path:     path,
		Policy:   RotationBySize,
		MaxBytes: 32,
		KeepN:    3,
	})
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Accept(Record{
			Timestamp: time.Now().UnixNano(),
			Source:    "test",
			Payload:   "0123456789",
		}))
	}
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "size-based rotation should have produced at least one rotated file")
}

func TestRotatingFileSink_NoRotationAppendsToOneFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{
		Path:   path,
		Policy: RotationNone,
		KeepN:  1,
	})
	require.NoError(t, err)

	require.NoError(t, s.Accept(Record{Payload: "line one"}))
	require.NoError(t, s.Accept(Record{Payload: "line two"}))
	require.NoError(t, s.Close())

	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err), "no-rotation policy must never produce a rotated copy")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "line one")
	assert.Contains(t, string(data), "line two")
}

func TestRotatingFileSink_LoggableAppliesPrefixFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	filt := PrefixFilter("keep.")
	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{Path: path, Policy: RotationNone, KeepN: 1}, filt)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.Loggable(Record{Source: "keep.me"}))
	assert.False(t, s.Loggable(Record{Source: "drop.me"}))
}

func TestRotatingFileSink_CompressedRotatedFileDecompressesToOriginalBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{
		Path:     path,
		Policy:   RotationBySize,
		MaxBytes: 16,
		KeepN:    2,
		Compress: true,
	})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Accept(Record{Payload: "0123456789"}))
	}
	require.NoError(t, s.Close())

	gz := path + ".1.gz"
	require.FileExists(t, gz)

	f, err := os.Open(gz)
	require.NoError(t, err)
	defer f.Close()

	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	decompressed, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "0123456789\n0123456789\n", string(decompressed), "rotation checks the post-write size, so the rotated-out file holds every line written up to and including the one that reached MaxBytes")
}

func TestRotatingFileSink_DailyRotationOpensDateStampedFileNotCascadeRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	now := time.Now()
	// AtHour/AtMinute/AtSecond in the past relative to "now" so the
	// interval-start date computed by intervalStart is today.
	past := now.Add(-time.Minute)

	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{
		Path:     path,
		Policy:   RotationAtTime,
		AtHour:   past.Hour(),
		AtMinute: past.Minute(),
		AtSecond: past.Second(),
		KeepN:    1,
	})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Accept(Record{Payload: "daily entry"}))
	require.NoError(t, s.Close())

	dated := path + "." + intToStr(now.Year()) + "." + intToStr(int(now.Month())) + "." + intToStr(now.Day())
	require.FileExists(t, dated, "daily rotation must open a date-stamped file, not the bare base path")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "daily rotation must never write to the bare base path")
	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err), "daily rotation must never cascade-rename")

	data, readErr := os.ReadFile(dated)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "daily entry")
}

func intToStr(n int) string {
	return strconv.Itoa(n)
}

func TestRotatingFileSink_SetDiskThresholdFractionClampsOutOfRangeInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{Path: path, Policy: RotationNone, KeepN: 1})
	require.NoError(t, err)
	defer s.Close()

	s.SetDiskThresholdFraction(-1)
	s.mu.Lock()
	got := s.diskThreshold
	s.mu.Unlock()
	assert.Equal(t, 0.0, got)

	s.SetDiskThresholdFraction(5)
	s.mu.Lock()
	got = s.diskThreshold
	s.mu.Unlock()
	assert.Equal(t, 1.0, got)
}

func TestRotatingFileSink_DefaultDiskThresholdIsFullHundredPercent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{Path: path, Policy: RotationNone, KeepN: 1})
	require.NoError(t, err)
	defer s.Close()

	s.mu.Lock()
	got := s.diskThreshold
	s.mu.Unlock()
	assert.Equal(t, 1.0, got, "an unconfigured threshold must default to 100% used, not trip early")
}

func TestRotatingFileSink_DiskFullListenerFiresOnlyOnTransition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{Path: path, Policy: RotationNone, KeepN: 1})
	require.NoError(t, err)
	defer s.Close()

	var calls []bool
	s.SetDiskFullListener(func(full bool) { calls = append(calls, full) })

	s.SetDiskThresholdFraction(0) // any nonnegative used fraction now counts as full
	s.checkDiskSpaceOnce()
	s.checkDiskSpaceOnce()
	require.Equal(t, []bool{true}, calls, "a second poll with no state change must not re-fire the listener")

	s.SetDiskThresholdFraction(1)
	s.checkDiskSpaceOnce()
	assert.Equal(t, []bool{true, false}, calls, "crossing back under threshold must fire false exactly once")
}

func TestRotatingFileSink_SanitizePolicyStripsShellMetacharacters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	s, err := NewRotatingFileSink(format.New("%m", ""), FileConfig{Path: path, Policy: RotationNone, KeepN: 1})
	require.NoError(t, err)
	s.SetSanitizePolicy(sanitizer.PolicyShell)

	require.NoError(t, s.Accept(Record{Payload: "rm -rf $(echo /); cat /etc/passwd | mail x"}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.NotContains(t, line, "$")
	assert.NotContains(t, line, ";")
	assert.NotContains(t, line, "|")
}
