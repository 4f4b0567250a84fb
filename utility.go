// FILE: utility.go
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"unicode"
)

// fmtErrorf wraps fmt.Errorf with the package's error prefix, matching
// the teacher's fmtErrorf convention.
func fmtErrorf(format string, args ...any) error {
	if !strings.HasPrefix(format, "tagpipe: ") {
		format = "tagpipe: " + format
	}
	return fmt.Errorf(format, args...)
}

// combineErrors merges two errors, returning whichever is non-nil or a
// joined message if both are set.
func combineErrors(err1, err2 error) error {
	if err1 == nil {
		return err2
	}
	if err2 == nil {
		return err1
	}
	return fmt.Errorf("%v; %w", err1, err2)
}

// internalDiagnosticsEnabled gates internalLog; set from Config at
// dispatcher construction time so sinks built independently of a
// Dispatcher still default to reporting faults.
var internalDiagnosticsEnabled atomic.Bool

func init() {
	internalDiagnosticsEnabled.Store(true)
}

// internalLog writes an internal diagnostic to os.Stderr. The pipeline
// cannot route its own faults through itself — a sink write failure
// logging through the pipeline it serves would recurse — so rotation
// failures, socket errors, and config rejections land here instead.
func internalLog(format string, args ...any) {
	if !internalDiagnosticsEnabled.Load() {
		return
	}
	fmt.Fprintf(os.Stderr, "tagpipe: "+format+"\n", args...)
}

// getTrace returns a caller-chain string up to depth frames deep,
// skipping skip frames of its own call stack. Used by trace-enabled
// convenience wrappers in ergonomic.go.
func getTrace(depth int, skip int) string {
	if depth <= 0 || depth > 10 {
		return ""
	}
	pc := make([]uintptr, depth+skip)
	n := runtime.Callers(skip+1, pc)
	if n == 0 {
		return "(unknown)"
	}
	frames := runtime.CallersFrames(pc[:n])
	var trace []string
	count := 0
	for {
		frame, more := frames.Next()
		if !more || count >= depth {
			break
		}
		funcName := filepath.Base(frame.Function)
		parts := strings.Split(funcName, ".")
		lastPart := parts[len(parts)-1]
		if strings.HasPrefix(lastPart, "func") {
			isAnonymous := true
			for _, r := range lastPart[4:] {
				if !unicode.IsDigit(r) {
					isAnonymous = false
					break
				}
			}
			if isAnonymous && len(lastPart) > 4 {
				funcName = fmt.Sprintf("(anonymous in %s)", strings.Join(parts[:len(parts)-1], "."))
			} else {
				funcName = lastPart
			}
		} else {
			funcName = lastPart
		}
		trace = append(trace, funcName)
		count++
	}
	if len(trace) == 0 {
		return "(unknown)"
	}
	for i, j := 0, len(trace)-1; i < j; i, j = i+1, j-1 {
		trace[i], trace[j] = trace[j], trace[i]
	}
	return strings.Join(trace, " -> ")
}
