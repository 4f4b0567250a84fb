package format

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v2"
)

// Fields is the subset of a pipeline record the format engine needs.
// It is deliberately decoupled from the root package's Record type so
// that this package never has to import it back (the root package is
// the one that imports format).
type Fields struct {
	Timestamp time.Time
	Source    string
	Tags      []string
	Payload   string
}

// Engine formats records using a compiled line-format template and a
// compiled date-format template for the %t token. It owns the %T
// tag-join memoization cache described in spec.md §4.1 — per invariant
// T1, a source's tag set is constant, so the joined string only needs
// computing once per source.
type Engine struct {
	tmpl     *Template
	dateTmpl *DateTemplate
	tagCache *xsync.MapOf[string, string]
}

// New compiles logTemplate and dateTemplate into a ready-to-use Engine.
// Empty templates fall back to the pipeline's documented defaults.
func New(logTemplate, dateTemplate string) *Engine {
	if logTemplate == "" {
		logTemplate = DefaultLogTemplate
	}
	if dateTemplate == "" {
		dateTemplate = DefaultDateTemplate
	}
	return &Engine{
		tmpl:     CompileTemplate(logTemplate),
		dateTmpl: CompileDateTemplate(dateTemplate),
		tagCache: xsync.NewMapOf[string](),
	}
}

// Format renders f into buf (which is reset first) according to the
// compiled template, returning the extended buffer. The caller owns
// buf's lifetime; Format never retains it.
func (e *Engine) Format(buf []byte, f Fields) []byte {
	buf = buf[:0]
	for _, tok := range e.tmpl.tokens {
		switch tok.kind {
		case tokenLiteral:
			buf = append(buf, tok.literal...)
		case tokenTimestamp:
			buf = e.dateTmpl.Append(buf, f.Timestamp)
		case tokenSourceFull:
			buf = escapeControl(buf, f.Source)
		case tokenSourceBasename:
			buf = escapeControl(buf, basename(f.Source))
		case tokenTagsJoined:
			buf = escapeControl(buf, e.joinedTags(f.Source, f.Tags))
		case tokenMessage:
			buf = escapeControl(buf, f.Payload)
		}
	}
	return buf
}

// joinedTags returns the ", "-joined tag string for source, computing
// and memoizing it on first use. Safe under T1: every record sharing a
// source is assumed to carry the same tag set.
func (e *Engine) joinedTags(source string, tags []string) string {
	if joined, ok := e.tagCache.Load(source); ok {
		return joined
	}
	joined := strings.Join(tags, ", ")
	e.tagCache.LoadOrStore(source, joined)
	return joined
}

// basename strips the directory portion of a source string after the
// last '/' or '\', matching spec.md §4.1's %S token.
func basename(source string) string {
	if i := strings.LastIndexAny(source, `/\`); i >= 0 {
		return source[i+1:]
	}
	return filepath.Base(source)
}
