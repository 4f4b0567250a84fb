// Package format compiles the pipeline's two template grammars — the
// line-format template (%t, %s, %S, %T, %m, %%) and the date-format
// template used inside %t (standard strftime-style placeholders plus a
// "$" fractional-seconds sentinel) — into ordered lists of emitters that
// run once per record without per-line allocation.
package format

import (
	"strings"
)

// tokenKind identifies what an emitter writes into the output buffer.
type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenTimestamp
	tokenSourceFull
	tokenSourceBasename
	tokenTagsJoined
	tokenMessage
)

// token is one compiled step of a line-format template.
type token struct {
	kind    tokenKind
	literal string // only meaningful when kind == tokenLiteral
}

// Template is a compiled line-format template ready to drive Engine.Format.
type Template struct {
	tokens []token
}

// DefaultLogTemplate matches the original implementation's default line
// format (see original_source/LogAsync/TimeManip.h).
const DefaultLogTemplate = "[%t] [%s] %m"

// CompileTemplate compiles a %-token template string per spec.md §4.1.
// Unrecognized "%x" sequences are silently discarded, matching the
// source's permissive behavior (spec.md §9 REDESIGN note keeps this, it
// is not flagged as a bug to fix).
func CompileTemplate(tmpl string) *Template {
	t := &Template{}
	var lit strings.Builder

	flushLiteral := func() {
		if lit.Len() > 0 {
			t.tokens = append(t.tokens, token{kind: tokenLiteral, literal: lit.String()})
			lit.Reset()
		}
	}

	runes := []rune(tmpl)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '%' || i == len(runes)-1 {
			lit.WriteRune(runes[i])
			continue
		}

		i++ // consume the char after '%'
		switch runes[i] {
		case 't':
			flushLiteral()
			t.tokens = append(t.tokens, token{kind: tokenTimestamp})
		case 's':
			flushLiteral()
			t.tokens = append(t.tokens, token{kind: tokenSourceFull})
		case 'S':
			flushLiteral()
			t.tokens = append(t.tokens, token{kind: tokenSourceBasename})
		case 'T':
			flushLiteral()
			t.tokens = append(t.tokens, token{kind: tokenTagsJoined})
		case 'm':
			flushLiteral()
			t.tokens = append(t.tokens, token{kind: tokenMessage})
		case '%':
			lit.WriteByte('%')
		default:
			// Unknown token: discard both the '%' and the following char.
		}
	}
	flushLiteral()
	return t
}
