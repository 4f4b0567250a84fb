package format

import (
	"strconv"
	"strings"
	"time"
)

// DefaultDateTemplate matches the original implementation's default
// timestamp format (original_source/LogAsync/TimeManip.h): RFC3339-ish
// with a fractional-seconds sentinel.
const DefaultDateTemplate = "%Y-%m-%d %H:%M:%S.$"

// dateStep is one compiled step of a date-format template: either a
// chunk to hand to time.Time.AppendFormat verbatim, or a fractional
// seconds injection point with its clamped decimal precision.
type dateStep struct {
	goLayout string // non-empty for a literal/strftime chunk
	fracDigits int  // >0 marks this step as a fractional-seconds injection
}

// DateTemplate is a compiled date-format template.
type DateTemplate struct {
	steps []dateStep
}

// strftimeToGo maps the subset of strftime-style placeholders the
// pipeline's date-format grammar supports to Go's reference-time layout
// fragments.
var strftimeToGo = map[byte]string{
	'Y': "2006",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'z': "-0700",
}

// CompileDateTemplate compiles a date-format string containing strftime
// placeholders and "$[1-9]?" fractional-seconds sentinels, per spec.md
// §4.1. A "$" may be followed by a digit 1-9 selecting decimal places
// (clamped to [1,9], default 6); an invalid character after "$" is kept
// as a literal and the default precision is used. Every "$" in the
// template is substituted with the same fractional value.
func CompileDateTemplate(tmpl string) *DateTemplate {
	dt := &DateTemplate{}
	var chunk strings.Builder

	flushChunk := func() {
		if chunk.Len() > 0 {
			dt.steps = append(dt.steps, dateStep{goLayout: chunk.String()})
			chunk.Reset()
		}
	}

	runes := []rune(tmpl)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '%':
			if i+1 < len(runes) {
				if layout, ok := strftimeToGo[byte(runes[i+1])]; ok {
					flushChunk()
					chunk.WriteString(layout)
					i++
					continue
				}
			}
			chunk.WriteRune(runes[i])
		case '$':
			flushChunk()
			digits := 6
			if i+1 < len(runes) && runes[i+1] >= '1' && runes[i+1] <= '9' {
				digits = int(runes[i+1] - '0')
				i++
			}
			dt.steps = append(dt.steps, dateStep{fracDigits: digits})
		default:
			chunk.WriteRune(runes[i])
		}
	}
	flushChunk()
	return dt
}

// Append formats t according to the compiled date template and appends
// the result to buf, returning the extended buffer.
func (dt *DateTemplate) Append(buf []byte, t time.Time) []byte {
	for _, step := range dt.steps {
		if step.fracDigits > 0 {
			buf = appendFractionalSeconds(buf, t, step.fracDigits)
			continue
		}
		buf = t.AppendFormat(buf, step.goLayout)
	}
	return buf
}

// appendFractionalSeconds writes t's sub-second component truncated to
// digits decimal places, zero-padded.
func appendFractionalSeconds(buf []byte, t time.Time, digits int) []byte {
	if digits < 1 {
		digits = 1
	}
	if digits > 9 {
		digits = 9
	}
	ns := t.Nanosecond()
	// Scale nanoseconds (9 digits) down to the requested precision.
	scale := 1
	for i := 0; i < 9-digits; i++ {
		scale *= 10
	}
	val := ns / scale
	s := strconv.Itoa(val)
	for len(s) < digits {
		s = "0" + s
	}
	return append(buf, s...)
}
