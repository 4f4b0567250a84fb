// FILE: utility_test.go
package log

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFmtErrorf(t *testing.T) {
	err := fmtErrorf("test error: %s", "details")
	assert.Error(t, err)
	assert.Equal(t, "tagpipe: test error: details", err.Error())

	err = fmtErrorf("tagpipe: already prefixed")
	assert.Equal(t, "tagpipe: already prefixed", err.Error())
}

func TestCombineErrors(t *testing.T) {
	e1 := fmtErrorf("first")
	e2 := fmtErrorf("second")

	assert.Equal(t, e2, combineErrors(nil, e2))
	assert.Equal(t, e1, combineErrors(e1, nil))
	assert.Contains(t, combineErrors(e1, e2).Error(), "first")
	assert.Contains(t, combineErrors(e1, e2).Error(), "second")
}

func TestGetTrace(t *testing.T) {
	tests := []struct {
		depth int
		check func(string)
	}{
		{0, func(s string) { assert.Empty(t, s) }},
		{1, func(s string) { assert.NotEmpty(t, s) }},
		{3, func(s string) {
			assert.NotEmpty(t, s)
			assert.True(t, strings.Contains(s, "->") || s == "(unknown)")
		}},
		{11, func(s string) { assert.Empty(t, s) }},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("depth_%d", tt.depth), func(t *testing.T) {
			trace := getTrace(tt.depth, 0)
			tt.check(trace)
		})
	}
}
