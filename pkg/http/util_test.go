package http

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime("2024-10-10T10:10:10Z")
	assert.True(t, ok)
	assert.True(t, want.Equal(got))

	got, ok = ParseTime(strconv.FormatInt(want.Unix(), 10))
	assert.True(t, ok)
	assert.True(t, want.Equal(got))

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)

	assert.Equal(t, want, ParseTimeDefault("", want))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 5, ParseIntDefault("", 5))
	assert.Equal(t, 5, ParseIntDefault("x", 5))
	assert.Equal(t, 12, ParseIntDefault("12", 5))
}
