package seismic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateString(t *testing.T) {
	assert.Equal(t, "2026-03-05", Date{Year: 2026, Month: 3, Day: 5}.String())
}

func TestDateStringSortsLexicographically(t *testing.T) {
	a := Date{Year: 2026, Month: 1, Day: 9}
	b := Date{Year: 2026, Month: 1, Day: 10}
	assert.Less(t, a.String(), b.String())
	assert.True(t, a.Before(b))
}

func TestDateFromMicrosTruncatesToUTCDay(t *testing.T) {
	// 2026-07-31 23:59:59.5 UTC
	us := time.Date(2026, 7, 31, 23, 59, 59, 500_000_000, time.UTC).UnixMicro()
	assert.Equal(t, Date{Year: 2026, Month: 7, Day: 31}, DateFromMicros(us))
}

func TestDateBeforeAfter(t *testing.T) {
	a := Date{Year: 2026, Month: 1, Day: 1}
	b := Date{Year: 2026, Month: 1, Day: 2}
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.After(b))
}
