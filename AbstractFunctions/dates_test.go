package AbstractFunctions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seoul(y int, m time.Month, d, h, min, s int) time.Time {
	return time.Date(y, m, d, h, min, s, 0, ReferenceZone())
}

func TestDateKeyUsesReferenceZone(t *testing.T) {
	// 2024-03-04 23:30 UTC is already 2024-03-05 in Seoul.
	utc := time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-05", DateKey(utc))

	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", DateKey(utc.In(la)))
}

func TestIsTardy(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday before deadline", seoul(2024, 3, 4, 9, 0, 0), false},
		{"monday at deadline", seoul(2024, 3, 4, 9, 10, 0), false},
		{"monday one second late", seoul(2024, 3, 4, 9, 10, 1), true},
		{"friday afternoon", seoul(2024, 3, 8, 15, 0, 0), true},
		{"saturday late", seoul(2024, 3, 9, 11, 0, 0), false},
		{"sunday late", seoul(2024, 3, 10, 23, 59, 0), false},
		{"zero time", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTardy(tc.at))
		})
	}
}

func TestTardinessMinutes(t *testing.T) {
	assert.Equal(t, 5, TardinessMinutes(seoul(2024, 3, 4, 9, 15, 0)))
	assert.Equal(t, 1, TardinessMinutes(seoul(2024, 3, 4, 9, 10, 30)))
	assert.Equal(t, 0, TardinessMinutes(seoul(2024, 3, 4, 9, 5, 0)))
	assert.Equal(t, 0, TardinessMinutes(seoul(2024, 3, 9, 10, 0, 0)))
}

func TestIsTardyIgnoresHostZone(t *testing.T) {
	// 00:15 UTC on a Monday is 09:15 in Seoul.
	at := time.Date(2024, 3, 4, 0, 15, 0, 0, time.UTC)
	assert.True(t, IsTardy(at))
	assert.Equal(t, 5, TardinessMinutes(at))
}

func TestWeekBounds(t *testing.T) {
	start, end := WeekBounds(seoul(2024, 3, 7, 14, 0, 0))
	assert.Equal(t, seoul(2024, 3, 4, 0, 0, 0), start)
	assert.Equal(t, seoul(2024, 3, 11, 0, 0, 0).Add(-time.Millisecond), end)

	// Sunday belongs to the week that started the previous Monday.
	start, _ = WeekBounds(seoul(2024, 3, 10, 23, 0, 0))
	assert.Equal(t, seoul(2024, 3, 4, 0, 0, 0), start)

	// Monday midnight starts a new week.
	start, _ = WeekBounds(seoul(2024, 3, 11, 0, 0, 0))
	assert.Equal(t, seoul(2024, 3, 11, 0, 0, 0), start)
}

func TestDateKeysBetween(t *testing.T) {
	keys, err := DateKeysBetween("2024-02-27", "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, keys)

	_, err = DateKeysBetween("2024-03-02", "2024-03-01")
	assert.Error(t, err)

	_, err = DateKeysBetween("yesterday", "2024-03-01")
	assert.Error(t, err)
}

func TestMonthBounds(t *testing.T) {
	first, last := MonthBounds(2024, time.February)
	assert.Equal(t, "2024-02-01", first)
	assert.Equal(t, "2024-02-29", last)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "15h30m", FormatDuration(15*time.Hour+30*time.Minute))
	assert.Equal(t, "0h05m", FormatDuration(5*time.Minute))
	assert.Equal(t, "0h00m", FormatDuration(-time.Hour))
}
