package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" Weekly ")
	require.NoError(t, err)
	require.Equal(t, FrequencyWeekly, f)

	_, err = ParseFrequency("hourly")
	require.ErrorIs(t, err, ErrInvalidFrequency)
	require.False(t, Frequency("yearly").Valid())
}

func TestSamePeriod(t *testing.T) {
	cases := []struct {
		name string
		f    Frequency
		a, b time.Time
		want bool
	}{
		{"daily same date different hour", FrequencyDaily, day(2024, 3, 14), day(2024, 3, 14).Add(23 * time.Hour), true},
		{"daily adjacent dates", FrequencyDaily, day(2024, 3, 14), day(2024, 3, 15), false},
		{"daily same day number other month", FrequencyDaily, day(2024, 3, 14), day(2024, 4, 14), false},
		// Epoch buckets start on Thursdays at 00:00 UTC.
		{"weekly wednesday then thursday", FrequencyWeekly, day(2024, 3, 13), day(2024, 3, 14), false},
		{"weekly thursday to wednesday", FrequencyWeekly, day(2024, 3, 14), day(2024, 3, 20), true},
		{"weekly seven days apart", FrequencyWeekly, day(2024, 3, 14), day(2024, 3, 21), false},
		// Monday and Sunday of one ISO week, six days apart, split by the
		// Thursday bucket boundary.
		{"weekly same calendar week across bucket boundary", FrequencyWeekly, day(2024, 3, 11), day(2024, 3, 17), false},
		{"monthly first and last day", FrequencyMonthly, day(2024, 2, 1), day(2024, 2, 29), true},
		{"monthly same month other year", FrequencyMonthly, day(2023, 2, 1), day(2024, 2, 1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SamePeriod(tc.f, tc.a, tc.b))
			require.Equal(t, tc.want, SamePeriod(tc.f, tc.b, tc.a))
		})
	}
}

func TestEpochWeekFloorsBeforeEpoch(t *testing.T) {
	require.Equal(t, int64(0), EpochWeek(day(1970, 1, 1)))
	require.Equal(t, int64(0), EpochWeek(day(1970, 1, 7)))
	require.Equal(t, int64(1), EpochWeek(day(1970, 1, 8)))
	require.Equal(t, int64(-1), EpochWeek(day(1969, 12, 31)))
	require.Equal(t, int64(-1), EpochWeek(day(1969, 12, 25)))
	require.Equal(t, int64(-2), EpochWeek(day(1969, 12, 24)))
}

func TestSameDayUsesFirstLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	localMidnight := time.Date(2024, 3, 15, 0, 0, 0, 0, tokyo)
	// 2024-03-14T20:00Z is already 2024-03-15 in Tokyo.
	require.True(t, SameDay(localMidnight, time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC)))
	require.False(t, SameDay(day(2024, 3, 15), time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC)))
}

func TestStartOfDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	got := StartOfDay(time.Date(2024, 3, 14, 20, 30, 0, 0, time.UTC), tokyo)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, tokyo), got)
}
