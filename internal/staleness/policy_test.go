package staleness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnknownVideoIsAlwaysDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	published := now.Add(-2 * 24 * time.Hour)

	require.True(t, New().ShouldRefresh(nil, published, now))
}

func TestNewVideoHourlyScaleThreshold(t *testing.T) {
	t.Parallel()

	policy := New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	published := now.Add(-2 * 24 * time.Hour)

	oneHourAgo := now.Add(-time.Hour)
	require.False(t, policy.ShouldRefresh(&oneHourAgo, published, now))

	twoDaysAgo := now.Add(-2 * 24 * time.Hour)
	require.True(t, policy.ShouldRefresh(&twoDaysAgo, published, now))
}

func TestTierThresholds(t *testing.T) {
	t.Parallel()

	policy := New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		age         time.Duration
		sinceUpdate time.Duration
		want        bool
	}{
		{"recent video within a day", 14 * 24 * time.Hour, 12 * time.Hour, false},
		{"recent video past a day", 14 * 24 * time.Hour, 25 * time.Hour, true},
		{"settled video within a week", 10 * 7 * 24 * time.Hour, 6 * 24 * time.Hour, false},
		{"settled video past a week", 10 * 7 * 24 * time.Hour, 8 * 24 * time.Hour, true},
		{"old video within a month", 52 * 7 * 24 * time.Hour, 20 * 24 * time.Hour, false},
		{"old video past a month", 52 * 7 * 24 * time.Hour, 31 * 24 * time.Hour, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			published := now.Add(-tc.age)
			last := now.Add(-tc.sinceUpdate)
			require.Equal(t, tc.want, policy.ShouldRefresh(&last, published, now))
		})
	}
}

func TestNewerVideosNeverGetLongerThresholds(t *testing.T) {
	t.Parallel()

	ages := []time.Duration{
		time.Hour,
		6 * 24 * time.Hour,
		8 * 24 * time.Hour,
		27 * 24 * time.Hour,
		29 * 24 * time.Hour,
		23 * 7 * 24 * time.Hour,
		25 * 7 * 24 * time.Hour,
		104 * 7 * 24 * time.Hour,
	}

	for i := 1; i < len(ages); i++ {
		require.LessOrEqual(t, threshold(ages[i-1]), threshold(ages[i]),
			"threshold must not shrink as publish age grows")
	}
}
