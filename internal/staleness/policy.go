// Package staleness decides whether a video is due for a metadata refresh.
//
// The policy trades completeness for quota: counts on new uploads change
// fastest and are re-checked most often, old videos are re-checked rarely.
package staleness

import "time"

// Age tier boundaries, measured from the video's publish time.
const (
	tierNewMax    = 7 * 24 * time.Hour
	tierRecentMax = 28 * 24 * time.Hour
	tierSettled   = 24 * 7 * 24 * time.Hour
)

// Refresh thresholds per tier, measured from the last recorded update.
const (
	thresholdNew     = 3 * time.Hour
	thresholdRecent  = 24 * time.Hour
	thresholdSettled = 7 * 24 * time.Hour
	thresholdOld     = 30 * 24 * time.Hour
)

// Policy implements the graduated refresh rule.
type Policy struct{}

// New creates a Policy.
func New() Policy {
	return Policy{}
}

// ShouldRefresh reports whether a video is due for a re-fetch. Videos with
// no prior record are always due.
func (Policy) ShouldRefresh(lastUpdate *time.Time, publishedAt, now time.Time) bool {
	if lastUpdate == nil {
		return true
	}
	return now.Sub(*lastUpdate) > threshold(now.Sub(publishedAt))
}

func threshold(age time.Duration) time.Duration {
	switch {
	case age < tierNewMax:
		return thresholdNew
	case age < tierRecentMax:
		return thresholdRecent
	case age < tierSettled:
		return thresholdSettled
	default:
		return thresholdOld
	}
}
