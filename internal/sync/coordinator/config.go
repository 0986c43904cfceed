package coordinator

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultPollInterval is how often an idle coordinator re-reads the wake timer
	DefaultPollInterval = 30 * time.Second

	// pollJitterFraction is the share of the poll interval used as ± jitter
	pollJitterFraction = 10
)

// jitteredPollInterval returns interval with a random offset of up to
// ±interval/10, so that replicas sharing a shard do not poll in lockstep.
func jitteredPollInterval(interval time.Duration) time.Duration {
	jitter := interval / pollJitterFraction
	if jitter <= 0 {
		return interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return interval + offset
}

// waitFor returns how long to sleep before the wake at wake is due, bounded
// by the poll interval so a wake moved by another replica is noticed.
func waitFor(now time.Time, wake *time.Time, poll time.Duration) time.Duration {
	if wake == nil {
		return poll
	}
	until := wake.Sub(now)
	if until <= 0 {
		return 0
	}
	return min(until, poll)
}
