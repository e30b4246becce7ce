package domain

import "time"

const (
	// MaxFailedAttempts is the number of consecutive failures that locks an account.
	MaxFailedAttempts = 5
	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration = 30 * time.Minute
)

// LockoutPolicy parameterizes brute-force protection.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks after five failures for thirty minutes.
var DefaultLockoutPolicy = LockoutPolicy{Threshold: MaxFailedAttempts, Duration: LockoutDuration}

// LockUntil returns the lock expiry for a failure recorded at now.
func (p LockoutPolicy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Duration)
}
