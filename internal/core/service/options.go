package service

import "time"

// Option configures optional collaborators of a service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock used for expiry, lockout and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
