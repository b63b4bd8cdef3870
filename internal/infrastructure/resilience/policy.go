package resilience

import "time"

// Policy bounds retries and circuit breaking for backend calls.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	DelayCap  time.Duration
	Growth    float64

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
	BreakerProbeCalls   uint32
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 100 * time.Millisecond,
		DelayCap:  400 * time.Millisecond,
		Growth:    2.0,

		BreakerEnabled:      true,
		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.5,
		BreakerOpenFor:      30 * time.Second,
		BreakerProbeCalls:   2,
	}
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()

	if out.Attempts <= 0 {
		out.Attempts = def.Attempts
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = def.BaseDelay
	}
	if out.DelayCap <= 0 {
		out.DelayCap = def.DelayCap
	}
	if out.DelayCap < out.BaseDelay {
		out.DelayCap = out.BaseDelay
	}
	if out.Growth < 1.0 {
		out.Growth = def.Growth
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenFor <= 0 {
		out.BreakerOpenFor = def.BreakerOpenFor
	}
	if out.BreakerProbeCalls == 0 {
		out.BreakerProbeCalls = def.BreakerProbeCalls
	}

	return out
}
