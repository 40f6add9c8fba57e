package rabbitmq

import "time"

// ReconnectPolicy decides how long to wait before reconnect attempt n
// (1-based) and whether to attempt it at all.
type ReconnectPolicy interface {
	NextDelay(attempt int) (delay time.Duration, retry bool)
}

// AlwaysReconnect retries forever with a capped linear backoff:
// delay = min(attempt × Step, Cap). This is the production default; a
// broker outage never fails the process closed, at the cost of silently
// dropping messages published while disconnected.
type AlwaysReconnect struct {
	Step time.Duration
	Cap  time.Duration
}

func (p AlwaysReconnect) NextDelay(attempt int) (time.Duration, bool) {
	step := p.Step
	if step <= 0 {
		step = time.Second
	}
	cap := p.Cap
	if cap <= 0 {
		cap = 30 * time.Second
	}

	d := time.Duration(attempt) * step
	if d > cap {
		d = cap
	}
	return d, true
}

// GiveUpAfter fails closed once MaxAttempts reconnects have been tried.
// Used by tests to observe the disconnect path deterministically.
type GiveUpAfter struct {
	MaxAttempts int
	Step        time.Duration
}

func (p GiveUpAfter) NextDelay(attempt int) (time.Duration, bool) {
	if attempt > p.MaxAttempts {
		return 0, false
	}
	return p.Step, true
}
