package main

import (
	"math"
	"math/rand"
	"time"
)

// backoff paces reconnect attempts while following a data port.
type backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	rng        *rand.Rand
}

func defaultBackoff() backoff {
	return backoff{
		initial:    250 * time.Millisecond,
		max:        10 * time.Second,
		multiplier: 2,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// delay returns the wait before attempt n (1-based), jittered to between
// half and one and a half times the nominal value.
func (b backoff) delay(attempt int) time.Duration {
	if b.initial <= 0 {
		return 0
	}
	d := float64(b.initial)
	if attempt > 1 {
		m := math.Max(b.multiplier, 1)
		d *= math.Pow(m, float64(attempt-1))
	}
	if b.max > 0 && d > float64(b.max) {
		d = float64(b.max)
	}
	f := 1.0
	if b.rng != nil {
		f = 0.5 + b.rng.Float64()
	}
	return time.Duration(d * f)
}
