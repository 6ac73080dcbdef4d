package service

import (
	"time"

	"github.com/Siva2k2k/ES-TM-sub003/pkg/config"
)

// Clock supplies the current time to services so development runs can pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.At }

// NewClock returns a FixedClock when a mock date is configured and the
// system clock otherwise.
func NewClock(cfg config.ClockConfig) Clock {
	if cfg.MockDate != nil {
		return FixedClock{At: cfg.MockDate.UTC()}
	}
	return SystemClock{}
}

func clockOrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}
