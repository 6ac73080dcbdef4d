package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Siva2k2k/ES-TM-sub003/pkg/config"
)

func TestNewClock(t *testing.T) {
	assert.IsType(t, SystemClock{}, NewClock(config.ClockConfig{}))

	pinned := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	clock := NewClock(config.ClockConfig{MockDate: &pinned})
	assert.Equal(t, pinned, clock.Now())
	assert.Equal(t, pinned, clock.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}
