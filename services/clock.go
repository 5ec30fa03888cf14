package services

import "time"

// Clock is the single time source for every expiry and edit-window check.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }

var clockInstance = SystemClock()

// GetClock returns the process clock
func GetClock() Clock {
	return clockInstance
}

// SetClock sets the process clock (primarily for testing)
func SetClock(c Clock) {
	if c == nil {
		c = SystemClock()
	}
	clockInstance = c
}
