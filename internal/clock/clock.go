// Package clock abstracts time so session-expiry checks can be tested
// without sleeping.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewSystemClock returns the wall clock, in UTC.
func NewSystemClock() Clock { return systemClock{} }
