// Package system provides the real clock implementation.
package system

import "time"

// Clock implements screener.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Cache freshness comparisons all
// happen in UTC so file payloads stay portable across hosts.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
