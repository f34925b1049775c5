package core

import "time"

// Clock provides the current time. It can be mocked for testing.
// Implementations must be safe for concurrent use and should never return
// a time earlier than a causally prior call; callers clamp elapsed time at
// zero regardless, so a regressing clock degrades to "no refill" rather
// than corrupting state.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time. time.Now carries a
// monotonic reading, which is what elapsed-time math uses.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
