package xtime

import "time"

func UTCNow() time.Time {
	return time.Now().UTC()
}

var utcNowFunc = UTCNow

// setUTCNowFunc sets the function used to get current UTC time.
// This is primarily used for testing to mock the current time.
func setUTCNowFunc(f func() time.Time) {
	utcNowFunc = f
}

// resetUTCNowFunc resets the UTC now function to the default implementation.
func resetUTCNowFunc() {
	utcNowFunc = UTCNow
}

// Now returns the current UTC time truncated to microseconds, the finest precision every supported database keeps.
func Now() time.Time {
	return utcNowFunc().Truncate(time.Microsecond)
}

// Expired reports whether expiresAt is at or before now.
func Expired(expiresAt time.Time) bool {
	return !expiresAt.After(utcNowFunc())
}

// Until returns the time left before t, zero when it already passed.
func Until(t time.Time) time.Duration {
	d := t.Sub(utcNowFunc())
	if d < 0 {
		return 0
	}

	return d
}
