package utils

import "time"

func GetMinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}

	return b
}

func GetMaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}

// MinutesToExpiry returns the whole minutes remaining until expiration,
// never less than zero.
func MinutesToExpiry(now, expiration time.Time) float64 {
	minutes := expiration.Sub(now).Minutes()
	if minutes < 0 {
		return 0
	}

	return minutes
}
