package aggregate

import "time"

// TTL maps a response's confidence to its cache lifetime: the more the
// system trusts an answer, the longer it is allowed to live.
func TTL(confidence int) time.Duration {
	switch {
	case confidence >= 90:
		return 24 * time.Hour
	case confidence >= 80:
		return 6 * time.Hour
	case confidence >= 70:
		return 2 * time.Hour
	case confidence >= 60:
		return time.Hour
	default:
		return 30 * time.Minute
	}
}
