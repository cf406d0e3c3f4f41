package sqlx

import "time"

// MarshalTime marshals a time to the number of nanoseconds since the Unix
// epoch. The zero time is marshaled as 0.
func MarshalTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

// UnmarshalTime unmarshals a time from the number of nanoseconds since the
// Unix epoch, as a UTC time.
func UnmarshalTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}
