package logging

import "time"

// TimestampLayout renders wall-clock times so that they sort lexically and
// keep nanosecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000000"

// Clock supplies the current time for log lines.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Useful in tests that assert on
// exact log output.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
