package clock

import "time"

// Clock abstracts the wall clock so evaluation and release stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

// System reads the real time.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
