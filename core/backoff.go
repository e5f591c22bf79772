package core

import "time"

// BackoffSchedule holds the delay before each retry. Entry i is the wait
// after the (i+1)-th failed attempt.
type BackoffSchedule []time.Duration

func DefaultBackoffSchedule() BackoffSchedule {
	return BackoffSchedule{
		5 * time.Minute,
		15 * time.Minute,
		time.Hour,
		6 * time.Hour,
	}
}

// NextDelay returns the wait after the given number of failed attempts.
// It returns false once the schedule is exhausted and the delivery must be
// marked failed.
func (s BackoffSchedule) NextDelay(attempts int) (time.Duration, bool) {
	if attempts < 1 || attempts > len(s) {
		return 0, false
	}
	return s[attempts-1], true
}

// MaxAttempts is the total number of attempts, the first try included.
func (s BackoffSchedule) MaxAttempts() int {
	return len(s) + 1
}
