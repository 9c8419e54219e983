package resilience

import "time"

// AttemptOutcome is the result of recording a failed delivery attempt.
type AttemptOutcome struct {
	Attempts      int
	Exhausted     bool
	NextAttemptAt time.Time
}

// ExponentialDelay returns base × 2^attempts. With a one-minute base the
// delays after attempts 1, 2 and 3 are 2, 4 and 8 minutes.
func ExponentialDelay(base time.Duration, attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 30 {
		attempts = 30
	}
	return base * time.Duration(1<<uint(attempts))
}

// RecordFailure increments the attempt count and decides whether another
// attempt is allowed. Once attempts reaches maxAttempts the outcome is
// exhausted and carries no next attempt time.
func RecordFailure(attempts, maxAttempts int, base time.Duration, now time.Time) AttemptOutcome {
	attempts++
	if attempts >= maxAttempts {
		return AttemptOutcome{Attempts: attempts, Exhausted: true}
	}
	return AttemptOutcome{
		Attempts:      attempts,
		NextAttemptAt: now.Add(ExponentialDelay(base, attempts)),
	}
}
