package ratelimit

import "time"

// cancelWeight maps the age of an order to the penalty charged against
// the cancellation accumulator. Cancelling right after placing costs
// the most; orders older than fifteen minutes cost nothing. The steps
// mirror the exchange's published penalty schedule.
func cancelWeight(age time.Duration) float64 {
	switch {
	case age < 5*time.Second:
		return 8
	case age < 10*time.Second:
		return 6
	case age < 15*time.Second:
		return 5
	case age < 45*time.Second:
		return 4
	case age < 90*time.Second:
		return 2
	case age < 900*time.Second:
		return 1
	default:
		return 0
	}
}
