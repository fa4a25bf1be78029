package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker builds a breaker that trips after 3+ requests with a 60%
// failure ratio. isSuccessful decides which errors do not count as failures;
// nil means only a nil error is a success.
func NewCircuitBreaker(nameof string, isSuccessful func(err error) bool) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        nameof,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: isSuccessful,
	}
	return gobreaker.NewCircuitBreaker(settings)
}
