// Package ratelimit defines the outcome of an admission control check.
package ratelimit

// Result reports whether a request was admitted and the state of its window
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at"` // unix seconds
}

// RetryAfterSeconds returns the hint sent with a rejection, never below one second
func (r Result) RetryAfterSeconds(nowUnix int64) int64 {
	if d := r.ResetAt - nowUnix; d > 0 {
		return d
	}
	return 1
}
