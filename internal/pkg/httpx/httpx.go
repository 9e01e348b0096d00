// Package httpx holds the retry policy shared by outbound HTTP clients.
package httpx

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatusCode() int
}

// RetryableStatus reports whether an upstream status is worth another try:
// request timeout, rate limiting and every 5xx.
func RetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// Retryable classifies a failed attempt. Cancellation by the caller is
// final; a per-attempt deadline is not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return RetryableStatus(sc.HTTPStatusCode())
	}
	return false
}

// Backoff doubles from Base up to Max. Retry-After on the last response
// overrides the schedule, still capped at Max.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	next time.Duration
}

func (b *Backoff) Next(resp *http.Response) time.Duration {
	if b.next <= 0 {
		b.next = b.Base
	}
	wait := b.next
	if ra, ok := RetryAfter(resp); ok {
		wait = ra
	}
	if b.Max > 0 && wait > b.Max {
		wait = b.Max
	}
	b.next *= 2
	if b.Max > 0 && b.next > b.Max {
		b.next = b.Max
	}
	return jitter(wait, b.Jitter)
}

// RetryAfter parses the header in either delta-seconds or HTTP-date form.
func RetryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	raw := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func jitter(base time.Duration, frac float64) time.Duration {
	if base <= 0 || frac <= 0 {
		return base
	}
	if frac > 1 {
		frac = 1
	}
	delta := float64(base) * frac
	return time.Duration(float64(base) - delta + rand.Float64()*2*delta)
}
