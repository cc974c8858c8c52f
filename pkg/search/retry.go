package search

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy is a cenkalti/backoff/v4 BackOff implementation that
// reproduces the original client's delay formula: exponential backoff
// capped at a max delay, jittered, with an upstream Retry-After header
// (when present) overriding the computed delay for that one attempt.
//
// base_delay = min(baseDelay * 2^(attempt-1), maxDelay)
// jitter     = random(0, min(jitter, base_delay*0.5))
// delay      = base_delay + jitter
type retryPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	jitter    time.Duration
	afterMax  time.Duration

	attempt int

	// retryAfter, when non-zero, overrides the exponential delay for the
	// next NextBackOff call. The caller sets it right before returning a
	// retryable error so backoff.Retry honors the server's requested wait.
	retryAfter time.Duration
}

func newRetryPolicy(baseDelay, maxDelay, jitter, afterMax time.Duration) *retryPolicy {
	return &retryPolicy{baseDelay: baseDelay, maxDelay: maxDelay, jitter: jitter, afterMax: afterMax}
}

func (r *retryPolicy) Reset() {
	r.attempt = 0
	r.retryAfter = 0
}

func (r *retryPolicy) NextBackOff() time.Duration {
	r.attempt++

	if r.retryAfter > 0 {
		delay := r.retryAfter
		r.retryAfter = 0
		if delay > r.afterMax {
			delay = r.afterMax
		}
		return delay
	}

	shift := r.attempt - 1
	if shift > 20 {
		shift = 20 // guard against overflow on pathological attempt counts
	}
	base := r.baseDelay * (1 << shift)
	if base > r.maxDelay {
		base = r.maxDelay
	}

	maxJitter := r.jitter
	if half := time.Duration(float64(base) * 0.5); half < maxJitter {
		maxJitter = half
	}
	var jittered time.Duration
	if maxJitter > 0 {
		jittered = time.Duration(rand.Int64N(int64(maxJitter) + 1))
	}
	return base + jittered
}

// setRetryAfter records a server-provided Retry-After delay so the next
// NextBackOff call uses it verbatim instead of the exponential formula.
func (r *retryPolicy) setRetryAfter(d time.Duration) {
	r.retryAfter = d
}

var _ backoff.BackOff = (*retryPolicy)(nil)

// parseRetryAfter parses an HTTP Retry-After header value, which is either
// a number of seconds or an HTTP-date, clamping the result to maxDelay.
// Returns (0, false) if the header is absent or unparseable.
func parseRetryAfter(header http.Header, maxDelay time.Duration) (time.Duration, bool) {
	v := header.Get("Retry-After")
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		d := time.Duration(secs) * time.Second
		if d < 0 {
			d = 0
		}
		if d > maxDelay {
			d = maxDelay
		}
		return d, true
	}

	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		if d > maxDelay {
			d = maxDelay
		}
		return d, true
	}

	return 0, false
}
