// file: handler/rate_limit_middleware.go

package handler

import (
	"go-auth-api/common"
	"go-auth-api/config"
	"go-auth-api/logger"
	"go-auth-api/service"
	"net/http"

	"github.com/sirupsen/logrus"
)

// RateLimiter enforces a fixed-window request budget per client address.
// Counters live in a CounterStore so a single-process map and a shared Redis
// deployment are interchangeable.
type RateLimiter struct {
	store  service.CounterStore
	policy config.RateLimitPolicy
	name   string

	// SkipSuccessful decrements the counter when the response status is
	// below 400, so only failed attempts count toward the budget. Used by
	// the auth policy to track failed logins without penalizing legitimate
	// clients.
	SkipSuccessful bool
	// Skip exempts individual requests, e.g. health checks.
	Skip func(r *http.Request) bool
}

func NewRateLimiter(store service.CounterStore, name string, policy config.RateLimitPolicy) *RateLimiter {
	return &RateLimiter{store: store, policy: policy, name: name}
}

// Middleware rejects the request with 429 before it reaches the handler once
// the window budget is exhausted. The response carries the window reset time
// so clients can back off deterministically.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.Skip != nil && rl.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := "rl:" + rl.name + ":" + common.ClientIP(r)
		count, resetAt, err := rl.store.Increment(r.Context(), key, rl.policy.Window)
		if err != nil {
			// A broken counter store must not take the API down; let the
			// request through and record the outage.
			logger.Log.WithError(err).WithField("policy", rl.name).Error("Rate limit store unavailable")
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(rl.policy.Limit) {
			logger.Log.WithFields(logrus.Fields{
				"policy": rl.name,
				"ip":     common.ClientIP(r),
				"url":    r.URL.Path,
			}).Warn("Rate limit exceeded")
			common.ErrRateLimited(resetAt).Send(w, r)
			return
		}

		if !rl.SkipSuccessful {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if recorder.status < http.StatusBadRequest {
			if err := rl.store.Decrement(r.Context(), key); err != nil {
				logger.Log.WithError(err).WithField("policy", rl.name).Error("Rate limit decrement failed")
			}
		}
	})
}
