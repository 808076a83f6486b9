// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"educhat/platform/apikey"
	"educhat/platform/metering"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyAPIKey    contextKey = "api_key"
)

// RequestIDFromContext returns the request id set by the middleware.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// KeyFromContext returns the authenticated key set by the middleware.
func KeyFromContext(ctx context.Context) *apikey.Key {
	if key, ok := ctx.Value(contextKeyAPIKey).(*apikey.Key); ok {
		return key
	}
	return nil
}

// requestIDMiddleware assigns every request a UUID, honoring an
// incoming X-Request-ID so callers can correlate across services.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// authMiddleware validates the presented API key. Every failure mode
// returns the same generic 401; the concrete reason (malformed,
// unknown, expired, wrong secret) is logged for operators but never
// sent to the caller, so the response does not leak which part of the
// credential was wrong.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := RequestIDFromContext(r.Context())

		key, err := s.keys.Validate(r.Context(), bearerToken(r))
		if err != nil {
			fields := map[string]interface{}{"path": r.URL.Path}
			if reason, ok := apikey.IsValidationError(err); ok {
				fields["reason"] = string(reason)
				s.log.Warn(requestID, "api key rejected", fields)
				writeError(w, http.StatusUnauthorized, "invalid API key", "authentication_error")
				return
			}
			s.log.ErrorWithCode(requestID, "api key validation failed", http.StatusInternalServerError, err, fields)
			writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyAPIKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminAuthMiddleware gates the key-management surface behind a shared
// operator token. With no token configured the surface is disabled
// outright, so key creation is never anonymous. Tokens are compared by
// digest so the check is constant-time and length is not leaked.
func (s *Server) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := RequestIDFromContext(r.Context())

		if s.adminToken == "" {
			s.log.Warn(requestID, "admin API request rejected, no admin token configured", map[string]interface{}{"path": r.URL.Path})
			writeError(w, http.StatusForbidden, "admin API disabled", "admin_disabled")
			return
		}

		presented := sha256.Sum256([]byte(bearerToken(r)))
		expected := sha256.Sum256([]byte(s.adminToken))
		if subtle.ConstantTimeCompare(presented[:], expected[:]) != 1 {
			s.log.Warn(requestID, "admin token rejected", map[string]interface{}{"path": r.URL.Path})
			writeError(w, http.StatusUnauthorized, "invalid admin token", "authentication_error")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// currentWindow returns the budget window containing now. Windows tile
// forward from the key's creation time, each half-open
// [start, start+duration).
func currentWindow(key *apikey.Key, now time.Time) metering.BudgetWindow {
	duration := time.Duration(key.BudgetMinutes) * time.Minute
	elapsed := now.Sub(key.CreatedAt)
	periods := elapsed / duration
	return metering.BudgetWindow{
		StartedAt:       key.CreatedAt.Add(periods * duration),
		DurationMinutes: key.BudgetMinutes,
		LimitInCent:     key.LimitInCent,
	}
}

// budgetMiddleware rejects requests whose key has already spent past
// its limit in the current window. The check reads committed usage
// only; a request in flight is not counted, which is the documented
// best-effort behavior under concurrency.
func (s *Server) budgetMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := RequestIDFromContext(r.Context())
		key := KeyFromContext(r.Context())

		if key == nil || key.LimitInCent <= 0 || key.BudgetMinutes <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		window := currentWindow(key, time.Now())
		over, err := s.budget.IsOverBudget(r.Context(), key.ID, window)
		if err != nil {
			s.log.ErrorWithCode(requestID, "budget check failed", http.StatusInternalServerError, err, nil)
			writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
			return
		}
		if over {
			promBudgetRejections.Inc()
			s.log.Warn(requestID, "budget window exhausted", map[string]interface{}{
				"key_id":        key.KeyID,
				"limit_in_cent": key.LimitInCent,
			})
			writeError(w, http.StatusPaymentRequired,
				metering.ErrBudgetExceeded.Error(), "budget_exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies the per-key fixed-window limiter. A
// limiter failure fails open: losing rate limiting briefly is better
// than serving 500s because redis restarted.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		requestID := RequestIDFromContext(r.Context())
		key := KeyFromContext(r.Context())

		allowed, err := s.limiter.Allow(r.Context(), key.KeyID)
		if err != nil {
			s.log.Warn(requestID, "rate limiter unavailable, failing open", map[string]interface{}{
				"error": err.Error(),
			})
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			promRateLimited.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit_error")
			return
		}

		next.ServeHTTP(w, r)
	})
}
