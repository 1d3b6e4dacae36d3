/* Copyright (c) 2026 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package streaming

import (
	"fmt"
	"net/http"

	"github.com/onitake/videoshelf/util"
	"golang.org/x/time/rate"
)

// RateLimiter throttles incoming requests with a token bucket.
// Requests that exceed the budget are answered with 429 Too Many Requests.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  util.Logger
}

// NewRateLimiter creates a request throttle that allows perSecond requests
// on average and bursts of up to burst requests.
// A rate of 0 or less disables throttling, nil is returned in that case.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  logger,
	}
}

// SetLogger assigns a logger
func (limit *RateLimiter) SetLogger(logger util.Logger) {
	limit.logger = logger
}

// Handler wraps next with the rate limit. It can be used as chi middleware.
// A nil RateLimiter passes all requests through.
func (limit *RateLimiter) Handler(next http.Handler) http.Handler {
	if limit == nil {
		return next
	}
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !limit.limiter.Allow() {
			limit.logger.Logkv(
				"event", eventLimitExceeded,
				"remote", request.RemoteAddr,
				"url", request.URL.String(),
				"message", fmt.Sprintf("Rate limit exceeded by %s", request.RemoteAddr),
			)
			writer.Header().Set("Retry-After", "1")
			serveDetail(writer, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(writer, request)
	})
}
