package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/audit"
)

const loginLimitKeyPrefix = "dashboard:loginlimit:"

// slidingWindowScript records one attempt and reports {allowed, remaining,
// resetAt} for the window ending now.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

return {1, limit - count - 1, now + window}
`)

// LoginRateLimiter limits sign-in attempts per client IP. Counts live in
// redis so they hold across restarts and instances.
type LoginRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLoginRateLimiter(client *redis.Client, limit int, window time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Check fails open when redis is unavailable.
func (l *LoginRateLimiter) Check(ctx context.Context, key string) (allowed bool, remaining int, resetAt int64) {
	now := l.now().Unix()
	windowSecs := int64(l.window.Seconds())

	result, err := slidingWindowScript.Run(ctx, l.client, []string{loginLimitKeyPrefix + key}, now, windowSecs, l.limit).Int64Slice()
	if err != nil || len(result) != 3 {
		log.Warn().Err(err).Str("key", key).Msg("login rate limit check failed, allowing request")
		return true, l.limit - 1, now + windowSecs
	}

	return result[0] == 1, int(result[1]), result[2]
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt := l.Check(r.Context(), clientKey(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginRateLimited})
			w.Header().Set("Retry-After", strconv.FormatInt(int64(l.window.Seconds()), 10))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Too many login attempts. Please try again later.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
