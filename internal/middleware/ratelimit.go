package middleware

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/study-hall-booking/internal/config"
)

// takeToken refills the bucket at KEYS[1] for the whole intervals elapsed
// since the last refill and then tries to take one token.
//
// ARGV: now_ms, capacity, refill, interval_ms, ttl_s
// returns {allowed, remaining, retry_after_ms}
var takeToken = redis.NewScript(`
local now, cap, refill, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local b = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens, ts = tonumber(b[1]), tonumber(b[2])
if tokens == nil or ts == nil then
  tokens, ts = cap, now
end
if every > 0 and refill > 0 and now > ts then
  local n = math.floor((now - ts) / every)
  if n > 0 then
    tokens = math.min(cap, tokens + n * refill)
    ts = ts + n * every
  end
end
local ok, wait = 0, 0
if tokens > 0 then
  ok, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - ts))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// NewTokenBucket limits requests per key with a Redis token bucket.  When
// Redis is missing or the script fails, requests pass through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            res, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(), int64(cfg.TTL/time.Second),
            ).Int64Slice()
            if err != nil || len(res) != 3 {
                log.Warn("rate limit unavailable, letting request through", zap.String("key", key), zap.Error(err))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if res[0] == 1 {
                return next(c)
            }

            // round up so clients never retry early
            wait := (res[2] + 999) / 1000
            h.Set("Retry-After", strconv.FormatInt(wait, 10))
            log.Debug("rate limited", zap.String("key", key), zap.Int64("retry_after_s", wait))
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate limit exceeded",
                "retry_after": wait,
            })
        }
    }
}

// buildRateKey joins cfg.Prefix with the parts named by cfg.KeyStrategy,
// an underscore separated list of ip, user and route.  Unknown or empty
// strategies key on all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    for _, name := range strategyParts(cfg.KeyStrategy) {
        switch name {
        case "ip":
            ip := c.RealIP()
            if ip == "" {
                ip = "unknown"
            }
            parts = append(parts, "ip", ip)
        case "user":
            parts = append(parts, "user", userKey(c))
        case "route":
            parts = append(parts, "route", c.Request().Method+" "+c.Path())
        }
    }
    return strings.Join(parts, ":")
}

func strategyParts(strategy string) []string {
    names := strings.Split(strings.ToLower(strategy), "_")
    for _, n := range names {
        if n != "ip" && n != "user" && n != "route" {
            return []string{"ip", "user", "route"}
        }
    }
    return names
}
