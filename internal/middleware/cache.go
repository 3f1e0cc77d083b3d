package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/study-hall-booking/internal/config"
)

const hallRoutePrefix = "/v1/halls/:id"

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h,omitempty"`
    Body   []byte      `json:"b"`
}

// replay writes r to the client.  Per-request headers are not restored.
func (r cachedResponse) replay(c echo.Context) error {
    h := c.Response().Header()
    for k, vals := range r.Header {
        if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, RequestIDHeader) {
            continue
        }
        for _, v := range vals {
            h.Add(k, v)
        }
    }
    h.Set("X-Cache", "HIT")
    c.Response().WriteHeader(r.Status)
    _, err := c.Response().Write(r.Body)
    return err
}

// teeWriter forwards the response and keeps up to limit bytes of the body
// (no limit when limit <= 0).
type teeWriter struct {
    http.ResponseWriter
    status   int
    body     bytes.Buffer
    limit    int
    overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
    if !w.overflow {
        if w.limit > 0 && w.body.Len()+len(b) > w.limit {
            w.overflow = true
            w.body.Reset()
        } else {
            w.body.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes the method, route pattern and (for route_query) the
// sorted query string.  Requests under /v1/halls/:id are keyed inside the
// hall's scope so one SCAN on the scope finds every cached view of the hall.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    route := c.Path()

    h := sha1.New()
    h.Write([]byte(r.Method + " " + route))
    if !strings.EqualFold(cfg.KeyStrategy, "route") {
        h.Write([]byte("?" + r.URL.Query().Encode()))
    }

    scope := cfg.Prefix
    if strings.HasPrefix(route, hallRoutePrefix) {
        if id, err := strconv.ParseUint(c.Param("id"), 10, 64); err == nil {
            scope = cfg.HallScope(id)
        }
    }
    return scope + ":" + hex.EncodeToString(h.Sum(nil))
}

// lookup returns the cached response under key.  Unreadable entries count
// as misses.
func lookup(ctx context.Context, rdb *redis.Client, key string) (cachedResponse, bool, error) {
    raw, err := rdb.Get(ctx, key).Bytes()
    if errors.Is(err, redis.Nil) {
        return cachedResponse{}, false, nil
    }
    if err != nil {
        return cachedResponse{}, false, err
    }
    var r cachedResponse
    if err := json.Unmarshal(raw, &r); err != nil || r.Status == 0 {
        return cachedResponse{}, false, nil
    }
    return r, true, nil
}

// NewRedisCache caches 200 responses of the configured methods in Redis.
// Seat events drop a hall's entries through its scope, so the TTL only
// bounds staleness when events are lost.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c)

            hit, ok, err := lookup(ctx, rdb, key)
            if err != nil {
                log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
            }
            if ok {
                return hit.replay(c)
            }

            w := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = w
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if w.status != http.StatusOK || w.overflow {
                return nil
            }

            entry := cachedResponse{Status: w.status, Header: c.Response().Header().Clone(), Body: w.body.Bytes()}
            entry.Header.Del("X-Cache")
            raw, err := json.Marshal(entry)
            if err != nil {
                return nil
            }
            // the request context may be cancelled once the body is out
            if err := rdb.Set(context.WithoutCancel(ctx), key, raw, ttl).Err(); err != nil {
                log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}
