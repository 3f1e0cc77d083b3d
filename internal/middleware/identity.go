package middleware

// identity.go holds the context keys written by JWTAuth and RequestID and
// the accessors handlers use to read them back.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

const (
    ctxUserID    = "user_id"
    ctxRole      = "role"
    ctxRequestID = "request_id"
)

// UserID returns the authenticated user's ID.  ok is false on routes
// that are not behind JWTAuth.
func UserID(c echo.Context) (id uint64, ok bool) {
    id, ok = c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated user's role or "".
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// RequestIDFrom returns the request id assigned by RequestID.
func RequestIDFrom(c echo.Context) string {
    id, _ := c.Get(ctxRequestID).(string)
    return id
}

// userKey is the identity used in rate limit keys: the user ID or "anon".
func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
