package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/handler"
	"github.com/iliyamo/study-hall-booking/internal/repository"
	"github.com/iliyamo/study-hall-booking/internal/router"
	"github.com/iliyamo/study-hall-booking/internal/service"
)

const secret = "handler-test-secret"

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

type testEnv struct {
	e *echo.Echo
	// bookable day two days ahead, midnight UTC
	day time.Time
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	store := repository.NewMemoryStore()
	locks := service.NewSeatLocks()
	events := service.NopPublisher{}

	ledger := service.NewLedger(store, store, locks, log, true)
	resolver := service.NewResolver(store, store, store, 0)
	registry := service.NewRegistry(store, store, store, locks, events, log)
	bookings := service.NewBookingService(store, store, store, ledger, resolver, service.HallRatePricer{}, events, log)
	reporter := service.NewReporter(registry, ledger, time.UTC, 24)
	seats := handler.NewSeatHandler(registry, resolver, log)

	e := router.New(log, passThrough)
	router.RegisterRoutes(e, handler.Health(nil))
	router.RegisterAuth(e, handler.NewAuthHandler(store, secret, time.Hour, 4, log))
	router.RegisterPublic(e, seats, passThrough)
	router.RegisterCustomer(e, handler.NewBookingHandler(bookings, log), secret)
	router.RegisterOwner(e, seats, handler.NewHallHandler(registry, reporter, log), secret)

	return &testEnv{e: e, day: time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 2)}
}

func (env *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func (env *testEnv) at(hour int) time.Time { return env.day.Add(time.Duration(hour) * time.Hour) }

type session struct {
	id    uint64
	token string
}

func (env *testEnv) register(t *testing.T, email, role, gender string) session {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": "s3cure-pass", "role": role, "gender": gender,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		User   struct{ ID uint64 }   `json:"user"`
		Access struct{ Token string } `json:"access"`
	}
	decode(t, rec, &resp)
	return session{id: resp.User.ID, token: resp.Access.Token}
}

// activeHall creates an ACTIVE hall of the owner with seats 1..n priced
// at 1200 cents per hour and returns the hall and seat IDs.
func (env *testEnv) activeHall(t *testing.T, owner session, n int, ladiesOnly ...uint32) (uint64, []uint64) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/halls", owner.token, map[string]any{
		"name": "Library Hall", "seat_count": n, "default_price_cents": 1200,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var hall struct {
		ID     uint64 `json:"id"`
		Status string `json:"status"`
	}
	decode(t, rec, &hall)
	assert.Equal(t, "DRAFT", hall.Status)

	ladies := map[uint32]bool{}
	for _, n := range ladiesOnly {
		ladies[n] = true
	}
	var seatIDs []uint64
	for i := 1; i <= n; i++ {
		rec := env.do(t, http.MethodPost, fmt.Sprintf("/v1/halls/%d/seats", hall.ID), owner.token, map[string]any{
			"seat_number": i, "row": 0, "col": i - 1, "ladies_only": ladies[uint32(i)],
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var seat struct{ ID uint64 }
		decode(t, rec, &seat)
		seatIDs = append(seatIDs, seat.ID)
	}

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/halls/%d/status", hall.ID), owner.token, map[string]string{"status": "ACTIVE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return hall.ID, seatIDs
}

type bookingBody struct {
	ID          uint64    `json:"id"`
	SeatID      uint64    `json:"seat_id"`
	UserID      uint64    `json:"user_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
}

func (env *testEnv) book(t *testing.T, who session, seatID uint64, from, to int) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(t, http.MethodPost, "/v1/bookings", who.token, map[string]any{
		"seat_id": seatID, "start": env.at(from), "end": env.at(to),
	})
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	e := echo.New()
	e.GET("/healthz", handler.Health(map[string]handler.Pinger{
		"mysql": handler.PingFunc(func(context.Context) error { return nil }),
		"redis": handler.PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestAuth(t *testing.T) {
	env := newEnv(t)
	env.register(t, "owner@example.com", "OWNER", "")

	tests := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{"bad email", "/v1/auth/register", map[string]string{"email": "nope", "password": "s3cure-pass"}, http.StatusBadRequest},
		{"short password", "/v1/auth/register", map[string]string{"email": "a@example.com", "password": "short"}, http.StatusBadRequest},
		{"bad gender", "/v1/auth/register", map[string]string{"email": "a@example.com", "password": "s3cure-pass", "gender": "X"}, http.StatusBadRequest},
		{"duplicate email", "/v1/auth/register", map[string]string{"email": "Owner@example.com", "password": "s3cure-pass"}, http.StatusConflict},
		{"wrong password", "/v1/auth/login", map[string]string{"email": "owner@example.com", "password": "wrong-pass"}, http.StatusUnauthorized},
		{"unknown user", "/v1/auth/login", map[string]string{"email": "ghost@example.com", "password": "s3cure-pass"}, http.StatusUnauthorized},
		{"login", "/v1/auth/login", map[string]string{"email": "OWNER@example.com", "password": "s3cure-pass"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestBookingFlow(t *testing.T) {
	env := newEnv(t)
	owner := env.register(t, "owner@example.com", "OWNER", "")
	sara := env.register(t, "sara@example.com", "CUSTOMER", "FEMALE")
	omid := env.register(t, "omid@example.com", "CUSTOMER", "MALE")
	hallID, seats := env.activeHall(t, owner, 2)

	rec := env.book(t, sara, seats[0], 9, 11)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b bookingBody
	decode(t, rec, &b)
	assert.Equal(t, "CONFIRMED", b.Status)
	assert.Equal(t, int64(2400), b.AmountCents)
	assert.Equal(t, sara.id, b.UserID)

	// overlapping interval on the same seat
	rec = env.book(t, omid, seats[0], 10, 12)
	assert.Equal(t, http.StatusConflict, rec.Code)
	// back-to-back is fine
	rec = env.book(t, omid, seats[0], 11, 12)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	// invalid interval
	rec = env.book(t, omid, seats[1], 12, 12)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	// unauthenticated
	rec = env.do(t, http.MethodPost, "/v1/bookings", "", map[string]any{"seat_id": seats[1]})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	q := url.Values{"start": {env.at(10).Format(time.RFC3339)}, "end": {env.at(11).Format(time.RFC3339)}}
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/seats/%d/availability?%s", seats[0], q.Encode()), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":false`)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/seats/%d/availability?%s", seats[1], q.Encode()), "", nil)
	assert.Contains(t, rec.Body.String(), `"available":true`)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/seats/%d/availability?start=yesterday", seats[1]), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/halls/%d/seats?at=%s", hallID, url.QueryEscape(env.at(10).Format(time.RFC3339))), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var seatMap struct {
		Seats []struct {
			SeatID uint64 `json:"seat_id"`
			Status string `json:"status"`
		} `json:"seats"`
	}
	decode(t, rec, &seatMap)
	require.Len(t, seatMap.Seats, 2)
	assert.Equal(t, "OCCUPIED", seatMap.Seats[0].Status)
	assert.Equal(t, "AVAILABLE", seatMap.Seats[1].Status)

	var mine struct {
		Count int           `json:"count"`
		Items []bookingBody `json:"items"`
	}
	decode(t, env.do(t, http.MethodGet, "/v1/my-bookings", sara.token, nil), &mine)
	assert.Equal(t, 1, mine.Count)

	path := fmt.Sprintf("/v1/bookings/%d", b.ID)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, path, omid.token, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, owner.token, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, path, omid.token, nil).Code)

	rec = env.do(t, http.MethodDelete, path, sara.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &b)
	assert.Equal(t, "CANCELLED", b.Status)
	// cancelling twice is not an error
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, owner.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/v1/bookings/999999", sara.token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/v1/bookings/abc", sara.token, nil).Code)

	// the freed slot can be booked again
	assert.Equal(t, http.StatusCreated, env.book(t, omid, seats[0], 9, 10).Code)
}

func TestLadiesOnlySeat(t *testing.T) {
	env := newEnv(t)
	owner := env.register(t, "owner@example.com", "OWNER", "")
	sara := env.register(t, "sara@example.com", "CUSTOMER", "FEMALE")
	omid := env.register(t, "omid@example.com", "CUSTOMER", "MALE")
	anon := env.register(t, "anon@example.com", "CUSTOMER", "")
	_, seats := env.activeHall(t, owner, 1, 1)

	assert.Equal(t, http.StatusForbidden, env.book(t, omid, seats[0], 9, 10).Code)
	assert.Equal(t, http.StatusForbidden, env.book(t, anon, seats[0], 9, 10).Code)
	assert.Equal(t, http.StatusCreated, env.book(t, sara, seats[0], 9, 10).Code)
}

func TestOwnerSeatEndpoints(t *testing.T) {
	env := newEnv(t)
	owner := env.register(t, "owner@example.com", "OWNER", "")
	rival := env.register(t, "rival@example.com", "OWNER", "")
	sara := env.register(t, "sara@example.com", "CUSTOMER", "FEMALE")
	_, seats := env.activeHall(t, owner, 2)
	maint := fmt.Sprintf("/v1/seats/%d/maintenance", seats[0])

	// role and ownership checks
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, maint, sara.token, map[string]string{"reason": "Repair"}).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, maint, rival.token, map[string]string{"reason": "Repair"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/v1/seats/999999/maintenance", owner.token, map[string]string{"reason": "Repair"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPut, maint, owner.token, map[string]string{"reason": "Painting"}).Code)

	rec := env.do(t, http.MethodPut, maint, owner.token, map[string]any{"reason": "Repair", "until": env.at(12)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"reason":"Repair"`)

	assert.Equal(t, http.StatusConflict, env.book(t, sara, seats[0], 9, 10).Code)
	assert.Equal(t, http.StatusCreated, env.book(t, sara, seats[0], 12, 13).Code)

	rec = env.do(t, http.MethodDelete, maint, owner.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "maintenance")
	assert.Equal(t, http.StatusCreated, env.book(t, sara, seats[0], 9, 10).Code)

	// a seat with active bookings cannot be deleted
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodDelete, fmt.Sprintf("/v1/seats/%d", seats[0]), owner.token, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, fmt.Sprintf("/v1/seats/%d", seats[1]), owner.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, fmt.Sprintf("/v1/seats/%d", seats[1]), owner.token, nil).Code)
}

func TestOwnerHallEndpoints(t *testing.T) {
	env := newEnv(t)
	owner := env.register(t, "owner@example.com", "OWNER", "")
	rival := env.register(t, "rival@example.com", "OWNER", "")
	sara := env.register(t, "sara@example.com", "CUSTOMER", "FEMALE")
	hallID, seats := env.activeHall(t, owner, 2)

	require.Equal(t, http.StatusCreated, env.book(t, sara, seats[0], 9, 11).Code)
	require.Equal(t, http.StatusCreated, env.book(t, sara, seats[1], 9, 10).Code)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/halls", owner.token, map[string]any{"name": "", "seat_count": 3}).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, fmt.Sprintf("/v1/halls/%d/seats", hallID), owner.token, map[string]any{"seat_number": 1}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, fmt.Sprintf("/v1/halls/%d/seats", hallID), owner.token, map[string]any{"seat_number": 3}).Code)

	status := fmt.Sprintf("/v1/halls/%d/status", hallID)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPatch, status, rival.token, map[string]string{"status": "INACTIVE"}).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPatch, status, owner.token, map[string]string{"status": "DRAFT"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, status, owner.token, map[string]string{"status": "CLOSED"}).Code)

	q := url.Values{"start": {env.day.Format(time.RFC3339)}, "end": {env.day.AddDate(0, 0, 1).Format(time.RFC3339)}}
	report := fmt.Sprintf("/v1/halls/%d/report?%s", hallID, q.Encode())
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, report, rival.token, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, report, sara.token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, fmt.Sprintf("/v1/halls/%d/report", hallID), owner.token, nil).Code)

	rec := env.do(t, http.MethodGet, report, owner.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Report struct {
			TotalBookings     int                `json:"total_bookings"`
			TotalRevenueCents int64              `json:"total_revenue_cents"`
			TotalSeats        int                `json:"total_seats"`
			DailyUtilization  map[string]float64 `json:"daily_utilization"`
			BusiestHours      map[string]int     `json:"busiest_hours"`
		} `json:"report"`
		TopHours []struct {
			Hour  int `json:"hour"`
			Count int `json:"count"`
		} `json:"top_hours"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 2, body.Report.TotalBookings)
	assert.Equal(t, int64(3600), body.Report.TotalRevenueCents)
	assert.Equal(t, 2, body.Report.TotalSeats)
	assert.InDelta(t, 3.0/48.0*100, body.Report.DailyUtilization[env.day.Format("2006-01-02")], 1e-9)
	assert.Equal(t, map[string]int{"9": 2}, body.Report.BusiestHours)
	require.Len(t, body.TopHours, 1)
	assert.Equal(t, 9, body.TopHours[0].Hour)

	// deactivating the hall blocks new bookings
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPatch, status, owner.token, map[string]string{"status": "INACTIVE"}).Code)
	assert.Equal(t, http.StatusConflict, env.book(t, sara, seats[0], 14, 15).Code)
}

// brokenWriter fails every body write.
type brokenWriter struct{ *httptest.ResponseRecorder }

var errClientGone = errors.New("client gone")

func (w brokenWriter) Write([]byte) (int, error) { return 0, errClientGone }

func TestOwnerSeatEndpoints_ReturnWriteErrors(t *testing.T) {
	h := handler.NewSeatHandler(nil, nil, zap.NewNop())
	e := echo.New()

	for name, fn := range map[string]echo.HandlerFunc{
		"set maintenance":   h.SetMaintenance,
		"clear maintenance": h.ClearMaintenance,
		"delete seat":       h.DeleteSeat,
	} {
		t.Run(name, func(t *testing.T) {
			w := brokenWriter{httptest.NewRecorder()}
			c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/v1/seats/1", nil), w)
			// no user on the context: the 401 body cannot be written
			err := fn(c)
			assert.ErrorIs(t, err, errClientGone)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
