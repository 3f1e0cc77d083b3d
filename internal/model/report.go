package model

import "time"

// Period is a half-open reporting range [Start, End).
type Period struct {
    Start time.Time `json:"start"`
    End   time.Time `json:"end"`
}

// Report is the aggregated hall report handed verbatim to external
// renderers.  DailyUtilization is keyed by YYYY-MM-DD and BusiestHours
// by hour of day (0-23).
type Report struct {
    HallID             uint64             `json:"hall_id"`
    HallName           string             `json:"hall_name"`
    Period             Period             `json:"period"`
    TotalRevenueCents  int64              `json:"total_revenue_cents"`
    AverageUtilization float64            `json:"average_utilization"`
    TotalBookings      int                `json:"total_bookings"`
    TotalSeats         int                `json:"total_seats"`
    DailyUtilization   map[string]float64 `json:"daily_utilization"`
    BusiestHours       map[int]int        `json:"busiest_hours"`
}

// HourCount is one entry of an ordered busiest-hours ranking.
type HourCount struct {
    Hour  int `json:"hour"`
    Count int `json:"count"`
}
