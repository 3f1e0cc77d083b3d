package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

func booking(seatID uint64, start, end time.Time, amount int64, status model.BookingStatus) model.Booking {
	return model.Booking{SeatID: seatID, Start: start, End: end, AmountCents: amount, Status: status}
}

func TestRevenue(t *testing.T) {
	dayStart, dayEnd := at(0, 0), at(0, 0).AddDate(0, 0, 1)
	snapshot := []model.Booking{
		booking(1, at(9, 0), at(10, 0), 10000, model.BookingConfirmed),
		booking(2, at(13, 0), at(15, 0), 25050, model.BookingConfirmed),
		booking(1, at(16, 0), at(17, 0), 9999, model.BookingCancelled),
		// starts before the range
		booking(2, dayStart.Add(-time.Hour), dayStart.Add(time.Hour), 500, model.BookingConfirmed),
	}

	assert.Equal(t, int64(35050), Revenue(snapshot, dayStart, dayEnd))
	assert.Equal(t, int64(0), Revenue(nil, dayStart, dayEnd))
}

func TestUtilization(t *testing.T) {
	dayStart, dayEnd := at(0, 0), at(0, 0).AddDate(0, 0, 1)

	tests := []struct {
		name      string
		bookings  []model.Booking
		seatCount int
		want      float64
	}{
		{
			name:      "one seat four hours of two",
			bookings:  []model.Booking{booking(1, at(8, 0), at(12, 0), 0, model.BookingConfirmed)},
			seatCount: 2,
			want:      4.0 / 48.0 * 100,
		},
		{
			name:      "no bookings",
			seatCount: 2,
			want:      0,
		},
		{
			name:      "no seats",
			bookings:  []model.Booking{booking(1, at(8, 0), at(12, 0), 0, model.BookingConfirmed)},
			seatCount: 0,
			want:      0,
		},
		{
			name: "cancelled ignored and overnight clipped",
			bookings: []model.Booking{
				booking(1, at(8, 0), at(12, 0), 0, model.BookingCancelled),
				booking(1, dayStart.Add(-2*time.Hour), dayStart.Add(2*time.Hour), 0, model.BookingConfirmed),
			},
			seatCount: 1,
			want:      2.0 / 24.0 * 100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Utilization(tt.bookings, tt.seatCount, 24, dayStart, dayEnd)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
	assert.InDelta(t, 8.33, Utilization(tests[0].bookings, 2, 24, dayStart, dayEnd), 0.01)
}

func TestBusiestHours(t *testing.T) {
	dayStart, dayEnd := at(0, 0), at(0, 0).AddDate(0, 0, 1)
	snapshot := []model.Booking{
		booking(1, at(14, 0), at(15, 0), 0, model.BookingConfirmed),
		booking(2, at(9, 0), at(10, 0), 0, model.BookingConfirmed),
		booking(1, at(9, 0), at(10, 0), 0, model.BookingConfirmed),
		booking(2, at(9, 30), at(10, 0), 0, model.BookingCancelled),
	}

	hist := BusiestHours(snapshot, dayStart, dayEnd, time.UTC)
	assert.Equal(t, map[int]int{9: 2, 14: 1}, hist)
	assert.Equal(t, []model.HourCount{{Hour: 9, Count: 2}, {Hour: 14, Count: 1}}, TopHours(hist, 0))

	tehran, err := time.LoadLocation("Asia/Tehran")
	if err == nil {
		shifted := BusiestHours(snapshot[:1], dayStart, dayEnd, tehran)
		assert.Equal(t, map[int]int{17: 1}, shifted)
	}
}

func TestTopHoursTies(t *testing.T) {
	hist := map[int]int{18: 3, 7: 3, 12: 5, 3: 1}
	assert.Equal(t, []model.HourCount{{Hour: 12, Count: 5}, {Hour: 7, Count: 3}}, TopHours(hist, 2))
	assert.Empty(t, TopHours(map[int]int{}, 3))
}

func TestReporter_HallReport(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	c.book(t, c.seats[0], c.female, at(8, 0), at(12, 0), 10000)
	c.book(t, c.seats[1], c.male, at(9, 0), at(10, 0), 25050)
	cancelled := c.book(t, c.seats[1], c.male, at(14, 0), at(15, 0), 7000)
	_, _, err := c.ledger.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)
	c.book(t, c.seats[1], c.male, at(9, 0).AddDate(0, 0, 1), at(11, 0).AddDate(0, 0, 1), 2000)

	start, end := at(0, 0), at(0, 0).AddDate(0, 0, 2)
	rep, err := c.reporter.HallReport(ctx, c.hall.ID, start, end)
	require.NoError(t, err)

	assert.Equal(t, c.hall.ID, rep.HallID)
	assert.Equal(t, "Reading Room", rep.HallName)
	assert.Equal(t, 2, rep.TotalSeats)
	assert.Equal(t, 3, rep.TotalBookings)
	assert.Equal(t, int64(37050), rep.TotalRevenueCents)
	require.Len(t, rep.DailyUtilization, 2)
	assert.InDelta(t, 5.0/48.0*100, rep.DailyUtilization["2030-03-04"], 1e-9)
	assert.InDelta(t, 2.0/48.0*100, rep.DailyUtilization["2030-03-05"], 1e-9)
	assert.InDelta(t, 3.5/48.0*100, rep.AverageUtilization, 1e-9)
	assert.Equal(t, map[int]int{8: 1, 9: 2}, rep.BusiestHours)

	revenue, err := c.reporter.Revenue(ctx, c.hall.ID, start, at(0, 0).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(35050), revenue)

	u, err := c.reporter.Utilization(ctx, c.hall.ID, at(15, 0))
	require.NoError(t, err)
	assert.InDelta(t, 5.0/48.0*100, u, 1e-9)

	hours, err := c.reporter.BusiestHours(ctx, c.hall.ID, start, end)
	require.NoError(t, err)
	assert.Equal(t, rep.BusiestHours, hours)
}

func TestReporter_EmptyHall(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	empty := c.store.PutHall(model.Hall{OwnerID: c.owner.ID, Name: "Empty", Status: model.HallActive})

	rep, err := c.reporter.HallReport(ctx, empty.ID, at(0, 0), at(0, 0).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, rep.TotalRevenueCents)
	assert.Zero(t, rep.TotalBookings)
	assert.Zero(t, rep.AverageUtilization)
	assert.Equal(t, 0.0, rep.DailyUtilization["2030-03-04"])
	assert.Empty(t, rep.BusiestHours)

	_, err = c.reporter.HallReport(ctx, 4040, at(0, 0), at(1, 0))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReporter_EmptyAndReversedRanges(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	c.book(t, c.seats[0], c.male, at(9, 0), at(10, 0), 1000)

	revenue, err := c.reporter.Revenue(ctx, c.hall.ID, at(9, 0), at(9, 0))
	require.NoError(t, err)
	assert.Zero(t, revenue)

	hours, err := c.reporter.BusiestHours(ctx, c.hall.ID, at(9, 0), at(9, 0))
	require.NoError(t, err)
	assert.Empty(t, hours)

	rep, err := c.reporter.HallReport(ctx, c.hall.ID, at(9, 0), at(9, 0))
	require.NoError(t, err)
	assert.Zero(t, rep.TotalRevenueCents)
	assert.Zero(t, rep.TotalBookings)
	assert.Empty(t, rep.DailyUtilization)
	assert.Zero(t, rep.AverageUtilization)

	_, err = c.reporter.Revenue(ctx, c.hall.ID, at(10, 0), at(9, 0))
	assert.ErrorIs(t, err, model.ErrInvalidInterval)
	_, err = c.reporter.HallReport(ctx, c.hall.ID, at(10, 0), at(9, 0))
	assert.ErrorIs(t, err, model.ErrInvalidInterval)
}
