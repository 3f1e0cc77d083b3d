package service

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

const dayKeyLayout = "2006-01-02"

// Reporter derives revenue, utilization and busiest-hour figures from
// ledger snapshots.  Day boundaries and hours of day are taken in loc.
type Reporter struct {
	registry *Registry
	ledger   *Ledger
	loc      *time.Location
	dayHours int
}

// NewReporter builds a reporter.  A nil loc means UTC and a non-positive
// dayHours means 24.
func NewReporter(registry *Registry, ledger *Ledger, loc *time.Location, dayHours int) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	if dayHours <= 0 {
		dayHours = 24
	}
	return &Reporter{registry: registry, ledger: ledger, loc: loc, dayHours: dayHours}
}

// Revenue is the sum of amounts of confirmed bookings starting in
// [start, end).
func (r *Reporter) Revenue(ctx context.Context, hallID uint64, start, end time.Time) (int64, error) {
	if _, err := r.registry.GetHall(ctx, hallID); err != nil {
		return 0, err
	}
	snapshot, err := r.snapshot(ctx, hallID, start, end)
	if err != nil {
		return 0, err
	}
	return Revenue(snapshot, start, end), nil
}

// Utilization is the booked share of the hall's seat-hours on the
// calendar day containing date, as a percentage.
func (r *Reporter) Utilization(ctx context.Context, hallID uint64, date time.Time) (float64, error) {
	hall, err := r.registry.GetHall(ctx, hallID)
	if err != nil {
		return 0, err
	}
	dayStart := startOfDay(date, r.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	snapshot, err := r.ledger.BookingsInRange(ctx, hallID, dayStart, dayEnd)
	if err != nil {
		return 0, err
	}
	return Utilization(snapshot, hall.SeatCount, r.dayHours, dayStart, dayEnd), nil
}

// BusiestHours counts confirmed bookings starting in [start, end) by
// their start hour of day.
func (r *Reporter) BusiestHours(ctx context.Context, hallID uint64, start, end time.Time) (map[int]int, error) {
	if _, err := r.registry.GetHall(ctx, hallID); err != nil {
		return nil, err
	}
	snapshot, err := r.snapshot(ctx, hallID, start, end)
	if err != nil {
		return nil, err
	}
	return BusiestHours(snapshot, start, end, r.loc), nil
}

// HallReport assembles the full report for [start, end) from a single
// ledger snapshot.
func (r *Reporter) HallReport(ctx context.Context, hallID uint64, start, end time.Time) (*model.Report, error) {
	hall, err := r.registry.GetHall(ctx, hallID)
	if err != nil {
		return nil, err
	}
	snapshot, err := r.snapshot(ctx, hallID, start, end)
	if err != nil {
		return nil, err
	}

	rep := &model.Report{
		HallID:           hall.ID,
		HallName:         hall.Name,
		Period:           model.Period{Start: start, End: end},
		TotalSeats:       hall.SeatCount,
		DailyUtilization: make(map[string]float64),
		BusiestHours:     BusiestHours(snapshot, start, end, r.loc),
	}
	for i := range snapshot {
		if startsIn(&snapshot[i], start, end) {
			rep.TotalBookings++
			rep.TotalRevenueCents += snapshot[i].AmountCents
		}
	}

	var sum float64
	for day := startOfDay(start, r.loc); start.Before(end) && day.Before(end); day = day.AddDate(0, 0, 1) {
		// partial first and last days only count hours inside the period
		from, to := day, day.AddDate(0, 0, 1)
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		u := Utilization(snapshot, hall.SeatCount, r.dayHours, from, to)
		rep.DailyUtilization[day.Format(dayKeyLayout)] = u
		sum += u
	}
	if n := len(rep.DailyUtilization); n > 0 {
		rep.AverageUtilization = sum / float64(n)
	}
	return rep, nil
}

// snapshot reads the hall's bookings overlapping [start, end).  An empty
// range has no bookings; a reversed one is model.ErrInvalidInterval.
func (r *Reporter) snapshot(ctx context.Context, hallID uint64, start, end time.Time) ([]model.Booking, error) {
	if start.Equal(end) {
		return nil, nil
	}
	return r.ledger.BookingsInRange(ctx, hallID, start, end)
}

// Revenue sums the amounts of confirmed bookings starting in [start, end).
func Revenue(bookings []model.Booking, start, end time.Time) int64 {
	var total int64
	for i := range bookings {
		if startsIn(&bookings[i], start, end) {
			total += bookings[i].AmountCents
		}
	}
	return total
}

// Utilization returns booked seat-hours within [dayStart, dayEnd) over
// seatCount*dayHours, as a percentage.  Confirmed bookings are clipped to
// the day.  It is 0 for a hall without seats.
func Utilization(bookings []model.Booking, seatCount, dayHours int, dayStart, dayEnd time.Time) float64 {
	if seatCount <= 0 || dayHours <= 0 {
		return 0
	}
	var booked time.Duration
	for i := range bookings {
		b := &bookings[i]
		if !b.Confirmed() || !b.Overlaps(dayStart, dayEnd) {
			continue
		}
		from, to := b.Start, b.End
		if from.Before(dayStart) {
			from = dayStart
		}
		if to.After(dayEnd) {
			to = dayEnd
		}
		booked += to.Sub(from)
	}
	return booked.Hours() / float64(seatCount*dayHours) * 100
}

// BusiestHours is the histogram of confirmed bookings starting in
// [start, end) keyed by start hour of day in loc.
func BusiestHours(bookings []model.Booking, start, end time.Time, loc *time.Location) map[int]int {
	hist := make(map[int]int)
	for i := range bookings {
		if startsIn(&bookings[i], start, end) {
			hist[bookings[i].Start.In(loc).Hour()]++
		}
	}
	return hist
}

// TopHours orders a histogram by count descending, lower hour first on
// ties, and keeps at most n entries (all when n <= 0).
func TopHours(hist map[int]int, n int) []model.HourCount {
	out := make([]model.HourCount, 0, len(hist))
	for h, c := range hist {
		out = append(out, model.HourCount{Hour: h, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hour < out[j].Hour
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func startsIn(b *model.Booking, start, end time.Time) bool {
	return b.Confirmed() && !b.Start.Before(start) && b.Start.Before(end)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
