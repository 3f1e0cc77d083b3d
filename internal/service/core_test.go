package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/queue"
	"github.com/iliyamo/study-hall-booking/internal/repository"
)

var testNow = time.Date(2030, 3, 4, 8, 0, 0, 0, time.UTC)

// at returns testNow's day at the given hour and minute.
func at(hour, minute int) time.Time {
	return time.Date(2030, 3, 4, hour, minute, 0, 0, time.UTC)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.SeatEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.SeatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testCore struct {
	store    *repository.MemoryStore
	events   *recordingPublisher
	ledger   *Ledger
	resolver *Resolver
	registry *Registry
	bookings *BookingService
	reporter *Reporter

	owner   *model.User
	female  *model.User
	male    *model.User
	unknown *model.User
	hall    *model.Hall
	seats   []*model.Seat
}

// newTestCore wires the core on a memory store with an ACTIVE hall of
// two seats (1000 cents per hour) and four users.
func newTestCore(t *testing.T) *testCore {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()
	store := repository.NewMemoryStore()
	events := &recordingPublisher{}
	locks := NewSeatLocks()

	c := &testCore{store: store, events: events}
	c.ledger = NewLedger(store, store, locks, log, true)
	c.resolver = NewResolver(store, store, store, 0)
	c.registry = NewRegistry(store, store, store, locks, events, log)
	c.registry.Now = func() time.Time { return testNow }
	c.bookings = NewBookingService(store, store, store, c.ledger, c.resolver, HallRatePricer{}, events, log)
	c.bookings.Now = func() time.Time { return testNow }
	c.reporter = NewReporter(c.registry, c.ledger, time.UTC, 24)

	female, male := model.GenderFemale, model.GenderMale
	c.owner = &model.User{Email: "owner@hall.test", Role: model.RoleOwner}
	c.female = &model.User{Email: "f@hall.test", Role: model.RoleCustomer, Gender: &female}
	c.male = &model.User{Email: "m@hall.test", Role: model.RoleCustomer, Gender: &male}
	c.unknown = &model.User{Email: "u@hall.test", Role: model.RoleCustomer}
	for _, u := range []*model.User{c.owner, c.female, c.male, c.unknown} {
		require.NoError(t, store.CreateUser(ctx, u))
	}

	c.hall = store.PutHall(model.Hall{
		OwnerID: c.owner.ID, Name: "Reading Room", SeatCount: 2,
		DefaultPriceCents: 1000, Status: model.HallActive,
	})
	for n := uint32(1); n <= 2; n++ {
		seat, err := store.PutSeat(model.Seat{HallID: c.hall.ID, SeatNumber: n, Position: &model.Position{Row: 1, Col: int(n)}})
		require.NoError(t, err)
		c.seats = append(c.seats, seat)
	}
	return c
}

// book inserts a confirmed booking straight into the ledger.
func (c *testCore) book(t *testing.T, seat *model.Seat, user *model.User, start, end time.Time, amount int64) *model.Booking {
	t.Helper()
	b := &model.Booking{SeatID: seat.ID, UserID: user.ID, Start: start, End: end, AmountCents: amount}
	require.NoError(t, c.ledger.Insert(context.Background(), b))
	return b
}
