package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/study-hall-booking/internal/model"
)

// MemoryStore keeps halls, seats, bookings and users in process memory.
// It implements every store interface of this package and is used for
// tests and for running the service without MySQL (STORE=memory).
// Per-seat units of work are serialized by a mutex per seat, the
// in-memory counterpart of the row lock taken by SeatRepo.InSeatTx.
type MemoryStore struct {
	mu        sync.RWMutex
	halls     map[uint64]*model.Hall
	seats     map[uint64]*model.Seat
	deleted   map[uint64]bool
	bookings  map[uint64]*model.Booking
	users     map[uint64]*model.User
	seatLocks map[uint64]*sync.Mutex
	nextID    uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		halls:     make(map[uint64]*model.Hall),
		seats:     make(map[uint64]*model.Seat),
		deleted:   make(map[uint64]bool),
		bookings:  make(map[uint64]*model.Booking),
		users:     make(map[uint64]*model.User),
		seatLocks: make(map[uint64]*sync.Mutex),
	}
}

func (s *MemoryStore) newID() uint64 {
	s.nextID++
	return s.nextID
}

// PutHall inserts or replaces a hall.  A zero ID is assigned.
func (s *MemoryStore) PutHall(h model.Hall) *model.Hall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == 0 {
		h.ID = s.newID()
	}
	if h.Status == "" {
		h.Status = model.HallDraft
	}
	s.halls[h.ID] = &h
	out := h
	return &out
}

// PutSeat inserts or replaces a seat.  A zero ID is assigned.  Seat
// numbers must be unique within the hall.
func (s *MemoryStore) PutSeat(seat model.Seat) (*model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.halls[seat.HallID]; !ok {
		return nil, fmt.Errorf("put seat: hall %d: %w", seat.HallID, model.ErrNotFound)
	}
	for id, other := range s.seats {
		if id != seat.ID && !s.deleted[id] && other.HallID == seat.HallID && other.SeatNumber == seat.SeatNumber {
			return nil, fmt.Errorf("put seat %d in hall %d: %w", seat.SeatNumber, seat.HallID, model.ErrDuplicateSeatNumber)
		}
	}
	if seat.ID == 0 {
		seat.ID = s.newID()
	}
	s.seats[seat.ID] = cloneSeat(&seat)
	return cloneSeat(&seat), nil
}

func (s *MemoryStore) CreateHall(_ context.Context, h *model.Hall) error {
	h.ID = 0
	h.CreatedAt = time.Now().UTC()
	h.UpdatedAt = h.CreatedAt
	stored := s.PutHall(*h)
	*h = *stored
	return nil
}

func (s *MemoryStore) CreateSeat(_ context.Context, seat *model.Seat) error {
	seat.ID = 0
	seat.CreatedAt = time.Now().UTC()
	seat.UpdatedAt = seat.CreatedAt
	stored, err := s.PutSeat(*seat)
	if err != nil {
		return err
	}
	*seat = *stored
	return nil
}

func (s *MemoryStore) GetHall(_ context.Context, id uint64) (*model.Hall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.halls[id]
	if !ok {
		return nil, fmt.Errorf("get hall %d: %w", id, model.ErrNotFound)
	}
	out := *h
	return &out, nil
}

func (s *MemoryStore) UpdateHallStatus(_ context.Context, id uint64, from, to model.HallStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.halls[id]
	if !ok {
		return fmt.Errorf("update hall %d: %w", id, model.ErrNotFound)
	}
	if h.Status != from {
		return fmt.Errorf("update hall %d: status is %s: %w", id, h.Status, model.ErrInvalidTransition)
	}
	h.Status = to
	h.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetSeat(_ context.Context, id uint64) (*model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.seats[id]
	if !ok || s.deleted[id] {
		return nil, fmt.Errorf("get seat %d: %w", id, model.ErrNotFound)
	}
	return cloneSeat(seat), nil
}

func (s *MemoryStore) ListSeats(_ context.Context, hallID uint64) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Seat, 0)
	for id, seat := range s.seats {
		if seat.HallID == hallID && !s.deleted[id] {
			out = append(out, *cloneSeat(seat))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

func (s *MemoryStore) seatLock(id uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.seatLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.seatLocks[id] = l
	}
	return l
}

func (s *MemoryStore) InSeatTx(ctx context.Context, seatID uint64, fn func(ctx context.Context, tx SeatTx) error) error {
	l := s.seatLock(seatID)
	l.Lock()
	defer l.Unlock()

	seat, err := s.GetSeat(ctx, seatID)
	if err != nil {
		return err
	}
	tx := &memorySeatTx{store: s, seat: seat}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memorySeatTx stages writes until the unit of work succeeds.
type memorySeatTx struct {
	store       *MemoryStore
	seat        *model.Seat
	inserted    []*model.Booking
	maintenance **model.Maintenance
	deleted     bool
}

func (tx *memorySeatTx) Seat() *model.Seat { return tx.seat }

func (tx *memorySeatTx) ConfirmedOverlapping(ctx context.Context, start, end time.Time) ([]model.Booking, error) {
	out, err := tx.store.ConfirmedOverlapping(ctx, tx.seat.ID, start, end)
	if err != nil {
		return nil, err
	}
	for _, b := range tx.inserted {
		if b.Confirmed() && b.Overlaps(start, end) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (tx *memorySeatTx) InsertBooking(_ context.Context, b *model.Booking) error {
	tx.store.mu.Lock()
	b.ID = tx.store.newID()
	tx.store.mu.Unlock()
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	staged := *b
	tx.inserted = append(tx.inserted, &staged)
	return nil
}

func (tx *memorySeatTx) SetMaintenance(_ context.Context, m *model.Maintenance) error {
	var staged *model.Maintenance
	if m != nil {
		staged = cloneMaintenance(m)
	}
	tx.maintenance = &staged
	tx.seat.Maintenance = staged
	return nil
}

func (tx *memorySeatTx) SoftDelete(_ context.Context) error {
	tx.deleted = true
	return nil
}

func (tx *memorySeatTx) commit() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range tx.inserted {
		s.bookings[b.ID] = b
	}
	if seat, ok := s.seats[tx.seat.ID]; ok {
		if tx.maintenance != nil {
			seat.Maintenance = *tx.maintenance
			seat.UpdatedAt = time.Now().UTC()
		}
		if tx.deleted {
			s.deleted[seat.ID] = true
		}
	}
}

func (s *MemoryStore) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("get booking %d: %w", id, model.ErrNotFound)
	}
	out := *b
	return &out, nil
}

func (s *MemoryStore) CancelBooking(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return false, fmt.Errorf("cancel booking %d: %w", id, model.ErrNotFound)
	}
	if b.Status != model.BookingConfirmed {
		return false, nil
	}
	b.Status = model.BookingCancelled
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) ConfirmedOverlapping(_ context.Context, seatID uint64, start, end time.Time) ([]model.Booking, error) {
	return s.filterBookings(func(b *model.Booking) bool {
		return b.SeatID == seatID && b.Confirmed() && b.Overlaps(start, end)
	}), nil
}

func (s *MemoryStore) ActiveForSeat(_ context.Context, seatID uint64, at time.Time) ([]model.Booking, error) {
	return s.filterBookings(func(b *model.Booking) bool {
		return b.SeatID == seatID && b.IsActive(at)
	}), nil
}

func (s *MemoryStore) InRange(_ context.Context, hallID uint64, start, end time.Time) ([]model.Booking, error) {
	return s.filterBookings(func(b *model.Booking) bool {
		return b.HallID == hallID && b.Overlaps(start, end)
	}), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	out := s.filterBookings(func(b *model.Booking) bool { return b.UserID == userID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

// filterBookings copies matching bookings under one read lock, ordered
// by start then ID.
func (s *MemoryStore) filterBookings(keep func(b *model.Booking) bool) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range s.users {
		if other.Email == email {
			return ErrEmailExists
		}
	}
	u.ID = s.newID()
	u.Email = email
	u.IsActive = true
	u.CreatedAt = time.Now().UTC()
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uint64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %d: %w", id, model.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", model.ErrNotFound)
}

func cloneSeat(s *model.Seat) *model.Seat {
	out := *s
	if s.Position != nil {
		p := *s.Position
		out.Position = &p
	}
	if s.CustomPriceCents != nil {
		c := *s.CustomPriceCents
		out.CustomPriceCents = &c
	}
	if s.Maintenance != nil {
		out.Maintenance = cloneMaintenance(s.Maintenance)
	}
	return &out
}

func cloneMaintenance(m *model.Maintenance) *model.Maintenance {
	out := *m
	if m.Until != nil {
		u := *m.Until
		out.Until = &u
	}
	return &out
}
