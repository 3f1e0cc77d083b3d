package service

import "sync"

// SeatLocks hands out one mutex per seat ID.  Entries are reference
// counted and dropped when the last holder unlocks, so the map only
// grows with the number of seats under contention.
//
// It also keeps one read-write gate per hall.  Bookings hold the gate
// shared while they check the hall and commit; lifecycle changes hold it
// exclusively.  The gate is always taken before any seat lock.
type SeatLocks struct {
	mu    sync.Mutex
	locks map[uint64]*seatLock
	gates map[uint64]*hallGate
}

type seatLock struct {
	mu   sync.Mutex
	refs int
}

type hallGate struct {
	mu   sync.RWMutex
	refs int
}

// NewSeatLocks returns an empty lock table.
func NewSeatLocks() *SeatLocks {
	return &SeatLocks{locks: make(map[uint64]*seatLock), gates: make(map[uint64]*hallGate)}
}

// ShareHall holds hallID's gate in shared mode until unlock is called.
func (l *SeatLocks) ShareHall(hallID uint64) (unlock func()) {
	g := l.gate(hallID)
	g.mu.RLock()
	return func() {
		g.mu.RUnlock()
		l.dropGate(hallID, g)
	}
}

// ExclusiveHall waits for every shared holder of hallID's gate to leave
// and holds it alone until unlock is called.
func (l *SeatLocks) ExclusiveHall(hallID uint64) (unlock func()) {
	g := l.gate(hallID)
	g.mu.Lock()
	return func() {
		g.mu.Unlock()
		l.dropGate(hallID, g)
	}
}

func (l *SeatLocks) gate(hallID uint64) *hallGate {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gates[hallID]
	if !ok {
		g = &hallGate{}
		l.gates[hallID] = g
	}
	g.refs++
	return g
}

func (l *SeatLocks) dropGate(hallID uint64, g *hallGate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g.refs--
	if g.refs == 0 {
		delete(l.gates, hallID)
	}
}

// Lock blocks until the caller holds seatID's mutex and returns the
// function that releases it.
func (l *SeatLocks) Lock(seatID uint64) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[seatID]
	if !ok {
		sl = &seatLock{}
		l.locks[seatID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, seatID)
		}
		l.mu.Unlock()
	}
}

// held reports how many callers hold or wait for seatID.
func (l *SeatLocks) held(seatID uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sl, ok := l.locks[seatID]; ok {
		return sl.refs
	}
	return 0
}
