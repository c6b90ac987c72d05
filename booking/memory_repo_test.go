package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// memRepo is an in-memory Repository for unit tests. The confirmed map is
// checked and written under one lock so duplicate keys behave like a
// unique index.
type memRepo struct {
	mu        sync.Mutex
	confirmed map[string]ConfirmedBooking
	pending   []BookingRequest
	customers []Customer

	failInsert  error
	failPending error
	failCount   error
}

func newMemRepo() *memRepo {
	return &memRepo{confirmed: map[string]ConfirmedBooking{}}
}

func (m *memRepo) CountConfirmed(ctx context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCount != nil {
		return 0, m.failCount
	}
	n := 0
	for _, b := range m.confirmed {
		if b.Date == date {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) InsertConfirmed(ctx context.Context, b ConfirmedBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	if _, ok := m.confirmed[b.ID]; ok {
		return ErrBookingExists
	}
	m.confirmed[b.ID] = b
	return nil
}

func (m *memRepo) InsertPending(ctx context.Context, r BookingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPending != nil {
		return m.failPending
	}
	m.pending = append(m.pending, r)
	return nil
}

func (m *memRepo) FindCustomer(ctx context.Context, identifier string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Phone == identifier || strings.EqualFold(c.Name, identifier) {
			cc := c
			return &cc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) Ping(ctx context.Context) error { return nil }

var errBoom = errors.New("boom")
