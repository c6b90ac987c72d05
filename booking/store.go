package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository is the persistence contract behind Store. Implementations
// return ErrBookingExists from InsertConfirmed when the key is taken and
// ErrNotFound from FindCustomer when nothing matches.
type Repository interface {
	CountConfirmed(ctx context.Context, date string) (int, error)
	InsertConfirmed(ctx context.Context, b ConfirmedBooking) error
	InsertPending(ctx context.Context, r BookingRequest) error
	FindCustomer(ctx context.Context, identifier string) (*Customer, error)
	Ping(ctx context.Context) error
}

// Notifier announces a stored pending request to the approval process.
type Notifier interface {
	NotifyPending(ctx context.Context, r BookingRequest) error
}

// Store applies the booking rules on top of a Repository. A Store without a
// repository answers every call with ErrDisconnected.
type Store struct {
	repo     Repository
	capacity int
	notifier Notifier
	logger   *zap.Logger
	nowFunc  func() time.Time
	newID    func() string
}

// NewStore returns a Store. repo may be nil when no backend is configured.
func NewStore(repo Repository, capacity int, logger *zap.Logger) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		repo:     repo,
		capacity: capacity,
		logger:   logger,
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}
}

// WithNotifier sets the approval notifier and returns the store.
func (s *Store) WithNotifier(n Notifier) *Store {
	s.notifier = n
	return s
}

// Capacity returns the per-date confirmed booking limit.
func (s *Store) Capacity() int {
	return s.capacity
}

// Connected reports whether a backend is configured.
func (s *Store) Connected() bool {
	return s != nil && s.repo != nil
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	if !s.Connected() {
		return ErrDisconnected
	}
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// CheckAvailability counts confirmed bookings on date. The date is an opaque
// token matched exactly. The answer is advisory: nothing is held between
// this read and a later write, so it does not guarantee a slot.
func (s *Store) CheckAvailability(ctx context.Context, date string) (Availability, error) {
	if !s.Connected() {
		return Availability{Date: date}, ErrDisconnected
	}

	count, err := s.repo.CountConfirmed(ctx, date)
	if err != nil {
		return Availability{Date: date}, fmt.Errorf("count confirmed bookings for %s: %w", date, err)
	}

	avail := Availability{
		Date:      date,
		Booked:    count,
		Capacity:  s.capacity,
		Available: count < s.capacity,
	}
	s.logger.Info("checked availability",
		zap.String("date", date),
		zap.Int("booked", count),
		zap.Int("capacity", s.capacity))
	return avail, nil
}

// CreateConfirmedBooking writes a calendar entry keyed on phone_date.
// A date already at capacity yields ErrFullyBooked. The count is read
// before the insert without a lock, so concurrent writers on different
// phones can overshoot it; uniqueness of the key is enforced by the insert
// itself. A taken key yields ErrBookingExists; any other failure
// ErrWriteFailure. There is no retry.
func (s *Store) CreateConfirmedBooking(ctx context.Context, phone, date string) (ConfirmedBooking, error) {
	if !s.Connected() {
		return ConfirmedBooking{}, ErrDisconnected
	}
	if phone == "" || date == "" {
		return ConfirmedBooking{}, fmt.Errorf("%w: phone and date are required", ErrInvalidRequest)
	}

	count, err := s.repo.CountConfirmed(ctx, date)
	if err != nil {
		if errors.Is(err, ErrDisconnected) {
			return ConfirmedBooking{}, ErrDisconnected
		}
		s.logger.Error("capacity check failed", zap.String("date", date), zap.Error(err))
		return ConfirmedBooking{}, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	if count >= s.capacity {
		s.logger.Info("date fully booked",
			zap.String("date", date),
			zap.Int("booked", count),
			zap.Int("capacity", s.capacity))
		return ConfirmedBooking{}, ErrFullyBooked
	}

	b := ConfirmedBooking{
		ID:        BookingKey(phone, date),
		Phone:     phone,
		Date:      date,
		CreatedAt: s.nowFunc().UTC(),
	}

	if err := s.repo.InsertConfirmed(ctx, b); err != nil {
		switch {
		case errors.Is(err, ErrBookingExists):
			return ConfirmedBooking{}, ErrBookingExists
		case errors.Is(err, ErrDisconnected):
			return ConfirmedBooking{}, ErrDisconnected
		default:
			s.logger.Error("confirmed booking write failed", zap.String("id", b.ID), zap.Error(err))
			return ConfirmedBooking{}, fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
	}

	s.logger.Info("confirmed booking created", zap.String("id", b.ID))
	return b, nil
}

// QueueBookingRequest appends a request to the pending queue. Status is
// always forced to pending_validation and capacity is never consulted.
func (s *Store) QueueBookingRequest(ctx context.Context, req BookingRequest) (BookingRequest, error) {
	if !s.Connected() {
		return BookingRequest{}, ErrDisconnected
	}

	req.Status = StatusPendingValidation
	req.SubmissionTimestamp = s.nowFunc().UTC()
	req.ReferenceID = s.newID()

	if err := s.repo.InsertPending(ctx, req); err != nil {
		if errors.Is(err, ErrDisconnected) {
			return BookingRequest{}, ErrDisconnected
		}
		s.logger.Error("queue push failed", zap.String("phone", req.Phone), zap.Error(err))
		return BookingRequest{}, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	s.logger.Info("booking request queued",
		zap.String("reference_id", req.ReferenceID),
		zap.String("date", req.RequestedDate))

	if s.notifier != nil {
		if err := s.notifier.NotifyPending(ctx, req); err != nil {
			s.logger.Warn("approval notification failed",
				zap.String("reference_id", req.ReferenceID), zap.Error(err))
		}
	}
	return req, nil
}

// LookupCustomer finds a customer by exact phone or case-insensitive name.
func (s *Store) LookupCustomer(ctx context.Context, identifier string) (*Customer, error) {
	if !s.Connected() {
		return nil, ErrDisconnected
	}
	if identifier == "" {
		return nil, ErrNotFound
	}

	c, err := s.repo.FindCustomer(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDisconnected) {
			return nil, err
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return c, nil
}
