package frontdesk

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/room4-2/auralis/booking"
	"github.com/room4-2/auralis/session"
)

const unknownField = "Unknown"

// BookingStore is what the desk needs from the booking store.
type BookingStore interface {
	LookupCustomer(ctx context.Context, identifier string) (*booking.Customer, error)
	CheckAvailability(ctx context.Context, date string) (booking.Availability, error)
	QueueBookingRequest(ctx context.Context, req booking.BookingRequest) (booking.BookingRequest, error)
}

// PolicySearcher answers policy questions. It always returns speakable text.
type PolicySearcher interface {
	Search(ctx context.Context, query string) string
}

type lookupArgs struct {
	Identifier string `validate:"required,max=120"`
}

type availabilityArgs struct {
	Date string `validate:"required,max=40"`
}

type policyArgs struct {
	Topic string `validate:"required,max=300"`
}

type submitArgs struct {
	Date        string `validate:"required,max=40"`
	ServiceType string `validate:"required,max=120"`
}

// Desk implements the four front desk actions for one call.
type Desk struct {
	state    *session.State
	store    BookingStore
	policies PolicySearcher
	validate *validator.Validate
	logger   *zap.Logger
}

// NewDesk returns a desk bound to the call's state.
func NewDesk(state *session.State, store BookingStore, policies PolicySearcher, logger *zap.Logger) *Desk {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Desk{
		state:    state,
		store:    store,
		policies: policies,
		validate: validator.New(),
		logger:   logger,
	}
}

// LookupCustomer identifies the caller by phone or name. A match replaces
// the session's customer profile.
func (d *Desk) LookupCustomer(ctx context.Context, identifier string) LookupResult {
	if err := d.validate.Struct(lookupArgs{Identifier: identifier}); err != nil {
		return LookupResult{Status: StatusError, Message: invalidArgs(err), Err: err}
	}

	query := identifier
	if phone, ok := session.NormalizePhone(identifier); ok {
		query = phone
	}
	d.logger.Info("lookup request", zap.String("query", query))

	c, err := d.store.LookupCustomer(ctx, query)
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return LookupResult{Status: StatusNotFound, Message: msgNotFound, Err: err}
	case err != nil:
		d.logger.Error("customer lookup failed", zap.Error(err))
		return LookupResult{Status: StatusUnavailable, Message: msgRecordsDown, Err: err}
	}

	phone := orUnknown(c.Phone)
	vehicle := orUnknown(c.Vehicle)
	if err := d.state.SetCustomer(c.Name, phone, vehicle); err != nil {
		d.logger.Warn("incomplete customer record", zap.Error(err))
		return LookupResult{Status: StatusError, Message: msgIncompleteEntry, Err: err}
	}

	return LookupResult{
		Status:  StatusSuccess,
		Name:    c.Name,
		Vehicle: vehicle,
		Phone:   phone,
	}
}

// CheckAvailability reports whether date still has confirmed capacity. The
// answer is advisory only.
func (d *Desk) CheckAvailability(ctx context.Context, date string) AvailabilityResult {
	if err := d.validate.Struct(availabilityArgs{Date: date}); err != nil {
		return AvailabilityResult{Status: StatusError, Date: date, Message: invalidArgs(err), Err: err}
	}

	avail, err := d.store.CheckAvailability(ctx, date)
	if err != nil {
		d.logger.Error("availability check failed", zap.String("date", date), zap.Error(err))
		return AvailabilityResult{Status: StatusUnavailable, Date: date, Message: msgCalendarDown, Err: err}
	}
	return AvailabilityResult{Status: StatusSuccess, Date: date, Available: avail.Available}
}

// ConsultPolicy returns the knowledge base text for topic.
func (d *Desk) ConsultPolicy(ctx context.Context, topic string) PolicyResult {
	if err := d.validate.Struct(policyArgs{Topic: topic}); err != nil {
		return PolicyResult{Output: invalidArgs(err)}
	}
	d.logger.Info("policy lookup", zap.String("topic", topic))
	return PolicyResult{Output: d.policies.Search(ctx, topic)}
}

// SubmitBookingRequest queues a service request for approval. It never
// reaches the store unless the caller is authenticated.
func (d *Desk) SubmitBookingRequest(ctx context.Context, date, serviceType string) SubmitResult {
	customer, ok := d.state.Customer()
	if !ok || !customer.Identified {
		return SubmitResult{Status: StatusError, Message: msgAuthRequired, Err: ErrUnauthenticated}
	}

	if err := d.validate.Struct(submitArgs{Date: date, ServiceType: serviceType}); err != nil {
		return SubmitResult{Status: StatusError, Message: invalidArgs(err), Err: err}
	}

	req, err := d.store.QueueBookingRequest(ctx, booking.BookingRequest{
		Name:             customer.Name,
		Phone:            customer.Phone,
		Vehicle:          customer.Vehicle,
		RequestedDate:    date,
		RequestedService: serviceType,
	})
	switch {
	case errors.Is(err, booking.ErrDisconnected):
		return SubmitResult{Status: StatusError, Code: CodeDisconnected, Err: err}
	case err != nil:
		return SubmitResult{Status: StatusError, Code: CodeQueueFailure, Err: err}
	}

	return SubmitResult{Status: StatusSubmitted, ReferenceID: req.ReferenceID}
}

func orUnknown(s string) string {
	if s == "" {
		return unknownField
	}
	return s
}

func invalidArgs(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid argument %s: %s", fe.Field(), fe.Tag())
	}
	return "Invalid arguments."
}
