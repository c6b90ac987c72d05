package booking

import (
	"errors"
	"time"
)

// StatusPendingValidation is the only status this service ever writes on a
// request. Approval happens outside the call path.
const StatusPendingValidation = "pending_validation"

// DefaultCapacity is the number of confirmed bookings accepted per date.
const DefaultCapacity = 2

var (
	// ErrDisconnected means no backing store is configured or reachable.
	ErrDisconnected = errors.New("booking store disconnected")
	// ErrBookingExists means a confirmed booking already holds this phone and date.
	ErrBookingExists = errors.New("booking already exists")
	// ErrFullyBooked means the date already holds capacity confirmed bookings.
	ErrFullyBooked = errors.New("date fully booked")
	// ErrWriteFailure is any other failed write.
	ErrWriteFailure = errors.New("booking write failed")
	// ErrNotFound means a customer lookup matched nothing.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalidRequest means required booking fields were empty.
	ErrInvalidRequest = errors.New("invalid booking request")
)

// Customer is a dealership customer record.
type Customer struct {
	Name        string `bson:"name" dynamodbav:"name" json:"name"`
	NameLower   string `bson:"-" dynamodbav:"name_lower,omitempty" json:"-"`
	Phone       string `bson:"phone" dynamodbav:"phone" json:"phone"`
	Email       string `bson:"email,omitempty" dynamodbav:"email,omitempty" json:"email,omitempty"`
	Vehicle     string `bson:"vehicle" dynamodbav:"vehicle" json:"vehicle"`
	VehicleNo   string `bson:"vehicle_no,omitempty" dynamodbav:"vehicle_no,omitempty" json:"vehicle_no,omitempty"`
	LastService string `bson:"last_service,omitempty" dynamodbav:"last_service,omitempty" json:"last_service,omitempty"`
	VIP         bool   `bson:"vip_status" dynamodbav:"vip_status" json:"vip_status"`
}

// BookingRequest is an entry in the pending approval queue. It is written
// once and never updated by this service.
type BookingRequest struct {
	ReferenceID         string    `bson:"_id" dynamodbav:"reference_id" json:"reference_id"`
	Name                string    `bson:"name" dynamodbav:"name" json:"name"`
	Phone               string    `bson:"phone" dynamodbav:"phone" json:"phone"`
	Vehicle             string    `bson:"vehicle" dynamodbav:"vehicle" json:"vehicle"`
	RequestedDate       string    `bson:"requested_date" dynamodbav:"requested_date" json:"requested_date"`
	RequestedService    string    `bson:"requested_service" dynamodbav:"requested_service" json:"requested_service"`
	Status              string    `bson:"status" dynamodbav:"status" json:"status"`
	SubmissionTimestamp time.Time `bson:"submission_timestamp" dynamodbav:"submission_timestamp" json:"submission_timestamp"`
}

// ConfirmedBooking is a calendar entry. ID is phone + "_" + date and is
// unique in the backing store.
type ConfirmedBooking struct {
	ID        string    `bson:"_id" dynamodbav:"id" json:"id"`
	Phone     string    `bson:"phone" dynamodbav:"phone" json:"phone"`
	Date      string    `bson:"date" dynamodbav:"date" json:"date"`
	CreatedAt time.Time `bson:"created_at" dynamodbav:"created_at" json:"created_at"`
}

// Availability is the advisory result of a capacity check.
type Availability struct {
	Date      string `json:"date"`
	Booked    int    `json:"booked"`
	Capacity  int    `json:"capacity"`
	Available bool   `json:"available"`
}

// BookingKey derives the idempotency key for a confirmed booking.
func BookingKey(phone, date string) string {
	return phone + "_" + date
}
