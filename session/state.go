package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMissingField is returned when a customer record lacks name, phone or vehicle.
var ErrMissingField = errors.New("missing customer field")

// minPhoneDigits is the shortest digit run treated as a phone number.
const minPhoneDigits = 10

// CustomerProfile is the caller identified during this call.
type CustomerProfile struct {
	Name       string
	Phone      string
	Vehicle    string
	Identified bool
}

// State holds per-call identity. One State lives for one call and is never
// persisted.
type State struct {
	mu            sync.RWMutex
	customer      *CustomerProfile
	interactionID string
}

// NewState returns an unauthenticated state for the given call.
func NewState(interactionID string) *State {
	return &State{interactionID: interactionID}
}

// SetCustomer replaces the whole profile and marks the caller identified.
func (s *State) SetCustomer(name, phone, vehicle string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name", ErrMissingField)
	case phone == "":
		return fmt.Errorf("%w: phone", ErrMissingField)
	case vehicle == "":
		return fmt.Errorf("%w: vehicle", ErrMissingField)
	}

	profile := &CustomerProfile{
		Name:       name,
		Phone:      phone,
		Vehicle:    vehicle,
		Identified: true,
	}

	s.mu.Lock()
	s.customer = profile
	s.mu.Unlock()
	return nil
}

// Customer returns a copy of the current profile.
func (s *State) Customer() (CustomerProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.customer == nil {
		return CustomerProfile{}, false
	}
	return *s.customer, true
}

// IsAuthenticated is true once a profile exists and is identified.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customer != nil && s.customer.Identified
}

// InteractionID returns the call identifier this state belongs to.
func (s *State) InteractionID() string {
	return s.interactionID
}

// NormalizePhone strips every non-digit. Fewer than ten digits is not a
// phone number and reports false.
func NormalizePhone(raw string) (string, bool) {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) < minPhoneDigits {
		return "", false
	}
	return string(digits), true
}
