package frontdesk

import "errors"

// ErrUnauthenticated is reported when a booking is attempted before the
// caller has been identified.
var ErrUnauthenticated = errors.New("caller not authenticated")

// Result statuses returned to the dialogue model.
const (
	StatusSuccess     = "success"
	StatusNotFound    = "not_found"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
	StatusSubmitted   = "submitted"
)

// Error codes carried by failed submissions.
const (
	CodeDisconnected = "DB_DISCONNECTED"
	CodeQueueFailure = "QUEUE_FAILURE"
)

// Messages spoken back through the dialogue model.
const (
	msgNotFound        = "User not found. Ask for spelling or phone number."
	msgAuthRequired    = "Authentication required. Identify customer first."
	msgRecordsDown     = "Customer records are unavailable right now."
	msgCalendarDown    = "The service calendar is unavailable right now."
	msgIncompleteEntry = "Customer record is incomplete."
)

// Response is implemented by every action result.
type Response interface {
	Response() map[string]any
}

// LookupResult is the outcome of lookup_customer.
type LookupResult struct {
	Status  string
	Name    string
	Vehicle string
	Phone   string
	Message string
	Err     error
}

func (r LookupResult) Response() map[string]any {
	if r.Status == StatusSuccess {
		return map[string]any{
			"status": r.Status,
			"data": map[string]any{
				"name":    r.Name,
				"vehicle": r.Vehicle,
				"phone":   r.Phone,
			},
		}
	}
	return map[string]any{"status": r.Status, "message": r.Message}
}

// AvailabilityResult is the outcome of check_availability.
type AvailabilityResult struct {
	Status    string
	Date      string
	Available bool
	Message   string
	Err       error
}

func (r AvailabilityResult) Response() map[string]any {
	out := map[string]any{"available": r.Available, "date": r.Date}
	if r.Status != StatusSuccess {
		out["status"] = r.Status
		out["message"] = r.Message
	}
	return out
}

// PolicyResult is the outcome of consult_policy.
type PolicyResult struct {
	Output string
}

func (r PolicyResult) Response() map[string]any {
	return map[string]any{"output": r.Output}
}

// SubmitResult is the outcome of submit_booking_request.
type SubmitResult struct {
	Status      string
	ReferenceID string
	Code        string
	Message     string
	Err         error
}

func (r SubmitResult) Response() map[string]any {
	switch {
	case r.Status == StatusSubmitted:
		return map[string]any{"status": r.Status, "success": true, "reference_id": r.ReferenceID}
	case r.Code != "":
		return map[string]any{"status": r.Status, "success": false, "error": r.Code}
	default:
		return map[string]any{"status": r.Status, "message": r.Message}
	}
}
