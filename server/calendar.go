package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/room4-2/auralis/booking"
	"github.com/room4-2/auralis/session"
)

// Calendar error codes
const (
	CodeBookingExists   = "BOOKING_EXISTS"
	CodeFullyBooked     = "FULLY_BOOKED"
	CodeDBDisconnected  = "DB_DISCONNECTED"
	CodeDBWriteFailure  = "DB_WRITE_FAILURE"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidPhone    = "INVALID_PHONE"
	CodeValidationError = "VALIDATION_FAILED"
)

// CalendarStore is the part of the booking store staff use to confirm
// approved requests into the calendar.
type CalendarStore interface {
	CheckAvailability(ctx context.Context, date string) (booking.Availability, error)
	CreateConfirmedBooking(ctx context.Context, phone, date string) (booking.ConfirmedBooking, error)
}

// CreateBookingRequest is the body of POST /calendar/bookings.
type CreateBookingRequest struct {
	Phone string `json:"phone" validate:"required"`
	Date  string `json:"date" validate:"required"`
}

type availabilityQuery struct {
	Date string `form:"date" validate:"required"`
}

// CalendarHandler serves the staff calendar API.
type CalendarHandler struct {
	store    CalendarStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCalendarHandler returns a handler backed by store.
func NewCalendarHandler(store CalendarStore, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// Register mounts the calendar routes.
func (h *CalendarHandler) Register(r gin.IRouter) {
	g := r.Group("/calendar")
	g.GET("/availability", h.availability)
	g.POST("/bookings", rateLimit(calendarWritesPerMinute, calendarWriteBurst, h.logger), h.createBooking)
}

func (h *CalendarHandler) availability(c *gin.Context) {
	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeInvalidRequest, "message": err.Error()})
		return
	}
	if err := h.validate.Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeValidationError, "fields": validationErrors(err)})
		return
	}

	avail, err := h.store.CheckAvailability(c.Request.Context(), q.Date)
	if err != nil {
		if errors.Is(err, booking.ErrDisconnected) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": CodeDBDisconnected})
			return
		}
		h.logger.Error("availability check failed", zap.String("date", q.Date), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": CodeDBWriteFailure, "message": "availability check failed"})
		return
	}
	c.JSON(http.StatusOK, avail)
}

func (h *CalendarHandler) createBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeInvalidRequest, "message": err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeValidationError, "fields": validationErrors(err)})
		return
	}

	phone, ok := session.NormalizePhone(req.Phone)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeInvalidPhone, "message": "phone must have at least 10 digits"})
		return
	}

	b, err := h.store.CreateConfirmedBooking(c.Request.Context(), phone, req.Date)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, b)
	case errors.Is(err, booking.ErrBookingExists):
		c.JSON(http.StatusConflict, gin.H{"error": CodeBookingExists, "id": booking.BookingKey(phone, req.Date)})
	case errors.Is(err, booking.ErrFullyBooked):
		c.JSON(http.StatusConflict, gin.H{"error": CodeFullyBooked, "date": req.Date})
	case errors.Is(err, booking.ErrDisconnected):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": CodeDBDisconnected})
	case errors.Is(err, booking.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": CodeInvalidRequest, "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": CodeDBWriteFailure})
	}
}

func validationErrors(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return out
	}
	out["error"] = err.Error()
	return out
}
