package functions

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/room4-2/auralis/frontdesk"
)

// Handler dispatches model function calls to the front desk.
type Handler struct {
	desk   *frontdesk.Desk
	logger *zap.Logger
}

// NewHandler returns a handler for one call's desk.
func NewHandler(desk *frontdesk.Desk, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{desk: desk, logger: logger}
}

// Handle runs every call in order and returns one response per call.
// Store writes complete before Handle returns.
func (h *Handler) Handle(ctx context.Context, calls []*genai.FunctionCall) []*genai.FunctionResponse {
	responses := make([]*genai.FunctionResponse, 0, len(calls))
	for _, fc := range calls {
		if fc == nil {
			continue
		}
		h.logger.Info("function call", zap.String("name", fc.Name), zap.String("id", fc.ID))
		responses = append(responses, &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: h.Call(ctx, fc.Name, fc.Args),
		})
	}
	return responses
}

// Call runs a single named action with its arguments.
func (h *Handler) Call(ctx context.Context, name string, args map[string]any) map[string]any {
	var result frontdesk.Response

	switch name {
	case LookupCustomer:
		result = h.desk.LookupCustomer(ctx, stringArg(args, "identifier"))
	case CheckAvailability:
		result = h.desk.CheckAvailability(ctx, stringArg(args, "date"))
	case ConsultPolicy:
		result = h.desk.ConsultPolicy(ctx, stringArg(args, "topic"))
	case SubmitBookingRequest:
		result = h.desk.SubmitBookingRequest(ctx, stringArg(args, "date"), stringArg(args, "service_type"))
	default:
		h.logger.Warn("unknown function called", zap.String("name", name))
		return map[string]any{"error": fmt.Sprintf("Unknown function: %s", name)}
	}

	return result.Response()
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
