package events

import (
	"context"

	"go.uber.org/zap"
)

// Relay drains a Bus into its sinks on its own goroutine, so slow sinks
// never hold up the dialogue loop.
type Relay struct {
	bus    *Bus
	sinks  []Sink
	logger *zap.Logger
}

// NewRelay returns a relay for bus.
func NewRelay(bus *Bus, logger *zap.Logger, sinks ...Sink) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{bus: bus, sinks: sinks, logger: logger}
}

// Run delivers events until the bus is closed or ctx is done. Sink errors
// are logged and the event is not retried.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-r.bus.Events():
			if !ok {
				return
			}
			for _, s := range r.sinks {
				if err := s.Send(ctx, e); err != nil {
					r.logger.Debug("event relay failed", zap.String("type", e.Type), zap.Error(err))
				}
			}
		}
	}
}
