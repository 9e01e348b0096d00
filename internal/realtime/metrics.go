package realtime

import (
	"context"

	"github.com/yungbote/nearby-backend/internal/observability"
)

// CountEvents is the bus subscriber that feeds the event counter.
func CountEvents(_ context.Context, ev Event) {
	observability.Current().IncEvent(string(ev.Kind))
}
