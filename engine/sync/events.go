package sync

import (
	"context"
	"time"

	"github.com/motorlot/motorlot/engine/domain"
	"github.com/motorlot/motorlot/pkg/eventbus"
)

// NATS subjects for lifecycle events.
const (
	SubjectEntityCreated  = "motorlot.entity.created"
	SubjectEntityDeleted  = "motorlot.entity.deleted"
	SubjectCarTransferred = "motorlot.car.transferred"
)

// EntityEvent announces an entity creation or deletion.
type EntityEvent struct {
	ID   domain.Identity `json:"id"`
	Kind domain.Kind     `json:"kind"`
	At   time.Time       `json:"at"`
}

// TransferEvent announces a completed purchase transfer.
type TransferEvent struct {
	Car  domain.Identity `json:"car"`
	From domain.Identity `json:"from"`
	To   domain.Identity `json:"to"`
	At   time.Time       `json:"at"`
}

// publish sends an event best-effort. Events are observability, not
// protocol: failures are logged and never propagated to the caller.
func (s *Service) publish(ctx context.Context, subject string, v any) {
	if err := eventbus.Publish(ctx, s.bus, subject, v); err != nil {
		s.log.Warn("event publish failed", "subject", subject, "error", err)
	}
}
