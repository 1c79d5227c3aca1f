package reactions

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ovationhq/ovation/pkg/logger"
	"github.com/ovationhq/ovation/pkg/metrics"
)

// Consumer is the boundary between the event source and the upsert engine:
// it coerces raw payloads, resolves the recipient set for the reactable and
// fans the event out to Apply once per recipient.
type Consumer struct {
	db     *gorm.DB
	sender *Sender
	log    *zap.Logger
}

// NewConsumer constructs a Consumer.
func NewConsumer(db *gorm.DB, sender *Sender) (*Consumer, error) {
	if db == nil {
		return nil, errors.New("reactions: consumer requires a database handle")
	}
	if sender == nil {
		return nil, errors.New("reactions: consumer requires a sender")
	}
	return &Consumer{db: db, sender: sender, log: logger.Named("reactions")}, nil
}

// Consume handles one reaction create/destroy occurrence delivered by the
// event source. Input may be anything Coerce accepts. Coercion failures are
// surfaced as *DataError; datastore failures propagate so the queue can
// retry, which is safe because Apply is idempotent.
func (c *Consumer) Consume(ctx context.Context, input any) error {
	event, err := Coerce(input)
	if err != nil {
		return err
	}

	event, recipients, err := c.resolve(ctx, event)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		c.log.Debug("no recipients for reaction event",
			zap.Uint("reactable_id", event.ReactableID),
			zap.String("reactable_type", string(event.ReactableType)))
		return nil
	}

	for _, recipient := range recipients {
		start := time.Now()
		result, err := c.sender.Apply(ctx, event, recipient)
		metrics.ApplyDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.DispatchFailures.Inc()
			return err
		}
		metrics.DispatchOutcomes.WithLabelValues(string(result.Action)).Inc()
	}
	return nil
}

// resolve fills in owner and subforem details missing from the event and
// returns the recipients that should receive the aggregate notification:
// the owning user, plus the owning organization for organization articles.
// A vanished reactable yields whatever recipients the event itself names,
// so destroy events still converge their rows.
func (c *Consumer) resolve(ctx context.Context, event Event) (Event, []Recipient, error) {
	reactable, err := loadReactable(ctx, c.db, event.ReactableID, event.ReactableType)
	if err != nil {
		return event, nil, err
	}

	if reactable != nil {
		if event.ReactableUserID == nil {
			event.ReactableUserID = reactable.ReactableOwnerID()
		}
		if event.ReactableSubforemID == nil {
			event.ReactableSubforemID = reactable.ReactableSubforemID()
		}
	}

	var recipients []Recipient
	if event.ReactableUserID != nil {
		recipients = append(recipients, ForUser(*event.ReactableUserID))
	}
	if reactable != nil {
		if orgID := reactable.ReactableOrganizationID(); orgID != nil {
			recipients = append(recipients, ForOrganization(*orgID))
		}
	}
	return event, recipients, nil
}
