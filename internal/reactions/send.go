package reactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ovationhq/ovation/internal/models"
	"github.com/ovationhq/ovation/pkg/logger"
)

// ActionTaken reports what Apply did to the notification row.
type ActionTaken string

const (
	ActionSaved   ActionTaken = "saved"
	ActionDeleted ActionTaken = "deleted"
	ActionSkipped ActionTaken = "skipped"
)

// Result is the outcome returned to the caller: which action was taken and
// the affected notification's identity. NotificationID is zero when no row
// was touched.
type Result struct {
	Action         ActionTaken
	NotificationID uint
}

// Recipient identifies the notification target. Exactly one of UserID and
// OrganizationID is set.
type Recipient struct {
	UserID         *uint
	OrganizationID *uint
}

// ForUser builds a user recipient.
func ForUser(id uint) Recipient {
	return Recipient{UserID: &id}
}

// ForOrganization builds an organization recipient.
func ForOrganization(id uint) Recipient {
	return Recipient{OrganizationID: &id}
}

// Validate enforces the user-xor-organization invariant.
func (r Recipient) Validate() error {
	switch {
	case r.UserID == nil && r.OrganizationID == nil:
		return &DataError{Field: "recipient"}
	case r.UserID != nil && r.OrganizationID != nil:
		return &DataError{Field: "recipient", Value: "both user and organization set"}
	}
	return nil
}

// Sender is the upsert engine: it decides, per (recipient, notifiable,
// action) key, whether to create, update or delete the aggregate
// notification row, and builds its serialized payload.
type Sender struct {
	db  *gorm.DB
	agg *Aggregator
	log *zap.Logger
	now func() time.Time
}

// SenderOption customises a Sender.
type SenderOption func(*Sender)

// WithNow overrides the clock, primarily for tests.
func WithNow(now func() time.Time) SenderOption {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSender constructs a Sender.
func NewSender(db *gorm.DB, agg *Aggregator, opts ...SenderOption) (*Sender, error) {
	if db == nil {
		return nil, errors.New("reactions: sender requires a database handle")
	}
	if agg == nil {
		return nil, errors.New("reactions: sender requires an aggregator")
	}

	sender := &Sender{
		db:  db,
		agg: agg,
		log: logger.Named("reactions"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(sender)
	}
	return sender, nil
}

// Apply recomputes the sibling set for the event's reactable and converges
// the recipient's notification row to match it: created on the first
// foreign reaction, refreshed on every sibling-set change, deleted when the
// set empties. The sibling read and the row write share one transaction,
// and the existing row is locked, so concurrent applies for the same key
// serialize and the final state reflects whichever commit lands last.
// Retries after transient datastore failures are safe.
func (s *Sender) Apply(ctx context.Context, event Event, recipient Recipient) (Result, error) {
	if err := recipient.Validate(); err != nil {
		return Result{}, err
	}
	if err := event.Validate(); err != nil {
		return Result{}, err
	}

	var result Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock comes before the sibling read so concurrent applies
		// for the same key serialize around a consistent set; a stale read
		// can then never overwrite a newer one on the update path.
		existing, err := s.lockExisting(ctx, tx, event, recipient)
		if err != nil {
			return err
		}

		siblings, err := s.agg.siblingsWith(ctx, tx, event.ReactableID, event.ReactableType, event.ReactableUserID)
		if err != nil {
			return err
		}

		if len(siblings) == 0 {
			result, err = s.applyEmpty(ctx, tx, event, existing)
			return err
		}

		result, err = s.applySiblings(ctx, tx, event, recipient, siblings, existing)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// applyEmpty handles the empty-sibling-set transitions: delete the row when
// one exists, otherwise report the conventional outcome for the event kind.
// A create event observing an empty set is a logical impossibility (its own
// reaction would be a sibling) and is treated as a no-op.
func (s *Sender) applyEmpty(ctx context.Context, tx *gorm.DB, event Event, existing *models.Notification) (Result, error) {
	if existing != nil {
		if err := tx.WithContext(ctx).Delete(existing).Error; err != nil {
			return Result{}, fmt.Errorf("reactions: delete notification: %w", err)
		}
		s.log.Debug("deleted aggregate notification",
			zap.Uint("notification_id", existing.ID),
			zap.Uint("reactable_id", event.ReactableID),
			zap.String("reactable_type", string(event.ReactableType)))
		return Result{Action: ActionDeleted, NotificationID: existing.ID}, nil
	}

	if event.Status == StatusDestroyed {
		return Result{Action: ActionDeleted}, nil
	}
	return Result{Action: ActionSkipped}, nil
}

func (s *Sender) applySiblings(ctx context.Context, tx *gorm.DB, event Event, recipient Recipient, siblings []Sibling, existing *models.Notification) (Result, error) {
	now := s.now().UTC()
	payload, err := buildPayload(event, siblings, now)
	if err != nil {
		return Result{}, err
	}

	if existing != nil {
		if err := s.refresh(ctx, tx, existing, event, payload, now); err != nil {
			return Result{}, err
		}
		return Result{Action: ActionSaved, NotificationID: existing.ID}, nil
	}

	row := models.Notification{
		UserID:         recipient.UserID,
		OrganizationID: recipient.OrganizationID,
		NotifiableID:   event.ReactableID,
		NotifiableType: string(event.ReactableType),
		Action:         models.NotificationActionReaction,
		SubforemID:     event.ReactableSubforemID,
		NotifiedAt:     &now,
		JSONData:       payload,
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return Result{}, fmt.Errorf("reactions: create notification: %w", err)
		}

		// Lost a create/create race for the same key; the unique index
		// kept the invariant, so take over the winner's row. The sibling
		// set is recomputed under the winner's lock because the rival may
		// have observed reactions this apply's earlier read missed.
		winner, lerr := s.lockExisting(ctx, tx, event, recipient)
		if lerr != nil {
			return Result{}, lerr
		}
		if winner == nil {
			return Result{}, fmt.Errorf("reactions: create notification: %w", err)
		}

		current, serr := s.agg.siblingsWith(ctx, tx, event.ReactableID, event.ReactableType, event.ReactableUserID)
		if serr != nil {
			return Result{}, serr
		}
		if len(current) == 0 {
			return s.applyEmpty(ctx, tx, event, winner)
		}

		merged, perr := buildPayload(event, current, now)
		if perr != nil {
			return Result{}, perr
		}
		if err := s.refresh(ctx, tx, winner, event, merged, now); err != nil {
			return Result{}, err
		}
		return Result{Action: ActionSaved, NotificationID: winner.ID}, nil
	}

	s.log.Debug("created aggregate notification",
		zap.Uint("notification_id", row.ID),
		zap.Uint("reactable_id", event.ReactableID),
		zap.String("reactable_type", string(event.ReactableType)),
		zap.Int("siblings", len(siblings)))
	return Result{Action: ActionSaved, NotificationID: row.ID}, nil
}

// refresh overwrites the stored payload wholesale and bumps notified_at.
// Existing json_data is never inspected or patched, so malformed legacy
// rows are repaired rather than propagated. The stored subforem scope is
// only replaced when the event carries one; minimal destroy payloads for a
// vanished reactable have nothing to backfill it from.
func (s *Sender) refresh(ctx context.Context, tx *gorm.DB, row *models.Notification, event Event, payload datatypes.JSON, now time.Time) error {
	updates := map[string]any{
		"json_data":   payload,
		"notified_at": now,
	}
	if event.ReactableSubforemID != nil {
		updates["subforem_id"] = event.ReactableSubforemID
	}
	if err := tx.WithContext(ctx).Model(row).Updates(updates).Error; err != nil {
		return fmt.Errorf("reactions: update notification: %w", err)
	}
	return nil
}

// lockExisting fetches the notification row for the key with a row-level
// lock so concurrent applies for the same key serialize. Returns nil when
// no row exists.
func (s *Sender) lockExisting(ctx context.Context, tx *gorm.DB, event Event, recipient Recipient) (*models.Notification, error) {
	query := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("notifiable_id = ? AND notifiable_type = ? AND action = ?",
			event.ReactableID, string(event.ReactableType), models.NotificationActionReaction)
	if recipient.UserID != nil {
		query = query.Where("user_id = ?", *recipient.UserID)
	} else {
		query = query.Where("organization_id = ?", *recipient.OrganizationID)
	}

	var row models.Notification
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reactions: lookup notification: %w", err)
	}
	return &row, nil
}

type payloadUser struct {
	ID              uint   `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

type payloadReaction struct {
	ReactableID        uint      `json:"reactable_id"`
	ReactableType      string    `json:"reactable_type"`
	AggregatedSiblings []Sibling `json:"aggregated_siblings"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type notificationPayload struct {
	User     payloadUser     `json:"user"`
	Reaction payloadReaction `json:"reaction"`
}

// buildPayload regenerates json_data from scratch: the most recent sibling
// becomes the triggering user and the full ordered set is embedded under
// aggregated_siblings. The payload is display data only, never a source of
// truth for aggregation decisions.
func buildPayload(event Event, siblings []Sibling, now time.Time) (datatypes.JSON, error) {
	trigger := siblings[0]
	payload := notificationPayload{
		User: payloadUser{
			ID:              trigger.UserID,
			Username:        trigger.Username,
			Name:            trigger.Name,
			ProfileImageURL: trigger.ProfileImageURL,
		},
		Reaction: payloadReaction{
			ReactableID:        event.ReactableID,
			ReactableType:      string(event.ReactableType),
			AggregatedSiblings: siblings,
			UpdatedAt:          now,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("reactions: marshal payload: %w", err)
	}
	return datatypes.JSON(data), nil
}
