package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationActionReaction is the action value used by the reaction
// aggregation pipeline. Other pipelines (mentions, follows, ...) use their
// own action strings against the same table.
const NotificationActionReaction = "Reaction"

// Notification is an aggregate notification row. Exactly one of UserID and
// OrganizationID is set and identifies the recipient. At most one row
// exists per (recipient, notifiable, action) tuple: BeforeCreate derives
// RecipientKey from whichever recipient column is set, and the unique index
// over it rejects a second row for the same key.
type Notification struct {
	BaseModel

	UserID         *uint  `gorm:"index" json:"user_id,omitempty"`
	OrganizationID *uint  `gorm:"index" json:"organization_id,omitempty"`
	RecipientKey   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_notifications_recipient_notifiable_action" json:"-"`
	NotifiableID   uint   `gorm:"not null;uniqueIndex:idx_notifications_recipient_notifiable_action" json:"notifiable_id"`
	NotifiableType string `gorm:"type:varchar(32);not null;uniqueIndex:idx_notifications_recipient_notifiable_action" json:"notifiable_type"`
	Action         string `gorm:"type:varchar(32);not null;uniqueIndex:idx_notifications_recipient_notifiable_action" json:"action"`

	SubforemID *uint          `gorm:"index" json:"subforem_id,omitempty"`
	NotifiedAt *time.Time     `gorm:"index" json:"notified_at,omitempty"`
	JSONData   datatypes.JSON `json:"json_data"`
	Read       bool           `gorm:"default:false;index" json:"read"`
}

// BeforeCreate derives the non-null recipient discriminator. The nullable
// user/organization columns cannot back a unique index themselves because
// SQL treats NULLs as distinct, so the key column carries the recipient
// instead.
func (n *Notification) BeforeCreate(*gorm.DB) error {
	switch {
	case n.UserID != nil && n.OrganizationID != nil:
		return errors.New("notification: recipient must be a user or an organization, not both")
	case n.UserID != nil:
		n.RecipientKey = fmt.Sprintf("user:%d", *n.UserID)
	case n.OrganizationID != nil:
		n.RecipientKey = fmt.Sprintf("org:%d", *n.OrganizationID)
	default:
		return errors.New("notification: recipient is required")
	}
	return nil
}
