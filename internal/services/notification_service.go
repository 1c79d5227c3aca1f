// Package services provides the read side of the notification store: the
// queries the surrounding application uses to render and acknowledge the
// aggregate rows the reactions engine maintains.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ovationhq/ovation/internal/models"
	apperrors "github.com/ovationhq/ovation/pkg/errors"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID             uint           `json:"id"`
	UserID         *uint          `json:"user_id,omitempty"`
	OrganizationID *uint          `json:"organization_id,omitempty"`
	NotifiableID   uint           `json:"notifiable_id"`
	NotifiableType string         `json:"notifiable_type"`
	Action         string         `json:"action"`
	SubforemID     *uint          `json:"subforem_id,omitempty"`
	NotifiedAt     *time.Time     `json:"notified_at,omitempty"`
	Read           bool           `json:"read"`
	JSONData       map[string]any `json:"json_data,omitempty"`
}

// ListNotificationsInput defines filters for querying notifications.
type ListNotificationsInput struct {
	UserID         *uint
	OrganizationID *uint
	Limit          int
	Offset         int
}

// NotificationService queries and acknowledges aggregate notifications.
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db}, nil
}

// List returns notifications for the supplied recipient ordered by most
// recent delivery first.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	query, err := s.recipientScope(ctx, input.UserID, input.OrganizationID)
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []models.Notification
	if err := query.
		Where("notified_at IS NOT NULL").
		Order("notified_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items, nil
}

// UnreadCount returns how many delivered notifications the recipient has
// not yet read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID, organizationID *uint) (int64, error) {
	query, err := s.recipientScope(ctx, userID, organizationID)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := query.
		Where("notified_at IS NOT NULL AND read = ?", false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

// MarkRead flags a single notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, organizationID *uint, notificationID uint) error {
	query, err := s.recipientScope(ctx, userID, organizationID)
	if err != nil {
		return err
	}

	result := query.Where("id = ?", notificationID).Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification for the recipient as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID, organizationID *uint) error {
	query, err := s.recipientScope(ctx, userID, organizationID)
	if err != nil {
		return err
	}

	if err := query.Where("read = ?", false).Update("read", true).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}
	return nil
}

func (s *NotificationService) recipientScope(ctx context.Context, userID, organizationID *uint) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(&models.Notification{})
	switch {
	case userID != nil && organizationID != nil:
		return nil, errors.New("notification service: recipient must be a user or an organization, not both")
	case userID != nil:
		return query.Where("user_id = ?", *userID), nil
	case organizationID != nil:
		return query.Where("organization_id = ?", *organizationID), nil
	default:
		return nil, errors.New("notification service: recipient is required")
	}
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:             row.ID,
		UserID:         row.UserID,
		OrganizationID: row.OrganizationID,
		NotifiableID:   row.NotifiableID,
		NotifiableType: row.NotifiableType,
		Action:         row.Action,
		SubforemID:     row.SubforemID,
		NotifiedAt:     row.NotifiedAt,
		Read:           row.Read,
		JSONData:       decodeJSON(row.JSONData),
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
