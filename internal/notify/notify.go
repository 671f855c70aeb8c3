// Package notify persists in-app notifications. Delivery is decoupled from
// the state changes that trigger it: callers treat every send as best effort.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d9705996/checkin/internal/model"
	"github.com/d9705996/checkin/internal/onboarding"
	"gorm.io/gorm"
)

// ErrNotFound means no notification matched the given id for the user.
var ErrNotFound = errors.New("notification not found")

// Dispatcher writes notifications to the notifications table. It satisfies
// onboarding.Notifier.
type Dispatcher struct {
	db *gorm.DB
}

// NewDispatcher creates a Dispatcher backed by the given GORM DB.
func NewDispatcher(db *gorm.DB) *Dispatcher {
	return &Dispatcher{db: db}
}

// NotifyUser stores one notification row for the user.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID string, n onboarding.Notification) error {
	priority := n.Priority
	if priority == "" {
		priority = "normal"
	}
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	row := &model.Notification{
		UserID:   userID,
		Type:     n.Type,
		Title:    n.Title,
		Content:  n.Content,
		Priority: priority,
		Data:     data,
	}
	if err := d.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// Announce fans one notification out to every user of the organization.
// orgID == "" broadcasts to all users.
func (d *Dispatcher) Announce(ctx context.Context, orgID string, n onboarding.Notification) (int, error) {
	q := d.db.WithContext(ctx).Model(&model.User{}).Where("deactivated_at IS NULL")
	if orgID != "" {
		q = q.Where("organization_id = ?", orgID)
	}
	var users []model.User
	if err := q.Find(&users).Error; err != nil {
		return 0, fmt.Errorf("announcement audience: %w", err)
	}
	for _, u := range users {
		if err := d.NotifyUser(ctx, u.ID, n); err != nil {
			return 0, err
		}
	}
	return len(users), nil
}

// ListForUser returns the user's notifications, newest first.
func (d *Dispatcher) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	q := d.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var out []model.Notification
	if err := q.Order("created_at DESC").Limit(200).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead stamps a notification as read. Only the owning user's rows match.
func (d *Dispatcher) MarkRead(ctx context.Context, userID, notificationID string) error {
	res := d.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := d.db.WithContext(ctx).Model(&model.Notification{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}
