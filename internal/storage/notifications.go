package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/google/uuid"
)

// CreateNotification appends a notification, assigning an id and timestamp when missing.
func (r *queries) CreateNotification(ctx context.Context, notification *model.Notification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if notification == nil {
		return fmt.Errorf("%w: %w: notification", common.ErrValidation, ErrNilParameter)
	}
	if err := validateID(notification.UserID, "userID"); err != nil {
		return err
	}

	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	var bucketID sql.NullInt64
	if notification.BucketID > 0 {
		bucketID = sql.NullInt64{Int64: notification.BucketID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, user_category_id, band, title, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		notification.ID, notification.UserID, bucketID, string(notification.Band),
		notification.Title, notification.Message, notification.Read, notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to create notification: %w", common.ErrPersistence, err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (r *queries) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]model.Notification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, user_category_id, band, title, message, read, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list notifications: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []model.Notification
	for rows.Next() {
		var (
			n        model.Notification
			band     string
			bucketID sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &bucketID, &band, &n.Title, &n.Message,
			&n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Band = model.Band(band)
		n.BucketID = bucketID.Int64
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags one of the user's notifications as read.
func (r *queries) MarkNotificationRead(ctx context.Context, userID int64, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("%w: failed to mark notification read: %w", common.ErrPersistence, err)
	}
	return expectOneRow(result, "notification", id)
}
