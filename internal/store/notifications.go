package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"runQuestAPI/internal/notification"
)

func (s *Store) InsertNotification(ctx context.Context, n *notification.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	query := `
	INSERT INTO notifications (id, user_id, type, title, body, data, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.pool.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Body, data, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*notification.Notification, error) {
	query := `
	SELECT id, user_id, type, title, body, data, read_at, created_at
	FROM notifications
	WHERE user_id = $1 AND (NOT $4 OR read_at IS NULL)
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*notification.Notification, error) {
		n := &notification.Notification{}
		var data []byte
		if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &data, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, err
			}
		}
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan notifications: %w", err)
	}
	return list, nil
}

func (s *Store) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return count, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) UpsertDeviceToken(ctx context.Context, t notification.DeviceToken) error {
	query := `
	INSERT INTO device_tokens (token, user_id, platform, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (token) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		platform = EXCLUDED.platform,
		updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, t.Token, t.UserID, t.Platform, t.UpdatedAt); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *Store) ListDeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, token, platform, updated_at FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowToStructByPos[notification.DeviceToken])
	if err != nil {
		return nil, fmt.Errorf("failed to scan device tokens: %w", err)
	}
	return tokens, nil
}
