package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"runQuestAPI/internal/notification"
	"runQuestAPI/internal/scoring"
)

// NotificationStore persists in-app notifications and push device tokens.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *notification.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*notification.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	UpsertDeviceToken(ctx context.Context, token notification.DeviceToken) error
	ListDeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error)
}

// PushProvider sends a push message to a user's devices.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	store NotificationStore
	users RunStore
	push  PushProvider
}

func NewNotificationService(store NotificationStore, users RunStore) *NotificationService {
	return &NotificationService{store: store, users: users}
}

func (s *NotificationService) SetPushProvider(p PushProvider) {
	s.push = p
}

func (s *NotificationService) NotifyLevelUp(ctx context.Context, userID uuid.UUID, level int) error {
	return s.create(ctx, userID, notification.NotificationLevelUp,
		"Level up!",
		fmt.Sprintf("You reached level %d. Keep running!", level),
		map[string]any{"level": level})
}

func (s *NotificationService) NotifyStreakMilestone(ctx context.Context, userID uuid.UUID, days int) error {
	return s.create(ctx, userID, notification.NotificationStreakMilestone,
		fmt.Sprintf("%d day streak", days),
		fmt.Sprintf("You have run %d days in a row.", days),
		map[string]any{"days": days})
}

// NotifyImportComplete is sent after a sync that brought in new runs.
func (s *NotificationService) NotifyImportComplete(ctx context.Context, userID uuid.UUID, imported, xp int) error {
	if imported == 0 {
		return nil
	}
	return s.create(ctx, userID, notification.NotificationImportComplete,
		"Strava sync complete",
		fmt.Sprintf("Imported %d runs worth %d XP.", imported, xp),
		map[string]any{"imported": imported, "xp": xp})
}

func (s *NotificationService) create(ctx context.Context, userID uuid.UUID, typ notification.NotificationType, title, body string, data map[string]any) error {
	n := &notification.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.push == nil {
		return nil
	}
	tokens, err := s.store.ListDeviceTokens(ctx, userID)
	if err != nil {
		log.Printf("NotificationService: failed to load device tokens for %s: %v", userID, err)
		return nil
	}
	if err := s.push.SendPush(ctx, tokens, title, body, data); err != nil {
		log.Printf("NotificationService: push for %s failed: %v", userID, err)
	}
	return nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, clerkID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	userID, err := s.users.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	list, err := s.store.ListNotifications(ctx, userID, pageSize, (page-1)*pageSize, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	if list == nil {
		list = []*notification.Notification{}
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return &notification.NotificationListResponse{
		Notifications: list,
		UnreadCount:   unread,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, clerkID string, notificationID uuid.UUID) error {
	userID, err := s.users.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}
	ok, err := s.store.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, clerkID string) (int64, error) {
	userID, err := s.users.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return n, nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req notification.RegisterDeviceRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return fmt.Errorf("%w: device token is required", scoring.ErrInvalidInput)
	}
	switch req.Platform {
	case "ios", "android", "web":
	default:
		return fmt.Errorf("%w: platform must be ios, android or web", scoring.ErrInvalidInput)
	}

	userID, err := s.users.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}
	return s.store.UpsertDeviceToken(ctx, notification.DeviceToken{
		UserID:    userID,
		Token:     req.Token,
		Platform:  req.Platform,
		UpdatedAt: time.Now().UTC(),
	})
}
