package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/repository"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
)

type notificationRepository interface {
	Insert(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, studentID string) (int64, error)
	CountUnread(ctx context.Context, studentID string) (int, error)
}

type unreadCountCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type notificationMetrics interface {
	NotificationCreated(notificationType string)
}

// NotificationService is the student inbox: listing, unread counts and
// read flags. The unread count is cached in Redis and invalidated on
// every write; cache failures fall back to the database.
type NotificationService struct {
	repo     notificationRepository
	cache    unreadCountCache
	metrics  notificationMetrics
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewNotificationService constructs the inbox service. Cache and metrics
// may be nil, leaving only the database path.
func NewNotificationService(repo notificationRepository, cache unreadCountCache, metrics notificationMetrics, cacheTTL time.Duration, logger *zap.Logger) *NotificationService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// NotificationListRequest filters a student's inbox.
type NotificationListRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	Category   string `json:"category"`
	UnreadOnly bool   `json:"unread_only"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

// Create stores a notification and invalidates the owner's unread count.
func (s *NotificationService) Create(ctx context.Context, notification *models.Notification) error {
	if notification.StudentID == "" || notification.Title == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student_id and title are required")
	}
	if err := s.repo.Insert(ctx, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store notification")
	}
	if s.metrics != nil {
		s.metrics.NotificationCreated(string(notification.Type))
	}
	s.invalidateUnreadCount(ctx, notification.StudentID)
	return nil
}

// List returns a page of the student's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, req NotificationListRequest) ([]models.Notification, *models.Pagination, error) {
	if req.StudentID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	filter := models.NotificationFilter{
		StudentID:  req.StudentID,
		Category:   models.NotificationCategory(req.Category),
		UnreadOnly: req.UnreadOnly,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single notification.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	return notification, nil
}

// UnreadCount returns the student's unread count, serving from cache
// when possible.
func (s *NotificationService) UnreadCount(ctx context.Context, studentID string) (int, error) {
	if studentID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}

	key := repository.UnreadCountKey(studentID)
	if s.cache != nil {
		var cached int
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("unread count cache read failed", "student_id", studentID, "error", err)
		}
	}

	count, err := s.repo.CountUnread(ctx, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("unread count cache write failed", "student_id", studentID, "error", err)
		}
	}
	return count, nil
}

// MarkRead flips is_read on one notification.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	notification, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !notification.IsRead {
		if err := s.repo.MarkRead(ctx, id); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
		}
		notification.IsRead = true
		s.invalidateUnreadCount(ctx, notification.StudentID)
	}
	return notification, nil
}

// MarkAllRead flips is_read on all of a student's unread notifications
// and returns how many were affected.
func (s *NotificationService) MarkAllRead(ctx context.Context, studentID string) (int64, error) {
	if studentID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	affected, err := s.repo.MarkAllRead(ctx, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	if affected > 0 {
		s.invalidateUnreadCount(ctx, studentID)
	}
	return affected, nil
}

func (s *NotificationService) invalidateUnreadCount(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, repository.UnreadCountKey(studentID)); err != nil {
		s.logger.Sugar().Warnw("unread count cache invalidation failed", "student_id", studentID, "error", err)
	}
}
