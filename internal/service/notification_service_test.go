package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclinic/medsched-api/internal/models"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
)

type mockNotificationRepo struct {
	notifications map[string]models.Notification
	unread        int
	markedAll     []string
}

func (m *mockNotificationRepo) Insert(ctx context.Context, notification *models.Notification) error {
	if m.notifications == nil {
		m.notifications = make(map[string]models.Notification)
	}
	if notification.ID == "" {
		notification.ID = "ntf-new"
	}
	m.notifications[notification.ID] = *notification
	return nil
}

func (m *mockNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var list []models.Notification
	for _, n := range m.notifications {
		if n.StudentID != filter.StudentID {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		list = append(list, n)
	}
	return list, len(list), nil
}

func (m *mockNotificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := m.notifications[id]; ok {
		return &n, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id string) error {
	if n, ok := m.notifications[id]; ok {
		n.IsRead = true
		m.notifications[id] = n
	}
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, studentID string) (int64, error) {
	m.markedAll = append(m.markedAll, studentID)
	var affected int64
	for id, n := range m.notifications {
		if n.StudentID == studentID && !n.IsRead {
			n.IsRead = true
			m.notifications[id] = n
			affected++
		}
	}
	return affected, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, studentID string) (int, error) {
	return m.unread, nil
}

type mockCache struct {
	values  map[string]int
	deleted []string
	getErr  error
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*int)) = v
	return nil
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = make(map[string]int)
	}
	m.values[key] = value.(int)
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.values, key)
	return nil
}

type mockMetrics struct {
	created []string
}

func (m *mockMetrics) NotificationCreated(notificationType string) {
	m.created = append(m.created, notificationType)
}

func TestNotificationCreateInvalidatesCache(t *testing.T) {
	repo := &mockNotificationRepo{}
	cache := &mockCache{values: map[string]int{"notifications:unread:st1": 3}}
	metrics := &mockMetrics{}
	svc := NewNotificationService(repo, cache, metrics, time.Minute, nil)

	err := svc.Create(context.Background(), &models.Notification{
		StudentID: "st1",
		Title:     "Appointment Scheduled",
		Type:      models.NotificationSuccess,
		Category:  models.CategoryAppointment,
	})
	require.NoError(t, err)
	assert.Contains(t, cache.deleted, "notifications:unread:st1")
	assert.Equal(t, []string{"success"}, metrics.created)
}

func TestUnreadCountCacheHit(t *testing.T) {
	repo := &mockNotificationRepo{unread: 9}
	cache := &mockCache{values: map[string]int{"notifications:unread:st1": 4}}
	svc := NewNotificationService(repo, cache, nil, time.Minute, nil)

	count, err := svc.UnreadCount(context.Background(), "st1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestUnreadCountCacheMissFallsBackAndPopulates(t *testing.T) {
	repo := &mockNotificationRepo{unread: 7}
	cache := &mockCache{}
	svc := NewNotificationService(repo, cache, nil, time.Minute, nil)

	count, err := svc.UnreadCount(context.Background(), "st1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Equal(t, 7, cache.values["notifications:unread:st1"])
}

func TestUnreadCountCacheFailureDegradesToDatabase(t *testing.T) {
	repo := &mockNotificationRepo{unread: 2}
	cache := &mockCache{getErr: errors.New("redis down")}
	svc := NewNotificationService(repo, cache, nil, time.Minute, nil)

	count, err := svc.UnreadCount(context.Background(), "st1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMarkReadFlipsFlagOnce(t *testing.T) {
	repo := &mockNotificationRepo{notifications: map[string]models.Notification{
		"n1": {ID: "n1", StudentID: "st1", Title: "Missed Appointment", IsRead: false},
	}}
	cache := &mockCache{}
	svc := NewNotificationService(repo, cache, nil, time.Minute, nil)

	notification, err := svc.MarkRead(context.Background(), "n1")
	require.NoError(t, err)
	assert.True(t, notification.IsRead)
	assert.Len(t, cache.deleted, 1)

	// Already-read notifications do not touch the cache again.
	_, err = svc.MarkRead(context.Background(), "n1")
	require.NoError(t, err)
	assert.Len(t, cache.deleted, 1)
}

func TestMarkReadNotFound(t *testing.T) {
	svc := NewNotificationService(&mockNotificationRepo{}, nil, nil, time.Minute, nil)

	_, err := svc.MarkRead(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarkAllRead(t *testing.T) {
	repo := &mockNotificationRepo{notifications: map[string]models.Notification{
		"n1": {ID: "n1", StudentID: "st1"},
		"n2": {ID: "n2", StudentID: "st1"},
		"n3": {ID: "n3", StudentID: "st2"},
	}}
	cache := &mockCache{}
	svc := NewNotificationService(repo, cache, nil, time.Minute, nil)

	affected, err := svc.MarkAllRead(context.Background(), "st1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.Contains(t, cache.deleted, "notifications:unread:st1")
}
