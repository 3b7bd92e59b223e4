package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclinic/medsched-api/internal/models"
)

func TestDispatcherDeliversEvents(t *testing.T) {
	var mu sync.Mutex
	var received []StatusChanged
	done := make(chan struct{})

	d := NewDispatcher(func(ctx context.Context, event StatusChanged) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		close(done)
		return nil
	}, DispatcherConfig{Workers: 2})

	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Publish(StatusChanged{
		Appointment: models.Appointment{ID: "apt1", Status: models.AppointmentScheduled},
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "apt1", received[0].Appointment.ID)
	assert.False(t, received[0].OccurredAt.IsZero())
}

func TestDispatcherRejectsWhenNotStarted(t *testing.T) {
	d := NewDispatcher(func(ctx context.Context, event StatusChanged) error {
		return nil
	}, DispatcherConfig{})

	err := d.Publish(StatusChanged{})
	require.Error(t, err)
}

func TestDispatcherRetriesWithinBudget(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	d := NewDispatcher(func(ctx context.Context, event StatusChanged) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}, DispatcherConfig{MaxRetries: 3, RetryDelay: 10 * time.Millisecond})

	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Publish(StatusChanged{
		Appointment: models.Appointment{ID: "apt1"},
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not redelivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestDispatcherDropsAfterRetryBudget(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	d := NewDispatcher(func(ctx context.Context, event StatusChanged) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("permanent failure")
	}, DispatcherConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond})

	d.Start(context.Background())

	require.NoError(t, d.Publish(StatusChanged{
		Appointment: models.Appointment{ID: "apt1"},
	}))

	time.Sleep(100 * time.Millisecond)
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}
