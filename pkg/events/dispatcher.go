package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uniclinic/medsched-api/internal/models"
)

// StatusChanged describes a committed appointment lifecycle change.
// Subscribers receive it after the primary write has succeeded; nothing
// they do can affect the originating request.
type StatusChanged struct {
	Appointment    models.Appointment
	PreviousStatus models.AppointmentStatus
	PreviousRange  *models.TimeRange
	Student        models.Student
	Attempt        int
	OccurredAt     time.Time
}

// Subscriber consumes status-change events.
type Subscriber func(context.Context, StatusChanged) error

// DispatcherConfig configures worker pool behaviour.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Dispatcher fans appointment status changes out to subscribers on a
// bounded worker pool. Subscriber failures are logged and, within the
// retry budget, re-enqueued; they never propagate to the publisher.
type Dispatcher struct {
	subscriber Subscriber

	workers    int
	bufferSize int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	events  chan StatusChanged
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewDispatcher builds a dispatcher delivering to the provided subscriber.
func NewDispatcher(subscriber Subscriber, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Dispatcher{
		subscriber: subscriber,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		events:     make(chan StatusChanged, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("dispatcher started", "workers", d.workers)
}

// Stop cancels workers and waits for them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("dispatcher stopped")
}

// Publish enqueues an event without blocking the caller beyond buffer
// capacity. A stopped dispatcher returns an error the publisher may log.
func (d *Dispatcher) Publish(event StatusChanged) error {
	d.mu.Lock()
	ctx := d.ctx
	started := d.started
	d.mu.Unlock()

	if !started {
		return fmt.Errorf("dispatcher not started")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("dispatcher stopped: %w", ctx.Err())
	case d.events <- event:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case event := <-d.events:
			if err := d.subscriber(d.ctx, event); err != nil {
				d.handleFailure(event, err)
			}
		}
	}
}

func (d *Dispatcher) handleFailure(event StatusChanged, err error) {
	event.Attempt++
	if event.Attempt >= d.maxRetries {
		d.logger.Sugar().Errorw("status-change delivery dropped",
			"appointment_id", event.Appointment.ID,
			"status", event.Appointment.Status,
			"error", err)
		return
	}
	d.logger.Sugar().Warnw("status-change delivery failed, retrying",
		"appointment_id", event.Appointment.ID,
		"attempt", event.Attempt,
		"error", err)

	go func(ev StatusChanged) {
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			if err := d.Publish(ev); err != nil {
				d.logger.Sugar().Errorw("failed to requeue status change", "appointment_id", ev.Appointment.ID, "error", err)
			}
		}
	}(event)
}
