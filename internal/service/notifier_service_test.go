package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/pkg/events"
)

type mockMailer struct {
	calls []string
	err   error
}

func (m *mockMailer) record(template string) error {
	m.calls = append(m.calls, template)
	return m.err
}

func (m *mockMailer) SendScheduleAppointment(to, name, start, end string) error {
	return m.record("schedule_appointment")
}

func (m *mockMailer) SendAppointmentRescheduled(to, name, previousStart, start, end string) error {
	return m.record("appointment_rescheduled")
}

func (m *mockMailer) SendAppointmentReverted(to, name string) error {
	return m.record("appointment_reverted")
}

func (m *mockMailer) SendAppointmentMissed(to, name, start string) error {
	return m.record("appointment_missed")
}

func (m *mockMailer) SendResultReady(to, name string) error {
	return m.record("result_ready")
}

func statusEvent(status models.AppointmentStatus, previous models.AppointmentStatus, previousRange *models.TimeRange) events.StatusChanged {
	return events.StatusChanged{
		Appointment: models.Appointment{
			ID:        "apt1",
			StudentID: "st1",
			Status:    status,
			TimeRange: &models.TimeRange{
				Start: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC),
				End:   time.Date(2025, 1, 10, 10, 15, 0, 0, time.UTC),
			},
		},
		PreviousStatus: previous,
		PreviousRange:  previousRange,
		Student:        models.Student{ID: "st1", FullName: "Ada Obi", Email: "ada@uni.edu"},
	}
}

func TestNotifierPicksTemplateByStatus(t *testing.T) {
	cases := []struct {
		name     string
		event    events.StatusChanged
		expected string
	}{
		{"fresh schedule", statusEvent(models.AppointmentScheduled, models.AppointmentPending, nil), "schedule_appointment"},
		{"reschedule", statusEvent(models.AppointmentScheduled, models.AppointmentScheduled, &models.TimeRange{Start: time.Now()}), "appointment_rescheduled"},
		{"reverted", statusEvent(models.AppointmentPending, models.AppointmentScheduled, nil), "appointment_reverted"},
		{"missed", statusEvent(models.AppointmentMissed, models.AppointmentScheduled, nil), "appointment_missed"},
		{"completed", statusEvent(models.AppointmentCompleted, models.AppointmentScheduled, nil), "result_ready"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &mockMailer{}
			svc := NewNotifierService(m, nil, nil)
			require.NoError(t, svc.HandleStatusChanged(context.Background(), tc.event))
			assert.Equal(t, []string{tc.expected}, m.calls)
		})
	}
}

func TestNotifierSkipsWithoutRecipient(t *testing.T) {
	m := &mockMailer{}
	svc := NewNotifierService(m, nil, nil)
	event := statusEvent(models.AppointmentScheduled, models.AppointmentPending, nil)
	event.Student.Email = ""

	require.NoError(t, svc.HandleStatusChanged(context.Background(), event))
	assert.Empty(t, m.calls)
}

func TestNotifierPropagatesSendFailure(t *testing.T) {
	m := &mockMailer{err: errors.New("smtp unreachable")}
	metrics := &mockEmailMetrics{}
	svc := NewNotifierService(m, metrics, nil)

	err := svc.HandleStatusChanged(context.Background(), statusEvent(models.AppointmentMissed, models.AppointmentScheduled, nil))
	require.Error(t, err)
	assert.Equal(t, []string{"appointment_missed:failure"}, metrics.sent)
}

type mockEmailMetrics struct {
	sent []string
}

func (m *mockEmailMetrics) EmailSent(template, outcome string) {
	m.sent = append(m.sent, template+":"+outcome)
}
