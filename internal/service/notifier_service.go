package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/pkg/events"
	"github.com/uniclinic/medsched-api/pkg/mailer"
)

type emailMetrics interface {
	EmailSent(template, outcome string)
}

// NotifierService is the email subscriber on the status-change stream.
// It picks the template matching the new status and hands the message to
// the mailer. Returned errors feed the dispatcher's retry budget.
type NotifierService struct {
	mailer  mailer.Mailer
	metrics emailMetrics
	logger  *zap.Logger
}

// NewNotifierService constructs the email subscriber. Metrics may be nil.
func NewNotifierService(m mailer.Mailer, metrics emailMetrics, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifierService{mailer: m, metrics: metrics, logger: logger}
}

// HandleStatusChanged satisfies events.Subscriber.
func (s *NotifierService) HandleStatusChanged(ctx context.Context, event events.StatusChanged) error {
	if event.Student.Email == "" {
		s.logger.Sugar().Warnw("status change has no recipient email, skipping",
			"appointment_id", event.Appointment.ID)
		return nil
	}

	to := event.Student.Email
	name := event.Student.FullName
	newRange := event.Appointment.TimeRange

	var template string
	var err error
	switch event.Appointment.Status {
	case models.AppointmentScheduled:
		if event.PreviousStatus == models.AppointmentScheduled && event.PreviousRange != nil {
			template = "appointment_rescheduled"
			err = s.mailer.SendAppointmentRescheduled(to, name,
				event.PreviousRange.StartLabel(), newRange.StartLabel(), newRange.EndLabel())
		} else {
			template = "schedule_appointment"
			err = s.mailer.SendScheduleAppointment(to, name, newRange.StartLabel(), newRange.EndLabel())
		}
	case models.AppointmentPending:
		template = "appointment_reverted"
		err = s.mailer.SendAppointmentReverted(to, name)
	case models.AppointmentMissed:
		template = "appointment_missed"
		err = s.mailer.SendAppointmentMissed(to, name, newRange.StartLabel())
	case models.AppointmentCompleted:
		template = "result_ready"
		err = s.mailer.SendResultReady(to, name)
	default:
		return nil
	}

	if err != nil {
		if s.metrics != nil {
			s.metrics.EmailSent(template, "failure")
		}
		s.logger.Sugar().Errorw("transactional email failed",
			"template", template,
			"appointment_id", event.Appointment.ID,
			"error", err)
		return err
	}
	if s.metrics != nil {
		s.metrics.EmailSent(template, "success")
	}
	return nil
}
