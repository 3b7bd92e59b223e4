package mailer

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/uniclinic/medsched-api/pkg/config"
)

// Mailer sends the clinic's transactional emails, one method per
// template. Implementations report delivery failure through the error
// return; callers treat every send as best-effort.
type Mailer interface {
	SendScheduleAppointment(to, name, start, end string) error
	SendAppointmentRescheduled(to, name, previousStart, start, end string) error
	SendAppointmentReverted(to, name string) error
	SendAppointmentMissed(to, name, start string) error
	SendResultReady(to, name string) error
}

// SMTPMailer delivers over SMTP using gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// New returns an SMTP mailer, or a no-op mailer when SMTP is disabled.
func New(cfg config.SMTPConfig, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Sugar().Infow("smtp disabled, outbound mail is discarded")
		return &NoopMailer{logger: logger}
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %q to %s: %w", subject, to, err)
	}
	return nil
}

// SendScheduleAppointment confirms a newly scheduled appointment.
func (m *SMTPMailer) SendScheduleAppointment(to, name, start, end string) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Your medical appointment has been scheduled for <strong>%s</strong> until <strong>%s</strong>.</p>
<p>Please arrive at the university clinic a few minutes early with your student ID.</p>`, name, start, end)
	return m.send(to, "Your Medical Appointment Has Been Scheduled", body)
}

// SendAppointmentRescheduled notifies the student of a moved slot.
func (m *SMTPMailer) SendAppointmentRescheduled(to, name, previousStart, start, end string) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Your medical appointment originally set for <strong>%s</strong> has been moved to <strong>%s</strong> until <strong>%s</strong>.</p>
<p>If the new time does not work for you, please contact the clinic.</p>`, name, previousStart, start, end)
	return m.send(to, "Your Medical Appointment Has Been Rescheduled", body)
}

// SendAppointmentReverted notifies that an appointment went back to pending.
func (m *SMTPMailer) SendAppointmentReverted(to, name string) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Your medical appointment has been reverted to pending. You will receive a new time once the clinic reschedules you.</p>`, name)
	return m.send(to, "Your Medical Appointment Is Pending Again", body)
}

// SendAppointmentMissed notifies about a missed slot.
func (m *SMTPMailer) SendAppointmentMissed(to, name, start string) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Our records show you missed your medical appointment scheduled for <strong>%s</strong>.</p>
<p>Please contact the university clinic to book a new slot.</p>`, name, start)
	return m.send(to, "Missed Medical Appointment", body)
}

// SendResultReady announces that the medical result is available.
func (m *SMTPMailer) SendResultReady(to, name string) error {
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Your medical screening is complete and your results are now available on the student portal.</p>`, name)
	return m.send(to, "Your Medical Results Are Ready", body)
}

// NoopMailer drops every message. Used when SMTP is disabled.
type NoopMailer struct {
	logger *zap.Logger
}

func (m *NoopMailer) discard(template, to string) error {
	m.logger.Sugar().Debugw("mail discarded", "template", template, "to", to)
	return nil
}

func (m *NoopMailer) SendScheduleAppointment(to, name, start, end string) error {
	return m.discard("schedule_appointment", to)
}

func (m *NoopMailer) SendAppointmentRescheduled(to, name, previousStart, start, end string) error {
	return m.discard("appointment_rescheduled", to)
}

func (m *NoopMailer) SendAppointmentReverted(to, name string) error {
	return m.discard("appointment_reverted", to)
}

func (m *NoopMailer) SendAppointmentMissed(to, name, start string) error {
	return m.discard("appointment_missed", to)
}

func (m *NoopMailer) SendResultReady(to, name string) error {
	return m.discard("result_ready", to)
}
