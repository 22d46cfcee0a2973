package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

const defaultFromName = "IPS Medical Integral"

// Kind names the appointment event a message reports. Providers receive it as
// a category or tag so bounces can be traced back to the event.
type Kind string

const (
	KindScheduled Kind = "appointment_scheduled"
	KindModified  Kind = "appointment_modified"
	KindCancelled Kind = "appointment_cancelled"
)

// EmailMessage is one plain-text notice to one patient.
type EmailMessage struct {
	Kind          Kind
	AppointmentID uuid.UUID
	To            string
	ToName        string
	Subject       string
	Body          string
}

// EmailSender delivers a message through a provider.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
	logger *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

// buildSendGridMail tags the message with its kind and appointment so the
// SendGrid activity feed can be searched by either.
func buildSendGridMail(from *mail.Email, msg EmailMessage) *mail.SGMailV3 {
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	if msg.AppointmentID != uuid.Nil {
		p.SetCustomArg("appointment_id", msg.AppointmentID.String())
	}

	m := mail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = msg.Subject
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", msg.Body))
	if msg.Kind != "" {
		m.AddCategories(string(msg.Kind))
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	resp, err := s.client.SendWithContext(ctx, buildSendGridMail(s.from, msg))
	if err != nil {
		return fmt.Errorf("notify: sendgrid %s: %w", msg.Kind, err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn("sendgrid rejected appointment email",
			"kind", msg.Kind,
			"appointment_id", msg.AppointmentID,
			"status", resp.StatusCode,
			"body", resp.Body,
		)
		return fmt.Errorf("notify: sendgrid %s: status %d", msg.Kind, resp.StatusCode)
	}

	s.logger.Info("appointment email sent",
		"provider", "sendgrid",
		"kind", msg.Kind,
		"appointment_id", msg.AppointmentID,
		"to", maskAddress(msg.To),
	)
	return nil
}

// StubEmailSender only logs. It is the default outside production.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("appointment email skipped",
		"provider", "stub",
		"kind", msg.Kind,
		"appointment_id", msg.AppointmentID,
		"to", maskAddress(msg.To),
	)
	return nil
}

// maskAddress keeps the first letter and the domain of a patient's address
// so logs carry no full email.
func maskAddress(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
