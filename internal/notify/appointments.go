package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

// AppointmentNotifier emails patients about changes to their appointments.
type AppointmentNotifier struct {
	sender     EmailSender
	loc        *time.Location
	clinicName string
	logger     *logging.Logger
}

func NewAppointmentNotifier(sender EmailSender, loc *time.Location, clinicName string, logger *logging.Logger) *AppointmentNotifier {
	if loc == nil {
		loc = time.UTC
	}
	if clinicName == "" {
		clinicName = defaultFromName
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentNotifier{sender: sender, loc: loc, clinicName: clinicName, logger: logger}
}

func (n *AppointmentNotifier) AppointmentScheduled(ctx context.Context, appt appointment.AppointmentDetail) error {
	var b strings.Builder
	n.greeting(&b, appt)
	b.WriteString("Your medical appointment has been scheduled.\n\n")
	n.details(&b, appt)
	b.WriteString("\nPlease arrive a few minutes early.\n")
	n.signature(&b)

	return n.send(ctx, KindScheduled, appt, "Appointment confirmation - "+n.clinicName, b.String())
}

func (n *AppointmentNotifier) AppointmentModified(ctx context.Context, before, after appointment.AppointmentDetail) error {
	var b strings.Builder
	n.greeting(&b, after)
	b.WriteString("Your medical appointment has been changed.\n\n")
	fmt.Fprintf(&b, "Previously: %s with %s\n\n", n.when(before.Start), professionalName(before))
	b.WriteString("New details:\n")
	n.details(&b, after)
	n.signature(&b)

	return n.send(ctx, KindModified, after, "Appointment changed - "+n.clinicName, b.String())
}

func (n *AppointmentNotifier) AppointmentCancelled(ctx context.Context, appt appointment.AppointmentDetail) error {
	var b strings.Builder
	n.greeting(&b, appt)
	fmt.Fprintf(&b, "Your appointment with %s on %s has been CANCELLED.\n\n", professionalName(appt), n.when(appt.Start))
	b.WriteString("If you have any questions, please contact us.\n")
	n.signature(&b)

	return n.send(ctx, KindCancelled, appt, "Appointment cancelled - "+n.clinicName, b.String())
}

func (n *AppointmentNotifier) send(ctx context.Context, kind Kind, appt appointment.AppointmentDetail, subject, body string) error {
	if appt.Patient == nil || appt.Patient.Email == nil || *appt.Patient.Email == "" {
		return fmt.Errorf("notify: patient has no email")
	}
	return n.sender.Send(ctx, EmailMessage{
		Kind:          kind,
		AppointmentID: appt.ID,
		To:            *appt.Patient.Email,
		ToName:        appt.Patient.FullName(),
		Subject:       subject,
		Body:          body,
	})
}

func (n *AppointmentNotifier) greeting(b *strings.Builder, appt appointment.AppointmentDetail) {
	name := "patient"
	if appt.Patient != nil {
		name = appt.Patient.FullName()
	}
	fmt.Fprintf(b, "Dear %s,\n\n", name)
}

func (n *AppointmentNotifier) details(b *strings.Builder, appt appointment.AppointmentDetail) {
	fmt.Fprintf(b, "  Professional: %s\n", professionalName(appt))
	if appt.Professional != nil {
		fmt.Fprintf(b, "  Specialty: %s\n", appt.Professional.Specialty.Name)
	}
	start := appt.Start.In(n.loc)
	fmt.Fprintf(b, "  Date: %s\n", start.Format("02/01/2006"))
	fmt.Fprintf(b, "  Time: %s\n", start.Format("15:04"))
}

func (n *AppointmentNotifier) signature(b *strings.Builder) {
	fmt.Fprintf(b, "\nKind regards,\n%s\n", n.clinicName)
}

func (n *AppointmentNotifier) when(t time.Time) string {
	return t.In(n.loc).Format("02/01/2006 15:04")
}

func professionalName(appt appointment.AppointmentDetail) string {
	if appt.Professional == nil {
		return "your professional"
	}
	return "Dr. " + appt.Professional.FullName()
}

var _ appointment.Notifier = (*AppointmentNotifier)(nil)
