package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

const (
	EventAppointmentScheduled = "APPOINTMENT_SCHEDULED"
	EventAppointmentModified  = "APPOINTMENT_MODIFIED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
)

var (
	ErrSlotNoLongerAvailable     = errors.New("this slot is no longer available, choose another")
	ErrSlotOutsideSchedule       = errors.New("start does not match a slot of the professional's schedule")
	ErrDateInPast                = errors.New("appointments cannot start in the past")
	ErrDuplicateSpecialtyBooking = errors.New("patient already has a scheduled appointment for this specialty")
	ErrSlotBeingBooked           = errors.New("calendar is currently being booked, please retry")
	ErrInvalidSpecialtyMismatch  = errors.New("new professional must share the appointment's specialty")
	ErrAppointmentNotModifiable  = errors.New("appointment is not scheduled and cannot be changed")
	ErrAttendanceTooEarly        = errors.New("attendance can only be recorded after the appointment ends")
	ErrInvalidAttendanceStatus   = errors.New("attendance must be completed or no_show")
	ErrNotAttendingProfessional  = errors.New("only the attending professional can record attendance")
	ErrInvalidTimeRange          = errors.New("end must be after start")
	ErrProfessionalInactive      = errors.New("professional is not active")
)

var tracer = otel.Tracer("clinic.internal.appointment")

// Notifier delivers best-effort patient notifications after a commit.
type Notifier interface {
	AppointmentScheduled(ctx context.Context, appt AppointmentDetail) error
	AppointmentModified(ctx context.Context, before, after AppointmentDetail) error
	AppointmentCancelled(ctx context.Context, appt AppointmentDetail) error
}

// Outcome is a committed write plus anything worth telling the user that did
// not affect the commit, such as a failed confirmation email.
type Outcome struct {
	Appointment *AppointmentDetail
	Notified    bool
	// Unchanged is set when a modification asked for the current professional and start.
	Unchanged bool
	Warnings  []string
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	engine   *Engine
	notifier Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, mainly for time-dependent rules in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		locker: locker,
		loc:    cfg.Location,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	s.engine = NewEngine(repo, s.loc, s.metrics)
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// ComputeAvailableSlots is the advisory slot listing; see Engine.
func (s *Service) ComputeAvailableSlots(ctx context.Context, professionalID uuid.UUID, date Date) (*Availability, error) {
	return s.engine.ComputeAvailableSlots(ctx, professionalID, date)
}

// ComputeRescheduleSlots lists the slots an existing appointment could move to,
// counting its own current slot as free.
func (s *Service) ComputeRescheduleSlots(ctx context.Context, appointmentID, professionalID uuid.UUID, date Date) (*Availability, error) {
	return s.engine.ComputeAvailableSlotsExcluding(ctx, professionalID, date, &appointmentID)
}

type ReserveRequest struct {
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	AdvisorID      *uuid.UUID
	// Start must be the start of one of the professional's slots that day.
	// The end comes from the slot.
	Start time.Time
}

// ReserveSlot books a slot for a patient. The slot check, the one-per-specialty
// check and the insert happen in one transaction while the professional's calendar
// is locked, so two concurrent requests for the same slot cannot both succeed.
func (s *Service) ReserveSlot(ctx context.Context, req ReserveRequest) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "appointment.reserve_slot")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.professional_id", req.ProfessionalID.String()),
		attribute.String("clinic.patient_id", req.PatientID.String()),
	)

	out, err := s.reserveSlot(ctx, req)
	s.observe(span, "reserve", err)
	return out, err
}

func (s *Service) reserveSlot(ctx context.Context, req ReserveRequest) (*Outcome, error) {
	prof, err := s.loadActiveProfessional(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}

	patient, err := s.repo.GetPatientByID(ctx, req.PatientID)
	if err != nil {
		return nil, wrapLoad("patient", err, ErrPatientNotFound)
	}

	if err := s.checkStart(req.Start); err != nil {
		return nil, err
	}

	var created *Appointment
	err = s.withCalendarLock(ctx, prof.ID, func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.LockProfessional(ctx, prof.ID); err != nil {
				return err
			}
			if err := tx.LockPatient(ctx, patient.ID); err != nil {
				return err
			}

			// Inside the critical section re-derive the free slots from stored
			// appointments, never from a previously computed slot list.
			slot, err := s.bookableSlot(ctx, tx, prof, req.Start, nil)
			if err != nil {
				return err
			}

			existing, err := tx.FindScheduledForPatientSpecialty(ctx, patient.ID, prof.Specialty.ID, nil)
			if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("check specialty bookings: %w", err)
			}
			if existing != nil {
				return fmt.Errorf("%w: %s on %s", ErrDuplicateSpecialtyBooking,
					prof.Specialty.Name, existing.Start.In(s.loc).Format("2006-01-02 15:04"))
			}

			appt, err := tx.CreateAppointment(ctx, Appointment{
				ID:             uuid.New(),
				PatientID:      patient.ID,
				ProfessionalID: prof.ID,
				AdvisorID:      req.AdvisorID,
				Start:          slot.Start,
				End:            slot.End,
				Status:         StatusScheduled,
			})
			if err != nil {
				return err
			}
			created = appt

			return s.logEvent(ctx, tx, appt.ID, EventAppointmentScheduled, map[string]any{
				"professional_id": prof.ID.String(),
				"patient_id":      patient.ID.String(),
				"start":           slot.Start,
				"end":             slot.End,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment scheduled",
		"appointment_id", created.ID,
		"professional_id", prof.ID,
		"patient_id", patient.ID,
		"start", created.Start,
	)

	detail := AppointmentDetail{Appointment: *created, Patient: patient, Professional: prof}
	outcome := &Outcome{Appointment: &detail}
	s.notify(ctx, outcome, "scheduled", func(ctx context.Context) error {
		return s.notifier.AppointmentScheduled(ctx, detail)
	})
	return outcome, nil
}

type ModifyRequest struct {
	AppointmentID uuid.UUID
	// ProfessionalID reassigns the appointment; nil keeps the current professional.
	ProfessionalID *uuid.UUID
	Start          time.Time
}

// ModifyAppointment moves a scheduled appointment to a new start and optionally to
// another professional of the same specialty. The appointment's own slot counts as
// free. Asking for the current professional and start changes nothing.
func (s *Service) ModifyAppointment(ctx context.Context, req ModifyRequest) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "appointment.modify")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", req.AppointmentID.String()))

	out, err := s.modifyAppointment(ctx, req)
	s.observe(span, "modify", err)
	return out, err
}

func (s *Service) modifyAppointment(ctx context.Context, req ModifyRequest) (*Outcome, error) {
	before, err := s.repo.GetAppointmentDetail(ctx, req.AppointmentID)
	if err != nil {
		return nil, wrapLoad("appointment", err, ErrAppointmentNotFound)
	}
	if before.Status != StatusScheduled {
		return nil, ErrAppointmentNotModifiable
	}

	target := before.Professional
	if req.ProfessionalID != nil && *req.ProfessionalID != before.ProfessionalID {
		target, err = s.loadActiveProfessional(ctx, *req.ProfessionalID)
		if err != nil {
			return nil, err
		}
		if target.Specialty.ID != before.Professional.Specialty.ID {
			return nil, ErrInvalidSpecialtyMismatch
		}
	} else if !target.Active {
		return nil, ErrProfessionalInactive
	}

	if target.ID == before.ProfessionalID && req.Start.Equal(before.Start) {
		return &Outcome{Appointment: before, Unchanged: true}, nil
	}
	if err := s.checkStart(req.Start); err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.withCalendarLock(ctx, target.ID, func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.LockProfessional(ctx, target.ID); err != nil {
				return err
			}
			current, err := tx.LockAppointment(ctx, before.ID)
			if err != nil {
				return err
			}
			if current.Status != StatusScheduled {
				return ErrAppointmentNotModifiable
			}

			slot, err := s.bookableSlot(ctx, tx, target, req.Start, &before.ID)
			if err != nil {
				return err
			}

			appt, err := tx.RescheduleAppointment(ctx, before.ID, target.ID, slot.Start, slot.End)
			if err != nil {
				return err
			}
			updated = appt

			return s.logEvent(ctx, tx, appt.ID, EventAppointmentModified, map[string]any{
				"from_professional_id": before.ProfessionalID.String(),
				"to_professional_id":   target.ID.String(),
				"from_start":           before.Start,
				"to_start":             slot.Start,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment modified",
		"appointment_id", updated.ID,
		"professional_id", target.ID,
		"start", updated.Start,
	)

	after := AppointmentDetail{Appointment: *updated, Patient: before.Patient, Professional: target}
	outcome := &Outcome{Appointment: &after}
	s.notify(ctx, outcome, "modified", func(ctx context.Context) error {
		return s.notifier.AppointmentModified(ctx, *before, after)
	})
	return outcome, nil
}

// CancelAppointment moves a scheduled appointment to cancelled. Its slot becomes
// available again immediately.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "appointment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", id.String()))

	out, err := s.cancelAppointment(ctx, id)
	s.observe(span, "cancel", err)
	return out, err
}

func (s *Service) cancelAppointment(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, wrapLoad("appointment", err, ErrAppointmentNotFound)
	}
	if detail.Status != StatusScheduled {
		return nil, ErrAppointmentNotModifiable
	}

	var updated *Appointment
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, err := transition(ctx, tx, id, StatusCancelled)
		if err != nil {
			return err
		}
		updated = appt
		return s.logEvent(ctx, tx, id, EventAppointmentCancelled, map[string]any{})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment cancelled", "appointment_id", id)

	detail.Appointment = *updated
	outcome := &Outcome{Appointment: detail}
	s.notify(ctx, outcome, "cancelled", func(ctx context.Context) error {
		return s.notifier.AppointmentCancelled(ctx, *detail)
	})
	return outcome, nil
}

// transition applies a status change from scheduled under a row lock.
func transition(ctx context.Context, tx Tx, id uuid.UUID, to Status) (*Appointment, error) {
	current, err := tx.LockAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, ErrAppointmentNotModifiable
	}
	appt, err := tx.UpdateAppointmentStatus(ctx, id, StatusScheduled, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAppointmentNotModifiable
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return appt, nil
}

func (s *Service) checkStart(start time.Time) error {
	if start.IsZero() {
		return ErrInvalidTimeRange
	}
	if start.Before(s.now()) {
		return ErrDateInPast
	}
	return nil
}

// bookableSlot finds the free slot starting at start. A start that is on the
// schedule grid but taken is a conflict; anything else is off the schedule.
func (s *Service) bookableSlot(ctx context.Context, q Queries, prof *Professional, start time.Time, excludeID *uuid.UUID) (Slot, error) {
	date := DateOf(start, s.loc)
	free, blocks, err := freeSlots(ctx, q, prof, date, s.loc, excludeID)
	if err != nil {
		return Slot{}, err
	}
	for _, slot := range free {
		if slot.Start.Equal(start) {
			return slot, nil
		}
	}
	for _, slot := range GenerateSlots(date, s.loc, blocks, prof.Specialty.Duration(), nil) {
		if slot.Start.Equal(start) {
			return Slot{}, ErrSlotNoLongerAvailable
		}
	}
	return Slot{}, ErrSlotOutsideSchedule
}

func (s *Service) loadActiveProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	prof, err := s.repo.GetProfessionalByID(ctx, id)
	if err != nil {
		return nil, wrapLoad("professional", err, ErrProfessionalNotFound)
	}
	if !prof.Active {
		return nil, ErrProfessionalInactive
	}
	return prof, nil
}

func (s *Service) withCalendarLock(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithCalendarLock(ctx, professionalID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

// notify runs after commit. Failures become warnings on the outcome and are
// never returned as errors.
func (s *Service) notify(ctx context.Context, out *Outcome, template string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	if out.Appointment.Patient == nil || out.Appointment.Patient.Email == nil || *out.Appointment.Patient.Email == "" {
		out.Warnings = append(out.Warnings, "patient has no email on file, no notification sent")
		s.metrics.ObserveNotification(template, "skipped")
		return
	}

	if err := send(ctx); err != nil {
		s.logger.Warn("appointment notification failed",
			"template", template,
			"appointment_id", out.Appointment.ID,
			"error", err,
		)
		out.Warnings = append(out.Warnings, fmt.Sprintf("appointment saved but the notification email could not be sent: %v", err))
		s.metrics.ObserveNotification(template, "failed")
		return
	}
	out.Notified = true
	s.metrics.ObserveNotification(template, "sent")
}

func (s *Service) observe(span trace.Span, operation string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveOperation(operation, Code(err))
		return
	}
	s.metrics.ObserveOperation(operation, "success")
}

func (s *Service) logEvent(ctx context.Context, q Queries, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := q.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("insert event %s: %w", eventType, err)
	}
	return nil
}

// wrapLoad passes the not-found sentinel through untouched and adds context to anything else.
func wrapLoad(what string, err, notFound error) error {
	if errors.Is(err, notFound) {
		return err
	}
	return fmt.Errorf("load %s: %w", what, err)
}
