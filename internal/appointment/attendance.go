package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RecordAttendance closes a scheduled appointment as completed or no-show. Only the
// attending professional may do it, and only once the appointment has ended.
func (s *Service) RecordAttendance(ctx context.Context, appointmentID, professionalID uuid.UUID, outcome Status) (*AppointmentDetail, error) {
	ctx, span := tracer.Start(ctx, "appointment.record_attendance")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", appointmentID.String()),
		attribute.String("clinic.attendance", string(outcome)),
	)

	detail, err := s.recordAttendance(ctx, appointmentID, professionalID, outcome)
	s.observe(span, "attendance", err)
	return detail, err
}

func (s *Service) recordAttendance(ctx context.Context, appointmentID, professionalID uuid.UUID, outcome Status) (*AppointmentDetail, error) {
	if outcome != StatusCompleted && outcome != StatusNoShow {
		return nil, ErrInvalidAttendanceStatus
	}

	event := EventAppointmentCompleted
	if outcome == StatusNoShow {
		event = EventAppointmentNoShow
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if current.ProfessionalID != professionalID {
			return ErrNotAttendingProfessional
		}
		if current.Status != StatusScheduled {
			return ErrAppointmentNotModifiable
		}
		if !s.now().After(current.End) {
			return ErrAttendanceTooEarly
		}

		if _, err := transition(ctx, tx, appointmentID, outcome); err != nil {
			return err
		}
		return s.logEvent(ctx, tx, appointmentID, event, map[string]any{
			"professional_id": professionalID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendance recorded", "appointment_id", appointmentID, "status", outcome)

	detail, err := s.repo.GetAppointmentDetail(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("reload appointment: %w", err)
	}
	return detail, nil
}

// ProfessionalAgenda lists a professional's non-cancelled appointments on a day.
func (s *Service) ProfessionalAgenda(ctx context.Context, professionalID uuid.UUID, date Date) ([]AgendaEntry, error) {
	dayStart, dayEnd := date.Bounds(s.loc)
	rows, err := s.repo.ListAppointments(ctx, AppointmentFilter{
		ProfessionalID: &professionalID,
		ExcludeStatus:  []Status{StatusCancelled},
		StartFrom:      &dayStart,
		StartBefore:    &dayEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("list agenda: %w", err)
	}

	now := s.now()
	entries := make([]AgendaEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, AgendaEntry{
			AppointmentDetail:   r,
			CanRecordAttendance: r.Status == StatusScheduled && now.After(r.End),
		})
	}
	return entries, nil
}
