package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, wrapLoad("appointment", err, ErrAppointmentNotFound)
	}
	return detail, nil
}

// UpcomingAppointments lists a patient's scheduled appointments that have not started yet.
func (s *Service) UpcomingAppointments(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	now := s.now()
	rows, err := s.repo.ListAppointments(ctx, AppointmentFilter{
		PatientID: &patientID,
		Statuses:  []Status{StatusScheduled},
		StartFrom: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return rows, nil
}

// AppointmentHistory lists a patient's past or closed appointments, newest first.
func (s *Service) AppointmentHistory(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	now := s.now()
	rows, err := s.repo.ListAppointments(ctx, AppointmentFilter{
		PatientID:        &patientID,
		PastOrTerminalAt: &now,
		Descending:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("list appointment history: %w", err)
	}
	return rows, nil
}

var ErrInvalidDateRange = errors.New("to must not be before from")

type ManagedFilter struct {
	From           *Date
	To             *Date
	ProfessionalID *uuid.UUID
	Status         *Status
	Limit          int
	Offset         int
}

// ListManagedAppointments is the advisor listing. From and To are inclusive local days.
func (s *Service) ListManagedAppointments(ctx context.Context, f ManagedFilter) ([]AppointmentDetail, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, ErrInvalidDateRange
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50 // default
	}
	if limit > 200 {
		limit = 200 // max
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	filter := AppointmentFilter{
		ProfessionalID: f.ProfessionalID,
		Limit:          limit,
		Offset:         offset,
	}
	if f.From != nil {
		from, _ := f.From.Bounds(s.loc)
		filter.StartFrom = &from
	}
	if f.To != nil {
		_, to := f.To.Bounds(s.loc)
		filter.StartBefore = &to
	}
	if f.Status != nil {
		filter.Statuses = []Status{*f.Status}
	}

	rows, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list managed appointments: %w", err)
	}
	return rows, nil
}

// Today is the current calendar day in the configured zone.
func (s *Service) Today() Date {
	return DateOf(s.now(), s.loc)
}

func (s *Service) Now() time.Time {
	return s.now()
}
