package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound       = errors.New("patient not found")
	ErrProfessionalNotFound  = errors.New("professional not found")
	ErrAppointmentNotFound   = errors.New("appointment not found")
	ErrScheduleBlockNotFound = errors.New("schedule block not found")
	ErrDuplicateDocument     = errors.New("a patient with this document number already exists")
	ErrDuplicateUsername     = errors.New("username already taken")
)

// AppointmentFilter narrows appointment listings. Zero fields do not filter.
type AppointmentFilter struct {
	PatientID      *uuid.UUID
	ProfessionalID *uuid.UUID
	Statuses       []Status
	ExcludeStatus  []Status
	StartFrom      *time.Time // start_at >= StartFrom
	StartBefore    *time.Time // start_at < StartBefore
	// PastOrTerminalAt selects appointments that started before the instant or
	// already reached a terminal status.
	PastOrTerminalAt *time.Time
	Descending       bool
	Limit            int
	Offset           int
}

type NewPatient struct {
	Username       string
	PasswordHash   string
	FirstName      string
	LastName       string
	Email          *string
	DocumentType   string
	DocumentNumber string
	BirthDate      Date
	Phone          string
}

// PatientProfile is every field of a patient an advisor can edit.
type PatientProfile struct {
	FirstName      string
	LastName       string
	Email          *string
	DocumentType   string
	DocumentNumber string
	BirthDate      Date
	Phone          string
}

// PatientFilter narrows ListPatients. Results are ordered by last name, then first name.
type PatientFilter struct {
	DocumentNumber string
	Limit          int
	Offset         int
}

// Queries contains all DB interactions needed by the service. It is available
// both on the pool and bound to a transaction.
type Queries interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// Schedule template
	ListScheduleBlocks(ctx context.Context, professionalID uuid.UUID, weekday *Weekday) ([]ScheduleBlock, error)
	CreateScheduleBlock(ctx context.Context, b ScheduleBlock) (*ScheduleBlock, error)
	DeleteScheduleBlock(ctx context.Context, id uuid.UUID) error

	// For conflict checks
	ListScheduledOverlapping(ctx context.Context, professionalID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]Appointment, error)
	FindScheduledForPatientSpecialty(ctx context.Context, patientID, specialtyID uuid.UUID, excludeID *uuid.UUID) (*AppointmentDetail, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id, professionalID uuid.UUID, start, end time.Time) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error)

	// Patients
	CreatePatient(ctx context.Context, p NewPatient) (*Patient, error)
	UpdatePatientContact(ctx context.Context, patientID uuid.UUID, email *string, phone string) error
	UpdatePatient(ctx context.Context, patientID uuid.UUID, p PatientProfile) error
	ListPatients(ctx context.Context, f PatientFilter) ([]Patient, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Tx is Queries bound to one transaction plus row locks that serialize writers.
type Tx interface {
	Queries
	LockProfessional(ctx context.Context, id uuid.UUID) error
	LockPatient(ctx context.Context, id uuid.UUID) error
	LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
}

type Repository interface {
	Queries
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
