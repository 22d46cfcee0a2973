package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

type Specialty struct {
	ID                  uuid.UUID
	Name                string
	ConsultationMinutes int
	Active              bool
}

// Duration is the fixed length of every slot for professionals of this specialty.
func (s Specialty) Duration() time.Duration {
	return time.Duration(s.ConsultationMinutes) * time.Minute
}

type Professional struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	FirstName          string
	LastName           string
	Email              *string
	Active             bool
	RegistrationNumber string
	Phone              *string
	Specialty          Specialty
}

func (p Professional) FullName() string {
	return fullName(p.FirstName, p.LastName)
}

type Patient struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	FirstName      string
	LastName       string
	Email          *string
	DocumentType   string
	DocumentNumber string
	BirthDate      Date
	Phone          string
	CreatedAt      time.Time
}

func (p Patient) FullName() string {
	return fullName(p.FirstName, p.LastName)
}

// Age in whole years on the given day.
func (p Patient) Age(on Date) int {
	age := on.Year - p.BirthDate.Year
	if on.Month < p.BirthDate.Month || (on.Month == p.BirthDate.Month && on.Day < p.BirthDate.Day) {
		age--
	}
	return age
}

// ScheduleBlock is one recurring weekly availability window of a professional.
type ScheduleBlock struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Weekday        Weekday
	Start          TimeOfDay
	End            TimeOfDay
	CreatedAt      time.Time
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	AdvisorID      *uuid.UUID
	Start          time.Time
	End            time.Time
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a Appointment) Interval() Slot {
	return Slot{Start: a.Start, End: a.End}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient      *Patient
	Professional *Professional
}

// AgendaEntry is one row of a professional's daily agenda.
type AgendaEntry struct {
	AppointmentDetail
	CanRecordAttendance bool
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
