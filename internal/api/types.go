package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UserID    uuid.UUID  `json:"user_id"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	Role      string     `json:"role"`
	ProfileID *uuid.UUID `json:"profile_id,omitempty"`
}

type ReserveRequest struct {
	ProfessionalID string `json:"professional_id"`
	PatientID      string `json:"patient_id"`
	Start          string `json:"start"`
}

type ModifyRequest struct {
	ProfessionalID *string `json:"professional_id,omitempty"`
	Start          string  `json:"start"`
}

type AttendanceRequest struct {
	Status string `json:"status"`
}

type RegisterPatientRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	BirthDate      string `json:"birth_date"`
	Phone          string `json:"phone"`
}

type UpdatePatientRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	BirthDate      string `json:"birth_date"`
	Phone          string `json:"phone"`
}

type ChangePasswordRequest struct {
	OldPassword  string `json:"old_password"`
	NewPassword  string `json:"new_password"`
	Confirmation string `json:"new_password_confirmation"`
}

type ContactRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ScheduleBlockRequest struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

type AvailabilityResponse struct {
	ProfessionalID  uuid.UUID      `json:"professional_id"`
	Professional    string         `json:"professional"`
	Specialty       string         `json:"specialty"`
	DurationMinutes int            `json:"duration_minutes"`
	Date            string         `json:"date"`
	NoSchedule      bool           `json:"no_schedule"`
	Slots           []SlotResponse `json:"slots"`
}

type PersonResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    *string   `json:"email,omitempty"`
}

type AppointmentResponse struct {
	ID                  uuid.UUID       `json:"id"`
	Status              string          `json:"status"`
	Start               time.Time       `json:"start"`
	End                 time.Time       `json:"end"`
	AdvisorID           *uuid.UUID      `json:"advisor_id,omitempty"`
	Specialty           string          `json:"specialty,omitempty"`
	Patient             *PersonResponse `json:"patient,omitempty"`
	Professional        *PersonResponse `json:"professional,omitempty"`
	CanRecordAttendance *bool           `json:"can_record_attendance,omitempty"`
}

type OutcomeResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Notified    bool                `json:"notified"`
	Unchanged   bool                `json:"unchanged,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type PatientResponse struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	Email          *string   `json:"email,omitempty"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	BirthDate      string    `json:"birth_date"`
	Phone          string    `json:"phone"`
}

type ScheduleBlockResponse struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Weekday        int       `json:"weekday"`
	WeekdayName    string    `json:"weekday_name"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAvailabilityResponse(a *appointment.Availability, loc *time.Location) AvailabilityResponse {
	resp := AvailabilityResponse{
		Date:       a.Date.String(),
		NoSchedule: a.NoSchedule,
		Slots:      make([]SlotResponse, 0, len(a.Slots)),
	}
	if p := a.Professional; p != nil {
		resp.ProfessionalID = p.ID
		resp.Professional = p.FullName()
		resp.Specialty = p.Specialty.Name
		resp.DurationMinutes = p.Specialty.ConsultationMinutes
	}
	for _, s := range a.Slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			Start: s.Start,
			End:   s.End,
			Label: appointment.TimeOfDayOf(s.Start, loc).String() + " - " + appointment.TimeOfDayOf(s.End, loc).String(),
		})
	}
	return resp
}

func toAppointmentResponse(d appointment.AppointmentDetail) AppointmentResponse {
	resp := AppointmentResponse{
		ID:        d.ID,
		Status:    string(d.Status),
		Start:     d.Start,
		End:       d.End,
		AdvisorID: d.AdvisorID,
	}
	if p := d.Patient; p != nil {
		resp.Patient = &PersonResponse{ID: p.ID, FullName: p.FullName(), Email: p.Email}
	}
	if p := d.Professional; p != nil {
		resp.Professional = &PersonResponse{ID: p.ID, FullName: p.FullName(), Email: p.Email}
		resp.Specialty = p.Specialty.Name
	}
	return resp
}

func toAppointmentList(details []appointment.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(details))
	for _, d := range details {
		out = append(out, toAppointmentResponse(d))
	}
	return out
}

func toAgendaList(entries []appointment.AgendaEntry) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(entries))
	for _, e := range entries {
		resp := toAppointmentResponse(e.AppointmentDetail)
		can := e.CanRecordAttendance
		resp.CanRecordAttendance = &can
		out = append(out, resp)
	}
	return out
}

func toOutcomeResponse(o *appointment.Outcome) OutcomeResponse {
	resp := OutcomeResponse{Notified: o.Notified, Unchanged: o.Unchanged, Warnings: o.Warnings}
	if o.Appointment != nil {
		resp.Appointment = toAppointmentResponse(*o.Appointment)
	}
	return resp
}

func toPatientResponse(p *appointment.Patient) PatientResponse {
	return PatientResponse{
		ID:             p.ID,
		FullName:       p.FullName(),
		Email:          p.Email,
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		BirthDate:      p.BirthDate.String(),
		Phone:          p.Phone,
	}
}

func toScheduleBlockResponse(b appointment.ScheduleBlock) ScheduleBlockResponse {
	return ScheduleBlockResponse{
		ID:             b.ID,
		ProfessionalID: b.ProfessionalID,
		Weekday:        int(b.Weekday),
		WeekdayName:    b.Weekday.String(),
		Start:          b.Start.String(),
		End:            b.End.String(),
	}
}
