package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/auth"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

// AppointmentService is the part of appointment.Service the handlers use.
type AppointmentService interface {
	Location() *time.Location
	Today() appointment.Date
	ComputeAvailableSlots(ctx context.Context, professionalID uuid.UUID, date appointment.Date) (*appointment.Availability, error)
	ComputeRescheduleSlots(ctx context.Context, appointmentID, professionalID uuid.UUID, date appointment.Date) (*appointment.Availability, error)
	ReserveSlot(ctx context.Context, req appointment.ReserveRequest) (*appointment.Outcome, error)
	ModifyAppointment(ctx context.Context, req appointment.ModifyRequest) (*appointment.Outcome, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (*appointment.Outcome, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error)
	ListManagedAppointments(ctx context.Context, f appointment.ManagedFilter) ([]appointment.AppointmentDetail, error)
	RecordAttendance(ctx context.Context, appointmentID, professionalID uuid.UUID, outcome appointment.Status) (*appointment.AppointmentDetail, error)
	ProfessionalAgenda(ctx context.Context, professionalID uuid.UUID, date appointment.Date) ([]appointment.AgendaEntry, error)
	UpcomingAppointments(ctx context.Context, patientID uuid.UUID) ([]appointment.AppointmentDetail, error)
	AppointmentHistory(ctx context.Context, patientID uuid.UUID) ([]appointment.AppointmentDetail, error)
	RegisterPatient(ctx context.Context, req appointment.RegisterPatientRequest) (*appointment.Patient, error)
	UpdatePatientContact(ctx context.Context, patientID uuid.UUID, email, phone string) (*appointment.Patient, error)
	UpdatePatient(ctx context.Context, patientID uuid.UUID, req appointment.UpdatePatientRequest) (*appointment.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*appointment.Patient, error)
	ListPatients(ctx context.Context, f appointment.PatientFilter) ([]appointment.Patient, error)
	AddScheduleBlock(ctx context.Context, professionalID uuid.UUID, weekday appointment.Weekday, start, end appointment.TimeOfDay) (*appointment.ScheduleBlock, error)
	ListScheduleBlocks(ctx context.Context, professionalID uuid.UUID) ([]appointment.ScheduleBlock, error)
	DeleteScheduleBlock(ctx context.Context, id uuid.UUID) error
}

// SessionService is the part of auth.Service the handlers use.
type SessionService interface {
	auth.Authenticator
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
	ChangePassword(ctx context.Context, req auth.ChangePasswordRequest) error
}

type RouterConfig struct {
	Appointments AppointmentService
	Sessions     SessionService
	Postgres     Pinger
	Redis        Pinger
	Gatherer     prometheus.Gatherer
	Logger       *logging.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	h := &handlers{svc: cfg.Appointments, sessions: cfg.Sessions, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(cfg.Sessions))

		r.Post("/auth/logout", h.logout)
		r.Post("/auth/password", h.changePassword)
		r.Get("/appointments/{id}", h.getAppointment)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdvisor))
			r.Get("/professionals/{id}/availability", h.availability)
			r.Post("/appointments", h.reserve)
			r.Get("/appointments", h.listAppointments)
			r.Patch("/appointments/{id}", h.modify)
			r.Post("/appointments/{id}/cancel", h.cancel)
			r.Get("/appointments/{id}/availability", h.rescheduleAvailability)
			r.Post("/patients", h.registerPatient)
			r.Get("/patients", h.listPatients)
			r.Get("/patients/{id}", h.getPatient)
			r.Put("/patients/{id}", h.updatePatient)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleProfessional))
			r.Post("/appointments/{id}/attendance", h.recordAttendance)
			r.Get("/agenda", h.agenda)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RolePatient))
			r.Get("/me/appointments/upcoming", h.upcoming)
			r.Get("/me/appointments/history", h.history)
			r.Put("/me/contact", h.updateContact)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Post("/professionals/{id}/schedule-blocks", h.addScheduleBlock)
			r.Get("/professionals/{id}/schedule-blocks", h.listScheduleBlocks)
			r.Delete("/schedule-blocks/{id}", h.deleteScheduleBlock)
		})
	})

	return r
}
