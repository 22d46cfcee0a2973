package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/auth"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

type handlers struct {
	svc      AppointmentService
	sessions SessionService
	logger   *logging.Logger
}

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	profID, ok := pathUUID(w, r, "id", "invalid_professional_id")
	if !ok {
		return
	}
	date, ok := queryDate(w, r, h.svc.Today())
	if !ok {
		return
	}

	avail, err := h.svc.ComputeAvailableSlots(r.Context(), profID, date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityResponse(avail, h.svc.Location()))
}

// rescheduleAvailability lists the slots an appointment can move to. The
// appointment's current slot is reported as free. professional_id defaults to
// the appointment's own professional.
func (h *handlers) rescheduleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	date, ok := queryDate(w, r, h.svc.Today())
	if !ok {
		return
	}

	var profID uuid.UUID
	if v := r.URL.Query().Get("professional_id"); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		profID = parsed
	} else {
		detail, err := h.svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		profID = detail.ProfessionalID
	}

	avail, err := h.svc.ComputeRescheduleSlots(r.Context(), id, profID, date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityResponse(avail, h.svc.Location()))
}

func (h *handlers) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profID, err := uuid.Parse(req.ProfessionalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
		return
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 timestamp")
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	advisorID := p.UserID
	out, err := h.svc.ReserveSlot(r.Context(), appointment.ReserveRequest{
		ProfessionalID: profID,
		PatientID:      patientID,
		AdvisorID:      &advisorID,
		Start:          start,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutcomeResponse(out))
}

func (h *handlers) modify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	var req ModifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 timestamp")
		return
	}
	var profID *uuid.UUID
	if req.ProfessionalID != nil && *req.ProfessionalID != "" {
		parsed, err := uuid.Parse(*req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		profID = &parsed
	}

	out, err := h.svc.ModifyAppointment(r.Context(), appointment.ModifyRequest{
		AppointmentID:  id,
		ProfessionalID: profID,
		Start:          start,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	out, err := h.svc.CancelAppointment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

// getAppointment is open to every role, but patients and professionals only
// see their own appointments. Others get a 404, not a 403.
func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	detail, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	if !canView(p, detail) {
		writeServiceError(w, r, h.logger, appointment.ErrAppointmentNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*detail))
}

func canView(p auth.Principal, d *appointment.AppointmentDetail) bool {
	switch p.Role {
	case auth.RolePatient:
		return p.ProfileID != nil && *p.ProfileID == d.PatientID
	case auth.RoleProfessional:
		return p.ProfileID != nil && *p.ProfileID == d.ProfessionalID
	default:
		return true
	}
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f appointment.ManagedFilter

	for key, dst := range map[string]**appointment.Date{"from": &f.From, "to": &f.To} {
		if v := q.Get(key); v != "" {
			d, err := appointment.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", key+" must be YYYY-MM-DD")
				return
			}
			*dst = &d
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		writeError(w, http.StatusBadRequest, "invalid_date_range", "to must not be before from")
		return
	}
	if v := q.Get("professional_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		f.ProfessionalID = &id
	}
	if v := q.Get("status"); v != "" {
		st := appointment.Status(v)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+v)
			return
		}
		f.Status = &st
	}
	var ok bool
	if f.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}
	if f.Offset, ok = queryInt(w, r, "offset"); !ok {
		return
	}

	rows, err := h.svc.ListManagedAppointments(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(rows))
}

func (h *handlers) recordAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}
	profID, ok := profileID(w, r)
	if !ok {
		return
	}
	var req AttendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	detail, err := h.svc.RecordAttendance(r.Context(), id, profID, appointment.Status(req.Status))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*detail))
}

func (h *handlers) agenda(w http.ResponseWriter, r *http.Request) {
	profID, ok := profileID(w, r)
	if !ok {
		return
	}
	date := h.svc.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := appointment.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	entries, err := h.svc.ProfessionalAgenda(r.Context(), profID, date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgendaList(entries))
}

func pathUUID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryDate reads the required ?date= parameter and rejects days before today.
func queryDate(w http.ResponseWriter, r *http.Request, today appointment.Date) (appointment.Date, bool) {
	date, err := appointment.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return appointment.Date{}, false
	}
	if date.Before(today) {
		writeError(w, http.StatusUnprocessableEntity, "date_in_past", "availability can only be queried for today or later")
		return appointment.Date{}, false
	}
	return date, true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+key, key+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// profileID is the patient or professional row of the caller. Admins have none
// and cannot act on a personal calendar.
func profileID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	p, _ := auth.PrincipalFromContext(r.Context())
	if p.ProfileID == nil {
		writeError(w, http.StatusForbidden, "profile_required", "this action needs a patient or professional profile")
		return uuid.Nil, false
	}
	return *p.ProfileID, true
}
