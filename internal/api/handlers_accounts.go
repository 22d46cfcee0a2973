package api

import (
	"net/http"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/auth"
)

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "username and password are required")
		return
	}

	res, err := h.sessions.Login(r.Context(), auth.LoginRequest{
		Username:   req.Username,
		Password:   req.Password,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := LoginResponse{
		Token:     res.Token,
		UserID:    res.Principal.UserID,
		Username:  res.Principal.Username,
		FullName:  res.Principal.FullName,
		Role:      string(res.Principal.Role),
		ProfileID: res.Principal.ProfileID,
	}
	if !res.ExpiresAt.IsZero() {
		resp.ExpiresAt = &res.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	if err := h.sessions.Logout(r.Context(), p.SessionID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// changePassword is open to every role. Other sessions of the caller are closed.
func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	err := h.sessions.ChangePassword(r.Context(), auth.ChangePasswordRequest{
		UserID:       p.UserID,
		SessionID:    p.SessionID,
		OldPassword:  req.OldPassword,
		NewPassword:  req.NewPassword,
		Confirmation: req.Confirmation,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) registerPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	birth, err := appointment.ParseDate(req.BirthDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_birth_date", "birth_date must be YYYY-MM-DD")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	patient, err := h.svc.RegisterPatient(r.Context(), appointment.RegisterPatientRequest{
		Username:       req.Username,
		PasswordHash:   hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		BirthDate:      birth,
		Phone:          req.Phone,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientResponse(patient))
}

func (h *handlers) listPatients(w http.ResponseWriter, r *http.Request) {
	f := appointment.PatientFilter{DocumentNumber: r.URL.Query().Get("document")}
	var ok bool
	if f.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}
	if f.Offset, ok = queryInt(w, r, "offset"); !ok {
		return
	}

	patients, err := h.svc.ListPatients(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]PatientResponse, 0, len(patients))
	for i := range patients {
		out = append(out, toPatientResponse(&patients[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_patient_id")
	if !ok {
		return
	}
	patient, err := h.svc.GetPatient(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(patient))
}

func (h *handlers) updatePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_patient_id")
	if !ok {
		return
	}
	var req UpdatePatientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	birth, err := appointment.ParseDate(req.BirthDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_birth_date", "birth_date must be YYYY-MM-DD")
		return
	}

	patient, err := h.svc.UpdatePatient(r.Context(), id, appointment.UpdatePatientRequest{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		BirthDate:      birth,
		Phone:          req.Phone,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(patient))
}

func (h *handlers) upcoming(w http.ResponseWriter, r *http.Request) {
	patientID, ok := profileID(w, r)
	if !ok {
		return
	}
	rows, err := h.svc.UpcomingAppointments(r.Context(), patientID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(rows))
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	patientID, ok := profileID(w, r)
	if !ok {
		return
	}
	rows, err := h.svc.AppointmentHistory(r.Context(), patientID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(rows))
}

func (h *handlers) updateContact(w http.ResponseWriter, r *http.Request) {
	patientID, ok := profileID(w, r)
	if !ok {
		return
	}
	var req ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patient, err := h.svc.UpdatePatientContact(r.Context(), patientID, req.Email, req.Phone)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(patient))
}

func (h *handlers) addScheduleBlock(w http.ResponseWriter, r *http.Request) {
	profID, ok := pathUUID(w, r, "id", "invalid_professional_id")
	if !ok {
		return
	}
	var req ScheduleBlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := appointment.ParseTimeOfDay(req.Start)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	end, err := appointment.ParseTimeOfDay(req.End)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	block, err := h.svc.AddScheduleBlock(r.Context(), profID, appointment.Weekday(req.Weekday), start, end)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleBlockResponse(*block))
}

func (h *handlers) listScheduleBlocks(w http.ResponseWriter, r *http.Request) {
	profID, ok := pathUUID(w, r, "id", "invalid_professional_id")
	if !ok {
		return
	}
	blocks, err := h.svc.ListScheduleBlocks(r.Context(), profID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]ScheduleBlockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toScheduleBlockResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) deleteScheduleBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "invalid_schedule_block_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteScheduleBlock(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
