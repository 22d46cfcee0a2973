package appointment

import "errors"

// ErrorKind groups failures by how a caller should react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindState
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// KindOf classifies err by the first sentinel it wraps.
func KindOf(err error) ErrorKind {
	if c, ok := lookup(err); ok {
		return c.kind
	}
	return KindInternal
}

// Code is a stable snake_case identifier for err, used in API responses and metrics.
func Code(err error) string {
	if c, ok := lookup(err); ok {
		return c.code
	}
	return "internal_error"
}

type classified struct {
	err  error
	code string
	kind ErrorKind
}

var classifiedErrors = []classified{
	{ErrPatientNotFound, "patient_not_found", KindNotFound},
	{ErrProfessionalNotFound, "professional_not_found", KindNotFound},
	{ErrAppointmentNotFound, "appointment_not_found", KindNotFound},
	{ErrScheduleBlockNotFound, "schedule_block_not_found", KindNotFound},

	{ErrInvalidSpecialtyMismatch, "invalid_specialty_mismatch", KindValidation},
	{ErrInvalidTimeRange, "invalid_time_range", KindValidation},
	{ErrInvalidScheduleBlock, "invalid_schedule_block", KindValidation},
	{ErrInvalidAttendanceStatus, "invalid_attendance_status", KindValidation},
	{ErrInvalidDate, "invalid_date", KindValidation},
	{ErrInvalidTimeOfDay, "invalid_time_of_day", KindValidation},
	{ErrInvalidPatient, "invalid_patient", KindValidation},
	{ErrProfessionalInactive, "professional_inactive", KindValidation},
	{ErrSlotOutsideSchedule, "slot_outside_schedule", KindValidation},
	{ErrDateInPast, "date_in_past", KindValidation},
	{ErrInvalidDateRange, "invalid_date_range", KindValidation},

	{ErrSlotNoLongerAvailable, "slot_no_longer_available", KindConflict},
	{ErrDuplicateSpecialtyBooking, "duplicate_specialty_booking", KindConflict},
	{ErrSlotBeingBooked, "slot_being_booked", KindConflict},
	{ErrOverlappingScheduleBlock, "overlapping_schedule_block", KindConflict},
	{ErrDuplicateDocument, "duplicate_document", KindConflict},
	{ErrDuplicateUsername, "duplicate_username", KindConflict},

	{ErrAppointmentNotModifiable, "appointment_not_modifiable", KindState},
	{ErrAttendanceTooEarly, "attendance_too_early", KindState},

	{ErrNotAttendingProfessional, "not_attending_professional", KindForbidden},
}

func lookup(err error) (classified, bool) {
	if err == nil {
		return classified{}, false
	}
	for _, c := range classifiedErrors {
		if errors.Is(err, c.err) {
			return c, true
		}
	}
	return classified{}, false
}
