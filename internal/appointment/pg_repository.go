package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

const (
	appointmentColumns = `a.id, a.patient_id, a.professional_id, a.advisor_id, a.start_at, a.end_at, a.status, a.created_at, a.updated_at`

	professionalColumns = `pr.id, pr.user_id, pu.first_name, pu.last_name, pu.email, (pr.is_active AND pu.is_active),
		pr.registration_number, pr.phone, sp.id, sp.name, sp.consultation_minutes, sp.is_active`
	professionalFrom = `professionals pr
		JOIN users pu ON pu.id = pr.user_id
		JOIN specialties sp ON sp.id = pr.specialty_id`

	patientColumns = `pa.id, pa.user_id, pau.first_name, pau.last_name, pau.email, pa.document_type, pa.document_number,
		pa.birth_date, pa.phone, pa.created_at`
	patientFrom = `patients pa
		JOIN users pau ON pau.id = pa.user_id`

	detailSelect = `SELECT ` + appointmentColumns + `, ` + patientColumns + `, ` + professionalColumns + `
		FROM appointments a
		JOIN patients pa ON pa.id = a.patient_id
		JOIN users pau ON pau.id = pa.user_id
		JOIN professionals pr ON pr.id = a.professional_id
		JOIN users pu ON pu.id = pr.user_id
		JOIN specialties sp ON sp.id = pr.specialty_id`

	scheduleBlockColumns = `id, professional_id, weekday, start_time, end_time, created_at`
)

// PgRepository implements Repository on a pgx pool.
type PgRepository struct {
	*pgQueries
	pool db.TxBeginner
}

func NewPgRepository(pool db.TxBeginner) *PgRepository {
	return &PgRepository{pgQueries: &pgQueries{db: pool}, pool: pool}
}

func (r *PgRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{pgQueries: &pgQueries{db: tx}})
	})
}

type pgQueries struct {
	db db.DBTX
}

type pgTx struct {
	*pgQueries
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProfessionalID,
		&a.AdvisorID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Active,
		&p.RegistrationNumber,
		&p.Phone,
		&p.Specialty.ID,
		&p.Specialty.Name,
		&p.Specialty.ConsultationMinutes,
		&p.Specialty.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birth pgtype.Date
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.DocumentType,
		&p.DocumentNumber,
		&birth,
		&p.Phone,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	p.BirthDate = dateFromPg(birth)
	return &p, nil
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var (
		d     AppointmentDetail
		pat   Patient
		prof  Professional
		birth pgtype.Date
	)
	err := row.Scan(
		&d.ID, &d.PatientID, &d.ProfessionalID, &d.AdvisorID, &d.Start, &d.End, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&pat.ID, &pat.UserID, &pat.FirstName, &pat.LastName, &pat.Email, &pat.DocumentType, &pat.DocumentNumber,
		&birth, &pat.Phone, &pat.CreatedAt,
		&prof.ID, &prof.UserID, &prof.FirstName, &prof.LastName, &prof.Email, &prof.Active,
		&prof.RegistrationNumber, &prof.Phone, &prof.Specialty.ID, &prof.Specialty.Name,
		&prof.Specialty.ConsultationMinutes, &prof.Specialty.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	pat.BirthDate = dateFromPg(birth)
	d.Patient = &pat
	d.Professional = &prof
	return &d, nil
}

func scanScheduleBlock(row pgx.Row) (*ScheduleBlock, error) {
	var (
		b          ScheduleBlock
		weekday    int
		start, end pgtype.Time
	)
	err := row.Scan(&b.ID, &b.ProfessionalID, &weekday, &start, &end, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleBlockNotFound
		}
		return nil, err
	}
	b.Weekday = Weekday(weekday)
	b.Start = timeOfDayFromPg(start)
	b.End = timeOfDayFromPg(end)
	return &b, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// mapWriteError turns constraint violations into domain errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgExclusionViolation:
		return ErrSlotNoLongerAvailable
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "patients_document_number_key":
			return ErrDuplicateDocument
		case "users_username_key":
			return ErrDuplicateUsername
		case "schedule_blocks_professional_weekday_start_key":
			return ErrOverlappingScheduleBlock
		}
	}
	return err
}

func dateFromPg(d pgtype.Date) Date {
	if !d.Valid {
		return Date{}
	}
	return Date{Year: d.Time.Year(), Month: d.Time.Month(), Day: d.Time.Day()}
}

func dateToPg(d Date) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC), Valid: true}
}

func timeOfDayFromPg(t pgtype.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Microseconds) * time.Microsecond)
}

func timeOfDayToPg(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: time.Duration(t).Microseconds(), Valid: true}
}

// Interface methods

func (q *pgQueries) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := q.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM `+patientFrom+` WHERE pa.id = $1`, id)
	return scanPatient(row)
}

func (q *pgQueries) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := q.db.QueryRow(ctx, `SELECT `+professionalColumns+` FROM `+professionalFrom+` WHERE pr.id = $1`, id)
	return scanProfessional(row)
}

func (q *pgQueries) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (q *pgQueries) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := q.db.QueryRow(ctx, detailSelect+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (q *pgQueries) ListScheduleBlocks(ctx context.Context, professionalID uuid.UUID, weekday *Weekday) ([]ScheduleBlock, error) {
	var wd *int
	if weekday != nil {
		v := int(*weekday)
		wd = &v
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+scheduleBlockColumns+`
		FROM schedule_blocks
		WHERE professional_id = $1
		  AND ($2::smallint IS NULL OR weekday = $2)
		ORDER BY weekday, start_time
	`, professionalID, wd)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanScheduleBlock)
}

func (q *pgQueries) CreateScheduleBlock(ctx context.Context, b ScheduleBlock) (*ScheduleBlock, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO schedule_blocks (id, professional_id, weekday, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+scheduleBlockColumns,
		b.ID, b.ProfessionalID, int(b.Weekday), timeOfDayToPg(b.Start), timeOfDayToPg(b.End))

	created, err := scanScheduleBlock(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

func (q *pgQueries) DeleteScheduleBlock(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM schedule_blocks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleBlockNotFound
	}
	return nil
}

func (q *pgQueries) ListScheduledOverlapping(ctx context.Context, professionalID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]Appointment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.professional_id = $1
		  AND a.status = 'scheduled'
		  AND a.start_at < $3
		  AND a.end_at > $2
		  AND ($4::uuid IS NULL OR a.id <> $4)
		ORDER BY a.start_at
	`, professionalID, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func (q *pgQueries) FindScheduledForPatientSpecialty(ctx context.Context, patientID, specialtyID uuid.UUID, excludeID *uuid.UUID) (*AppointmentDetail, error) {
	row := q.db.QueryRow(ctx, detailSelect+`
		WHERE a.patient_id = $1
		  AND pr.specialty_id = $2
		  AND a.status = 'scheduled'
		  AND ($3::uuid IS NULL OR a.id <> $3)
		ORDER BY a.start_at
		LIMIT 1
	`, patientID, specialtyID, excludeID)
	return scanDetail(row)
}

func (q *pgQueries) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO appointments AS a (id, patient_id, professional_id, advisor_id, start_at, end_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProfessionalID, a.AdvisorID, a.Start, a.End, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

func (q *pgQueries) RescheduleAppointment(ctx context.Context, id, professionalID uuid.UUID, start, end time.Time) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE appointments AS a
		SET professional_id = $2,
		    start_at = $3,
		    end_at = $4,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status = 'scheduled'
		RETURNING `+appointmentColumns,
		id, professionalID, start, end)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return updated, nil
}

func (q *pgQueries) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE appointments AS a
		SET status = $2,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	return scanAppointment(row)
}

func (q *pgQueries) ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.PatientID != nil {
		where = append(where, "a.patient_id = "+arg(*f.PatientID))
	}
	if f.ProfessionalID != nil {
		where = append(where, "a.professional_id = "+arg(*f.ProfessionalID))
	}
	if len(f.Statuses) > 0 {
		where = append(where, "a.status = ANY("+arg(statusStrings(f.Statuses))+")")
	}
	if len(f.ExcludeStatus) > 0 {
		where = append(where, "NOT (a.status = ANY("+arg(statusStrings(f.ExcludeStatus))+"))")
	}
	if f.StartFrom != nil {
		where = append(where, "a.start_at >= "+arg(*f.StartFrom))
	}
	if f.StartBefore != nil {
		where = append(where, "a.start_at < "+arg(*f.StartBefore))
	}
	if f.PastOrTerminalAt != nil {
		where = append(where, "(a.start_at < "+arg(*f.PastOrTerminalAt)+" OR a.status <> 'scheduled')")
	}

	var sb strings.Builder
	sb.WriteString(detailSelect)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if f.Descending {
		sb.WriteString(" ORDER BY a.start_at DESC")
	} else {
		sb.WriteString(" ORDER BY a.start_at ASC")
	}
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(f.Offset))
	}

	rows, err := q.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDetail)
}

func (q *pgQueries) CreatePatient(ctx context.Context, p NewPatient) (*Patient, error) {
	userID := uuid.New()
	patientID := uuid.New()

	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, first_name, last_name, email, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'patient', true, now())
	`, userID, p.Username, p.PasswordHash, p.FirstName, p.LastName, p.Email)
	if err != nil {
		return nil, mapWriteError(err)
	}

	var createdAt time.Time
	err = q.db.QueryRow(ctx, `
		INSERT INTO patients (id, user_id, document_type, document_number, birth_date, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at
	`, patientID, userID, p.DocumentType, p.DocumentNumber, dateToPg(p.BirthDate), p.Phone).Scan(&createdAt)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return &Patient{
		ID:             patientID,
		UserID:         userID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		BirthDate:      p.BirthDate,
		Phone:          p.Phone,
		CreatedAt:      createdAt,
	}, nil
}

func (q *pgQueries) UpdatePatientContact(ctx context.Context, patientID uuid.UUID, email *string, phone string) error {
	tag, err := q.db.Exec(ctx, `
		WITH p AS (
			UPDATE patients SET phone = $3 WHERE id = $1 RETURNING user_id
		)
		UPDATE users SET email = $2 FROM p WHERE users.id = p.user_id
	`, patientID, email, phone)
	if err != nil {
		return fmt.Errorf("update patient contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (q *pgQueries) UpdatePatient(ctx context.Context, patientID uuid.UUID, p PatientProfile) error {
	tag, err := q.db.Exec(ctx, `
		WITH p AS (
			UPDATE patients SET document_type = $2, document_number = $3, birth_date = $4, phone = $5
			WHERE id = $1
			RETURNING user_id
		)
		UPDATE users SET first_name = $6, last_name = $7, email = $8 FROM p WHERE users.id = p.user_id
	`, patientID, p.DocumentType, p.DocumentNumber, dateToPg(p.BirthDate), p.Phone, p.FirstName, p.LastName, p.Email)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (q *pgQueries) ListPatients(ctx context.Context, f PatientFilter) ([]Patient, error) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT ` + patientColumns + ` FROM ` + patientFrom)
	if f.DocumentNumber != "" {
		sb.WriteString(" WHERE pa.document_number = " + arg(f.DocumentNumber))
	}
	sb.WriteString(" ORDER BY pau.last_name, pau.first_name, pa.id")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(f.Offset))
	}

	rows, err := q.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return collect(rows, scanPatient)
}

func (q *pgQueries) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, COALESCE($3::jsonb, '{}'::jsonb), COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// Row locks, only available inside a transaction.

func (t *pgTx) LockProfessional(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := t.db.QueryRow(ctx, `SELECT id FROM professionals WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProfessionalNotFound
	}
	if err != nil {
		return fmt.Errorf("lock professional: %w", err)
	}
	return nil
}

func (t *pgTx) LockPatient(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := t.db.QueryRow(ctx, `SELECT id FROM patients WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("lock patient: %w", err)
	}
	return nil
}

func (t *pgTx) LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := t.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1 FOR UPDATE`, id)
	return scanAppointment(row)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
