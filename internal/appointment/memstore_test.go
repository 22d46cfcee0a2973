package appointment

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository. WithinTx holds txMu for the whole
// callback, which stands in for the row locks a real transaction takes.
type memRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	professionals map[uuid.UUID]Professional
	patients      map[uuid.UUID]Patient
	blocks        []ScheduleBlock
	appointments  map[uuid.UUID]Appointment
	events        []EventLog

	// beforeCommit runs at the end of a successful WithinTx callback; tests use it to fail commits.
	beforeCommit func() error
}

func newMemRepo() *memRepo {
	return &memRepo{
		professionals: map[uuid.UUID]Professional{},
		patients:      map[uuid.UUID]Patient{},
		appointments:  map[uuid.UUID]Appointment{},
	}
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	savedAppts := maps.Clone(r.appointments)
	savedPatients := maps.Clone(r.patients)
	savedBlocks := slices.Clone(r.blocks)
	savedEvents := slices.Clone(r.events)
	r.mu.Unlock()

	err := fn(ctx, memTx{r})
	if err == nil && r.beforeCommit != nil {
		err = r.beforeCommit()
	}
	if err != nil {
		r.mu.Lock()
		r.appointments = savedAppts
		r.patients = savedPatients
		r.blocks = savedBlocks
		r.events = savedEvents
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepo) GetProfessionalByID(_ context.Context, id uuid.UUID) (*Professional, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return &p, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := r.detailLocked(a)
	return &d, nil
}

func (r *memRepo) detailLocked(a Appointment) AppointmentDetail {
	pat := r.patients[a.PatientID]
	prof := r.professionals[a.ProfessionalID]
	return AppointmentDetail{Appointment: a, Patient: &pat, Professional: &prof}
}

func (r *memRepo) ListScheduleBlocks(_ context.Context, professionalID uuid.UUID, weekday *Weekday) ([]ScheduleBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ScheduleBlock
	for _, b := range r.blocks {
		if b.ProfessionalID != professionalID {
			continue
		}
		if weekday != nil && b.Weekday != *weekday {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (r *memRepo) CreateScheduleBlock(_ context.Context, b ScheduleBlock) (*ScheduleBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.blocks {
		if existing.ProfessionalID == b.ProfessionalID && existing.Weekday == b.Weekday && existing.Start == b.Start {
			return nil, ErrOverlappingScheduleBlock
		}
	}
	b.CreatedAt = time.Now()
	r.blocks = append(r.blocks, b)
	return &b, nil
}

func (r *memRepo) DeleteScheduleBlock(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.blocks {
		if b.ID == id {
			r.blocks = append(r.blocks[:i], r.blocks[i+1:]...)
			return nil
		}
	}
	return ErrScheduleBlockNotFound
}

func (r *memRepo) ListScheduledOverlapping(_ context.Context, professionalID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	window := Slot{Start: from, End: to}
	var out []Appointment
	for _, a := range r.appointments {
		if a.ProfessionalID != professionalID || a.Status != StatusScheduled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Interval().Overlaps(window) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r *memRepo) FindScheduledForPatientSpecialty(_ context.Context, patientID, specialtyID uuid.UUID, excludeID *uuid.UUID) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.PatientID != patientID || a.Status != StatusScheduled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if r.professionals[a.ProfessionalID].Specialty.ID == specialtyID {
			d := r.detailLocked(a)
			return &d, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *memRepo) RescheduleAppointment(_ context.Context, id, professionalID uuid.UUID, start, end time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}
	a.ProfessionalID, a.Start, a.End, a.UpdatedAt = professionalID, start, end, time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status, a.UpdatedAt = to, time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *memRepo) ListAppointments(_ context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.ProfessionalID != nil && a.ProfessionalID != *f.ProfessionalID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
			continue
		}
		if slices.Contains(f.ExcludeStatus, a.Status) {
			continue
		}
		if f.StartFrom != nil && a.Start.Before(*f.StartFrom) {
			continue
		}
		if f.StartBefore != nil && !a.Start.Before(*f.StartBefore) {
			continue
		}
		if f.PastOrTerminalAt != nil && !(a.Start.Before(*f.PastOrTerminalAt) || a.Status != StatusScheduled) {
			continue
		}
		out = append(out, r.detailLocked(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Descending {
			return out[i].Start.After(out[j].Start)
		}
		return out[i].Start.Before(out[j].Start)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) CreatePatient(_ context.Context, p NewPatient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.patients {
		if existing.DocumentNumber == p.DocumentNumber {
			return nil, ErrDuplicateDocument
		}
	}
	created := Patient{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		BirthDate:      p.BirthDate,
		Phone:          p.Phone,
		CreatedAt:      time.Now(),
	}
	r.patients[created.ID] = created
	return &created, nil
}

func (r *memRepo) UpdatePatientContact(_ context.Context, patientID uuid.UUID, email *string, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return ErrPatientNotFound
	}
	p.Email, p.Phone = email, phone
	r.patients[patientID] = p
	return nil
}

func (r *memRepo) UpdatePatient(_ context.Context, patientID uuid.UUID, p PatientProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.patients[patientID]
	if !ok {
		return ErrPatientNotFound
	}
	for id, other := range r.patients {
		if id != patientID && other.DocumentNumber == p.DocumentNumber {
			return ErrDuplicateDocument
		}
	}
	existing.FirstName, existing.LastName, existing.Email = p.FirstName, p.LastName, p.Email
	existing.DocumentType, existing.DocumentNumber = p.DocumentType, p.DocumentNumber
	existing.BirthDate, existing.Phone = p.BirthDate, p.Phone
	r.patients[patientID] = existing
	return nil
}

func (r *memRepo) ListPatients(_ context.Context, f PatientFilter) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Patient
	for _, p := range r.patients {
		if f.DocumentNumber != "" && p.DocumentNumber != f.DocumentNumber {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	if f.Offset > 0 {
		out = out[min(f.Offset, len(out)):]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (r *memRepo) scheduled(professionalID uuid.UUID) []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.ProfessionalID == professionalID && a.Status == StatusScheduled {
			out = append(out, a)
		}
	}
	return out
}

type memTx struct {
	*memRepo
}

func (t memTx) LockProfessional(ctx context.Context, id uuid.UUID) error {
	_, err := t.GetProfessionalByID(ctx, id)
	return err
}

func (t memTx) LockPatient(ctx context.Context, id uuid.UUID) error {
	_, err := t.GetPatientByID(ctx, id)
	return err
}

func (t memTx) LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return t.GetAppointmentByID(ctx, id)
}

// fixture data

var testLoc = time.FixedZone("COT", -5*60*60)

// monday is a Monday.
var monday = NewDate(2030, time.March, 4)

func strPtr(s string) *string { return &s }

type fixture struct {
	repo        *memRepo
	cardiology  Specialty
	dermatology Specialty
	cardio      Professional
	cardio2     Professional
	derm        Professional
	ana         Patient
	luis        Patient
}

func newFixture() *fixture {
	f := &fixture{repo: newMemRepo()}
	f.cardiology = Specialty{ID: uuid.New(), Name: "Cardiology", ConsultationMinutes: 30, Active: true}
	f.dermatology = Specialty{ID: uuid.New(), Name: "Dermatology", ConsultationMinutes: 20, Active: true}

	f.cardio = Professional{ID: uuid.New(), UserID: uuid.New(), FirstName: "Marta", LastName: "Rios", Active: true, RegistrationNumber: "RM-1", Specialty: f.cardiology}
	f.cardio2 = Professional{ID: uuid.New(), UserID: uuid.New(), FirstName: "Jorge", LastName: "Paz", Active: true, RegistrationNumber: "RM-2", Specialty: f.cardiology}
	f.derm = Professional{ID: uuid.New(), UserID: uuid.New(), FirstName: "Elena", LastName: "Gil", Active: true, RegistrationNumber: "RM-3", Specialty: f.dermatology}
	for _, p := range []Professional{f.cardio, f.cardio2, f.derm} {
		f.repo.professionals[p.ID] = p
	}

	f.ana = Patient{ID: uuid.New(), UserID: uuid.New(), FirstName: "Ana", LastName: "Mora", Email: strPtr("ana@example.com"), DocumentType: "CC", DocumentNumber: "1001", BirthDate: NewDate(1990, time.May, 10), Phone: "3001234567"}
	f.luis = Patient{ID: uuid.New(), UserID: uuid.New(), FirstName: "Luis", LastName: "Vega", Email: strPtr("luis@example.com"), DocumentType: "CC", DocumentNumber: "1002", BirthDate: NewDate(1985, time.July, 2), Phone: "3007654321"}
	f.repo.patients[f.ana.ID] = f.ana
	f.repo.patients[f.luis.ID] = f.luis

	// Monday 08:00-10:00 for both cardiologists, 08:00-09:00 for the dermatologist.
	f.addBlock(f.cardio.ID, Monday, NewTimeOfDay(8, 0), NewTimeOfDay(10, 0))
	f.addBlock(f.cardio2.ID, Monday, NewTimeOfDay(8, 0), NewTimeOfDay(10, 0))
	f.addBlock(f.derm.ID, Monday, NewTimeOfDay(8, 0), NewTimeOfDay(9, 0))
	return f
}

func (f *fixture) addBlock(professionalID uuid.UUID, wd Weekday, start, end TimeOfDay) {
	f.repo.blocks = append(f.repo.blocks, ScheduleBlock{
		ID:             uuid.New(),
		ProfessionalID: professionalID,
		Weekday:        wd,
		Start:          start,
		End:            end,
	})
}

func (f *fixture) addAppointment(patientID, professionalID uuid.UUID, start time.Time, d time.Duration, status Status) Appointment {
	a := Appointment{
		ID:             uuid.New(),
		PatientID:      patientID,
		ProfessionalID: professionalID,
		Start:          start,
		End:            start.Add(d),
		Status:         status,
	}
	f.repo.appointments[a.ID] = a
	return a
}

// at is a wall-clock instant on monday in the test zone.
func at(hour, minute int) time.Time {
	return monday.At(NewTimeOfDay(hour, minute), testLoc)
}
