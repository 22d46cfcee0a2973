package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/observability/metrics"
)

// Slot is a half-open interval [Start, End).
type Slot struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics, so touching intervals do not overlap.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Availability is the advisory result of a slot query. It may be stale as soon
// as it is returned; reservations re-check under lock.
type Availability struct {
	Professional *Professional
	Date         Date
	Slots        []Slot
	// NoSchedule is set when the professional has no blocks on that weekday,
	// as opposed to every generated slot being taken.
	NoSchedule bool
}

// slotReader is what free slot derivation needs. Both the repository and a
// transaction satisfy it.
type slotReader interface {
	ListScheduleBlocks(ctx context.Context, professionalID uuid.UUID, weekday *Weekday) ([]ScheduleBlock, error)
	ListScheduledOverlapping(ctx context.Context, professionalID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]Appointment, error)
}

// availabilityReader is the read side the engine needs.
type availabilityReader interface {
	slotReader
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)
}

// Engine computes bookable slots. It is read-only and takes no locks.
type Engine struct {
	store   availabilityReader
	loc     *time.Location
	metrics *metrics.BookingMetrics
}

func NewEngine(store availabilityReader, loc *time.Location, m *metrics.BookingMetrics) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, loc: loc, metrics: m}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// ComputeAvailableSlots lists the free slots of a professional on a calendar day.
// Past dates are not rejected here.
func (e *Engine) ComputeAvailableSlots(ctx context.Context, professionalID uuid.UUID, date Date) (*Availability, error) {
	return e.ComputeAvailableSlotsExcluding(ctx, professionalID, date, nil)
}

// ComputeAvailableSlotsExcluding treats the appointment excludeID as free. The
// reschedule flow passes the appointment being moved.
func (e *Engine) ComputeAvailableSlotsExcluding(ctx context.Context, professionalID uuid.UUID, date Date, excludeID *uuid.UUID) (*Availability, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveSlotComputation(time.Since(start).Seconds()) }()

	prof, err := e.store.GetProfessionalByID(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if !prof.Active {
		return nil, ErrProfessionalInactive
	}

	slots, blocks, err := freeSlots(ctx, e.store, prof, date, e.loc, excludeID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		Professional: prof,
		Date:         date,
		Slots:        slots,
		NoSchedule:   len(blocks) == 0,
	}, nil
}

// freeSlots loads the day's blocks and scheduled appointments and generates the
// free slots. The blocks are returned so callers can tell an empty template
// from a full day.
func freeSlots(ctx context.Context, r slotReader, prof *Professional, date Date, loc *time.Location, excludeID *uuid.UUID) ([]Slot, []ScheduleBlock, error) {
	weekday := date.Weekday()
	blocks, err := r.ListScheduleBlocks(ctx, prof.ID, &weekday)
	if err != nil {
		return nil, nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	if len(blocks) == 0 {
		return nil, nil, nil
	}

	dayStart, dayEnd := date.Bounds(loc)
	booked, err := r.ListScheduledOverlapping(ctx, prof.ID, dayStart, dayEnd, excludeID)
	if err != nil {
		return nil, nil, fmt.Errorf("list scheduled appointments: %w", err)
	}

	occupied := make([]Slot, 0, len(booked))
	for _, a := range booked {
		occupied = append(occupied, a.Interval())
	}
	return GenerateSlots(date, loc, blocks, prof.Specialty.Duration(), occupied), blocks, nil
}

// GenerateSlots walks every block from its start in steps of duration, drops the
// trailing remainder that does not fit, and keeps candidates that overlap neither
// an occupied interval nor a slot already emitted by an earlier block.
func GenerateSlots(date Date, loc *time.Location, blocks []ScheduleBlock, duration time.Duration, occupied []Slot) []Slot {
	if duration <= 0 {
		return nil
	}

	ordered := make([]ScheduleBlock, len(blocks))
	copy(ordered, blocks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var slots []Slot
	for _, b := range ordered {
		blockEnd := date.At(b.End, loc)
		for start := date.At(b.Start, loc); ; start = start.Add(duration) {
			candidate := Slot{Start: start, End: start.Add(duration)}
			if candidate.End.After(blockEnd) {
				break
			}
			if overlapsAny(candidate, occupied) || overlapsAny(candidate, slots) {
				continue
			}
			slots = append(slots, candidate)
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

func overlapsAny(s Slot, others []Slot) bool {
	for _, o := range others {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}
