package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotTimes(slots []Slot) [][2]string {
	out := make([][2]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, [2]string{
			TimeOfDayOf(s.Start, testLoc).String(),
			TimeOfDayOf(s.End, testLoc).String(),
		})
	}
	return out
}

func TestComputeAvailableSlots_EmptyDay(t *testing.T) {
	f := newFixture()
	engine := NewEngine(f.repo, testLoc, nil)

	got, err := engine.ComputeAvailableSlots(context.Background(), f.cardio.ID, monday)
	require.NoError(t, err)

	assert.False(t, got.NoSchedule)
	assert.Equal(t, [][2]string{
		{"08:00", "08:30"},
		{"08:30", "09:00"},
		{"09:00", "09:30"},
		{"09:30", "10:00"},
	}, slotTimes(got.Slots))
}

func TestComputeAvailableSlots_SkipsOccupied(t *testing.T) {
	f := newFixture()
	f.addAppointment(f.ana.ID, f.cardio.ID, at(8, 30), 30*time.Minute, StatusScheduled)
	engine := NewEngine(f.repo, testLoc, nil)

	got, err := engine.ComputeAvailableSlots(context.Background(), f.cardio.ID, monday)
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"08:00", "08:30"},
		{"09:00", "09:30"},
		{"09:30", "10:00"},
	}, slotTimes(got.Slots))
}

func TestComputeAvailableSlots_IgnoresNonScheduledAppointments(t *testing.T) {
	f := newFixture()
	f.addAppointment(f.ana.ID, f.cardio.ID, at(8, 0), 30*time.Minute, StatusCancelled)
	f.addAppointment(f.luis.ID, f.cardio.ID, at(8, 30), 30*time.Minute, StatusNoShow)
	engine := NewEngine(f.repo, testLoc, nil)

	got, err := engine.ComputeAvailableSlots(context.Background(), f.cardio.ID, monday)
	require.NoError(t, err)
	assert.Len(t, got.Slots, 4)
}

func TestComputeAvailableSlots_OffGridAppointmentBlocksBothNeighbours(t *testing.T) {
	f := newFixture()
	f.addAppointment(f.ana.ID, f.cardio.ID, at(8, 15), 30*time.Minute, StatusScheduled)
	engine := NewEngine(f.repo, testLoc, nil)

	got, err := engine.ComputeAvailableSlots(context.Background(), f.cardio.ID, monday)
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"09:00", "09:30"},
		{"09:30", "10:00"},
	}, slotTimes(got.Slots))
}

func TestComputeAvailableSlots_NoScheduleForWeekday(t *testing.T) {
	f := newFixture()
	engine := NewEngine(f.repo, testLoc, nil)

	got, err := engine.ComputeAvailableSlots(context.Background(), f.cardio.ID, monday.AddDays(1))
	require.NoError(t, err)

	assert.True(t, got.NoSchedule)
	assert.Empty(t, got.Slots)
}

func TestComputeAvailableSlots_FullyBookedIsNotNoSchedule(t *testing.T) {
	f := newFixture()
	f.addAppointment(f.ana.ID, f.derm.ID, at(8, 0), time.Hour, StatusScheduled)
	engine := NewEngine(f.repo, testLoc, nil)

	got, err := engine.ComputeAvailableSlots(context.Background(), f.derm.ID, monday)
	require.NoError(t, err)

	assert.False(t, got.NoSchedule)
	assert.Empty(t, got.Slots)
}

func TestComputeAvailableSlots_Errors(t *testing.T) {
	f := newFixture()
	inactive := f.cardio2
	inactive.Active = false
	f.repo.professionals[inactive.ID] = inactive
	engine := NewEngine(f.repo, testLoc, nil)

	_, err := engine.ComputeAvailableSlots(context.Background(), uuid.New(), monday)
	assert.ErrorIs(t, err, ErrProfessionalNotFound)

	_, err = engine.ComputeAvailableSlots(context.Background(), inactive.ID, monday)
	assert.ErrorIs(t, err, ErrProfessionalInactive)
}

func TestComputeAvailableSlots_Idempotent(t *testing.T) {
	f := newFixture()
	f.addAppointment(f.ana.ID, f.cardio.ID, at(9, 0), 30*time.Minute, StatusScheduled)
	engine := NewEngine(f.repo, testLoc, nil)

	first, err := engine.ComputeAvailableSlots(context.Background(), f.cardio.ID, monday)
	require.NoError(t, err)
	second, err := engine.ComputeAvailableSlots(context.Background(), f.cardio.ID, monday)
	require.NoError(t, err)

	assert.Equal(t, first.Slots, second.Slots)
}

func TestGenerateSlots_DiscardsTrailingPartialSlot(t *testing.T) {
	blocks := []ScheduleBlock{{Weekday: Monday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(9, 10)}}

	got := GenerateSlots(monday, testLoc, blocks, 20*time.Minute, nil)

	assert.Equal(t, [][2]string{
		{"08:00", "08:20"},
		{"08:20", "08:40"},
		{"08:40", "09:00"},
	}, slotTimes(got))
}

func TestGenerateSlots_MultipleBlocksChronological(t *testing.T) {
	blocks := []ScheduleBlock{
		{Start: NewTimeOfDay(14, 0), End: NewTimeOfDay(15, 0)},
		{Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(9, 0)},
	}

	got := GenerateSlots(monday, testLoc, blocks, 30*time.Minute, nil)

	assert.Equal(t, [][2]string{
		{"08:00", "08:30"},
		{"08:30", "09:00"},
		{"14:00", "14:30"},
		{"14:30", "15:00"},
	}, slotTimes(got))
}

func TestGenerateSlots_OverlappingBlocksDoNotEmitOverlappingSlots(t *testing.T) {
	blocks := []ScheduleBlock{
		{Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(10, 0)},
		{Start: NewTimeOfDay(9, 15), End: NewTimeOfDay(11, 0)},
	}

	got := GenerateSlots(monday, testLoc, blocks, 30*time.Minute, nil)

	for i := range got {
		for j := i + 1; j < len(got); j++ {
			assert.False(t, got[i].Overlaps(got[j]), "slots %v and %v overlap", got[i], got[j])
		}
		if i > 0 {
			assert.True(t, got[i-1].Start.Before(got[i].Start))
		}
	}
	assert.Equal(t, [2]string{"10:15", "10:45"}, slotTimes(got)[len(got)-1])
}

func TestGenerateSlots_EndOfDayBlock(t *testing.T) {
	end, err := ParseTimeOfDay("24:00")
	require.NoError(t, err)
	blocks := []ScheduleBlock{{Start: NewTimeOfDay(23, 0), End: end}}

	got := GenerateSlots(monday, testLoc, blocks, 30*time.Minute, nil)

	require.Len(t, got, 2)
	assert.Equal(t, monday.AddDays(1).At(0, testLoc), got[1].End)
}

func TestGenerateSlots_CoverageAndDuration(t *testing.T) {
	blocks := []ScheduleBlock{
		{Start: NewTimeOfDay(7, 0), End: NewTimeOfDay(9, 45)},
		{Start: NewTimeOfDay(13, 10), End: NewTimeOfDay(17, 0)},
	}
	occupied := []Slot{
		{Start: at(7, 40), End: at(8, 5)},
		{Start: at(15, 0), End: at(16, 0)},
	}
	duration := 25 * time.Minute

	got := GenerateSlots(monday, testLoc, blocks, duration, occupied)
	require.NotEmpty(t, got)

	for _, s := range got {
		assert.Equal(t, duration, s.Duration())
		inside := false
		for _, b := range blocks {
			if !s.Start.Before(monday.At(b.Start, testLoc)) && !s.End.After(monday.At(b.End, testLoc)) {
				inside = true
			}
		}
		assert.True(t, inside, "slot %v outside every block", s)
		for _, o := range occupied {
			assert.False(t, s.Overlaps(o), "slot %v overlaps occupied %v", s, o)
		}
	}
}

func TestGenerateSlots_ZeroDuration(t *testing.T) {
	blocks := []ScheduleBlock{{Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(9, 0)}}
	assert.Nil(t, GenerateSlots(monday, testLoc, blocks, 0, nil))
}

func TestSlotOverlaps_HalfOpen(t *testing.T) {
	a := Slot{Start: at(8, 0), End: at(8, 30)}
	b := Slot{Start: at(8, 30), End: at(9, 0)}
	c := Slot{Start: at(8, 29), End: at(8, 31)}

	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))
}
