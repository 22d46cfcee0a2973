package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidScheduleBlock     = errors.New("schedule block needs a weekday 0-6 and an end after its start")
	ErrOverlappingScheduleBlock = errors.New("schedule block overlaps an existing block on that day")
)

// AddScheduleBlock adds a weekly availability window. Blocks of the same
// professional and weekday may touch but not overlap.
func (s *Service) AddScheduleBlock(ctx context.Context, professionalID uuid.UUID, weekday Weekday, start, end TimeOfDay) (*ScheduleBlock, error) {
	if !weekday.Valid() || !start.Valid() || !end.Valid() || end <= start {
		return nil, ErrInvalidScheduleBlock
	}

	if _, err := s.repo.GetProfessionalByID(ctx, professionalID); err != nil {
		return nil, wrapLoad("professional", err, ErrProfessionalNotFound)
	}

	var created *ScheduleBlock
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockProfessional(ctx, professionalID); err != nil {
			return err
		}
		existing, err := tx.ListScheduleBlocks(ctx, professionalID, &weekday)
		if err != nil {
			return fmt.Errorf("list schedule blocks: %w", err)
		}
		for _, b := range existing {
			if start < b.End && b.Start < end {
				return ErrOverlappingScheduleBlock
			}
		}

		block, err := tx.CreateScheduleBlock(ctx, ScheduleBlock{
			ID:             uuid.New(),
			ProfessionalID: professionalID,
			Weekday:        weekday,
			Start:          start,
			End:            end,
		})
		if err != nil {
			return err
		}
		created = block
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("schedule block added",
		"professional_id", professionalID,
		"weekday", weekday.String(),
		"start", start.String(),
		"end", end.String(),
	)
	return created, nil
}

// ListScheduleBlocks returns the whole weekly template of a professional.
func (s *Service) ListScheduleBlocks(ctx context.Context, professionalID uuid.UUID) ([]ScheduleBlock, error) {
	if _, err := s.repo.GetProfessionalByID(ctx, professionalID); err != nil {
		return nil, wrapLoad("professional", err, ErrProfessionalNotFound)
	}
	blocks, err := s.repo.ListScheduleBlocks(ctx, professionalID, nil)
	if err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	return blocks, nil
}

func (s *Service) DeleteScheduleBlock(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteScheduleBlock(ctx, id); err != nil {
		return wrapLoad("schedule block", err, ErrScheduleBlockNotFound)
	}
	s.logger.Info("schedule block deleted", "schedule_block_id", id)
	return nil
}
