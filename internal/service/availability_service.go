package service

import (
	"context"
	"errors"
	"time"

	"realtyhub/internal/availability"
	"realtyhub/internal/domain"
	"realtyhub/internal/metrics"
	"realtyhub/internal/models"

	"github.com/rs/zerolog"
)

// MaxAvailabilityWindow bounds a single availability query.
const MaxAvailabilityWindow = 366

// AvailabilityService manages owner blocks and answers window queries.
type AvailabilityService struct {
	blocks     domain.BlockStore
	index      domain.AvailabilityIndex
	properties domain.PropertyDirectory
	logger     *zerolog.Logger
}

func NewAvailabilityService(blocks domain.BlockStore, index domain.AvailabilityIndex, properties domain.PropertyDirectory, logger *zerolog.Logger) *AvailabilityService {
	child := logger.With().Str("component", "availability-service").Logger()
	return &AvailabilityService{
		blocks:     blocks,
		index:      index,
		properties: properties,
		logger:     &child,
	}
}

func (s *AvailabilityService) requireOwner(ctx context.Context, actorID, propertyID int64) error {
	property, err := s.properties.GetProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	if !property.IsOwner(&actorID) {
		return domain.ErrForbidden
	}
	return nil
}

// CreateBlock stores an owner block. It fails with ErrDateConflict when the
// range overlaps a block or a held stay.
func (s *AvailabilityService) CreateBlock(ctx context.Context, actorID int64, block *models.AvailabilityBlock) error {
	r, err := availability.NewDateRange(block.Start, block.End)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, actorID, block.PropertyID); err != nil {
		return err
	}

	block.Start, block.End = r.Start, r.End
	block.CreatedBy = actorID
	if err := s.blocks.CreateBlock(ctx, block); err != nil {
		if errors.Is(err, domain.ErrDateConflict) {
			metrics.IncDateConflict()
		}
		return err
	}

	s.logger.Info().
		Int64("block_id", block.ID).
		Int64("property_id", block.PropertyID).
		Str("range", r.String()).
		Msg("availability block created")
	return nil
}

func (s *AvailabilityService) DeleteBlock(ctx context.Context, actorID, propertyID, blockID int64) error {
	if err := s.requireOwner(ctx, actorID, propertyID); err != nil {
		return err
	}
	if err := s.blocks.DeleteBlock(ctx, propertyID, blockID); err != nil {
		return err
	}
	s.logger.Info().Int64("block_id", blockID).Int64("property_id", propertyID).Msg("availability block deleted")
	return nil
}

func (s *AvailabilityService) ListBlocks(ctx context.Context, actorID, propertyID int64) ([]*models.AvailabilityBlock, error) {
	if err := s.requireOwner(ctx, actorID, propertyID); err != nil {
		return nil, err
	}
	return s.blocks.ListBlocks(ctx, propertyID)
}

// Availability lists the holds of a property that intersect [from, to].
// The answer is public: it reveals occupied days, not who holds them.
func (s *AvailabilityService) Availability(ctx context.Context, propertyID int64, from, to time.Time) ([]models.Hold, error) {
	window, err := availability.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	if window.Days() > MaxAvailabilityWindow {
		return nil, domain.Invalid("to", "window is too large")
	}
	if _, err := s.properties.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}

	holds, err := s.index.Holds(ctx, propertyID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	for i := range holds {
		holds[i].BookingID = nil
	}
	return holds, nil
}
