package doctor

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/events"
)

type Service struct {
	repo        Repository
	events      *events.Emitter
	logger      zerolog.Logger
	phoneRegion string
}

func NewService(repo Repository, emitter *events.Emitter, logger zerolog.Logger, phoneRegion string) *Service {
	return &Service{
		repo:        repo,
		events:      emitter,
		logger:      logger.With().Str("component", "doctor").Logger(),
		phoneRegion: phoneRegion,
	}
}

func (s *Service) CreateDoctor(ctx context.Context, in Input) (*Doctor, error) {
	d := &Doctor{IsAvailable: true}
	if err := in.Apply(d, s.phoneRegion); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Str("specialization", string(d.Specialization)).Msg("doctor created")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, in Input) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.Apply(d, s.phoneRegion); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDoctor removes the doctor together with all of their appointments.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", id.String()).Msg("doctor deleted")
	s.events.Emit(ctx, events.DoctorDeleted, events.RecordDeletedData{ID: id})
	return nil
}

func (s *Service) SearchDoctors(ctx context.Context, params SearchParams, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
