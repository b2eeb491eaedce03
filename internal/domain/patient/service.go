package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/pkg/civil"
)

type Service struct {
	repo        Repository
	events      *events.Emitter
	logger      zerolog.Logger
	phoneRegion string
	loc         *time.Location
	now         func() time.Time
}

func NewService(repo Repository, emitter *events.Emitter, logger zerolog.Logger, phoneRegion string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:        repo,
		events:      emitter,
		logger:      logger.With().Str("component", "patient").Logger(),
		phoneRegion: phoneRegion,
		loc:         loc,
		now:         time.Now,
	}
}

// Today is the current date in the clinic's location.
func (s *Service) Today() civil.Date {
	return civil.Today(s.now(), s.loc)
}

func (s *Service) CreatePatient(ctx context.Context, in Input, createdBy *uuid.UUID) (*Patient, error) {
	p := &Patient{CreatedBy: createdBy}
	if err := in.Apply(p, s.phoneRegion, s.Today()); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient created")
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, in Input) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.Apply(p, s.phoneRegion, s.Today()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePatient removes the patient together with all of their
// appointments.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted")
	s.events.Emit(ctx, events.PatientDeleted, events.RecordDeletedData{ID: id})
	return nil
}

func (s *Service) SearchPatients(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
