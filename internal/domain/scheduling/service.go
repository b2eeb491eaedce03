package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/civil"
)

// UpcomingLimit caps the doctor's upcoming appointment list.
const UpcomingLimit = 10

// Service is the booking orchestrator. Each call is one unit of work; the
// conflict check and the write share a transaction and the partial unique
// index settles any race between concurrent bookings.
type Service struct {
	repo     AppointmentRepository
	patients PatientLookup
	doctors  DoctorLookup
	checker  *ConflictChecker
	tx       db.TxRunner
	events   *events.Emitter
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewService wires the orchestrator. loc is the clinic's location, used to
// decide whether a date and time lie in the past; metrics may be nil.
func NewService(repo AppointmentRepository, patients PatientLookup, doctors DoctorLookup, tx db.TxRunner,
	emitter *events.Emitter, metrics *telemetry.Metrics, logger zerolog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		patients: patients,
		doctors:  doctors,
		checker:  NewConflictChecker(repo),
		tx:       tx,
		events:   emitter,
		metrics:  metrics,
		tracer:   telemetry.Tracer(),
		logger:   logger.With().Str("component", "scheduling").Logger(),
		loc:      loc,
		now:      time.Now,
	}
}

// Today is the current date in the clinic's location.
func (s *Service) Today() civil.Date {
	return civil.Today(s.now(), s.loc)
}

type parties struct {
	patient *patient.Patient
	doctor  *doctor.Doctor
}

func (s *Service) resolve(ctx context.Context, patientID, doctorID uuid.UUID) (parties, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return parties{}, err
	}
	d, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return parties{}, err
	}
	return parties{patient: p, doctor: d}, nil
}

// acceptsBookings rejects a doctor who is not taking new appointments.
func acceptsBookings(d *doctor.Doctor) error {
	if d.IsAvailable {
		return nil
	}
	v := &apperr.ValidationError{}
	v.Add("doctor_id", "doctor is not accepting appointments")
	return v
}

// Book creates an appointment. Checks run in order and the first failure
// is returned: unknown patient or doctor, a doctor not accepting
// appointments, a past date and time, then an occupied slot.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Book", trace.WithAttributes(
		attribute.String("doctor_id", req.DoctorID.String()),
		attribute.String("appointment_date", req.Date.String()),
		attribute.String("appointment_time", req.Time.String()),
	))
	defer span.End()

	pt, err := s.resolve(ctx, req.PatientID, req.DoctorID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if err := acceptsBookings(pt.doctor); err != nil {
		return nil, s.fail(span, err)
	}
	if err := ValidateNotPast(req.Date, req.Time, s.now(), s.loc); err != nil {
		return nil, s.fail(span, err)
	}

	a := &Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Time:      req.Time,
		Status:    StatusScheduled,
		Notes:     req.Notes,
		Timezone:  req.Timezone,
		CreatedBy: req.CreatedBy,
	}
	if req.Status != nil {
		a.Status = *req.Status
	}

	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, a, nil); err != nil {
			return err
		}
		return s.repo.Create(ctx, a)
	}); err != nil {
		return nil, s.fail(span, err)
	}

	span.SetAttributes(attribute.String("appointment_id", a.ID.String()))
	s.metrics.RecordBooking(telemetry.OutcomeBooked)
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Str("slot", a.Date.String()+" "+a.Time.String()).
		Msg("appointment booked")
	s.events.Emit(ctx, events.AppointmentBooked, eventData(a, pt))
	return a, nil
}

// Update replaces the appointment's fields after the same checks as Book.
// The appointment never conflicts with itself, so keeping its slot is
// allowed. Status changes only when req.Status is set.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req BookingRequest) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Update", trace.WithAttributes(
		attribute.String("appointment_id", id.String()),
		attribute.String("doctor_id", req.DoctorID.String()),
	))
	defer span.End()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	pt, err := s.resolve(ctx, req.PatientID, req.DoctorID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	// Appointments already held with a doctor who stopped taking bookings
	// stay editable; only moving to such a doctor is refused.
	if req.DoctorID != a.DoctorID {
		if err := acceptsBookings(pt.doctor); err != nil {
			return nil, s.fail(span, err)
		}
	}
	if err := ValidateNotPast(req.Date, req.Time, s.now(), s.loc); err != nil {
		return nil, s.fail(span, err)
	}

	next := *a
	next.PatientID = req.PatientID
	next.DoctorID = req.DoctorID
	next.Date = req.Date
	next.Time = req.Time
	next.Notes = req.Notes
	next.Timezone = req.Timezone
	if req.Status != nil {
		next.Status = *req.Status
	}

	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, &next, &next.ID); err != nil {
			return err
		}
		return s.repo.Update(ctx, &next)
	}); err != nil {
		return nil, s.fail(span, err)
	}

	s.metrics.RecordBooking(telemetry.OutcomeUpdated)
	s.logger.Info().
		Str("appointment_id", next.ID.String()).
		Str("slot", next.Date.String()+" "+next.Time.String()).
		Str("status", string(next.Status)).
		Msg("appointment updated")
	s.events.Emit(ctx, events.AppointmentUpdated, eventData(&next, pt))
	return &next, nil
}

// Cancel marks the appointment cancelled and frees its slot. Cancelling an
// already cancelled appointment returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Cancel", trace.WithAttributes(
		attribute.String("appointment_id", id.String()),
	))
	defer span.End()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if a.Status == StatusCancelled {
		return a, nil
	}
	pt, err := s.resolve(ctx, a.PatientID, a.DoctorID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	a.Status = StatusCancelled
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, s.fail(span, err)
	}

	s.metrics.RecordBooking(telemetry.OutcomeCancelled)
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Msg("appointment cancelled")
	s.events.Emit(ctx, events.AppointmentCancelled, eventData(a, pt))
	return a, nil
}

func (s *Service) ensureFree(ctx context.Context, a *Appointment, exclude *uuid.UUID) error {
	if a.Status == StatusCancelled {
		return nil
	}
	taken, err := s.checker.HasConflict(ctx, a.DoctorID, a.Date, a.Time, exclude)
	if err != nil {
		return err
	}
	if taken {
		return &SlotTakenError{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
	}
	return nil
}

// fail records the rejection on the span and in metrics and returns err.
func (s *Service) fail(span trace.Span, err error) error {
	var taken *SlotTakenError
	var past *PastDateError
	switch {
	case errors.As(err, &taken):
		s.metrics.RecordBooking(telemetry.OutcomeSlotTaken)
		s.logger.Info().
			Str("doctor_id", taken.DoctorID.String()).
			Str("slot", taken.Date.String()+" "+taken.Time.String()).
			Msg("booking rejected: slot taken")
		span.SetAttributes(attribute.String("rejected", "slot_taken"))
	case errors.As(err, &past):
		s.metrics.RecordBooking(telemetry.OutcomePastDate)
		span.SetAttributes(attribute.String("rejected", "past_date"))
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalid):
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func eventData(a *Appointment, pt parties) events.AppointmentData {
	return events.AppointmentData{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		PatientName:   pt.patient.FullName(),
		PatientEmail:  pt.patient.EmailAddress(),
		DoctorName:    pt.doctor.FullName(),
		Date:          a.Date.String(),
		Time:          a.Time.String(),
		Timezone:      a.Timezone,
		Status:        string(a.Status),
	}
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, params SearchParams, limit, offset int) ([]*Detail, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Detail, int, error) {
	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// UpcomingForDoctor returns the doctor's next live appointments from today
// in the clinic's location, earliest first.
func (s *Service) UpcomingForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Detail, error) {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.UpcomingByDoctor(ctx, doctorID, s.Today(), UpcomingLimit)
}
