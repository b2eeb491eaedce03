// Package events publishes domain events after the state change that caused
// them has committed. Delivery is best effort; a failed publish never undoes
// or fails the originating request.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Routing keys.
const (
	AppointmentBooked    = "appointment.booked"
	AppointmentUpdated   = "appointment.updated"
	AppointmentCancelled = "appointment.cancelled"
	PatientDeleted       = "patient.deleted"
	DoctorDeleted        = "doctor.deleted"
)

const Source = "clinic"

type Event struct {
	Type       string    `json:"event_type"`
	ID         string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source"`
	Data       any       `json:"data"`
}

func New(eventType string, data any) Event {
	return Event{
		Type:       eventType,
		ID:         uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Source:     Source,
		Data:       data,
	}
}

// AppointmentData is the payload of the appointment.* events. Patient and
// doctor names are denormalized so consumers need not call back.
type AppointmentData struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email,omitempty"`
	DoctorName    string    `json:"doctor_name"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Timezone      string    `json:"timezone"`
	Status        string    `json:"status"`
}

type RecordDeletedData struct {
	ID uuid.UUID `json:"id"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder counts publish outcomes. *telemetry.Metrics satisfies it.
type Recorder interface {
	RecordEvent(routingKey string, err error)
}

// QueueSize bounds the events waiting for delivery. Emit drops events
// beyond it rather than stall the request that produced them.
const QueueSize = 1024

const (
	publishTimeout = 5 * time.Second
	drainTimeout   = 10 * time.Second
)

type job struct {
	ctx     context.Context
	event   Event
	flushed chan struct{}
}

// Emitter is what services hold. Emit queues the event and returns; a single
// worker publishes in emission order, detached from the request context so
// a client disconnect right after commit does not drop the event. Failures
// are logged and swallowed.
type Emitter struct {
	pub      Publisher
	logger   zerolog.Logger
	recorder Recorder
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

// NewEmitter starts the delivery worker. Call Close to drain it.
func NewEmitter(pub Publisher, logger zerolog.Logger, recorder Recorder) *Emitter {
	return newEmitter(pub, logger, recorder, QueueSize)
}

func newEmitter(pub Publisher, logger zerolog.Logger, recorder Recorder, size int) *Emitter {
	if pub == nil {
		pub = Noop{}
	}
	em := &Emitter{
		pub:      pub,
		logger:   logger,
		recorder: recorder,
		timeout:  publishTimeout,
		queue:    make(chan job, size),
		done:     make(chan struct{}),
	}
	go em.worker()
	return em
}

// Emit is safe on a nil receiver and after Close.
func (em *Emitter) Emit(ctx context.Context, eventType string, data any) {
	if em == nil {
		return
	}
	e := New(eventType, data)

	em.mu.RLock()
	defer em.mu.RUnlock()
	if em.closed {
		em.drop(e, "emitter closed")
		return
	}
	select {
	case em.queue <- job{ctx: context.WithoutCancel(ctx), event: e}:
	default:
		em.drop(e, "event queue full")
	}
}

func (em *Emitter) drop(e Event, reason string) {
	if em.recorder != nil {
		em.recorder.RecordEvent(e.Type, errors.New(reason))
	}
	em.logger.Warn().
		Str("event_type", e.Type).
		Str("event_id", e.ID).
		Msg(reason + ", dropping event")
}

// Flush blocks until every event emitted before the call has been handed
// to the publisher, or ctx ends.
func (em *Emitter) Flush(ctx context.Context) error {
	if em == nil {
		return nil
	}
	em.mu.RLock()
	if em.closed {
		em.mu.RUnlock()
		return nil
	}
	flushed := make(chan struct{})
	select {
	case em.queue <- job{flushed: flushed}:
		em.mu.RUnlock()
	case <-ctx.Done():
		em.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for the queued ones to be
// published. It does not close the underlying publisher.
func (em *Emitter) Close() {
	if em == nil {
		return
	}
	em.mu.Lock()
	if em.closed {
		em.mu.Unlock()
		return
	}
	em.closed = true
	close(em.queue)
	em.mu.Unlock()

	select {
	case <-em.done:
	case <-time.After(drainTimeout):
		em.logger.Warn().Int("pending", len(em.queue)).Msg("event queue drain timed out")
	}
}

func (em *Emitter) worker() {
	defer close(em.done)
	for j := range em.queue {
		if j.flushed != nil {
			close(j.flushed)
			continue
		}
		em.publish(j.ctx, j.event)
	}
}

func (em *Emitter) publish(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, em.timeout)
	defer cancel()

	err := em.pub.Publish(ctx, e)
	if em.recorder != nil {
		em.recorder.RecordEvent(e.Type, err)
	}
	if err != nil {
		em.logger.Warn().Err(err).
			Str("event_type", e.Type).
			Str("event_id", e.ID).
			Msg("event publish failed")
	}
}
