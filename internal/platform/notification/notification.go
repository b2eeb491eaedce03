// Package notification emails patients when their appointments are booked,
// moved, or cancelled. It plugs into the event stream as an
// events.Publisher.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/events"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template defines a reusable notification template. Placeholders are
// written {{key}}.
type Template struct {
	ID      string
	Subject string
	Body    string
}

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with one template per
// appointment event type.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	builtIn := []Template{
		{
			ID:      events.AppointmentBooked,
			Subject: "Appointment confirmed with {{doctor_name}}",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} is booked for {{date}} at {{time}} ({{timezone}}).",
		},
		{
			ID:      events.AppointmentUpdated,
			Subject: "Appointment changed with {{doctor_name}}",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} is now on {{date}} at {{time}} ({{timezone}}). Status: {{status}}.",
		},
		{
			ID:      events.AppointmentCancelled,
			Subject: "Appointment cancelled",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{time}} has been cancelled.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

func (e *TemplateEngine) Has(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[id]
	return ok
}

// Render performs {{key}} replacement. Keys absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Notifier turns appointment events into patient emails. Events without a
// matching template or without a patient email are ignored.
type Notifier struct {
	sender    EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger
	attempts  int
	backoff   time.Duration
}

func NewNotifier(sender EmailSender, templates *TemplateEngine, logger zerolog.Logger) *Notifier {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Notifier{
		sender:    sender,
		templates: templates,
		logger:    logger,
		attempts:  3,
		backoff:   500 * time.Millisecond,
	}
}

func (n *Notifier) Publish(ctx context.Context, e events.Event) error {
	if !n.templates.Has(e.Type) {
		return nil
	}
	data, ok := e.Data.(events.AppointmentData)
	if !ok || data.PatientEmail == "" {
		return nil
	}

	subject, body, err := n.templates.Render(e.Type, map[string]string{
		"patient_name": data.PatientName,
		"doctor_name":  data.DoctorName,
		"date":         data.Date,
		"time":         data.Time,
		"timezone":     data.Timezone,
		"status":       data.Status,
	})
	if err != nil {
		return err
	}

	var sendErr error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		sendErr = n.sender.SendEmail(ctx, data.PatientEmail, subject, body)
		if sendErr == nil {
			n.logger.Debug().
				Str("event_type", e.Type).
				Str("appointment_id", data.AppointmentID.String()).
				Msg("notification sent")
			return nil
		}
		if attempt == n.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("notify %s after %d attempts: %w", e.Type, n.attempts, sendErr)
}

func (n *Notifier) Close() error { return nil }
