package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMetrics_RecordBooking(t *testing.T) {
	m := NewMetrics("clinic")
	m.RecordBooking(OutcomeBooked)
	m.RecordBooking(OutcomeBooked)
	m.RecordBooking(OutcomeSlotTaken)

	if got := testutil.ToFloat64(m.Bookings.WithLabelValues(OutcomeBooked)); got != 2 {
		t.Errorf("expected 2 booked, got %v", got)
	}
	if got := testutil.ToFloat64(m.Bookings.WithLabelValues(OutcomeSlotTaken)); got != 1 {
		t.Errorf("expected 1 slot_taken, got %v", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.RecordBooking(OutcomeBooked)
	m.RecordEvent("appointment.booked", nil)
}

func TestMetrics_RecordEvent(t *testing.T) {
	m := NewMetrics("clinic")
	m.RecordEvent("appointment.booked", nil)
	m.RecordEvent("appointment.booked", errors.New("channel closed"))

	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("appointment.booked", "error")); got != 1 {
		t.Errorf("expected 1 failed publish, got %v", got)
	}
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics("clinic")
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/doctors/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/doctors/:id", "404"))
	if got != 1 {
		t.Errorf("expected 1 request recorded for route pattern, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("clinic")
	m.RecordBooking(OutcomePastDate)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `clinic_scheduling_booking_outcomes_total{outcome="past_date"} 1`) {
		t.Errorf("expected booking counter in exposition, got:\n%s", body)
	}
}

func TestTracingMiddleware_RecordsServerSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	e := echo.New()
	e.Use(TracingMiddleware(tp))
	e.POST("/api/v1/appointments", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	e.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "POST /api/v1/appointments" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status on 500, got %v", spans[0].Status().Code)
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	tp, err := InitTracer(context.Background(), TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tp.Shutdown(context.Background())

	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsSampled() {
		t.Error("expected spans not to be sampled when tracing is disabled")
	}
	span.End()
}
