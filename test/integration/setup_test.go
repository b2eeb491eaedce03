//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/migrations"
)

// testPool is shared by every test; each test truncates what it touches.
var testPool *pgxpool.Pool

// TestMain uses CLINIC_TEST_DATABASE_URL when set and otherwise starts a
// throwaway Postgres container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("CLINIC_TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			os.Exit(1)
		}
	}

	pool, err := db.NewPool(ctx, connStr, db.PoolOptions{MaxConns: 10})
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx, "public"); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	testPool = pool

	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

type env struct {
	patients   *patient.Service
	doctors    *doctor.Service
	scheduling *scheduling.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	if _, err := testPool.Exec(ctx, `TRUNCATE appointment, patient, doctor, app_user CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	ps := patient.NewService(patient.NewRepoPG(testPool), nil, zerolog.Nop(), "US", time.UTC)
	ds := doctor.NewService(doctor.NewRepoPG(testPool), nil, zerolog.Nop(), "US")
	ss := scheduling.NewService(scheduling.NewRepoPG(testPool), ps, ds, db.NewTxRunner(testPool),
		nil, nil, zerolog.Nop(), time.UTC)
	return &env{patients: ps, doctors: ds, scheduling: ss}
}

func (e *env) patient(t *testing.T, first string) *patient.Patient {
	t.Helper()
	p, err := e.patients.CreatePatient(context.Background(), patient.Input{
		FirstName: first, LastName: "Patient", DateOfBirth: "1985-03-02", Gender: "F", PhoneNumber: "+12015550123",
		Address: "1 Harley Street",
	}, nil)
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func (e *env) doctor(t *testing.T, last string) *doctor.Doctor {
	t.Helper()
	d, err := e.doctors.CreateDoctor(context.Background(), doctor.Input{
		FirstName: "Grace", LastName: last, Specialization: "CARD",
		Email: "doc@clinic.example", PhoneNumber: "+12015550123",
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return d
}
