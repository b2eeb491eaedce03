package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/civil"
)

// activeSlotIndex is the partial unique index over live appointments.
const activeSlotIndex = "appointment_active_slot_uniq"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) AppointmentRepository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `a.id, a.patient_id, a.doctor_id, a.appointment_date, to_char(a.appointment_time, 'HH24:MI'),
	a.status, a.notes, a.timezone, a.created_by, a.created_at, a.updated_at`

const detailCols = apptCols + `, p.first_name || ' ' || p.last_name, 'Dr. ' || d.first_name || ' ' || d.last_name`

const detailFrom = ` FROM appointment a
	JOIN patient p ON p.id = a.patient_id
	JOIN doctor d ON d.id = a.doctor_id`

// scanAppointment reads apptCols followed by any extra columns into extra.
func scanAppointment(row pgx.Row, extra ...interface{}) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var clock, status string
	dest := append([]interface{}{&a.ID, &a.PatientID, &a.DoctorID, &date, &clock,
		&status, &a.Notes, &a.Timezone, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	a.Date = civil.DateOf(date)
	a.Status = Status(status)
	t, err := civil.ParseTime(clock)
	if err != nil {
		return nil, fmt.Errorf("scan appointment %s: %w", a.ID, err)
	}
	a.Time = t
	return &a, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	a, err := scanAppointment(row, &d.PatientName, &d.DoctorName)
	if err != nil {
		return nil, err
	}
	d.Appointment = *a
	return &d, nil
}

func slotTaken(err error, a *Appointment) error {
	if db.IsUniqueViolation(err, activeSlotIndex) {
		return &SlotTakenError{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, appointment_date, appointment_time,
			status, notes, timezone, created_by)
		VALUES ($1,$2,$3,$4,$5::time,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date.In(time.UTC), a.Time.String(),
		string(a.Status), a.Notes, a.Timezone, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return slotTaken(err, a)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment a WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment", id)
	}
	return a, err
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET patient_id=$2, doctor_id=$3, appointment_date=$4, appointment_time=$5::time,
			status=$6, notes=$7, timezone=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date.In(time.UTC), a.Time.String(),
		string(a.Status), a.Notes, a.Timezone,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("appointment", a.ID)
	}
	return slotTaken(err, a)
}

func (r *repoPG) HasConflict(ctx context.Context, doctorID uuid.UUID, date civil.Date, t civil.Time, exclude *uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE doctor_id = $1 AND appointment_date = $2 AND appointment_time = $3::time
			  AND status <> 'CANCELLED'
			  AND ($4::uuid IS NULL OR id <> $4)
		)`,
		doctorID, date.In(time.UTC), t.String(), exclude,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) listDetails(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Detail, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+detailFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	idx := len(args) + 1
	query := `SELECT ` + detailCols + detailFrom + where +
		fmt.Sprintf(` ORDER BY a.appointment_date, a.appointment_time, a.id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.queryDetails(ctx, query, args...)
	return items, total, err
}

func (r *repoPG) queryDetails(ctx context.Context, query string, args ...interface{}) ([]*Detail, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Detail, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if q := strings.TrimSpace(params.Query); q != "" {
		where += fmt.Sprintf(` AND (p.first_name ILIKE $%d OR p.last_name ILIKE $%d OR d.first_name ILIKE $%d OR d.last_name ILIKE $%d)`,
			idx, idx, idx, idx)
		args = append(args, "%"+escapeLike(q)+"%")
		idx++
	}
	if params.Status != nil {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, string(*params.Status))
	}
	return r.listDetails(ctx, where, args, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Detail, int, error) {
	return r.listDetails(ctx, ` WHERE a.patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) UpcomingByDoctor(ctx context.Context, doctorID uuid.UUID, from civil.Date, limit int) ([]*Detail, error) {
	return r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+`
		WHERE a.doctor_id = $1 AND a.appointment_date >= $2 AND a.status <> 'CANCELLED'
		ORDER BY a.appointment_date, a.appointment_time, a.id
		LIMIT $3`,
		doctorID, from.In(time.UTC), limit)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
