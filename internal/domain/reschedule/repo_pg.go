package reschedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/pkg/schederr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requestCols = `id, appointment_id, patient_id, doctor_id, current_appt_date,
	current_start_min, requested_slot_id, requested_date, requested_start_min,
	reason, status, admin_notes, responded_by, responded_at, created_at, updated_at`

func (r *repoPG) scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.AppointmentID, &req.PatientID, &req.DoctorID,
		&req.CurrentDate, &req.CurrentStart, &req.RequestedSlotID, &req.RequestedDate,
		&req.RequestedTime, &req.Reason, &req.Status, &req.AdminNotes,
		&req.RespondedBy, &req.RespondedAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schederr.NotFoundf("reschedule request not found")
		}
		return nil, err
	}
	return &req, nil
}

func (r *repoPG) Create(ctx context.Context, req *Request) error {
	req.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO reschedule_request (id, appointment_id, patient_id, doctor_id,
			current_appt_date, current_start_min, requested_slot_id, requested_date,
			requested_start_min, reason, status, admin_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		req.ID, req.AppointmentID, req.PatientID, req.DoctorID,
		req.CurrentDate, req.CurrentStart, req.RequestedSlotID, req.RequestedDate,
		req.RequestedTime, req.Reason, req.Status, req.AdminNotes)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: the partial unique index on pending requests.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return schederr.Conflictf("appointment %s already has a pending reschedule request", req.AppointmentID)
		}
		return err
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return r.scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM reschedule_request WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, req *Request) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE reschedule_request SET status=$2, admin_notes=$3, responded_by=$4,
			responded_at=$5, updated_at=NOW()
		WHERE id = $1`,
		req.ID, req.Status, req.AdminNotes, req.RespondedBy, req.RespondedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schederr.NotFoundf("reschedule request %s not found", req.ID)
	}
	return nil
}

func (r *repoPG) GetPendingByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Request, error) {
	return r.scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM reschedule_request
		 WHERE appointment_id = $1 AND status = 'pending'`, appointmentID))
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status Status, limit, offset int) ([]*Request, int, error) {
	return r.list(ctx, "doctor_id", doctorID, status, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Request, int, error) {
	return r.list(ctx, "patient_id", patientID, status, limit, offset)
}

func (r *repoPG) list(ctx context.Context, col string, id uuid.UUID, status Status, limit, offset int) ([]*Request, int, error) {
	where := col + ` = $1`
	args := []interface{}{id}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM reschedule_request WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM reschedule_request WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		requestCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, req)
	}
	return items, total, rows.Err()
}
