package exception

import (
	"context"
	"encoding/json"
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

const exceptionCols = `id, doctor_id, exception_type, exception_date, start_min, end_min, reason,
	affected_slot_ids, recurring, recur_pattern, recur_interval, recur_end_date,
	created_by, created_at, updated_at`

func (r *repoPG) scanException(row pgx.Row) (*Exception, error) {
	var e Exception
	var affected []byte
	var pattern *string
	var createdBy *uuid.UUID
	err := row.Scan(&e.ID, &e.DoctorID, &e.Type, &e.Date, &e.StartTime, &e.EndTime, &e.Reason,
		&affected, &e.Recurring, &pattern, &e.RecurInterval, &e.RecurEndDate,
		&createdBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schederr.NotFoundf("exception not found")
		}
		return nil, err
	}
	if pattern != nil {
		e.RecurPattern = RecurPattern(*pattern)
	}
	if createdBy != nil {
		e.CreatedBy = *createdBy
	}
	if len(affected) > 0 {
		if err := json.Unmarshal(affected, &e.AffectedSlotIDs); err != nil {
			return nil, fmt.Errorf("decode affected slots: %w", err)
		}
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Exception) error {
	e.ID = uuid.New()
	affected, err := json.Marshal(e.AffectedSlotIDs)
	if err != nil {
		return fmt.Errorf("encode affected slots: %w", err)
	}
	var pattern *string
	if e.RecurPattern != "" {
		p := string(e.RecurPattern)
		pattern = &p
	}
	var createdBy *uuid.UUID
	if e.CreatedBy != uuid.Nil {
		createdBy = &e.CreatedBy
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_exception (id, doctor_id, exception_type, exception_date, start_min, end_min,
			reason, affected_slot_ids, recurring, recur_pattern, recur_interval, recur_end_date, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.DoctorID, e.Type, e.Date, e.StartTime, e.EndTime,
		e.Reason, affected, e.Recurring, pattern, e.RecurInterval, e.RecurEndDate, createdBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Exception, error) {
	return r.scanException(r.conn(ctx).QueryRow(ctx,
		`SELECT `+exceptionCols+` FROM doctor_exception WHERE id = $1`, id))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_exception WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schederr.NotFoundf("exception %s not found", id)
	}
	return nil
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Exception, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_exception WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+exceptionCols+` FROM doctor_exception WHERE doctor_id = $1
		 ORDER BY exception_date ASC LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) AllByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Exception, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+exceptionCols+` FROM doctor_exception WHERE doctor_id = $1 ORDER BY exception_date ASC`,
		doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *repoPG) collect(rows pgx.Rows) ([]*Exception, error) {
	var items []*Exception
	for rows.Next() {
		e, err := r.scanException(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
