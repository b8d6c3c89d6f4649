package scheduling

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
	"github.com/medsched/medsched/pkg/timeslot"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Template Repository ===========

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository { return &templateRepoPG{pool: pool} }

func (r *templateRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const templateCols = `id, doctor_id, weekday, start_min, end_min, slot_minutes, buffer_minutes,
	breaks, active, created_at, updated_at`

func (r *templateRepoPG) scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var breaks []byte
	err := row.Scan(&t.ID, &t.DoctorID, &t.Weekday, &t.StartTime, &t.EndTime,
		&t.SlotMinutes, &t.BufferMinutes, &breaks, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schederr.NotFoundf("template not found")
		}
		return nil, err
	}
	if len(breaks) > 0 {
		if err := json.Unmarshal(breaks, &t.Breaks); err != nil {
			return nil, fmt.Errorf("decode breaks: %w", err)
		}
	}
	return &t, nil
}

func (r *templateRepoPG) Create(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	breaks, err := json.Marshal(t.Breaks)
	if err != nil {
		return fmt.Errorf("encode breaks: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO availability_template (id, doctor_id, weekday, start_min, end_min,
			slot_minutes, buffer_minutes, breaks, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.DoctorID, t.Weekday, t.StartTime, t.EndTime,
		t.SlotMinutes, t.BufferMinutes, breaks, t.Active)
	return err
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	return r.scanTemplate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+templateCols+` FROM availability_template WHERE id = $1`, id))
}

func (r *templateRepoPG) Update(ctx context.Context, t *Template) error {
	breaks, err := json.Marshal(t.Breaks)
	if err != nil {
		return fmt.Errorf("encode breaks: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_template SET weekday=$2, start_min=$3, end_min=$4,
			slot_minutes=$5, buffer_minutes=$6, breaks=$7, active=$8, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Weekday, t.StartTime, t.EndTime,
		t.SlotMinutes, t.BufferMinutes, breaks, t.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schederr.NotFoundf("template %s not found", t.ID)
	}
	return nil
}

func (r *templateRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_template WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schederr.NotFoundf("template %s not found", id)
	}
	return nil
}

func (r *templateRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Template, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM availability_template WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+templateCols+` FROM availability_template WHERE doctor_id = $1
		 ORDER BY weekday ASC, start_min ASC LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

func (r *templateRepoPG) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Template, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+templateCols+` FROM availability_template
		 WHERE doctor_id = $1 AND active ORDER BY weekday ASC, start_min ASC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotCols = `id, doctor_id, slot_date, start_min, end_min, status, appointment_id,
	source, created_at, updated_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	err := row.Scan(&sl.ID, &sl.DoctorID, &sl.Date, &sl.StartTime, &sl.EndTime,
		&sl.Status, &sl.AppointmentID, &sl.Source, &sl.CreatedAt, &sl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schederr.NotFoundf("slot not found")
		}
		return nil, err
	}
	return &sl, nil
}

func (r *slotRepoPG) Create(ctx context.Context, sl *Slot) error {
	sl.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO time_slot (id, doctor_id, slot_date, start_min, end_min, status, appointment_id, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sl.ID, sl.DoctorID, sl.Date, sl.StartTime, sl.EndTime, sl.Status, sl.AppointmentID, sl.Source)
	return err
}

func (r *slotRepoPG) CreateBatch(ctx context.Context, slots []*Slot) error {
	for _, sl := range slots {
		if err := r.Create(ctx, sl); err != nil {
			return err
		}
	}
	return nil
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM time_slot WHERE id = $1`, id))
}

func (r *slotRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Slot, error) {
	return r.scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM time_slot WHERE appointment_id = $1`, appointmentID))
}

func (r *slotRepoPG) FindByDoctorDateTime(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, start timeslot.TimeOfDay) (*Slot, error) {
	return r.scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM time_slot WHERE doctor_id = $1 AND slot_date = $2 AND start_min = $3`,
		doctorID, date, start))
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM time_slot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schederr.NotFoundf("slot %s not found", id)
	}
	return nil
}

func (r *slotRepoPG) CountByDoctorDate(ctx context.Context, doctorID uuid.UUID, date timeslot.Date) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM time_slot WHERE doctor_id = $1 AND slot_date = $2`, doctorID, date).Scan(&n)
	return n, err
}

func (r *slotRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date timeslot.Date) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+slotCols+` FROM time_slot WHERE doctor_id = $1 AND slot_date = $2 ORDER BY start_min ASC`,
		doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *slotRepoPG) ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date, status SlotStatus, limit, offset int) ([]*Slot, int, error) {
	where := `doctor_id = $1 AND slot_date BETWEEN $2 AND $3`
	args := []interface{}{doctorID, from, to}
	if status != "" {
		where += ` AND status = $4`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM time_slot WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM time_slot WHERE %s ORDER BY slot_date ASC, start_min ASC LIMIT $%d OFFSET $%d`,
		slotCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
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

func (r *slotRepoPG) ListAvailableInRange(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+slotCols+` FROM time_slot
		 WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3 AND status = 'available'
		 ORDER BY slot_date ASC, start_min ASC`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *slotRepoPG) NextAvailable(ctx context.Context, doctorID uuid.UUID, from timeslot.Date) (*Slot, error) {
	return r.scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM time_slot
		 WHERE doctor_id = $1 AND slot_date >= $2 AND status = 'available'
		 ORDER BY slot_date ASC, start_min ASC LIMIT 1`, doctorID, from))
}

func (r *slotRepoPG) StatusCountsByDate(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]DayStatusCount, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT slot_date, status, COUNT(*) FROM time_slot
		 WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3
		 GROUP BY slot_date, status ORDER BY slot_date ASC`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []DayStatusCount
	for rows.Next() {
		var c DayStatusCount
		if err := rows.Scan(&c.Date, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *slotRepoPG) Book(ctx context.Context, slotID, appointmentID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET status = 'booked', appointment_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'available'`, slotID, appointmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from a bad id.
		if _, err := r.GetByID(ctx, slotID); err != nil {
			return err
		}
		return schederr.Conflictf("slot %s is no longer available", slotID)
	}
	return nil
}

func (r *slotRepoPG) Release(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET status = 'available', appointment_id = NULL, updated_at = NOW()
		WHERE id = $1`, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schederr.NotFoundf("slot %s not found", slotID)
	}
	return nil
}

func (r *slotRepoPG) Transition(ctx context.Context, slotID uuid.UUID, from, to SlotStatus) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, slotID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *slotRepoPG) Block(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET status = 'blocked', updated_at = NOW()
		WHERE id = $1`, slotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schederr.NotFoundf("slot %s not found", slotID)
	}
	return nil
}

func (r *slotRepoPG) Restore(ctx context.Context, slotID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET status = 'available', updated_at = NOW()
		WHERE id = $1 AND status = 'blocked' AND appointment_id IS NULL`, slotID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *slotRepoPG) collect(rows pgx.Rows) ([]*Slot, error) {
	var items []*Slot
	for rows.Next() {
		sl, err := r.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, rows.Err()
}
