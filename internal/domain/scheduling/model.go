// Package scheduling owns doctor availability templates, the concrete
// time-slot inventory generated from them, the booking state machine,
// and the read-side availability queries.
package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

// BreakWindow is a carve-out inside a template's working window, e.g.
// a lunch break. Half-open [Start, End).
type BreakWindow struct {
	Start timeslot.TimeOfDay `json:"start"`
	End   timeslot.TimeOfDay `json:"end"`
}

// Template maps to the availability_template table. One row describes
// a doctor's recurring working window for one weekday; slot expansion
// walks the window in SlotMinutes+BufferMinutes strides.
type Template struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	DoctorID      uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	Weekday       time.Weekday       `db:"weekday" json:"weekday"`
	StartTime     timeslot.TimeOfDay `db:"start_min" json:"start_time"`
	EndTime       timeslot.TimeOfDay `db:"end_min" json:"end_time"`
	SlotMinutes   int                `db:"slot_minutes" json:"slot_minutes"`
	BufferMinutes int                `db:"buffer_minutes" json:"buffer_minutes"`
	Breaks        []BreakWindow      `db:"breaks" json:"breaks,omitempty"`
	Active        bool               `db:"active" json:"active"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// Validate checks the template invariants before it is persisted.
func (t *Template) Validate() error {
	if t.DoctorID == uuid.Nil {
		return schederr.Validationf("doctor_id is required")
	}
	if t.Weekday < time.Sunday || t.Weekday > time.Saturday {
		return schederr.Validationf("weekday must be 0-6, got %d", t.Weekday)
	}
	if !t.StartTime.Valid() || !t.EndTime.Valid() {
		return schederr.Validationf("start_time and end_time must be within a single day")
	}
	if t.StartTime >= t.EndTime {
		return schederr.Validationf("start_time %s must be before end_time %s", t.StartTime, t.EndTime)
	}
	if t.SlotMinutes <= 0 {
		return schederr.Validationf("slot_minutes must be positive, got %d", t.SlotMinutes)
	}
	if t.BufferMinutes < 0 {
		return schederr.Validationf("buffer_minutes must not be negative, got %d", t.BufferMinutes)
	}
	for i, b := range t.Breaks {
		if b.Start >= b.End {
			return schederr.Validationf("break %d: start %s must be before end %s", i, b.Start, b.End)
		}
		if b.Start < t.StartTime || b.End > t.EndTime {
			return schederr.Validationf("break %d (%s-%s) is outside the working window %s-%s",
				i, b.Start, b.End, t.StartTime, t.EndTime)
		}
		for j, other := range t.Breaks[:i] {
			if timeslot.Overlaps(b.Start, b.End, other.Start, other.End) {
				return schederr.Validationf("break %d overlaps break %d", i, j)
			}
		}
	}
	return nil
}

// SlotStatus is the state of a concrete time slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
	SlotBreak     SlotStatus = "break"
)

var validSlotStatuses = map[SlotStatus]bool{
	SlotAvailable: true, SlotBooked: true, SlotBlocked: true, SlotBreak: true,
}

// Slot sources.
const (
	SourceTemplate = "template"
	SourceManual   = "manual"
)

// Slot maps to the time_slot table. (doctor_id, date, start_time) is
// unique; AppointmentID is set exactly while the slot is booked.
type Slot struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	DoctorID      uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	Date          timeslot.Date      `db:"slot_date" json:"date"`
	StartTime     timeslot.TimeOfDay `db:"start_min" json:"start_time"`
	EndTime       timeslot.TimeOfDay `db:"end_min" json:"end_time"`
	Status        SlotStatus         `db:"status" json:"status"`
	AppointmentID *uuid.UUID         `db:"appointment_id" json:"appointment_id,omitempty"`
	Source        string             `db:"source" json:"source"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// GenerateResult reports one slot-generation run.
type GenerateResult struct {
	GeneratedCount int             `json:"generated_count"`
	SlotIDs        []uuid.UUID     `json:"slot_ids"`
	SkippedDates   []timeslot.Date `json:"skipped_dates,omitempty"`
}

// BlockPolicy controls what happens to booked slots inside a blocked
// window. The default refuses to touch them and reports the attached
// appointments instead; OverrideBooked flips them to blocked while
// keeping the appointment binding for follow-up.
type BlockPolicy struct {
	OverrideBooked bool `json:"override_booked"`
}

// BlockResult reports a block operation.
type BlockResult struct {
	BlockedIDs     []uuid.UUID `json:"blocked_ids"`
	SkippedBooked  []uuid.UUID `json:"skipped_booked,omitempty"`
	AppointmentIDs []uuid.UUID `json:"appointment_ids,omitempty"`
}

// DaySummary is one row of the weekly availability summary.
// Utilization is booked/total; zero when the day has no slots.
type DaySummary struct {
	Date        timeslot.Date `json:"date"`
	Total       int           `json:"total"`
	Available   int           `json:"available"`
	Booked      int           `json:"booked"`
	Blocked     int           `json:"blocked"`
	Utilization float64       `json:"utilization"`
}

// DayStatusCount is a (date, status, count) aggregation row.
type DayStatusCount struct {
	Date   timeslot.Date
	Status SlotStatus
	Count  int
}

// AlternativeSlot is a scored suggestion near a preferred date/time.
type AlternativeSlot struct {
	Slot           *Slot `json:"slot"`
	Score          int   `json:"score"`
	DaysDifference int   `json:"days_difference"`
}

// CheckRequest is one entry of a bulk availability check.
type CheckRequest struct {
	DoctorID uuid.UUID          `json:"doctor_id"`
	Date     timeslot.Date      `json:"date"`
	Time     timeslot.TimeOfDay `json:"time"`
}

// CheckStatusNotFound marks bulk-check entries with no matching slot.
// The other possible values are the slot statuses.
const CheckStatusNotFound = "not_found"

// CheckResult is the per-entry answer of a bulk availability check.
type CheckResult struct {
	DoctorID uuid.UUID          `json:"doctor_id"`
	Date     timeslot.Date      `json:"date"`
	Time     timeslot.TimeOfDay `json:"time"`
	Status   string             `json:"status"`
	SlotID   *uuid.UUID         `json:"slot_id,omitempty"`
}
