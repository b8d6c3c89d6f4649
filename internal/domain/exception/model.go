// Package exception manages doctor schedule exceptions: one-off or
// recurring windows (vacation, conferences, emergencies) during which
// the doctor's slots are blocked. Recurring exceptions are projected
// at read time and never materialized as extra rows.
package exception

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

// Type categorizes why the doctor is unavailable.
type Type string

const (
	TypeVacation   Type = "vacation"
	TypeSick       Type = "sick"
	TypeConference Type = "conference"
	TypeEmergency  Type = "emergency"
	TypePersonal   Type = "personal"
	TypeTraining   Type = "training"
)

var validTypes = map[Type]bool{
	TypeVacation:   true,
	TypeSick:       true,
	TypeConference: true,
	TypeEmergency:  true,
	TypePersonal:   true,
	TypeTraining:   true,
}

// RecurPattern is how a recurring exception repeats.
type RecurPattern string

const (
	RecurWeekly  RecurPattern = "weekly"
	RecurMonthly RecurPattern = "monthly"
)

// Exception maps to the doctor_exception table. StartTime and EndTime
// are nil together for a full-day exception. AffectedSlotIDs records
// exactly which slots the creation blocked, so deletion can restore
// them and nothing else.
type Exception struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	DoctorID        uuid.UUID           `db:"doctor_id" json:"doctor_id"`
	Type            Type                `db:"exception_type" json:"exception_type"`
	Date            timeslot.Date       `db:"exception_date" json:"date"`
	StartTime       *timeslot.TimeOfDay `db:"start_min" json:"start_time,omitempty"`
	EndTime         *timeslot.TimeOfDay `db:"end_min" json:"end_time,omitempty"`
	Reason          string              `db:"reason" json:"reason"`
	AffectedSlotIDs []uuid.UUID         `db:"affected_slot_ids" json:"affected_slot_ids,omitempty"`
	Recurring       bool                `db:"recurring" json:"recurring"`
	RecurPattern    RecurPattern        `db:"recur_pattern" json:"recur_pattern,omitempty"`
	RecurInterval   int                 `db:"recur_interval" json:"recur_interval,omitempty"`
	RecurEndDate    *timeslot.Date      `db:"recur_end_date" json:"recur_end_date,omitempty"`
	CreatedBy       uuid.UUID           `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// FullDay reports whether the exception blocks the whole day rather
// than a time window.
func (e *Exception) FullDay() bool {
	return e.StartTime == nil && e.EndTime == nil
}

func (e *Exception) Validate() error {
	if e.DoctorID == uuid.Nil {
		return schederr.Validationf("doctor_id is required")
	}
	if !validTypes[e.Type] {
		return schederr.Validationf("invalid exception type %q", e.Type)
	}
	if e.Date.IsZero() {
		return schederr.Validationf("date is required")
	}
	if (e.StartTime == nil) != (e.EndTime == nil) {
		return schederr.Validationf("start_time and end_time must be set together")
	}
	if e.StartTime != nil {
		if !e.StartTime.Valid() || !e.EndTime.Valid() {
			return schederr.Validationf("exception window must be within a single day")
		}
		if *e.StartTime >= *e.EndTime {
			return schederr.Validationf("start_time %s must be before end_time %s", e.StartTime, e.EndTime)
		}
	}
	if e.Recurring {
		if e.RecurPattern != RecurWeekly && e.RecurPattern != RecurMonthly {
			return schederr.Validationf("recur_pattern must be weekly or monthly, got %q", e.RecurPattern)
		}
		if e.RecurInterval <= 0 {
			return schederr.Validationf("recur_interval must be positive, got %d", e.RecurInterval)
		}
		if e.RecurEndDate != nil && e.RecurEndDate.Before(e.Date) {
			return schederr.Validationf("recur_end_date %s is before the first occurrence %s", e.RecurEndDate, e.Date)
		}
	}
	return nil
}

// Occurrence is one projected instance of an exception.
type Occurrence struct {
	ExceptionID uuid.UUID           `json:"exception_id"`
	Date        timeslot.Date       `json:"date"`
	StartTime   *timeslot.TimeOfDay `json:"start_time,omitempty"`
	EndTime     *timeslot.TimeOfDay `json:"end_time,omitempty"`
	Reason      string              `json:"reason"`
}

// WindowBlock is one exception occurrence reported by a date check. A
// full-day exception spans midnight to midnight and sets FullDay, so
// the caller always sees which exception blocks the date and why.
type WindowBlock struct {
	ExceptionID uuid.UUID          `json:"exception_id"`
	Type        Type               `json:"exception_type"`
	Start       timeslot.TimeOfDay `json:"start_time"`
	End         timeslot.TimeOfDay `json:"end_time"`
	Reason      string             `json:"reason"`
	FullDay     bool               `json:"full_day,omitempty"`
}

// DateCheck answers "can this doctor see patients on this date" (or
// at a specific time on it). Without a time, any exception on the
// date makes it unavailable and every exception on the date is
// listed, full-day ones included. With a time, a full-day exception
// always conflicts and a partial one only when the time falls inside
// its window.
type DateCheck struct {
	DoctorID  uuid.UUID           `json:"doctor_id"`
	Date      timeslot.Date       `json:"date"`
	Time      *timeslot.TimeOfDay `json:"time,omitempty"`
	Available bool                `json:"available"`
	FullDay   bool                `json:"full_day_blocked"`
	Windows   []WindowBlock       `json:"blocked_windows,omitempty"`
}

// DeleteResult reports which slots an exception deletion restored.
type DeleteResult struct {
	RestoredSlotIDs []uuid.UUID `json:"restored_slot_ids"`
}
