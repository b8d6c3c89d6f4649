// Package appointment holds the appointment records that slots bind
// to. Slot state lives in the scheduling package; an appointment row
// carries the patient-facing facts (who, when, why).
package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID        uuid.UUID          `db:"id" json:"id"`
	PatientID uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	Date      timeslot.Date      `db:"appointment_date" json:"date"`
	StartTime timeslot.TimeOfDay `db:"start_min" json:"start_time"`
	EndTime   timeslot.TimeOfDay `db:"end_min" json:"end_time"`
	Status    Status             `db:"status" json:"status"`
	Location  string             `db:"location" json:"location,omitempty"`
	Reason    string             `db:"reason" json:"reason,omitempty"`
	Notes     string             `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) Validate() error {
	if a.PatientID == uuid.Nil {
		return schederr.Validationf("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return schederr.Validationf("doctor_id is required")
	}
	if a.Date.IsZero() {
		return schederr.Validationf("date is required")
	}
	if !a.StartTime.Valid() || !a.EndTime.Valid() || a.StartTime >= a.EndTime {
		return schederr.Validationf("invalid appointment window %s-%s", a.StartTime, a.EndTime)
	}
	if a.Status != "" && !validStatuses[a.Status] {
		return schederr.Validationf("invalid status %q", a.Status)
	}
	return nil
}
