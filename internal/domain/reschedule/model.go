// Package reschedule implements the patient-initiated reschedule
// workflow: a patient proposes a new slot (or just a preferred date)
// for an existing appointment, staff approve or reject, and approval
// with a concrete slot atomically moves the appointment to it.
package reschedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Request maps to the reschedule_request table. At most one pending
// request exists per appointment; the database enforces it with a
// partial unique index. RequestedSlotID is nil for a preference-only
// request, where RequestedDate (and optionally RequestedTime) carry
// the patient's wish and approval records the decision without
// touching slots.
type Request struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	AppointmentID   uuid.UUID           `db:"appointment_id" json:"appointment_id"`
	PatientID       uuid.UUID           `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID           `db:"doctor_id" json:"doctor_id"`
	CurrentDate     timeslot.Date       `db:"current_appt_date" json:"current_date"`
	CurrentStart    timeslot.TimeOfDay  `db:"current_start_min" json:"current_start_time"`
	RequestedSlotID *uuid.UUID          `db:"requested_slot_id" json:"requested_slot_id,omitempty"`
	RequestedDate   *timeslot.Date      `db:"requested_date" json:"requested_date,omitempty"`
	RequestedTime   *timeslot.TimeOfDay `db:"requested_start_min" json:"requested_time,omitempty"`
	Reason          string              `db:"reason" json:"reason,omitempty"`
	Status          Status              `db:"status" json:"status"`
	AdminNotes      string              `db:"admin_notes" json:"admin_notes,omitempty"`
	RespondedBy     *uuid.UUID          `db:"responded_by" json:"responded_by,omitempty"`
	RespondedAt     *time.Time          `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

func (r *Request) Validate() error {
	if r.AppointmentID == uuid.Nil {
		return schederr.Validationf("appointment_id is required")
	}
	if r.RequestedSlotID == nil && r.RequestedDate == nil {
		return schederr.Validationf("either requested_slot_id or requested_date is required")
	}
	if r.RequestedSlotID != nil && *r.RequestedSlotID == uuid.Nil {
		return schederr.Validationf("requested_slot_id must not be empty")
	}
	return nil
}
