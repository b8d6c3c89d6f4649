package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/timeslot"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Template, int, error)
	// ListActiveByDoctor returns every active template for the doctor,
	// all weekdays, no pagination. Used by the slot generator.
	ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Template, error)
}

type SlotRepository interface {
	Create(ctx context.Context, sl *Slot) error
	CreateBatch(ctx context.Context, slots []*Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Slot, error)
	FindByDoctorDateTime(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, start timeslot.TimeOfDay) (*Slot, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CountByDoctorDate(ctx context.Context, doctorID uuid.UUID, date timeslot.Date) (int, error)
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date timeslot.Date) ([]*Slot, error)
	ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date, status SlotStatus, limit, offset int) ([]*Slot, int, error)
	ListAvailableInRange(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]*Slot, error)
	NextAvailable(ctx context.Context, doctorID uuid.UUID, from timeslot.Date) (*Slot, error)
	StatusCountsByDate(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]DayStatusCount, error)

	// Book atomically transitions an available slot to booked and
	// binds the appointment. Loses cleanly: a concurrent winner makes
	// it return a conflict error, an unknown id a not-found error.
	Book(ctx context.Context, slotID, appointmentID uuid.UUID) error
	// Release returns the slot to available and clears the
	// appointment binding. Idempotent; errors only when the slot row
	// does not exist.
	Release(ctx context.Context, slotID uuid.UUID) error
	// Transition applies a conditional status change and reports
	// whether the row was in the expected state.
	Transition(ctx context.Context, slotID uuid.UUID, from, to SlotStatus) (bool, error)
	// Block transitions to blocked while keeping the appointment
	// binding, used by the override policy.
	Block(ctx context.Context, slotID uuid.UUID) error
	// Restore returns a blocked slot to available, but only when no
	// appointment is bound to it. Override-blocked slots keep their
	// binding and must go through Release once the appointment is
	// resolved. Reports whether the row changed.
	Restore(ctx context.Context, slotID uuid.UUID) (bool, error)
}
