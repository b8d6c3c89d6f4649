package reschedule

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Update(ctx context.Context, r *Request) error
	// GetPendingByAppointment returns the appointment's pending
	// request, or a not-found error when there is none.
	GetPendingByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Request, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status Status, limit, offset int) ([]*Request, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Request, int, error)
}
