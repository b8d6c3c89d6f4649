package exception

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Exception) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exception, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Exception, int, error)
	// AllByDoctor returns every exception for the doctor, used by the
	// read-time projection. Exception counts per doctor stay small.
	AllByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Exception, error)
}
