package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/internal/platform/notify"
	"github.com/medsched/medsched/pkg/schederr"
)

// SlotBooker is the slice of the slot engine appointments need.
type SlotBooker interface {
	GetSlot(ctx context.Context, id uuid.UUID) (*scheduling.Slot, error)
	GetSlotByAppointment(ctx context.Context, appointmentID uuid.UUID) (*scheduling.Slot, error)
	BookSlot(ctx context.Context, slotID, appointmentID uuid.UUID) error
	ReleaseSlot(ctx context.Context, slotID uuid.UUID) error
}

type Service struct {
	repo     Repository
	slots    SlotBooker
	pool     *pgxpool.Pool
	notifier notify.Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, slots SlotBooker, pool *pgxpool.Pool, notifier notify.Notifier, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		repo:     repo,
		slots:    slots,
		pool:     pool,
		notifier: notifier,
		logger:   logger.With().Str("component", "appointment-service").Logger(),
	}
}

// Create books the slot and persists the appointment as one unit. The
// appointment takes its doctor, date, and window from the slot; a
// concurrent booking of the same slot rolls everything back with a
// conflict.
func (s *Service) Create(ctx context.Context, a *Appointment, slotID uuid.UUID) error {
	if slotID == uuid.Nil {
		return schederr.Validationf("slot_id is required")
	}

	sl, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}

	a.DoctorID = sl.DoctorID
	a.Date = sl.Date
	a.StartTime = sl.StartTime
	a.EndTime = sl.EndTime
	a.Status = StatusScheduled
	if err := a.Validate(); err != nil {
		return err
	}

	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		return s.slots.BookSlot(ctx, slotID, a.ID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, notify.NewEvent(notify.EventSlotBooked, a.DoctorID.String(), "doctor",
		"Appointment booked", a.Reason))
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// UpdateDetails changes reason and notes without touching scheduling
// state.
func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, reason, notes string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Reason = reason
	a.Notes = notes
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel cancels a scheduled appointment and releases its slot back
// to the available pool.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled && a.Status != StatusConfirmed {
		return nil, schederr.Statef("appointment is %s, only upcoming appointments can be cancelled", a.Status)
	}

	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		a.Status = StatusCancelled
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		sl, err := s.slots.GetSlotByAppointment(ctx, id)
		if err != nil {
			// No slot bound (e.g. blocked with override); nothing to free.
			if errors.Is(err, schederr.ErrNotFound) {
				return nil
			}
			return err
		}
		return s.slots.ReleaseSlot(ctx, sl.ID)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Confirm records the patient's confirmation of an upcoming visit.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, StatusScheduled)
}

// Start marks the visit as underway.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusInProgress, StatusScheduled, StatusConfirmed)
}

// Complete marks the visit as done. The slot stays booked as the
// historical record of the visit.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, StatusScheduled, StatusConfirmed, StatusInProgress)
}

// MarkNoShow records that the patient did not attend.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, StatusScheduled, StatusConfirmed)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, from ...Status) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range from {
		if a.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, schederr.Statef("appointment is %s, cannot move to %s", a.Status, to)
	}
	a.Status = to
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) publish(ctx context.Context, e *notify.Event) {
	if err := s.notifier.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(e.Type)).
			Msg("notification publish failed")
	}
}
