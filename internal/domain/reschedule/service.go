package reschedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/domain/appointment"
	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/internal/platform/notify"
	"github.com/medsched/medsched/pkg/schederr"
)

// AppointmentStore is the slice of the appointment layer this
// workflow needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Update(ctx context.Context, a *appointment.Appointment) error
}

// SlotEngine is the slice of the slot engine this workflow needs.
type SlotEngine interface {
	GetSlot(ctx context.Context, id uuid.UUID) (*scheduling.Slot, error)
	GetSlotByAppointment(ctx context.Context, appointmentID uuid.UUID) (*scheduling.Slot, error)
	BookSlot(ctx context.Context, slotID, appointmentID uuid.UUID) error
	ReleaseSlot(ctx context.Context, slotID uuid.UUID) error
}

type Service struct {
	repo         Repository
	appointments AppointmentStore
	slots        SlotEngine
	pool         *pgxpool.Pool
	notifier     notify.Notifier
	logger       zerolog.Logger
}

func NewService(repo Repository, appointments AppointmentStore, slots SlotEngine, pool *pgxpool.Pool, notifier notify.Notifier, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		repo:         repo,
		appointments: appointments,
		slots:        slots,
		pool:         pool,
		notifier:     notifier,
		logger:       logger.With().Str("component", "reschedule-service").Logger(),
	}
}

// Create opens a reschedule request for a scheduled appointment. A
// named slot must belong to the same doctor and be available at
// request time; availability is checked again at approval. A
// preference-only request (date/time wish, no slot) skips the slot
// checks. An appointment can carry at most one pending request.
func (s *Service) Create(ctx context.Context, req *Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	appt, err := s.appointments.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return err
	}
	if appt.Status != appointment.StatusScheduled && appt.Status != appointment.StatusConfirmed {
		return schederr.Statef("appointment is %s, only upcoming appointments can be rescheduled", appt.Status)
	}

	if req.RequestedSlotID != nil {
		sl, err := s.slots.GetSlot(ctx, *req.RequestedSlotID)
		if err != nil {
			return err
		}
		if sl.DoctorID != appt.DoctorID {
			return schederr.Validationf("requested slot belongs to a different doctor")
		}
		if sl.Status != scheduling.SlotAvailable {
			return schederr.Conflictf("requested slot is not available")
		}
	}

	if _, err := s.repo.GetPendingByAppointment(ctx, req.AppointmentID); err == nil {
		return schederr.Conflictf("appointment %s already has a pending reschedule request", req.AppointmentID)
	} else if !errors.Is(err, schederr.ErrNotFound) {
		return err
	}

	req.PatientID = appt.PatientID
	req.DoctorID = appt.DoctorID
	req.CurrentDate = appt.Date
	req.CurrentStart = appt.StartTime
	req.Status = StatusPending
	if err := s.repo.Create(ctx, req); err != nil {
		return err
	}

	s.publish(ctx, notify.NewEvent(notify.EventRescheduleRequested, appt.DoctorID.String(), "doctor",
		"Reschedule requested", req.Reason))
	return nil
}

// Approve moves the appointment to the requested slot. Releasing the
// old slot, booking the new one, updating the appointment, and
// marking the request approved happen in one transaction; a slot
// taken since the request was filed fails the whole approval with a
// conflict and changes nothing. A preference-only request is approved
// without touching slots; the office coordinates the actual move.
func (s *Service) Approve(ctx context.Context, id, respondedBy uuid.UUID, adminNotes string) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, schederr.Statef("request is %s, only pending requests can be approved", req.Status)
	}

	if req.RequestedSlotID == nil {
		if err := s.decide(ctx, req, StatusApproved, adminNotes, respondedBy); err != nil {
			return nil, err
		}
		s.publish(ctx, notify.NewEvent(notify.EventRescheduleApproved, req.PatientID.String(), "patient",
			"Reschedule approved", adminNotes))
		return req, nil
	}

	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		sl, err := s.slots.GetSlot(ctx, *req.RequestedSlotID)
		if err != nil {
			return err
		}
		if sl.Status != scheduling.SlotAvailable {
			return schederr.Conflictf("requested slot was taken while the request was pending")
		}

		if old, err := s.slots.GetSlotByAppointment(ctx, req.AppointmentID); err == nil {
			if err := s.slots.ReleaseSlot(ctx, old.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, schederr.ErrNotFound) {
			return err
		}

		if err := s.slots.BookSlot(ctx, sl.ID, req.AppointmentID); err != nil {
			return err
		}

		appt, err := s.appointments.GetByID(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		appt.Date = sl.Date
		appt.StartTime = sl.StartTime
		appt.EndTime = sl.EndTime
		appt.Status = appointment.StatusScheduled
		if err := s.appointments.Update(ctx, appt); err != nil {
			return err
		}

		return s.decide(ctx, req, StatusApproved, adminNotes, respondedBy)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.NewEvent(notify.EventRescheduleApproved, req.PatientID.String(), "patient",
		"Reschedule approved", adminNotes))
	return req, nil
}

// Reject declines a pending request. Admin notes are mandatory so the
// patient learns why.
func (s *Service) Reject(ctx context.Context, id, respondedBy uuid.UUID, adminNotes string) (*Request, error) {
	if adminNotes == "" {
		return nil, schederr.Validationf("admin_notes are required when rejecting")
	}

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, schederr.Statef("request is %s, only pending requests can be rejected", req.Status)
	}

	if err := s.decide(ctx, req, StatusRejected, adminNotes, respondedBy); err != nil {
		return nil, err
	}

	s.publish(ctx, notify.NewEvent(notify.EventRescheduleRejected, req.PatientID.String(), "patient",
		"Reschedule rejected", adminNotes))
	return req, nil
}

// Cancel withdraws a pending request. Only the requesting patient may
// cancel.
func (s *Service) Cancel(ctx context.Context, id, patientID uuid.UUID) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.PatientID != patientID {
		return nil, schederr.Validationf("request belongs to a different patient")
	}
	if req.Status != StatusPending {
		return nil, schederr.Statef("request is %s, only pending requests can be cancelled", req.Status)
	}

	if err := s.decide(ctx, req, StatusCancelled, "", uuid.Nil); err != nil {
		return nil, err
	}

	s.publish(ctx, notify.NewEvent(notify.EventRescheduleCancelled, req.DoctorID.String(), "doctor",
		"Reschedule request withdrawn", req.Reason))
	return req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status Status, limit, offset int) ([]*Request, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, status, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Request, int, error) {
	return s.repo.ListByPatient(ctx, patientID, status, limit, offset)
}

func (s *Service) decide(ctx context.Context, req *Request, status Status, adminNotes string, respondedBy uuid.UUID) error {
	now := time.Now()
	req.Status = status
	req.AdminNotes = adminNotes
	req.RespondedAt = &now
	if respondedBy != uuid.Nil {
		req.RespondedBy = &respondedBy
	}
	return s.repo.Update(ctx, req)
}

func (s *Service) publish(ctx context.Context, e *notify.Event) {
	if err := s.notifier.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(e.Type)).
			Msg("notification publish failed")
	}
}
