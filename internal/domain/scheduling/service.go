package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

type Service struct {
	templates TemplateRepository
	slots     SlotRepository
}

func NewService(templates TemplateRepository, slots SlotRepository) *Service {
	return &Service{templates: templates, slots: slots}
}

// =========== Templates ===========

func (s *Service) CreateTemplate(ctx context.Context, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.templates.Create(ctx, t)
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *Service) UpdateTemplate(ctx context.Context, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.templates.Update(ctx, t)
}

func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return s.templates.Delete(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Template, int, error) {
	return s.templates.ListByDoctor(ctx, doctorID, limit, offset)
}

// =========== Slots ===========

// CreateManualSlot inserts a one-off slot outside any template, e.g.
// an extra evening opening. It refuses to double-book a start time the
// doctor already has on that date.
func (s *Service) CreateManualSlot(ctx context.Context, sl *Slot) error {
	if sl.DoctorID == uuid.Nil {
		return schederr.Validationf("doctor_id is required")
	}
	if sl.Date.IsZero() {
		return schederr.Validationf("date is required")
	}
	if !sl.StartTime.Valid() || !sl.EndTime.Valid() || sl.StartTime >= sl.EndTime {
		return schederr.Validationf("invalid slot window %s-%s", sl.StartTime, sl.EndTime)
	}
	if sl.Status == "" {
		sl.Status = SlotAvailable
	}
	if !validSlotStatuses[sl.Status] {
		return schederr.Validationf("invalid status %q", sl.Status)
	}
	if existing, err := s.slots.FindByDoctorDateTime(ctx, sl.DoctorID, sl.Date, sl.StartTime); err == nil && existing != nil {
		return schederr.Conflictf("doctor already has a slot at %s %s", sl.Date, sl.StartTime)
	}
	sl.Source = SourceManual
	return s.slots.Create(ctx, sl)
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetByID(ctx, id)
}

func (s *Service) GetSlotByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Slot, error) {
	return s.slots.GetByAppointment(ctx, appointmentID)
}

func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date, status SlotStatus, limit, offset int) ([]*Slot, int, error) {
	if to.Before(from) {
		return nil, 0, schederr.Validationf("date range end %s is before start %s", to, from)
	}
	if status != "" && !validSlotStatuses[status] {
		return nil, 0, schederr.Validationf("invalid status filter %q", status)
	}
	return s.slots.ListByDoctorRange(ctx, doctorID, from, to, status, limit, offset)
}

func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	sl, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sl.Status == SlotBooked {
		return schederr.Statef("cannot delete a booked slot; release it first")
	}
	return s.slots.Delete(ctx, id)
}

// =========== Booking ===========

// BookSlot atomically claims an available slot for the appointment.
// Exactly one of two concurrent callers wins; the loser gets a
// conflict error.
func (s *Service) BookSlot(ctx context.Context, slotID, appointmentID uuid.UUID) error {
	if appointmentID == uuid.Nil {
		return schederr.Validationf("appointment_id is required")
	}
	return s.slots.Book(ctx, slotID, appointmentID)
}

// ReleaseSlot returns a slot to the available pool. Releasing an
// already-available slot is a no-op, not an error.
func (s *Service) ReleaseSlot(ctx context.Context, slotID uuid.UUID) error {
	return s.slots.Release(ctx, slotID)
}

// =========== Blocking ===========

// BlockSlots blocks the doctor's slots on a date, optionally limited
// to the [start, end) window. Booked slots are skipped and reported
// unless the policy overrides them.
func (s *Service) BlockSlots(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, start, end timeslot.TimeOfDay, policy BlockPolicy) (*BlockResult, error) {
	partial := start != 0 || end != 0
	if partial && start >= end {
		return nil, schederr.Validationf("block window start %s must be before end %s", start, end)
	}

	slots, err := s.slots.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	res := &BlockResult{}
	for _, sl := range slots {
		if partial && !timeslot.Overlaps(sl.StartTime, sl.EndTime, start, end) {
			continue
		}
		switch sl.Status {
		case SlotAvailable:
			ok, err := s.slots.Transition(ctx, sl.ID, SlotAvailable, SlotBlocked)
			if err != nil {
				return nil, err
			}
			if ok {
				res.BlockedIDs = append(res.BlockedIDs, sl.ID)
			}
		case SlotBooked:
			if !policy.OverrideBooked {
				res.SkippedBooked = append(res.SkippedBooked, sl.ID)
				if sl.AppointmentID != nil {
					res.AppointmentIDs = append(res.AppointmentIDs, *sl.AppointmentID)
				}
				continue
			}
			// Keep the appointment binding so the displaced
			// appointment can be rescheduled afterwards.
			if err := s.slots.Block(ctx, sl.ID); err != nil {
				return nil, err
			}
			res.BlockedIDs = append(res.BlockedIDs, sl.ID)
			if sl.AppointmentID != nil {
				res.AppointmentIDs = append(res.AppointmentIDs, *sl.AppointmentID)
			}
		}
	}
	return res, nil
}

// RestoreSlots flips the given slots back to available, touching only
// those still blocked and carrying no appointment. Slots booked or
// deleted since the block are left alone, as are override-blocked
// slots whose displaced appointment has not been moved yet.
func (s *Service) RestoreSlots(ctx context.Context, slotIDs []uuid.UUID) ([]uuid.UUID, error) {
	var restored []uuid.UUID
	for _, id := range slotIDs {
		ok, err := s.slots.Restore(ctx, id)
		if err != nil {
			return restored, err
		}
		if ok {
			restored = append(restored, id)
		}
	}
	return restored, nil
}
