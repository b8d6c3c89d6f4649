package exception

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/platform/notify"
	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

// SlotBlocker is the slice of the slot engine the exception manager
// needs: block a doctor's day (or window) and undo it later.
type SlotBlocker interface {
	BlockSlots(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, start, end timeslot.TimeOfDay, policy scheduling.BlockPolicy) (*scheduling.BlockResult, error)
	RestoreSlots(ctx context.Context, slotIDs []uuid.UUID) ([]uuid.UUID, error)
}

type Service struct {
	repo          Repository
	slots         SlotBlocker
	notifier      notify.Notifier
	lookaheadDays int
	logger        zerolog.Logger
}

func NewService(repo Repository, slots SlotBlocker, notifier notify.Notifier, lookaheadDays int, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if lookaheadDays <= 0 {
		lookaheadDays = 90
	}
	return &Service{
		repo:          repo,
		slots:         slots,
		notifier:      notifier,
		lookaheadDays: lookaheadDays,
		logger:        logger.With().Str("component", "exception-service").Logger(),
	}
}

// Create blocks the matching slots on the exception's base date and
// persists the exception with the exact set of slot ids it touched.
// Booked slots are left alone unless overrideBooked is set; either
// way the bound appointments come back in the block result so staff
// can chase them.
func (s *Service) Create(ctx context.Context, e *Exception, overrideBooked bool) (*scheduling.BlockResult, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	var start, end timeslot.TimeOfDay
	if !e.FullDay() {
		start, end = *e.StartTime, *e.EndTime
	}
	res, err := s.slots.BlockSlots(ctx, e.DoctorID, e.Date, start, end,
		scheduling.BlockPolicy{OverrideBooked: overrideBooked})
	if err != nil {
		return nil, err
	}

	e.AffectedSlotIDs = res.BlockedIDs
	if err := s.repo.Create(ctx, e); err != nil {
		// Creation failed after slots were blocked; put them back.
		if _, rerr := s.slots.RestoreSlots(ctx, res.BlockedIDs); rerr != nil {
			s.logger.Error().Err(rerr).Str("doctor_id", e.DoctorID.String()).
				Msg("failed to restore slots after exception insert error")
		}
		return nil, err
	}

	s.publish(ctx, notify.NewEvent(notify.EventExceptionCreated, e.DoctorID.String(), "doctor",
		"Schedule exception created", e.Reason))
	return res, nil
}

// Delete removes the exception and restores its affected slots. Only
// slots still blocked come back; anything booked or removed since the
// block stays untouched.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	restored, err := s.slots.RestoreSlots(ctx, e.AffectedSlotIDs)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &DeleteResult{RestoredSlotIDs: restored}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Exception, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Exception, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

// CheckDate reports whether the doctor is available on a date, taking
// projected recurring occurrences into account. Every exception on
// the date comes back in the window list, full-day ones as a
// midnight-to-midnight entry. Without a time, any exception on the
// date makes it unavailable. With a time, a full-day exception always
// conflicts and a partial one only when the time falls inside its
// window.
func (s *Service) CheckDate(ctx context.Context, doctorID uuid.UUID, date timeslot.Date, at *timeslot.TimeOfDay) (*DateCheck, error) {
	if doctorID == uuid.Nil {
		return nil, schederr.Validationf("doctor_id is required")
	}
	if date.IsZero() {
		return nil, schederr.Validationf("date is required")
	}

	exceptions, err := s.repo.AllByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	check := &DateCheck{DoctorID: doctorID, Date: date, Time: at, Available: true}
	for _, e := range exceptions {
		if !e.OccursOn(date) {
			continue
		}
		if e.FullDay() {
			check.Available = false
			check.FullDay = true
			check.Windows = append(check.Windows, WindowBlock{
				ExceptionID: e.ID,
				Type:        e.Type,
				Start:       0,
				End:         timeslot.MinutesPerDay,
				Reason:      e.Reason,
				FullDay:     true,
			})
			continue
		}
		if at == nil || (*at >= *e.StartTime && *at < *e.EndTime) {
			check.Available = false
		}
		check.Windows = append(check.Windows, WindowBlock{
			ExceptionID: e.ID,
			Type:        e.Type,
			Start:       *e.StartTime,
			End:         *e.EndTime,
			Reason:      e.Reason,
		})
	}
	return check, nil
}

// Upcoming projects every occurrence for the doctor from the given
// date over the configured lookahead horizon. Recurring patterns are
// expanded on the fly, never stored.
func (s *Service) Upcoming(ctx context.Context, doctorID uuid.UUID, from timeslot.Date) ([]Occurrence, error) {
	if doctorID == uuid.Nil {
		return nil, schederr.Validationf("doctor_id is required")
	}
	if from.IsZero() {
		from = timeslot.Today()
	}

	exceptions, err := s.repo.AllByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	to := from.AddDays(s.lookaheadDays)
	var out []Occurrence
	for _, e := range exceptions {
		out = append(out, e.Project(from, to)...)
	}
	sortOccurrences(out)
	return out, nil
}

// Occurrences projects a single exception's instances from the given
// date over the configured lookahead horizon.
func (s *Service) Occurrences(ctx context.Context, id uuid.UUID, from timeslot.Date) ([]Occurrence, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = timeslot.Today()
	}
	return e.Project(from, from.AddDays(s.lookaheadDays)), nil
}

func (s *Service) publish(ctx context.Context, e *notify.Event) {
	if err := s.notifier.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(e.Type)).
			Msg("notification publish failed")
	}
}
