package scheduling

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

const (
	// DefaultAlternativeRadiusDays bounds the alternative-slot search
	// around the preferred date.
	DefaultAlternativeRadiusDays = 7
	// DefaultAlternativeLimit caps the number of suggestions returned.
	DefaultAlternativeLimit = 10
)

// NextAvailableSlot returns the doctor's earliest available slot on or
// after the given date, ordered by date then start time. A zero date
// means today.
func (s *Service) NextAvailableSlot(ctx context.Context, doctorID uuid.UUID, from timeslot.Date) (*Slot, error) {
	if doctorID == uuid.Nil {
		return nil, schederr.Validationf("doctor_id is required")
	}
	if from.IsZero() {
		from = timeslot.Today()
	}
	sl, err := s.slots.NextAvailable(ctx, doctorID, from)
	if err != nil {
		if errors.Is(err, schederr.ErrNotFound) {
			return nil, schederr.NotFoundf("doctor %s has no available slots on or after %s", doctorID, from)
		}
		return nil, err
	}
	return sl, nil
}

// WeeklySummary returns one row per day for the seven days starting at
// weekStart. Days with no slots report zero utilization.
func (s *Service) WeeklySummary(ctx context.Context, doctorID uuid.UUID, weekStart timeslot.Date) ([]DaySummary, error) {
	if doctorID == uuid.Nil {
		return nil, schederr.Validationf("doctor_id is required")
	}
	if weekStart.IsZero() {
		return nil, schederr.Validationf("week_start is required")
	}

	counts, err := s.slots.StatusCountsByDate(ctx, doctorID, weekStart, weekStart.AddDays(6))
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]DayStatusCount)
	for _, c := range counts {
		byDate[c.Date.String()] = append(byDate[c.Date.String()], c)
	}

	summary := make([]DaySummary, 0, 7)
	for i := 0; i < 7; i++ {
		date := weekStart.AddDays(i)
		row := DaySummary{Date: date}
		for _, c := range byDate[date.String()] {
			row.Total += c.Count
			switch c.Status {
			case SlotAvailable:
				row.Available += c.Count
			case SlotBooked:
				row.Booked += c.Count
			case SlotBlocked:
				row.Blocked += c.Count
			}
		}
		if row.Total > 0 {
			row.Utilization = float64(row.Booked) / float64(row.Total)
		}
		summary = append(summary, row)
	}
	return summary, nil
}

// FindAlternativeSlots suggests available slots near a preferred date,
// scored by proximity: 100 minus 10 per day of distance, floored at
// zero. Ties prefer the closer day, then the start time closest to
// preferredTime; with no preferred time the earlier slot wins.
func (s *Service) FindAlternativeSlots(ctx context.Context, doctorID uuid.UUID, preferred timeslot.Date, preferredTime timeslot.TimeOfDay, radiusDays, maxResults int) ([]AlternativeSlot, error) {
	if doctorID == uuid.Nil {
		return nil, schederr.Validationf("doctor_id is required")
	}
	if preferred.IsZero() {
		return nil, schederr.Validationf("preferred_date is required")
	}
	if radiusDays <= 0 {
		radiusDays = DefaultAlternativeRadiusDays
	}
	if maxResults <= 0 {
		maxResults = DefaultAlternativeLimit
	}

	slots, err := s.slots.ListAvailableInRange(ctx, doctorID,
		preferred.AddDays(-radiusDays), preferred.AddDays(radiusDays))
	if err != nil {
		return nil, err
	}

	alts := make([]AlternativeSlot, 0, len(slots))
	for _, sl := range slots {
		diff := preferred.DaysUntil(sl.Date)
		if diff < 0 {
			diff = -diff
		}
		score := 100 - 10*diff
		if score < 0 {
			score = 0
		}
		alts = append(alts, AlternativeSlot{Slot: sl, Score: score, DaysDifference: diff})
	}

	// With preferredTime zero the distance equals the start time, so
	// ties still fall back to the earlier slot.
	timeDist := func(start timeslot.TimeOfDay) timeslot.TimeOfDay {
		if start < preferredTime {
			return preferredTime - start
		}
		return start - preferredTime
	}

	sort.SliceStable(alts, func(i, j int) bool {
		if alts[i].Score != alts[j].Score {
			return alts[i].Score > alts[j].Score
		}
		if alts[i].DaysDifference != alts[j].DaysDifference {
			return alts[i].DaysDifference < alts[j].DaysDifference
		}
		if !alts[i].Slot.Date.Equal(alts[j].Slot.Date) {
			return alts[i].Slot.Date.Before(alts[j].Slot.Date)
		}
		di, dj := timeDist(alts[i].Slot.StartTime), timeDist(alts[j].Slot.StartTime)
		if di != dj {
			return di < dj
		}
		return alts[i].Slot.StartTime < alts[j].Slot.StartTime
	})

	if len(alts) > maxResults {
		alts = alts[:maxResults]
	}
	return alts, nil
}

// BulkCheckAvailability resolves each (doctor, date, time) triple to
// the matching slot's status, or "not_found" when the doctor has no
// slot at that exact start time. One bad entry never fails the batch.
func (s *Service) BulkCheckAvailability(ctx context.Context, requests []CheckRequest) ([]CheckResult, error) {
	if len(requests) == 0 {
		return nil, schederr.Validationf("at least one check entry is required")
	}

	results := make([]CheckResult, 0, len(requests))
	for _, req := range requests {
		res := CheckResult{DoctorID: req.DoctorID, Date: req.Date, Time: req.Time}
		sl, err := s.slots.FindByDoctorDateTime(ctx, req.DoctorID, req.Date, req.Time)
		switch {
		case err == nil:
			res.Status = string(sl.Status)
			res.SlotID = &sl.ID
		case errors.Is(err, schederr.ErrNotFound):
			res.Status = CheckStatusNotFound
		default:
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
