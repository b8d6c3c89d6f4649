package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

// GenerateSlots expands the doctor's active templates into concrete
// slots for every date in [from, to]. Idempotence is day-granular: a
// date that already has any slot rows for the doctor is skipped whole
// and reported in SkippedDates, so re-running a generation never
// duplicates or half-fills a day.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) (*GenerateResult, error) {
	if doctorID == uuid.Nil {
		return nil, schederr.Validationf("doctor_id is required")
	}
	if from.IsZero() || to.IsZero() {
		return nil, schederr.Validationf("start_date and end_date are required")
	}
	if to.Before(from) {
		return nil, schederr.Validationf("end_date %s is before start_date %s", to, from)
	}

	templates, err := s.templates.ListActiveByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, schederr.Configurationf("doctor %s has no active availability templates", doctorID)
	}

	byWeekday := make(map[int][]*Template)
	for _, t := range templates {
		byWeekday[int(t.Weekday)] = append(byWeekday[int(t.Weekday)], t)
	}

	res := &GenerateResult{}
	for _, date := range timeslot.DatesBetween(from, to) {
		dayTemplates := byWeekday[int(date.Weekday())]
		if len(dayTemplates) == 0 {
			continue
		}

		existing, err := s.slots.CountByDoctorDate(ctx, doctorID, date)
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			res.SkippedDates = append(res.SkippedDates, date)
			continue
		}

		var batch []*Slot
		for _, t := range dayTemplates {
			for _, w := range expandTemplate(t) {
				batch = append(batch, &Slot{
					DoctorID:  doctorID,
					Date:      date,
					StartTime: w.Start,
					EndTime:   w.End,
					Status:    SlotAvailable,
					Source:    SourceTemplate,
				})
			}
		}
		if err := s.slots.CreateBatch(ctx, batch); err != nil {
			return nil, err
		}
		for _, sl := range batch {
			res.SlotIDs = append(res.SlotIDs, sl.ID)
		}
		res.GeneratedCount += len(batch)
	}
	return res, nil
}

// expandTemplate walks the working window in SlotMinutes strides with
// BufferMinutes between consecutive slots. A candidate that touches a
// break is not emitted; the cursor jumps to the break's end with no
// buffer added, so the first post-break slot starts exactly when the
// break ends.
func expandTemplate(t *Template) []slotWindow {
	var out []slotWindow
	cur := t.StartTime
	slot := timeslot.TimeOfDay(t.SlotMinutes)
	buffer := timeslot.TimeOfDay(t.BufferMinutes)

	for cur+slot <= t.EndTime {
		end := cur + slot
		if br, ok := overlappingBreak(t.Breaks, cur, end); ok {
			cur = br.End
			continue
		}
		out = append(out, slotWindow{Start: cur, End: end})
		cur = end + buffer
	}
	return out
}

type slotWindow struct {
	Start, End timeslot.TimeOfDay
}

func overlappingBreak(breaks []BreakWindow, start, end timeslot.TimeOfDay) (BreakWindow, bool) {
	for _, b := range breaks {
		if timeslot.Overlaps(start, end, b.Start, b.End) {
			return b, true
		}
	}
	return BreakWindow{}, false
}
