package exception

import (
	"sort"

	"github.com/medsched/medsched/pkg/timeslot"
)

// OccursOn reports whether the exception applies on the given date,
// including projected recurring occurrences. The recurrence end date,
// when set, is inclusive.
func (e *Exception) OccursOn(date timeslot.Date) bool {
	if date.Before(e.Date) {
		return false
	}
	if date.Equal(e.Date) {
		return true
	}
	if !e.Recurring {
		return false
	}
	if e.RecurEndDate != nil && date.After(*e.RecurEndDate) {
		return false
	}
	switch e.RecurPattern {
	case RecurWeekly:
		return e.Date.DaysUntil(date)%(7*e.RecurInterval) == 0
	case RecurMonthly:
		for cur := e.Date; !cur.After(date); cur = cur.AddMonths(e.RecurInterval) {
			if cur.Equal(date) {
				return true
			}
		}
	}
	return false
}

// Project lists the exception's occurrences inside [from, to],
// clamped by the recurrence end date. A non-recurring exception
// yields at most its own date.
func (e *Exception) Project(from, to timeslot.Date) []Occurrence {
	if e.RecurEndDate != nil && e.RecurEndDate.Before(to) {
		to = *e.RecurEndDate
	}
	if to.Before(e.Date) {
		return nil
	}

	emit := func(date timeslot.Date) Occurrence {
		return Occurrence{
			ExceptionID: e.ID,
			Date:        date,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Reason:      e.Reason,
		}
	}

	if !e.Recurring {
		if e.Date.Before(from) {
			return nil
		}
		return []Occurrence{emit(e.Date)}
	}

	var out []Occurrence
	switch e.RecurPattern {
	case RecurWeekly:
		step := 7 * e.RecurInterval
		cur := e.Date
		for !cur.After(to) {
			if !cur.Before(from) {
				out = append(out, emit(cur))
			}
			cur = cur.AddDays(step)
		}
	case RecurMonthly:
		cur := e.Date
		for !cur.After(to) {
			if !cur.Before(from) {
				out = append(out, emit(cur))
			}
			cur = cur.AddMonths(e.RecurInterval)
		}
	}
	return out
}

func sortOccurrences(occ []Occurrence) {
	sort.Slice(occ, func(i, j int) bool {
		if !occ[i].Date.Equal(occ[j].Date) {
			return occ[i].Date.Before(occ[j].Date)
		}
		si, sj := timeslot.TimeOfDay(0), timeslot.TimeOfDay(0)
		if occ[i].StartTime != nil {
			si = *occ[i].StartTime
		}
		if occ[j].StartTime != nil {
			sj = *occ[j].StartTime
		}
		return si < sj
	})
}
