package scheduling

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

type memTemplateRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Template
}

func newMemTemplateRepo() *memTemplateRepo {
	return &memTemplateRepo{items: map[uuid.UUID]*Template{}}
}

func (m *memTemplateRepo) Create(_ context.Context, t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.New()
	m.items[t.ID] = t
	return nil
}

func (m *memTemplateRepo) GetByID(_ context.Context, id uuid.UUID) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok {
		return nil, schederr.NotFoundf("template not found")
	}
	return t, nil
}

func (m *memTemplateRepo) Update(_ context.Context, t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[t.ID]; !ok {
		return schederr.NotFoundf("template %s not found", t.ID)
	}
	m.items[t.ID] = t
	return nil
}

func (m *memTemplateRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return schederr.NotFoundf("template %s not found", id)
	}
	delete(m.items, id)
	return nil
}

func (m *memTemplateRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Template, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Template
	for _, t := range m.items {
		if t.DoctorID == doctorID {
			out = append(out, t)
		}
	}
	sortTemplates(out)
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memTemplateRepo) ListActiveByDoctor(_ context.Context, doctorID uuid.UUID) ([]*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Template
	for _, t := range m.items {
		if t.DoctorID == doctorID && t.Active {
			out = append(out, t)
		}
	}
	sortTemplates(out)
	return out, nil
}

func sortTemplates(ts []*Template) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Weekday != ts[j].Weekday {
			return ts[i].Weekday < ts[j].Weekday
		}
		return ts[i].StartTime < ts[j].StartTime
	})
}

type memSlotRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Slot
}

func newMemSlotRepo() *memSlotRepo {
	return &memSlotRepo{items: map[uuid.UUID]*Slot{}}
}

func (m *memSlotRepo) Create(_ context.Context, sl *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl.ID = uuid.New()
	m.items[sl.ID] = sl
	return nil
}

func (m *memSlotRepo) CreateBatch(ctx context.Context, slots []*Slot) error {
	for _, sl := range slots {
		if err := m.Create(ctx, sl); err != nil {
			return err
		}
	}
	return nil
}

func (m *memSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.items[id]
	if !ok {
		return nil, schederr.NotFoundf("slot not found")
	}
	return sl, nil
}

func (m *memSlotRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sl := range m.items {
		if sl.AppointmentID != nil && *sl.AppointmentID == appointmentID {
			return sl, nil
		}
	}
	return nil, schederr.NotFoundf("slot not found")
}

func (m *memSlotRepo) FindByDoctorDateTime(_ context.Context, doctorID uuid.UUID, date timeslot.Date, start timeslot.TimeOfDay) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sl := range m.items {
		if sl.DoctorID == doctorID && sl.Date.Equal(date) && sl.StartTime == start {
			return sl, nil
		}
	}
	return nil, schederr.NotFoundf("slot not found")
}

func (m *memSlotRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return schederr.NotFoundf("slot %s not found", id)
	}
	delete(m.items, id)
	return nil
}

func (m *memSlotRepo) CountByDoctorDate(_ context.Context, doctorID uuid.UUID, date timeslot.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sl := range m.items {
		if sl.DoctorID == doctorID && sl.Date.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (m *memSlotRepo) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date timeslot.Date) ([]*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Slot
	for _, sl := range m.items {
		if sl.DoctorID == doctorID && sl.Date.Equal(date) {
			out = append(out, sl)
		}
	}
	sortSlots(out)
	return out, nil
}

func (m *memSlotRepo) ListByDoctorRange(_ context.Context, doctorID uuid.UUID, from, to timeslot.Date, status SlotStatus, limit, offset int) ([]*Slot, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Slot
	for _, sl := range m.items {
		if sl.DoctorID != doctorID || sl.Date.Before(from) || sl.Date.After(to) {
			continue
		}
		if status != "" && sl.Status != status {
			continue
		}
		out = append(out, sl)
	}
	sortSlots(out)
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memSlotRepo) ListAvailableInRange(ctx context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]*Slot, error) {
	out, _, err := m.ListByDoctorRange(ctx, doctorID, from, to, SlotAvailable, 1<<30, 0)
	return out, err
}

func (m *memSlotRepo) NextAvailable(_ context.Context, doctorID uuid.UUID, from timeslot.Date) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Slot
	for _, sl := range m.items {
		if sl.DoctorID != doctorID || sl.Status != SlotAvailable || sl.Date.Before(from) {
			continue
		}
		if best == nil || slotBefore(sl, best) {
			best = sl
		}
	}
	if best == nil {
		return nil, schederr.NotFoundf("no available slot")
	}
	return best, nil
}

func (m *memSlotRepo) StatusCountsByDate(_ context.Context, doctorID uuid.UUID, from, to timeslot.Date) ([]DayStatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type key struct {
		date   string
		status SlotStatus
	}
	agg := map[key]*DayStatusCount{}
	for _, sl := range m.items {
		if sl.DoctorID != doctorID || sl.Date.Before(from) || sl.Date.After(to) {
			continue
		}
		k := key{sl.Date.String(), sl.Status}
		if agg[k] == nil {
			agg[k] = &DayStatusCount{Date: sl.Date, Status: sl.Status}
		}
		agg[k].Count++
	}
	var out []DayStatusCount
	for _, c := range agg {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memSlotRepo) Book(_ context.Context, slotID, appointmentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.items[slotID]
	if !ok {
		return schederr.NotFoundf("slot %s not found", slotID)
	}
	if sl.Status != SlotAvailable {
		return schederr.Conflictf("slot %s is no longer available", slotID)
	}
	sl.Status = SlotBooked
	appt := appointmentID
	sl.AppointmentID = &appt
	return nil
}

func (m *memSlotRepo) Release(_ context.Context, slotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.items[slotID]
	if !ok {
		return schederr.NotFoundf("slot %s not found", slotID)
	}
	sl.Status = SlotAvailable
	sl.AppointmentID = nil
	return nil
}

func (m *memSlotRepo) Transition(_ context.Context, slotID uuid.UUID, from, to SlotStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.items[slotID]
	if !ok || sl.Status != from {
		return false, nil
	}
	sl.Status = to
	return true, nil
}

func (m *memSlotRepo) Block(_ context.Context, slotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.items[slotID]
	if !ok {
		return schederr.NotFoundf("slot %s not found", slotID)
	}
	sl.Status = SlotBlocked
	return nil
}

func (m *memSlotRepo) Restore(_ context.Context, slotID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.items[slotID]
	if !ok || sl.Status != SlotBlocked || sl.AppointmentID != nil {
		return false, nil
	}
	sl.Status = SlotAvailable
	return true, nil
}

func sortSlots(slots []*Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].StartTime < slots[j].StartTime
	})
}

func slotBefore(a, b *Slot) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.StartTime < b.StartTime
}

func mustTime(t string) timeslot.TimeOfDay {
	v, err := timeslot.ParseTimeOfDay(t)
	if err != nil {
		panic(err)
	}
	return v
}

func mustDate(d string) timeslot.Date {
	v, err := timeslot.ParseDate(d)
	if err != nil {
		panic(err)
	}
	return v
}
