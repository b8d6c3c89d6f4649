package reschedule

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/domain/appointment"
	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/internal/platform/notify"
	"github.com/medsched/medsched/pkg/schederr"
	"github.com/medsched/medsched/pkg/timeslot"
)

type memRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Request
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[uuid.UUID]*Request{}}
}

func (m *memRepo) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.AppointmentID == r.AppointmentID && existing.Status == StatusPending {
			return schederr.Conflictf("appointment %s already has a pending reschedule request", r.AppointmentID)
		}
	}
	r.ID = uuid.New()
	m.items[r.ID] = r
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, schederr.NotFoundf("reschedule request not found")
	}
	return r, nil
}

func (m *memRepo) Update(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[r.ID]; !ok {
		return schederr.NotFoundf("reschedule request %s not found", r.ID)
	}
	m.items[r.ID] = r
	return nil
}

func (m *memRepo) GetPendingByAppointment(_ context.Context, appointmentID uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.AppointmentID == appointmentID && r.Status == StatusPending {
			return r, nil
		}
	}
	return nil, schederr.NotFoundf("no pending request")
}

func (m *memRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, status Status, limit, offset int) ([]*Request, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.items {
		if r.DoctorID == doctorID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Request, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.items {
		if r.PatientID == patientID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

type memAppointments struct {
	mu    sync.Mutex
	items map[uuid.UUID]*appointment.Appointment
}

func newMemAppointments() *memAppointments {
	return &memAppointments{items: map[uuid.UUID]*appointment.Appointment{}}
}

func (m *memAppointments) add(doctorID uuid.UUID, date, start string) *appointment.Appointment {
	a := &appointment.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Date:      mustDate(date),
		StartTime: mustTime(start),
		EndTime:   mustTime(start) + 30,
		Status:    appointment.StatusScheduled,
	}
	m.items[a.ID] = a
	return a
}

func (m *memAppointments) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, schederr.NotFoundf("appointment not found")
	}
	return a, nil
}

func (m *memAppointments) Update(_ context.Context, a *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[a.ID]; !ok {
		return schederr.NotFoundf("appointment %s not found", a.ID)
	}
	m.items[a.ID] = a
	return nil
}

type fakeSlots struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*scheduling.Slot
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{slots: map[uuid.UUID]*scheduling.Slot{}}
}

func (f *fakeSlots) add(doctorID uuid.UUID, date, start string, status scheduling.SlotStatus, appt *uuid.UUID) *scheduling.Slot {
	sl := &scheduling.Slot{
		ID:            uuid.New(),
		DoctorID:      doctorID,
		Date:          mustDate(date),
		StartTime:     mustTime(start),
		EndTime:       mustTime(start) + 30,
		Status:        status,
		AppointmentID: appt,
	}
	f.slots[sl.ID] = sl
	return sl
}

func (f *fakeSlots) GetSlot(_ context.Context, id uuid.UUID) (*scheduling.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, ok := f.slots[id]
	if !ok {
		return nil, schederr.NotFoundf("slot not found")
	}
	return sl, nil
}

func (f *fakeSlots) GetSlotByAppointment(_ context.Context, appointmentID uuid.UUID) (*scheduling.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sl := range f.slots {
		if sl.AppointmentID != nil && *sl.AppointmentID == appointmentID {
			return sl, nil
		}
	}
	return nil, schederr.NotFoundf("slot not found")
}

func (f *fakeSlots) BookSlot(_ context.Context, slotID, appointmentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, ok := f.slots[slotID]
	if !ok {
		return schederr.NotFoundf("slot %s not found", slotID)
	}
	if sl.Status != scheduling.SlotAvailable {
		return schederr.Conflictf("slot %s is no longer available", slotID)
	}
	sl.Status = scheduling.SlotBooked
	appt := appointmentID
	sl.AppointmentID = &appt
	return nil
}

func (f *fakeSlots) ReleaseSlot(_ context.Context, slotID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sl, ok := f.slots[slotID]
	if !ok {
		return schederr.NotFoundf("slot %s not found", slotID)
	}
	sl.Status = scheduling.SlotAvailable
	sl.AppointmentID = nil
	return nil
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

type fixture struct {
	repo  *memRepo
	appts *memAppointments
	slots *fakeSlots
	mock  *notify.Mock
	svc   *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:  newMemRepo(),
		appts: newMemAppointments(),
		slots: newFakeSlots(),
		mock:  &notify.Mock{},
	}
	f.svc = NewService(f.repo, f.appts, f.slots, nil, f.mock, zerolog.Nop())
	return f
}

// books the appointment into its current slot so the workflow has an
// old slot to release.
func (f *fixture) scheduled(t *testing.T) (*appointment.Appointment, *scheduling.Slot) {
	t.Helper()
	doctorID := uuid.New()
	appt := f.appts.add(doctorID, "2024-03-04", "09:00")
	old := f.slots.add(doctorID, "2024-03-04", "09:00", scheduling.SlotBooked, &appt.ID)
	return appt, old
}

func TestCreate_PendingRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, _ := f.scheduled(t)
	target := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	req := &Request{AppointmentID: appt.ID, RequestedSlotID: &target.ID, Reason: "work trip"}
	if err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	if req.Status != StatusPending {
		t.Errorf("expected pending, got %s", req.Status)
	}
	if req.PatientID != appt.PatientID || req.DoctorID != appt.DoctorID {
		t.Error("request should inherit patient and doctor from the appointment")
	}
	if req.CurrentDate.String() != "2024-03-04" || req.CurrentStart.String() != "09:00" {
		t.Errorf("request should snapshot the current appointment window, got %s %s", req.CurrentDate, req.CurrentStart)
	}
	if len(f.mock.Events()) != 1 || f.mock.Events()[0].Type != notify.EventRescheduleRequested {
		t.Error("expected a reschedule-requested notification")
	}
}

func TestCreate_PreferenceOnlyNeedsNoSlot(t *testing.T) {
	f := newFixture()
	appt, _ := f.scheduled(t)
	wish := mustDate("2024-03-11")

	req := &Request{AppointmentID: appt.ID, RequestedDate: &wish, Reason: "prefer next week"}
	if err := f.svc.Create(context.Background(), req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != StatusPending || req.RequestedSlotID != nil {
		t.Errorf("expected pending preference-only request, got %+v", req)
	}
}

func TestCreate_WithoutSlotOrDateFails(t *testing.T) {
	f := newFixture()
	appt, _ := f.scheduled(t)

	err := f.svc.Create(context.Background(), &Request{AppointmentID: appt.ID})
	if !errors.Is(err, schederr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_SecondPendingConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, _ := f.scheduled(t)
	a := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)
	b := f.slots.add(appt.DoctorID, "2024-03-12", "10:00", scheduling.SlotAvailable, nil)

	if err := f.svc.Create(ctx, &Request{AppointmentID: appt.ID, RequestedSlotID: &a.ID}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := f.svc.Create(ctx, &Request{AppointmentID: appt.ID, RequestedSlotID: &b.ID})
	if !errors.Is(err, schederr.ErrConflict) {
		t.Fatalf("expected conflict for second pending request, got %v", err)
	}
}

func TestCreate_SlotOfDifferentDoctor(t *testing.T) {
	f := newFixture()
	appt, _ := f.scheduled(t)
	foreign := f.slots.add(uuid.New(), "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	err := f.svc.Create(context.Background(), &Request{AppointmentID: appt.ID, RequestedSlotID: &foreign.ID})
	if !errors.Is(err, schederr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_UnavailableSlotConflicts(t *testing.T) {
	f := newFixture()
	appt, _ := f.scheduled(t)
	taken := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotBooked, nil)

	err := f.svc.Create(context.Background(), &Request{AppointmentID: appt.ID, RequestedSlotID: &taken.ID})
	if !errors.Is(err, schederr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreate_CancelledAppointmentIsStateError(t *testing.T) {
	f := newFixture()
	appt, _ := f.scheduled(t)
	appt.Status = appointment.StatusCancelled
	target := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	err := f.svc.Create(context.Background(), &Request{AppointmentID: appt.ID, RequestedSlotID: &target.ID})
	if !errors.Is(err, schederr.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestApprove_MovesAppointment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, old := f.scheduled(t)
	target := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	req := &Request{AppointmentID: appt.ID, RequestedSlotID: &target.ID}
	if err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := f.svc.Approve(ctx, req.ID, uuid.New(), "ok")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if got.Status != StatusApproved || got.RespondedAt == nil {
		t.Errorf("expected approved with a decision time, got %+v", got)
	}
	if old.Status != scheduling.SlotAvailable || old.AppointmentID != nil {
		t.Error("old slot should be released")
	}
	if target.Status != scheduling.SlotBooked || target.AppointmentID == nil || *target.AppointmentID != appt.ID {
		t.Error("new slot should be booked to the appointment")
	}
	if appt.Date.String() != "2024-03-11" || appt.StartTime.String() != "10:00" {
		t.Errorf("appointment should move to the new window, got %s %s", appt.Date, appt.StartTime)
	}

	events := f.mock.Events()
	if len(events) != 2 || events[1].Type != notify.EventRescheduleApproved {
		t.Error("expected a reschedule-approved notification")
	}
}

func TestApprove_PreferenceOnlyLeavesSlotsAlone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, old := f.scheduled(t)
	wish := mustDate("2024-03-11")

	req := &Request{AppointmentID: appt.ID, RequestedDate: &wish}
	if err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	admin := uuid.New()
	got, err := f.svc.Approve(ctx, req.ID, admin, "call to arrange")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected approved, got %s", got.Status)
	}
	if got.RespondedBy == nil || *got.RespondedBy != admin {
		t.Error("expected the approver to be recorded")
	}
	if old.Status != scheduling.SlotBooked {
		t.Error("preference-only approval must not touch the booked slot")
	}
	if appt.Date.String() != "2024-03-04" {
		t.Error("preference-only approval must not move the appointment")
	}
}

func TestApprove_SlotTakenMeanwhileConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, old := f.scheduled(t)
	target := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	req := &Request{AppointmentID: appt.ID, RequestedSlotID: &target.ID}
	if err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Someone books the target slot before staff approve.
	other := uuid.New()
	if err := f.slots.BookSlot(ctx, target.ID, other); err != nil {
		t.Fatalf("book: %v", err)
	}

	_, err := f.svc.Approve(ctx, req.ID, uuid.New(), "ok")
	if !errors.Is(err, schederr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if old.Status != scheduling.SlotBooked {
		t.Error("failed approval must not release the old slot")
	}
	if appt.Date.String() != "2024-03-04" {
		t.Error("failed approval must not move the appointment")
	}
	stored, _ := f.repo.GetByID(ctx, req.ID)
	if stored.Status != StatusPending {
		t.Errorf("request should stay pending, got %s", stored.Status)
	}
}

func TestApprove_NonPendingIsStateError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, _ := f.scheduled(t)
	target := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	req := &Request{AppointmentID: appt.ID, RequestedSlotID: &target.ID}
	if err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Approve(ctx, req.ID, uuid.New(), "ok"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.svc.Approve(ctx, req.ID, uuid.New(), "again"); !errors.Is(err, schederr.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestReject_RequiresAdminNotes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, _ := f.scheduled(t)
	target := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	req := &Request{AppointmentID: appt.ID, RequestedSlotID: &target.ID}
	if err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Reject(ctx, req.ID, uuid.New(), ""); !errors.Is(err, schederr.ErrValidation) {
		t.Fatalf("expected validation error for empty notes, got %v", err)
	}

	got, err := f.svc.Reject(ctx, req.ID, uuid.New(), "slot reserved for urgent cases")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != StatusRejected || got.AdminNotes == "" {
		t.Errorf("expected rejected with notes, got %+v", got)
	}
	if target.Status != scheduling.SlotAvailable {
		t.Error("rejection must not touch the requested slot")
	}
}

func TestCancel_OnlyOwnerAndPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	appt, _ := f.scheduled(t)
	target := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	req := &Request{AppointmentID: appt.ID, RequestedSlotID: &target.ID}
	if err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Cancel(ctx, req.ID, uuid.New()); !errors.Is(err, schederr.ErrValidation) {
		t.Fatalf("expected validation error for foreign patient, got %v", err)
	}

	got, err := f.svc.Cancel(ctx, req.ID, appt.PatientID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	if _, err := f.svc.Cancel(ctx, req.ID, appt.PatientID); !errors.Is(err, schederr.ErrState) {
		t.Fatalf("second cancel should be a state error, got %v", err)
	}
}

func TestNotifyFailureDoesNotFailWorkflow(t *testing.T) {
	f := newFixture()
	f.mock.ShouldFail = true
	f.mock.FailError = "broker down"
	ctx := context.Background()
	appt, _ := f.scheduled(t)
	target := f.slots.add(appt.DoctorID, "2024-03-11", "10:00", scheduling.SlotAvailable, nil)

	req := &Request{AppointmentID: appt.ID, RequestedSlotID: &target.ID}
	if err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("notification failure must not fail the create: %v", err)
	}
	if _, err := f.svc.Approve(ctx, req.ID, uuid.New(), "ok"); err != nil {
		t.Fatalf("notification failure must not fail the approval: %v", err)
	}
}
