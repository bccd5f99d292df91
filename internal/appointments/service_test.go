package appointments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

type memoryRepo struct {
	nextID int64
	items  map[int64]Appointment
	roles  map[int64]identity.Role
	last   ListFilter
	slots  []Slot
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	m.last = filter
	var out []Appointment
	for _, a := range m.items {
		if filter.PatientID > 0 && a.PatientID != filter.PatientID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return Appointment{}, shared.ErrNotFound
	}
	return a, nil
}

func (m *memoryRepo) Create(ctx context.Context, a Appointment) (Appointment, error) {
	m.nextID++
	a.ID = m.nextID
	m.items[a.ID] = a
	return a, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, c Changes) (Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return Appointment{}, shared.ErrNotFound
	}
	if c.Date != nil {
		a.Date = *c.Date
	}
	if c.StartTime != nil {
		a.StartTime = *c.StartTime
	}
	if c.EndTime != nil {
		a.EndTime = *c.EndTime
	}
	if c.Status != nil {
		a.Status = *c.Status
	}
	if c.Notes != nil {
		a.Notes = *c.Notes
	}
	m.items[id] = a
	return a, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) Overlaps(ctx context.Context, slot Slot) (bool, error) {
	m.slots = append(m.slots, slot)
	for _, a := range m.items {
		if a.ID == slot.ExcludeID || a.OptometristID != slot.OptometristID || !a.Date.Equal(slot.Date) {
			continue
		}
		if a.Status == StatusCancelled || a.Status == StatusNoShow {
			continue
		}
		end := a.EndTime
		if end == "" {
			end = defaultEnd(a.StartTime)
		}
		if a.StartTime < slot.EndTime && end > slot.StartTime {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) RoleOf(ctx context.Context, userID int64) (identity.Role, error) {
	role, ok := m.roles[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

type change struct {
	appt       notify.Appointment
	changeType string
	message    string
}

type recordingNotifier struct {
	changes []change
}

func (n *recordingNotifier) AppointmentChanged(ctx context.Context, appt notify.Appointment, changeType, message string) {
	n.changes = append(n.changes, change{appt: appt, changeType: changeType, message: message})
}

var (
	admin       = identity.Actor{ID: 1, Role: identity.RoleAdmin}
	optometrist = identity.Actor{ID: 20, Role: identity.RoleOptometrist, BranchID: identity.BranchPtr(3)}
	staffer     = identity.Actor{ID: 7, Role: identity.RoleStaff, BranchID: identity.BranchPtr(3)}
	otherStaff  = identity.Actor{ID: 8, Role: identity.RoleStaff, BranchID: identity.BranchPtr(4)}
	patient     = identity.Actor{ID: 50, Role: identity.RoleCustomer}
	stranger    = identity.Actor{ID: 51, Role: identity.RoleCustomer}
)

var march10 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func as(actor identity.Actor) context.Context {
	return identity.WithActor(context.Background(), actor)
}

func fixture() (*Service, *memoryRepo, *recordingNotifier) {
	repo := &memoryRepo{
		nextID: 100,
		items: map[int64]Appointment{
			1: {ID: 1, PatientID: 50, OptometristID: 20, BranchID: identity.BranchPtr(3), Date: march10,
				StartTime: "10:00", EndTime: "10:30", Type: "eye_exam", Status: StatusScheduled},
		},
		roles: map[int64]identity.Role{20: identity.RoleOptometrist, 7: identity.RoleStaff},
	}
	notifier := &recordingNotifier{}
	svc := NewService(repo, policy.NewEnforcer(nil, nil), notifier, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, notifier
}

func booking() CreateInput {
	return CreateInput{PatientID: 50, OptometristID: 20, BranchID: 3, AppointmentDate: "2025-03-10",
		StartTime: "11:00", EndTime: "11:30", Type: "eye_exam"}
}

func TestCreateAnnouncesBooking(t *testing.T) {
	svc, _, notifier := fixture()

	a, err := svc.Create(as(patient), booking())
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, a.Status)
	require.Equal(t, int64(3), *a.BranchID)

	require.Len(t, notifier.changes, 1)
	got := notifier.changes[0]
	require.Equal(t, ChangeCreated, got.changeType)
	require.Equal(t, "2025-03-10", got.appt.Date)
	require.Equal(t, "New appointment scheduled for 2025-03-10 at 11:00", got.message)
}

func TestCreateRejections(t *testing.T) {
	svc, _, notifier := fixture()

	in := booking()
	_, err := svc.Create(as(stranger), in)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	_, err = svc.Create(as(otherStaff), in)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	_, err = svc.Create(context.Background(), in)
	require.ErrorIs(t, err, policy.ErrAuthenticationMissing)

	in = booking()
	in.AppointmentDate = "2025-02-28"
	_, err = svc.Create(as(staffer), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = booking()
	in.EndTime = "10:30"
	_, err = svc.Create(as(staffer), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = booking()
	in.OptometristID = 7
	_, err = svc.Create(as(staffer), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = booking()
	in.StartTime, in.EndTime = "10:15", "10:45"
	_, err = svc.Create(as(admin), in)
	require.ErrorIs(t, err, ErrSlotTaken)
	require.ErrorIs(t, err, shared.ErrConflict)

	require.Empty(t, notifier.changes)
}

func TestUpdateAnnouncesStatusOrEdit(t *testing.T) {
	svc, _, notifier := fixture()

	confirmed := StatusConfirmed
	a, err := svc.Update(as(staffer), 1, UpdateInput{Status: &confirmed})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, a.Status)

	notes := "bring current glasses"
	_, err = svc.Update(as(optometrist), 1, UpdateInput{Notes: &notes})
	require.NoError(t, err)

	require.Len(t, notifier.changes, 2)
	require.Equal(t, StatusConfirmed, notifier.changes[0].changeType)
	require.Equal(t, "Your appointment has been confirmed", notifier.changes[0].message)
	require.Equal(t, ChangeUpdated, notifier.changes[1].changeType)
}

func TestUpdateRules(t *testing.T) {
	svc, repo, _ := fixture()
	repo.items[2] = Appointment{ID: 2, PatientID: 51, OptometristID: 20, Date: march10,
		StartTime: "14:00", EndTime: "14:30", Status: StatusScheduled}

	completed := StatusCompleted
	_, err := svc.Update(as(patient), 1, UpdateInput{Status: &completed})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	_, err = svc.Update(as(stranger), 1, UpdateInput{})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	start, end := "14:15", "14:45"
	_, err = svc.Update(as(staffer), 1, UpdateInput{StartTime: &start, EndTime: &end})
	require.ErrorIs(t, err, ErrSlotTaken)

	// moving within its own slot does not collide with itself
	start, end = "10:10", "10:40"
	a, err := svc.Update(as(staffer), 1, UpdateInput{StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	require.Equal(t, "10:10", a.StartTime)
}

func TestCustomerUpdateLimitedToCancel(t *testing.T) {
	svc, repo, notifier := fixture()

	start, notes, kind, date := "15:00", "moved by patient", "consultation", "2025-03-11"
	for _, in := range []UpdateInput{
		{StartTime: &start},
		{Notes: &notes},
		{Type: &kind},
		{AppointmentDate: &date},
	} {
		_, err := svc.Update(as(patient), 1, in)
		require.ErrorIs(t, err, policy.ErrPolicyDenied)
	}
	cancelled := StatusCancelled
	_, err := svc.Update(as(patient), 1, UpdateInput{Status: &cancelled, Notes: &notes})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)
	require.Equal(t, "10:00", repo.items[1].StartTime)
	require.Empty(t, notifier.changes)

	a, err := svc.Update(as(patient), 1, UpdateInput{Status: &cancelled})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, a.Status)
}

func TestRescheduleOpenEndedBooking(t *testing.T) {
	svc, repo, _ := fixture()
	repo.items[2] = Appointment{ID: 2, PatientID: 50, OptometristID: 20, Date: march10,
		StartTime: "12:00", Status: StatusScheduled}

	// 10:00-10:30 is held by appointment 1
	start := "09:45"
	_, err := svc.Update(as(staffer), 2, UpdateInput{StartTime: &start})
	require.ErrorIs(t, err, ErrSlotTaken)
	require.Equal(t, Slot{OptometristID: 20, Date: march10, StartTime: "09:45", EndTime: "10:15", ExcludeID: 2}, repo.slots[0])

	start = "13:00"
	a, err := svc.Update(as(staffer), 2, UpdateInput{StartTime: &start})
	require.NoError(t, err)
	require.Equal(t, "13:00", a.StartTime)
	require.Equal(t, "13:30", repo.slots[1].EndTime)

	start = "23:45"
	_, err = svc.Update(as(staffer), 2, UpdateInput{StartTime: &start})
	require.NoError(t, err)
	require.Equal(t, "24:00", repo.slots[2].EndTime)
}

func TestCancelAndDelete(t *testing.T) {
	svc, repo, notifier := fixture()

	a, err := svc.Cancel(as(patient), 1)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, a.Status)

	_, err = svc.Cancel(as(patient), 1)
	require.NoError(t, err)
	require.Len(t, notifier.changes, 1)
	require.Equal(t, ChangeCancelled, notifier.changes[0].changeType)

	repo.items[1] = Appointment{ID: 1, PatientID: 50, OptometristID: 20, Date: march10, StartTime: "10:00", Status: StatusCompleted}
	_, err = svc.Cancel(as(admin), 1)
	require.ErrorIs(t, err, shared.ErrConflict)

	repo.items[3] = Appointment{ID: 3, PatientID: 50, OptometristID: 20, Date: march10, StartTime: "16:00", Status: StatusScheduled}
	require.ErrorIs(t, svc.Delete(as(stranger), 3), policy.ErrPolicyDenied)
	require.NoError(t, svc.Delete(as(patient), 3))
	require.NotContains(t, repo.items, int64(3))
	require.Equal(t, StatusCancelled, notifier.changes[len(notifier.changes)-1].appt.Status)
}

func TestListScoping(t *testing.T) {
	svc, repo, _ := fixture()

	_, err := svc.List(as(patient), ListFilter{PatientID: 51})
	require.NoError(t, err)
	require.Equal(t, int64(50), repo.last.PatientID)

	_, err = svc.List(as(staffer), ListFilter{BranchID: 9})
	require.NoError(t, err)
	require.Equal(t, int64(3), repo.last.BranchID)

	_, err = svc.List(as(admin), ListFilter{BranchID: 9})
	require.NoError(t, err)
	require.Equal(t, int64(9), repo.last.BranchID)
}

func TestStatusMessage(t *testing.T) {
	require.Equal(t, "You were marked as no-show for your appointment", StatusMessage(StatusNoShow))
	require.Equal(t, "Your appointment status has been updated to scheduled", StatusMessage(StatusScheduled))
}

func TestHandler(t *testing.T) {
	svc, _, _ := fixture()
	r := chi.NewRouter()
	r.Route("/api/appointments", NewHandler(nil, svc).MountRoutes)

	do := func(actor identity.Actor, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(identity.WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(patient, http.MethodPost, "/api/appointments/",
		`{"patient_id":50,"optometrist_id":20,"branch_id":3,"appointment_date":"2025-03-10","start_time":"12:00","end_time":"12:30","type":"follow_up"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(patient, http.MethodPost, "/api/appointments/",
		`{"patient_id":50,"optometrist_id":20,"branch_id":3,"appointment_date":"2025-03-10","start_time":"noon","end_time":"12:30","type":"follow_up"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(patient, http.MethodPost, "/api/appointments/",
		`{"patient_id":50,"optometrist_id":20,"branch_id":3,"appointment_date":"2025-03-10","start_time":"10:00","end_time":"10:30","type":"follow_up"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(stranger, http.MethodGet, "/api/appointments/1", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(patient, http.MethodPost, "/api/appointments/1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	rec = do(admin, http.MethodGet, "/api/appointments/?date=tomorrow", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(admin, http.MethodDelete, "/api/appointments/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
