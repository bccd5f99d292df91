package prescriptions

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
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

type memoryRepo struct {
	nextID int64
	items  map[int64]Prescription
	last   ListFilter
}

func newMemoryRepo(items ...Prescription) *memoryRepo {
	repo := &memoryRepo{nextID: 100, items: map[int64]Prescription{}}
	for _, p := range items {
		repo.items[p.ID] = p
	}
	return repo
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Prescription, error) {
	m.last = filter
	var out []Prescription
	for _, p := range m.items {
		if filter.PatientID > 0 && p.PatientID != filter.PatientID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Prescription, error) {
	p, ok := m.items[id]
	if !ok {
		return Prescription{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) Create(ctx context.Context, p Prescription) (Prescription, error) {
	m.nextID++
	p.ID = m.nextID
	m.items[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, c Changes) (Prescription, error) {
	p := m.items[id]
	if c.Notes != nil {
		p.Notes = *c.Notes
	}
	if c.ExpiryDate != nil {
		p.ExpiryDate = *c.ExpiryDate
	}
	m.items[id] = p
	return p, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

type recordingNotifier struct {
	recipients [][]int64
}

func (n *recordingNotifier) Users(ctx context.Context, title, message, kind string, recipientIDs []int64, data map[string]any) {
	n.recipients = append(n.recipients, recipientIDs)
}

var (
	admin       = identity.Actor{ID: 1, Role: identity.RoleAdmin}
	optometrist = identity.Actor{ID: 20, Role: identity.RoleOptometrist, BranchID: identity.BranchPtr(3)}
	otherOpto   = identity.Actor{ID: 21, Role: identity.RoleOptometrist, BranchID: identity.BranchPtr(3)}
	staffer     = identity.Actor{ID: 7, Role: identity.RoleStaff, BranchID: identity.BranchPtr(3)}
	patient     = identity.Actor{ID: 50, Role: identity.RoleCustomer}
	stranger    = identity.Actor{ID: 51, Role: identity.RoleCustomer}
)

func as(actor identity.Actor) context.Context {
	return identity.WithActor(context.Background(), actor)
}

func fixture() (*Service, *memoryRepo, *recordingNotifier) {
	repo := newMemoryRepo(
		Prescription{ID: 1, PatientID: 50, OptometristID: 20, IssueDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Status: StatusActive},
		Prescription{ID: 2, PatientID: 51, OptometristID: 21, IssueDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Status: StatusActive},
	)
	notifier := &recordingNotifier{}
	svc := NewService(repo, policy.NewEnforcer(nil, nil), notifier, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, notifier
}

func TestCustomerListIsScopedToOwnPrescriptions(t *testing.T) {
	svc, repo, _ := fixture()

	items, err := svc.List(as(patient), ListFilter{PatientID: 51})
	require.NoError(t, err)
	require.Equal(t, int64(50), repo.last.PatientID)
	require.Len(t, items, 1)

	_, err = svc.List(as(staffer), ListFilter{})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	items, err = svc.List(as(optometrist), ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestViewRules(t *testing.T) {
	svc, _, _ := fixture()

	_, err := svc.Get(as(patient), 1)
	require.NoError(t, err)
	_, err = svc.Get(as(stranger), 1)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)
	_, err = svc.Get(as(optometrist), 1)
	require.NoError(t, err)
	_, err = svc.Get(as(otherOpto), 1)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)
	_, err = svc.Get(as(admin), 2)
	require.NoError(t, err)
}

func TestCreateByOptometristOnly(t *testing.T) {
	svc, _, notifier := fixture()
	in := CreateInput{PatientID: 50, Type: "glasses", IssueDate: "2025-03-01", ExpiryDate: "2026-03-01",
		RightEye: Eye{Sphere: "-1.25"}}

	_, err := svc.Create(as(admin), in)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	p, err := svc.Create(as(optometrist), in)
	require.NoError(t, err)
	require.Equal(t, int64(20), p.OptometristID)
	require.Equal(t, int64(3), *p.BranchID)
	require.Equal(t, StatusActive, p.Status)
	require.True(t, strings.HasPrefix(p.Number, "RX-20250301-"))
	require.Equal(t, [][]int64{{50}}, notifier.recipients)

	in.ExpiryDate = "2025-02-01"
	_, err = svc.Create(as(optometrist), in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, repo, _ := fixture()
	notes := "recheck in 6 months"

	_, err := svc.Update(as(otherOpto), 1, UpdateInput{Notes: &notes})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	p, err := svc.Update(as(optometrist), 1, UpdateInput{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, notes, p.Notes)

	early := "2024-12-01"
	_, err = svc.Update(as(admin), 1, UpdateInput{ExpiryDate: &early})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.ErrorIs(t, svc.Delete(as(optometrist), 1), policy.ErrPolicyDenied)
	require.NoError(t, svc.Delete(as(admin), 1))
	require.NotContains(t, repo.items, int64(1))
}

func TestHandler(t *testing.T) {
	svc, _, _ := fixture()
	r := chi.NewRouter()
	r.Route("/api/prescriptions", NewHandler(nil, svc).MountRoutes)

	do := func(actor identity.Actor, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(identity.WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(optometrist, http.MethodPost, "/api/prescriptions/",
		`{"patient_id":50,"type":"glasses","issue_date":"2025-03-01","expiry_date":"2026-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(optometrist, http.MethodPost, "/api/prescriptions/", `{"patient_id":50,"type":"monocle","issue_date":"2025-03-01","expiry_date":"2026-03-01"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	require.Equal(t, http.StatusForbidden, do(stranger, http.MethodGet, "/api/prescriptions/1", "").Code)
	require.Equal(t, http.StatusOK, do(patient, http.MethodGet, "/api/prescriptions/1", "").Code)
	require.Equal(t, http.StatusNoContent, do(admin, http.MethodDelete, "/api/prescriptions/2", "").Code)
}
