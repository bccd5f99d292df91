package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[int64]User
}

func newMemoryRepo(users ...User) *memoryRepo {
	repo := &memoryRepo{users: map[int64]User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.PendingOnly && u.IsApproved {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.BranchID != nil {
		u.BranchID = in.BranchID
	}
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) Approve(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.IsApproved = true
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

type notification struct {
	kind       string
	recipients []int64
}

type recordingNotifier struct {
	sent []notification
}

func (n *recordingNotifier) Users(ctx context.Context, title, message, kind string, recipientIDs []int64, data map[string]any) {
	n.sent = append(n.sent, notification{kind: kind, recipients: recipientIDs})
}

var (
	admin     = identity.Actor{ID: 1, Role: identity.RoleAdmin}
	staffAt3  = identity.Actor{ID: 7, Role: identity.RoleStaff, BranchID: identity.BranchPtr(3)}
	customer  = identity.Actor{ID: 50, Role: identity.RoleCustomer}
	fixtureDB = []User{
		{ID: 1, Name: "Ada", Role: identity.RoleAdmin, IsApproved: true, IsActive: true},
		{ID: 7, Name: "Sam", Role: identity.RoleStaff, BranchID: identity.BranchPtr(3), IsApproved: true, IsActive: true},
		{ID: 8, Name: "Oli", Role: identity.RoleOptometrist, BranchID: identity.BranchPtr(3), IsApproved: true, IsActive: true},
		{ID: 9, Name: "Kim", Role: identity.RoleStaff, BranchID: identity.BranchPtr(5), IsApproved: true, IsActive: true},
		{ID: 50, Name: "Cat", Role: identity.RoleCustomer, IsActive: true},
	}
)

func newTestService() (*Service, *memoryRepo, *recordingNotifier) {
	repo := newMemoryRepo(fixtureDB...)
	notifier := &recordingNotifier{}
	return NewService(repo, policy.NewEnforcer(nil, nil), notifier, nil), repo, notifier
}

func as(actor identity.Actor) context.Context {
	return identity.WithActor(context.Background(), actor)
}

func TestListIsAdminOnly(t *testing.T) {
	svc, _, _ := newTestService()

	users, err := svc.List(as(admin), ListFilter{PendingOnly: true})
	require.NoError(t, err)
	require.Len(t, users, 1)

	_, err = svc.List(as(staffAt3), ListFilter{})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	_, err = svc.List(context.Background(), ListFilter{})
	require.ErrorIs(t, err, policy.ErrAuthenticationMissing)
}

func TestGetFollowsBranchScope(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Get(as(staffAt3), 8)
	require.NoError(t, err)

	_, err = svc.Get(as(staffAt3), 9)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	_, err = svc.Get(as(customer), 50)
	require.NoError(t, err)

	_, err = svc.Get(as(customer), 7)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	_, err = svc.Get(as(admin), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateRestrictsAdministrativeFields(t *testing.T) {
	svc, _, _ := newTestService()

	name := "Cathy"
	user, err := svc.Update(as(customer), 50, UpdateInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Cathy", user.Name)

	role := identity.RoleAdmin
	_, err = svc.Update(as(customer), 50, UpdateInput{Role: &role})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	_, err = svc.Update(as(staffAt3), 8, UpdateInput{Name: &name})
	require.ErrorIs(t, err, policy.ErrPolicyDenied)

	user, err = svc.Update(as(admin), 9, UpdateInput{BranchID: identity.BranchPtr(3)})
	require.NoError(t, err)
	require.Equal(t, int64(3), *user.BranchID)
}

func TestDeleteNeverSelf(t *testing.T) {
	svc, repo, _ := newTestService()

	require.ErrorIs(t, svc.Delete(as(admin), 1), policy.ErrPolicyDenied)
	require.ErrorIs(t, svc.Delete(as(staffAt3), 9), policy.ErrPolicyDenied)
	require.NoError(t, svc.Delete(as(admin), 9))
	_, err := repo.Get(context.Background(), 9)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApproveNotifiesOnce(t *testing.T) {
	svc, _, notifier := newTestService()

	_, err := svc.Approve(as(staffAt3), 50)
	require.ErrorIs(t, err, policy.ErrPolicyDenied)
	require.Empty(t, notifier.sent)

	user, err := svc.Approve(as(admin), 50)
	require.NoError(t, err)
	require.True(t, user.IsApproved)
	require.Equal(t, []notification{{kind: "account_approved", recipients: []int64{50}}}, notifier.sent)

	_, err = svc.Approve(as(admin), 50)
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
}

func TestHandlerRoutes(t *testing.T) {
	svc, _, _ := newTestService()
	r := chi.NewRouter()
	r.Route("/api/users", NewHandler(nil, svc).MountRoutes)

	do := func(actor *identity.Actor, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if actor != nil {
			req = req.WithContext(identity.WithActor(req.Context(), *actor))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, do(nil, http.MethodGet, "/api/users/", "").Code)
	require.Equal(t, http.StatusForbidden, do(&staffAt3, http.MethodGet, "/api/users/", "").Code)
	rec := do(&admin, http.MethodGet, "/api/users/?role=staff", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"name":"Sam"`)
	require.Equal(t, http.StatusBadRequest, do(&admin, http.MethodGet, "/api/users/?role=root", "").Code)

	require.Equal(t, http.StatusNotFound, do(&admin, http.MethodGet, "/api/users/404", "").Code)
	require.Equal(t, http.StatusBadRequest, do(&admin, http.MethodGet, "/api/users/abc", "").Code)

	require.Equal(t, http.StatusUnprocessableEntity, do(&admin, http.MethodPatch, "/api/users/9", `{"email":"nope"}`).Code)
	require.Equal(t, http.StatusOK, do(&admin, http.MethodPost, "/api/users/50/approve", "").Code)
	require.Equal(t, http.StatusNoContent, do(&admin, http.MethodDelete, "/api/users/9", "").Code)
}
