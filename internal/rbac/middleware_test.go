package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, actor *identity.Actor) int {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if actor != nil {
		req = req.WithContext(identity.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireActor(t *testing.T) {
	m := Middleware{}
	require.Equal(t, http.StatusUnauthorized, serve(t, m.RequireActor(), nil))
	require.Equal(t, http.StatusNoContent, serve(t, m.RequireActor(), &identity.Actor{ID: 1, Role: identity.RoleCustomer}))
}

func TestRequireRole(t *testing.T) {
	m := Middleware{}
	gate := m.RequireRole("Admin", identity.RoleStaff, "bogus")

	require.Equal(t, http.StatusUnauthorized, serve(t, gate, nil))
	require.Equal(t, http.StatusForbidden, serve(t, gate, &identity.Actor{ID: 3, Role: identity.RoleCustomer}))
	require.Equal(t, http.StatusNoContent, serve(t, gate, &identity.Actor{ID: 1, Role: identity.RoleAdmin}))
	require.Equal(t, http.StatusNoContent, serve(t, gate, &identity.Actor{ID: 2, Role: identity.RoleStaff}))
}

func TestNormalizeRolesDropsUnknownAndDuplicates(t *testing.T) {
	got := normalizeRoles([]identity.Role{"staff", " STAFF ", "root", identity.RoleAdmin})
	require.Equal(t, []identity.Role{identity.RoleStaff, identity.RoleAdmin}, got)
}
