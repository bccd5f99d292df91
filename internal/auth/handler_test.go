package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/auth"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
	_ "github.com/Malitic/Everbright-Optical-Clinic-sub007/testing"
)

type stubRepo struct {
	users map[string]*auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newRouter(t *testing.T) (http.Handler, *auth.TokenService) {
	t.Helper()
	repo := &stubRepo{users: map[string]*auth.User{
		"staff@everbright.test": {
			ID: 10, Name: "Sam", Email: "staff@everbright.test", PasswordHash: hashed(t, "correctpass"),
			Role: identity.RoleStaff, BranchID: identity.BranchPtr(3), IsActive: true, IsApproved: true,
		},
		"pending@everbright.test": {
			ID: 11, Name: "Pat", Email: "pending@everbright.test", PasswordHash: hashed(t, "correctpass"),
			Role: identity.RoleOptometrist, IsActive: true,
		},
	}}
	tokens := auth.NewTokenService("test-secret", "everbright", time.Hour)
	handler := auth.NewHandler(nil, auth.NewService(repo, tokens, nil, nil))
	r := chi.NewRouter()
	r.Use(auth.Authenticate(tokens, nil))
	r.Route("/api/auth", handler.MountRoutes)
	return r, tokens
}

func postLogin(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginIssuesTokenCarryingActor(t *testing.T) {
	h, tokens := newRouter(t)
	rec := postLogin(t, h, `{"email":"staff@everbright.test","password":"correctpass","role":"staff"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Token string `json:"token"`
		User  struct {
			ID       int64  `json:"id"`
			Role     string `json:"role"`
			BranchID *int64 `json:"branch_id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "staff", body.User.Role)

	actor, err := tokens.Parse(body.Token)
	require.NoError(t, err)
	require.Equal(t, int64(10), actor.ID)
	require.Equal(t, identity.RoleStaff, actor.Role)
	require.True(t, actor.SharesBranch(identity.BranchPtr(3)))
}

func TestLoginRejections(t *testing.T) {
	h, _ := newRouter(t)

	rec := postLogin(t, h, `{"email":"staff@everbright.test","password":"wrongpass"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postLogin(t, h, `{"email":"pending@everbright.test","password":"correctpass"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "pending admin approval")

	rec = postLogin(t, h, `{"email":"staff@everbright.test","password":"correctpass","role":"admin"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = postLogin(t, h, `{"email":"not-an-email","password":""}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = postLogin(t, h, `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeRequiresBearer(t *testing.T) {
	h, tokens := newRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := tokens.Issue(identity.Actor{ID: 10, Role: identity.RoleStaff})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"email":"staff@everbright.test"`)
}

func TestTokenParseRules(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", "", time.Hour)

	// relay clients built by other services may only carry sub
	subOnly := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "77",
		"role": "customer",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})
	raw, err := subOnly.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	actor, err := tokens.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, int64(77), actor.ID)
	require.Nil(t, actor.BranchID)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1, "role": "admin", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	raw, err = expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	require.ErrorIs(t, err, auth.ErrTokenExpired)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1, "role": "root"})
	raw, err = badRole.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1, "role": "admin"})
	raw, err = forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", auth.BearerToken("Bearer abc"))
	require.Equal(t, "abc", auth.BearerToken("bearer  abc"))
	require.Equal(t, "", auth.BearerToken("Basic abc"))
	require.Equal(t, "", auth.BearerToken(""))
}
