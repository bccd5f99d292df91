package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := map[error]int{
		policy.ErrAuthenticationMissing:                   http.StatusUnauthorized,
		&policy.DeniedError{Resource: "transaction"}:      http.StatusForbidden,
		fmt.Errorf("load: %w", shared.ErrNotFound):        http.StatusNotFound,
		fmt.Errorf("bad input: %w", shared.ErrValidation): http.StatusBadRequest,
		shared.ErrIdempotencyConflict:                     http.StatusConflict,
		fmt.Errorf("boom"):                                http.StatusInternalServerError,
	}
	for err, status := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		require.Equal(t, status, rec.Code, err.Error())

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, status, body.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("pq: password authentication failed"))
	require.NotContains(t, rec.Body.String(), "password")
}

func TestValidationProblemListsFields(t *testing.T) {
	type input struct {
		Email string `validate:"required,email"`
	}
	err := validator.New().Struct(input{Email: "nope"})
	problem := ValidationProblem(err)
	require.Equal(t, "email", problem.Errors["Email"])
	require.Equal(t, http.StatusUnprocessableEntity, problem.Status)
}

func TestParamID(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = ParamID(req, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.NoError(t, gotErr)
	require.Equal(t, int64(42), got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/abc", nil))
	require.ErrorIs(t, gotErr, ErrValidation)
}
