package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{rbac.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{rbac.ErrAccountInactive, http.StatusUnauthorized, "account_inactive"},
		{rbac.ErrNoRoleAssigned, http.StatusForbidden, "no_role_assigned"},
		{rbac.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
		{rbac.ErrRoleNotFound, http.StatusNotFound, "not_found"},
		{rbac.ErrDuplicateName, http.StatusConflict, "duplicate_name"},
		{rbac.ErrDuplicateResourceAction, http.StatusConflict, "duplicate_resource_action"},
		{rbac.ErrDuplicateCodename, http.StatusConflict, "duplicate_codename"},
		{rbac.ErrAlreadyGranted, http.StatusConflict, "already_granted"},
		{rbac.ErrRoleInUse, http.StatusConflict, "role_in_use"},
		{rbac.ErrPermissionInUse, http.StatusConflict, "permission_in_use"},
		{rbac.ErrValidation, http.StatusBadRequest, "validation"},
		{fmt.Errorf("%w: bad body", httpx.ErrValidation), http.StatusBadRequest, "validation"},
		{fmt.Errorf("roles: load: %w", rbac.ErrPermissionNotFound), http.StatusNotFound, "not_found"},
		{errors.New("dial tcp: refused"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			httpx.RespondError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			var problem httpx.ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tc.code, problem.Code)
			assert.Equal(t, tc.status, problem.Status)
		})
	}
}

func TestRespondErrorCarriesCodename(t *testing.T) {
	err := rbac.Decision{Outcome: rbac.OutcomePermissionDenied, Codename: "article.delete"}.Err()
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, err)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "article.delete", problem.Codename)
	assert.Contains(t, problem.Detail, "article.delete")
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, errors.New("pq: password authentication failed"))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestValidate(t *testing.T) {
	type body struct {
		Name string `validate:"required"`
	}
	err := httpx.Validate(body{})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Contains(t, err.Error(), "name failed required")
	assert.NoError(t, httpx.Validate(body{Name: "Editor"}))
}
