package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

func principal(id int64, role shared.Role) *shared.Principal {
	return &shared.Principal{ID: id, Role: role, Active: true}
}

func TestAuthorize(t *testing.T) {
	svc := NewService()
	cases := []struct {
		role shared.Role
		perm string
		ok   bool
	}{
		{shared.RoleAdmin, "users", true},
		{shared.RoleAdmin, "mass-intentions", true},
		{shared.RoleEditor, "news", true},
		{shared.RoleEditor, " News ", true},
		{shared.RoleEditor, "users", false},
		{shared.RoleEditor, "mass-intentions", false},
		{shared.RoleCommon, "birthdays", true},
		{shared.RoleCommon, "news", false},
		{shared.Role("ghost"), "birthdays", false},
	}
	for _, tc := range cases {
		err := svc.Authorize(principal(1, tc.role), tc.perm)
		if tc.ok {
			assert.NoError(t, err, "%s/%s", tc.role, tc.perm)
		} else {
			assert.ErrorIs(t, err, shared.ErrForbidden, "%s/%s", tc.role, tc.perm)
		}
	}
	assert.ErrorIs(t, svc.Authorize(nil, "news"), shared.ErrUnauthenticated)
}

func TestRequireRole(t *testing.T) {
	svc := NewService()
	assert.NoError(t, svc.RequireRole(principal(1, shared.RoleAdmin), shared.RoleAdmin))
	assert.NoError(t, svc.RequireRole(principal(1, shared.RoleEditor), shared.RoleAdmin, shared.RoleEditor))
	assert.ErrorIs(t, svc.RequireRole(principal(1, shared.RoleCommon), shared.RoleAdmin), shared.ErrForbidden)
	assert.ErrorIs(t, svc.RequireRole(nil, shared.RoleAdmin), shared.ErrUnauthenticated)
}

func TestEffectivePermissions(t *testing.T) {
	svc := NewServiceWithGrants(map[shared.Role][]string{
		shared.RoleEditor: {"news", " NEWS", "", "birthdays"},
	})
	assert.Equal(t, []string{"birthdays", "news"}, svc.EffectivePermissions(shared.RoleEditor))
	assert.Empty(t, svc.EffectivePermissions(shared.RoleCommon))
	assert.Equal(t, []string{AllPermissions}, NewService().EffectivePermissions(shared.RoleAdmin))
}

func TestGuardPrincipalChange(t *testing.T) {
	svc := NewService()
	admin := principal(1, shared.RoleAdmin)
	otherAdmin := principal(2, shared.RoleAdmin)
	editor := principal(3, shared.RoleEditor)

	cases := []struct {
		name   string
		actor  *shared.Principal
		target *shared.Principal
		change PrincipalChange
		err    error
	}{
		{"admin deletes editor", admin, editor, PrincipalChange{Delete: true}, nil},
		{"admin deletes self", admin, admin, PrincipalChange{Delete: true}, nil},
		{"admin deletes other admin", admin, otherAdmin, PrincipalChange{Delete: true}, shared.ErrForbidden},
		{"admin demotes other admin", admin, otherAdmin, PrincipalChange{NewRole: shared.RoleEditor}, shared.ErrForbidden},
		{"admin keeps other admin role", admin, otherAdmin, PrincipalChange{NewRole: shared.RoleAdmin}, nil},
		{"admin edits other admin fields", admin, otherAdmin, PrincipalChange{}, nil},
		{"admin demotes self", admin, admin, PrincipalChange{NewRole: shared.RoleCommon}, nil},
		{"admin promotes editor", admin, editor, PrincipalChange{NewRole: shared.RoleAdmin}, nil},
		{"editor changes own role", editor, editor, PrincipalChange{NewRole: shared.RoleAdmin}, shared.ErrForbidden},
		{"editor resubmits own role", editor, editor, PrincipalChange{NewRole: shared.RoleEditor}, nil},
		{"new principal", admin, nil, PrincipalChange{}, nil},
		{"anonymous", nil, editor, PrincipalChange{Delete: true}, shared.ErrUnauthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.GuardPrincipalChange(tc.actor, tc.target, tc.change)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

// ==== HTTP ====

func withPrincipal(p *shared.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p != nil {
				r = r.WithContext(shared.ContextWithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func serve(t *testing.T, p *shared.Principal, mount func(chi.Router)) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(withPrincipal(p))
	mount(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	return rr
}

func TestMiddleware(t *testing.T) {
	mw := Middleware{Service: NewService()}
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	byPerm := func(r chi.Router) { r.With(mw.RequirePermission("news")).Get("/", ok) }
	assert.Equal(t, http.StatusNoContent, serve(t, principal(1, shared.RoleEditor), byPerm).Code)
	assert.Equal(t, http.StatusForbidden, serve(t, principal(1, shared.RoleCommon), byPerm).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, nil, byPerm).Code)

	byRole := func(r chi.Router) { r.With(mw.RequireRole(shared.RoleAdmin)).Get("/", ok) }
	assert.Equal(t, http.StatusNoContent, serve(t, principal(1, shared.RoleAdmin), byRole).Code)
	assert.Equal(t, http.StatusForbidden, serve(t, principal(1, shared.RoleEditor), byRole).Code)
}

func TestPermissionsHandler(t *testing.T) {
	h := NewPermissionsHandler(nil, NewService())

	rr := serve(t, principal(1, shared.RoleCommon), h.MountRoutes)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Success bool                `json:"success"`
		Data    permissionsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, shared.RoleCommon, body.Data.Role)
	assert.Equal(t, []string{"birthdays"}, body.Data.Permissions)

	assert.Equal(t, http.StatusUnauthorized, serve(t, nil, h.MountRoutes).Code)
}
