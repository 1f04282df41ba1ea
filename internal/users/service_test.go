package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/paroquia-cms/paroquia-cms/internal/entities"
	"github.com/paroquia-cms/paroquia-cms/internal/rbac"
	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// ==== Test doubles ====

type prefixHasher struct{ err error }

func (h prefixHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + password, nil
}

type recordingAudit struct{ entries []shared.AuditLog }

func (a *recordingAudit) Record(_ context.Context, entry shared.AuditLog) error {
	a.entries = append(a.entries, entry)
	return nil
}

// ==== Fixture ====

type usersFixture struct {
	store   *resource.MemoryStore
	users   *resource.Descriptor
	service *Service
}

func newUsersFixture(t *testing.T, hasher Hasher) *usersFixture {
	t.Helper()
	registry, err := entities.NewRegistry()
	require.NoError(t, err)
	users := registry.MustGet(entities.Users)
	store := resource.NewMemoryStore(nil)
	store.Seed(users, resource.Record{"id": int64(1), "name": "Padre João", "email": "padre@paroquia.org", "password_hash": "x", "role": "admin", "is_active": true})
	store.Seed(users, resource.Record{"id": int64(2), "name": "Irmã Clara", "email": "clara@paroquia.org", "password_hash": "x", "role": "admin", "is_active": true})
	store.Seed(users, resource.Record{"id": int64(3), "name": "Marcos", "email": "marcos@paroquia.org", "password_hash": "x", "role": "editor", "is_active": true})
	service := NewService(resource.NewEngine(store), users, hasher, rbac.NewService())
	return &usersFixture{store: store, users: users, service: service}
}

func body(t *testing.T, fields map[string]any) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[k] = b
	}
	return out
}

var adminActor = &shared.Principal{ID: 1, Role: shared.RoleAdmin}

// ==== Service ====

func TestCreateHashesPasswordAndNormalizesEmail(t *testing.T) {
	f := newUsersFixture(t, prefixHasher{})
	rec, err := f.service.Create(t.Context(), adminActor, body(t, map[string]any{
		"name": "Ana", "email": "  Ana@Paroquia.ORG ", "password": "segredo123", "role": "common",
	}))
	require.NoError(t, err)
	assert.Equal(t, "ana@paroquia.org", rec["email"])
	assert.NotContains(t, rec, "password_hash")
	assert.NotContains(t, rec, "password")
	assert.Equal(t, true, rec["is_active"])

	stored, err := f.store.Get(t.Context(), f.users, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "hashed:segredo123", stored["password_hash"])
}

func TestCreateRejections(t *testing.T) {
	f := newUsersFixture(t, prefixHasher{})
	cases := []struct {
		name  string
		body  map[string]any
		field string
		err   error
	}{
		{"missing password", map[string]any{"name": "Ana", "email": "ana@paroquia.org", "role": "common"}, "password", shared.ErrValidation},
		{"short password", map[string]any{"name": "Ana", "email": "ana@paroquia.org", "password": "1234567", "role": "common"}, "password", shared.ErrValidation},
		{"long password", map[string]any{"name": "Ana", "email": "ana@paroquia.org", "password": strings.Repeat("a", 73), "role": "common"}, "password", shared.ErrValidation},
		{"invalid role", map[string]any{"name": "Ana", "email": "ana@paroquia.org", "password": "segredo123", "role": "root"}, "role", shared.ErrValidation},
		{"invalid email", map[string]any{"name": "Ana", "email": "ana", "password": "segredo123", "role": "common"}, "email", shared.ErrValidation},
		{"duplicate email", map[string]any{"name": "Ana", "email": "PADRE@paroquia.org", "password": "segredo123", "role": "common"}, "", shared.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Create(t.Context(), adminActor, body(t, tc.body))
			require.ErrorIs(t, err, tc.err)
			var verr *shared.ValidationError
			if tc.field != "" && errors.As(err, &verr) {
				assert.Equal(t, tc.field, verr.Fields[0].Field)
			}
		})
	}
}

func TestCreateRoleRequiresAdmin(t *testing.T) {
	f := newUsersFixture(t, prefixHasher{})
	editor := &shared.Principal{ID: 3, Role: shared.RoleEditor}
	_, err := f.service.Create(t.Context(), editor, body(t, map[string]any{
		"name": "Ana", "email": "ana@paroquia.org", "password": "segredo123", "role": "admin",
	}))
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestHasherFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	f := newUsersFixture(t, prefixHasher{err: boom})
	_, err := f.service.Create(t.Context(), adminActor, body(t, map[string]any{
		"name": "Ana", "email": "ana@paroquia.org", "password": "segredo123", "role": "common",
	}))
	assert.ErrorIs(t, err, boom)
}

func TestUpdateGuardsOtherAdmins(t *testing.T) {
	f := newUsersFixture(t, prefixHasher{})
	ctx := t.Context()

	_, err := f.service.Update(ctx, adminActor, 2, body(t, map[string]any{"role": "editor"}))
	assert.ErrorIs(t, err, shared.ErrForbidden)

	rec, err := f.service.Update(ctx, adminActor, 2, body(t, map[string]any{"name": "Irmã Clara Maria"}))
	require.NoError(t, err)
	assert.Equal(t, "Irmã Clara Maria", rec["name"])

	rec, err = f.service.Update(ctx, adminActor, 3, body(t, map[string]any{"role": "common", "password": "novasenha1"}))
	require.NoError(t, err)
	assert.Equal(t, "common", rec["role"])
	stored, err := f.store.Get(ctx, f.users, 3)
	require.NoError(t, err)
	assert.Equal(t, "hashed:novasenha1", stored["password_hash"])

	rec, err = f.service.Update(ctx, adminActor, 1, body(t, map[string]any{"role": "editor"}))
	require.NoError(t, err)
	assert.Equal(t, "editor", rec["role"])

	_, err = f.service.Update(ctx, adminActor, 99, body(t, map[string]any{"name": "Ghost"}))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateKeepsPasswordWhenAbsent(t *testing.T) {
	f := newUsersFixture(t, prefixHasher{})
	_, err := f.service.Update(t.Context(), adminActor, 3, body(t, map[string]any{"email": "MARCOS@Paroquia.org"}))
	require.NoError(t, err)
	stored, err := f.store.Get(t.Context(), f.users, 3)
	require.NoError(t, err)
	assert.Equal(t, "x", stored["password_hash"])
	assert.Equal(t, "marcos@paroquia.org", stored["email"])
}

func TestDeleteGuardsOtherAdmins(t *testing.T) {
	f := newUsersFixture(t, prefixHasher{})
	ctx := t.Context()

	assert.ErrorIs(t, f.service.Delete(ctx, adminActor, 2), shared.ErrForbidden)
	require.NoError(t, f.service.Delete(ctx, adminActor, 3))
	_, err := f.service.Get(ctx, 3)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	require.NoError(t, f.service.Delete(ctx, adminActor, 1))
}

func TestBootstrapIsIdempotent(t *testing.T) {
	registry, err := entities.NewRegistry()
	require.NoError(t, err)
	users := registry.MustGet(entities.Users)
	store := resource.NewMemoryStore(nil)
	service := NewService(resource.NewEngine(store), users, BcryptHasher{Cost: bcrypt.MinCost}, rbac.NewService())

	require.NoError(t, service.Bootstrap(t.Context(), "Administrador", "admin@paroquia.org", "senha-forte"))
	require.NoError(t, service.Bootstrap(t.Context(), "Outro", "ADMIN@paroquia.org", "outra-senha"))

	page, err := service.List(t.Context(), resource.Filters{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Administrador", page.Items[0]["name"])
	assert.Equal(t, "admin", page.Items[0]["role"])

	stored, err := store.Get(t.Context(), users, page.Items[0].ID())
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored["password_hash"].(string)), []byte("senha-forte")))

	assert.ErrorIs(t, service.Bootstrap(t.Context(), "Curto", "curto@paroquia.org", "123"), shared.ErrValidation)
}

// ==== HTTP ====

func roleFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Test-Role")
		if role == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id, _ := strconv.ParseInt(r.Header.Get("X-Test-ID"), 10, 64)
		p := &shared.Principal{ID: id, Role: shared.Role(role), Active: true}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

func TestHandlerRoutes(t *testing.T) {
	f := newUsersFixture(t, prefixHasher{})
	audit := &recordingAudit{}
	h := NewHandler(nil, f.service, f.users, roleFromHeader, rbac.Middleware{Service: rbac.NewService()}, audit)
	router := chi.NewRouter()
	router.Route("/users", h.MountRoutes)

	do := func(method, path, role, payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(payload))
		if role != "" {
			req.Header.Set("X-Test-Role", role)
			req.Header.Set("X-Test-ID", "1")
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/users/", "editor", "").Code)

	rr := do(http.MethodGet, "/users/?search=clara", "admin", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Data       []map[string]any  `json:"data"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "clara@paroquia.org", list.Data[0]["email"])
	assert.NotContains(t, list.Data[0], "password_hash")

	rr = do(http.MethodPost, "/users/", "admin", `{"name":"Ana","email":"ana@paroquia.org","password":"segredo123","role":"common"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	assert.Equal(t, http.StatusForbidden, do(http.MethodDelete, "/users/2", "admin", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/users/abc", "admin", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/users/99", "admin", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPut, "/users/3", "admin", `{"name":"Marcos Paulo"}`).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodDelete, "/users/3", "admin", "").Code)

	actions := make([]string, 0, len(audit.entries))
	for _, e := range audit.entries {
		actions = append(actions, e.Action+":"+e.EntityID)
		assert.Equal(t, int64(1), e.ActorID)
	}
	assert.Equal(t, []string{"users.create:4", "users.update:3", "users.delete:3"}, actions)
}
