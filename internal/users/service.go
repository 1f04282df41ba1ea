package users

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/paroquia-cms/paroquia-cms/internal/rbac"
	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Service handles principal management. Password hashing and email
// normalization happen here, before the generic engine is reached.
type Service struct {
	engine *resource.Engine
	users  *resource.Descriptor
	hasher Hasher
	rbac   *rbac.Service
}

// NewService builds Service instance.
func NewService(engine *resource.Engine, users *resource.Descriptor, hasher Hasher, authz *rbac.Service) *Service {
	return &Service{engine: engine, users: users, hasher: hasher, rbac: authz}
}

// List returns a page of principals.
func (s *Service) List(ctx context.Context, f resource.Filters) (resource.Page, error) {
	return s.engine.List(ctx, s.users, f)
}

// Get returns one principal.
func (s *Service) Get(ctx context.Context, id int64) (resource.Record, error) {
	return s.engine.Get(ctx, s.users, id)
}

// Create registers a principal. A password is required.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, raw map[string]json.RawMessage) (resource.Record, error) {
	in, err := s.prepare(raw, true)
	if err != nil {
		return nil, err
	}
	if role, ok := in.Raw["role"]; ok {
		if err := s.rbac.GuardPrincipalChange(actor, nil, rbac.PrincipalChange{NewRole: decodeRole(role)}); err != nil {
			return nil, err
		}
	}
	return s.engine.Create(ctx, s.users, in, actor)
}

// Update changes a principal. Demoting another admin is forbidden.
func (s *Service) Update(ctx context.Context, actor *shared.Principal, id int64, raw map[string]json.RawMessage) (resource.Record, error) {
	target, err := s.target(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := s.prepare(raw, false)
	if err != nil {
		return nil, err
	}
	change := rbac.PrincipalChange{}
	if role, ok := in.Raw["role"]; ok {
		change.NewRole = decodeRole(role)
	}
	if err := s.rbac.GuardPrincipalChange(actor, target, change); err != nil {
		return nil, err
	}
	return s.engine.Update(ctx, s.users, id, in)
}

// Delete removes a principal. Deleting another admin is forbidden.
func (s *Service) Delete(ctx context.Context, actor *shared.Principal, id int64) error {
	target, err := s.target(ctx, id)
	if err != nil {
		return err
	}
	if err := s.rbac.GuardPrincipalChange(actor, target, rbac.PrincipalChange{Delete: true}); err != nil {
		return err
	}
	return s.engine.Remove(ctx, s.users, id)
}

// Bootstrap creates the first administrator. An existing account with the
// same email is left untouched.
func (s *Service) Bootstrap(ctx context.Context, name, email, password string) error {
	raw := map[string]json.RawMessage{}
	for k, v := range map[string]any{"name": name, "email": email, "password": password, "role": shared.RoleAdmin} {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw[k] = b
	}
	system := &shared.Principal{Role: shared.RoleAdmin}
	_, err := s.Create(ctx, system, raw)
	if errors.Is(err, shared.ErrConflict) {
		return nil
	}
	return err
}

func (s *Service) target(ctx context.Context, id int64) (*shared.Principal, error) {
	rec, err := s.engine.Get(ctx, s.users, id)
	if err != nil {
		return nil, err
	}
	role, _ := rec["role"].(string)
	return &shared.Principal{ID: rec.ID(), Role: shared.Role(role)}, nil
}

// prepare moves password and email out of the client payload into trusted,
// already transformed values.
func (s *Service) prepare(raw map[string]json.RawMessage, requirePassword bool) (resource.Input, error) {
	body := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		body[k] = v
	}
	trusted := resource.Record{}

	if rawEmail, ok := body["email"]; ok {
		var email string
		if err := json.Unmarshal(rawEmail, &email); err != nil {
			return resource.Input{}, shared.FieldInvalid("email", "email must be a string")
		}
		delete(body, "email")
		trusted["email"] = strings.ToLower(strings.TrimSpace(email))
	}

	rawPassword, ok := body["password"]
	delete(body, "password")
	if !ok {
		if requirePassword {
			return resource.Input{}, shared.FieldInvalid("password", "password is required")
		}
		return resource.Input{Raw: body, Trusted: trusted}, nil
	}
	var password string
	if err := json.Unmarshal(rawPassword, &password); err != nil {
		return resource.Input{}, shared.FieldInvalid("password", "password must be a string")
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return resource.Input{}, shared.FieldInvalid("password", "password must be between 8 and 72 characters")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return resource.Input{}, err
	}
	trusted["password_hash"] = hash
	return resource.Input{Raw: body, Trusted: trusted}, nil
}

func decodeRole(raw json.RawMessage) shared.Role {
	var role string
	_ = json.Unmarshal(raw, &role)
	return shared.Role(strings.TrimSpace(role))
}
