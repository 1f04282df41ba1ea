package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Service answers authorization questions from the static grant table.
type Service struct {
	grants map[shared.Role]map[string]struct{}
}

// NewService constructs a Service with the default grants.
func NewService() *Service {
	return NewServiceWithGrants(defaultGrants)
}

// NewServiceWithGrants constructs a Service from an explicit table.
func NewServiceWithGrants(table map[shared.Role][]string) *Service {
	grants := make(map[shared.Role]map[string]struct{}, len(table))
	for role, perms := range table {
		set := make(map[string]struct{}, len(perms))
		for _, p := range normalizePermissions(perms) {
			set[p] = struct{}{}
		}
		grants[role] = set
	}
	return &Service{grants: grants}
}

// Authorize returns shared.ErrForbidden unless p's role grants permission.
// A nil principal is unauthenticated.
func (s *Service) Authorize(p *shared.Principal, permission string) error {
	if p == nil {
		return shared.ErrUnauthenticated
	}
	set := s.grants[p.Role]
	if _, ok := set[AllPermissions]; ok {
		return nil
	}
	if _, ok := set[strings.ToLower(strings.TrimSpace(permission))]; ok {
		return nil
	}
	return fmt.Errorf("%w: role %s lacks %s", shared.ErrForbidden, p.Role, permission)
}

// RequireRole returns shared.ErrForbidden unless p holds one of allowed.
func (s *Service) RequireRole(p *shared.Principal, allowed ...shared.Role) error {
	if p == nil {
		return shared.ErrUnauthenticated
	}
	for _, role := range allowed {
		if p.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s not allowed", shared.ErrForbidden, p.Role)
}

// EffectivePermissions returns the sorted permission names of role.
func (s *Service) EffectivePermissions(role shared.Role) []string {
	set := s.grants[role]
	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// GuardPrincipalChange enforces the rules of principal management: only
// administrators change roles, and an administrator may not delete or
// demote another administrator. Acting on oneself is allowed.
func (s *Service) GuardPrincipalChange(actor, target *shared.Principal, change PrincipalChange) error {
	if actor == nil {
		return shared.ErrUnauthenticated
	}
	if target == nil {
		return nil
	}
	if change.NewRole != "" && change.NewRole != target.Role && actor.Role != shared.RoleAdmin {
		return fmt.Errorf("%w: only admins change roles", shared.ErrForbidden)
	}
	if target.ID == actor.ID || target.Role != shared.RoleAdmin {
		return nil
	}
	if change.Delete {
		return fmt.Errorf("%w: cannot delete another admin", shared.ErrForbidden)
	}
	if change.NewRole != "" && change.NewRole != shared.RoleAdmin {
		return fmt.Errorf("%w: cannot demote another admin", shared.ErrForbidden)
	}
	return nil
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}
