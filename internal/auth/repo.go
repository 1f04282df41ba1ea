package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
}

// StoreRepository reads accounts through the resource store so it serves
// both the PostgreSQL and the memory driver.
type StoreRepository struct {
	store resource.Store
	users *resource.Descriptor
}

// NewRepository constructs a repository over the users descriptor.
func NewRepository(store resource.Store, users *resource.Descriptor) *StoreRepository {
	return &StoreRepository{store: store, users: users}
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *StoreRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	recs, err := r.store.Find(ctx, r.users, resource.Query{
		Where: resource.Eq{Field: "email", Value: strings.ToLower(strings.TrimSpace(email))},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, shared.ErrNotFound
	}
	return toUser(recs[0]), nil
}

// FindByID fetches a user by id.
func (r *StoreRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	rec, err := r.store.Get(ctx, r.users, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return toUser(rec), nil
}

func toUser(rec resource.Record) *User {
	u := &User{ID: rec.ID()}
	u.Name, _ = rec["name"].(string)
	u.Email, _ = rec["email"].(string)
	u.PasswordHash, _ = rec["password_hash"].(string)
	role, _ := rec["role"].(string)
	u.Role = shared.Role(role)
	u.IsActive, _ = rec["is_active"].(bool)
	return u
}

var _ Repository = (*StoreRepository)(nil)
