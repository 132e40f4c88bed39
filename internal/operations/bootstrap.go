package operations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"schoolhub/internal/crypto"
	"schoolhub/internal/model"
)

type SuperAdminStore interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	CreateUser(ctx context.Context, u model.User) error
}

// EnsureSuperAdmin creates the platform account for email unless a user with
// that email already exists. It reports whether an account was created and
// never touches an existing password.
func EnsureSuperAdmin(ctx context.Context, store SuperAdminStore, email, password string, now time.Time) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}
	_, err := store.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return false, err
	}
	err = store.CreateUser(ctx, model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Platform",
		LastName:     "Admin",
		Role:         "super_admin",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return err == nil, err
}
