package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/job-dashboard/internal/config"
	"github.com/jonathan/job-dashboard/internal/db"
	"github.com/jonathan/job-dashboard/internal/types"
)

// AccountStore is the subset of the database the user service needs.
type AccountStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (uuid.UUID, error)
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// UserService provides business logic for account operations. Sign-in itself
// lives in the identity session; this service covers registration and
// password management.
type UserService struct {
	accounts  AccountStore
	passwords *config.PasswordConfig
}

// NewUserService creates a new UserService with the given dependencies
func NewUserService(accounts AccountStore, passwords *config.PasswordConfig) *UserService {
	return &UserService{accounts: accounts, passwords: passwords}
}

func accountToUser(account *db.User) *types.User {
	if account == nil {
		return nil
	}
	return &types.User{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		CreatedAt: account.CreatedAt,
	}
}

// Register creates a new user with password authentication
func (s *UserService) Register(ctx context.Context, req *types.CreateUserRequest) (*types.User, error) {
	exists, err := s.accounts.CheckEmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, &ErrEmailAlreadyExists{Email: req.Email}
	}

	passwordHash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.accounts.CreateUser(ctx, req.Name, req.Email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	account, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve created user: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("created user not found: %s", userID)
	}

	return accountToUser(account), nil
}

// GetUser returns the account for the given ID, excluding the password hash.
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	account, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if account == nil {
		return nil, &ErrUserNotFound{UserID: userID}
	}
	return accountToUser(account), nil
}

// UpdatePassword updates a user's password after verifying the current one.
func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if account == nil {
		return &ErrUserNotFound{UserID: userID}
	}

	if !s.passwords.VerifyPassword(currentPassword, account.PasswordHash) {
		return &ErrPasswordMismatch{}
	}

	newHash, err := s.passwords.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}
