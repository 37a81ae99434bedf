package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/job-dashboard/internal/config"
	"github.com/jonathan/job-dashboard/internal/db"
)

// ErrInvalidCredentials indicates the email is unknown or the password wrong.
// The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid email or password")

// CredentialProvider authenticates sign-ins against the user accounts table
// with bcrypt password verification.
type CredentialProvider struct {
	db        *db.DB
	passwords *config.PasswordConfig
}

// Ensure CredentialProvider implements Provider
var _ Provider = (*CredentialProvider)(nil)

// NewCredentialProvider creates a provider backed by the given database and
// password configuration.
func NewCredentialProvider(database *db.DB, passwords *config.PasswordConfig) *CredentialProvider {
	return &CredentialProvider{db: database, passwords: passwords}
}

// SignIn resolves credentials to a user, or ErrInvalidCredentials.
func (p *CredentialProvider) SignIn(ctx context.Context, creds Credentials) (*User, error) {
	account, err := p.db.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if account == nil || !p.passwords.VerifyPassword(creds.Password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return &User{
		ID:    account.ID,
		Name:  account.Name,
		Email: account.Email,
	}, nil
}
