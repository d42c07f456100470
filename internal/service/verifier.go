package service

import (
	"fmt"
	"strings"

	"github.com/nitin-nirvajna/crypto-mockfolio/internal/config"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier abstracts the credential backend so the session
// service's mutation logic never touches passwords directly. The demo
// deployment uses a single configured account; a real backend can be
// substituted without changing the session service.
type CredentialVerifier interface {
	// Verify checks the credentials and returns the account display name.
	Verify(email, password string) (string, error)
	// Known reports whether an account exists for the email.
	Known(email string) bool
}

type demoVerifier struct {
	email        string
	name         string
	passwordHash []byte
}

// NewDemoVerifier builds a verifier for the one configured demo account.
// The plaintext demo password is hashed once up front so Verify only ever
// compares bcrypt hashes.
func NewDemoVerifier(cfg config.DemoConfig) (CredentialVerifier, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}

	return &demoVerifier{
		email:        strings.ToLower(cfg.Email),
		name:         cfg.Name,
		passwordHash: hash,
	}, nil
}

func (v *demoVerifier) Verify(email, password string) (string, error) {
	if !v.Known(email) {
		return "", errs.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)); err != nil {
		return "", errs.ErrInvalidCredentials
	}
	return v.name, nil
}

func (v *demoVerifier) Known(email string) bool {
	return strings.ToLower(email) == v.email
}
