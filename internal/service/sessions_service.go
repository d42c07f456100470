package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/config"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/models"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/repository"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
)

// SessionsService is the single source of truth for who is logged in and
// their entitlement state. Every successful mutation is persisted
// immediately; logout removes the persisted snapshot entirely.
type SessionsService interface {
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Signup(ctx context.Context, name, email, password string) (*models.User, string, error)
	ResetPassword(ctx context.Context, email string) error
	Logout(ctx context.Context, userID uuid.UUID) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID uuid.UUID, endDate time.Time) error
	IncrementTransactionCount(ctx context.Context, userID uuid.UUID) error
}

type sessionsService struct {
	usersRepo repository.UsersRepository
	verifier  CredentialVerifier
	tokens    tokenIssuer
}

func NewSessionsService(usersRepo repository.UsersRepository, verifier CredentialVerifier, tokenCfg config.TokenConfig) SessionsService {
	return &sessionsService{
		usersRepo: usersRepo,
		verifier:  verifier,
		tokens:    tokenIssuer{cfg: tokenCfg},
	}
}

// Login verifies the credentials and initializes a fresh user snapshot:
// not subscribed, zero transactions. Any previous snapshot for the email
// is replaced.
func (s *sessionsService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	name, err := s.verifier.Verify(email, password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.startSession(name, email)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.issue(user)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Signup creates a fresh user with the supplied identity. The password is
// accepted but not stored; only the demo account's email is reserved.
func (s *sessionsService) Signup(ctx context.Context, name, email, password string) (*models.User, string, error) {
	if s.verifier.Known(email) {
		return nil, "", errs.ErrEmailInUse
	}

	user, err := s.startSession(name, email)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.issue(user)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// ResetPassword is a confirmation-only stub: it checks the email is known
// and succeeds without issuing a token or mutating anything.
func (s *sessionsService) ResetPassword(ctx context.Context, email string) error {
	if !s.verifier.Known(email) {
		return errs.ErrEmailNotFound
	}
	return nil
}

// Logout removes the persisted snapshot unconditionally; logging out an
// already cleared session is not an error.
func (s *sessionsService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.usersRepo.DeleteUserByID(userID); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return nil
}

func (s *sessionsService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.usersRepo.GetUserByID(userID)
}

// UpdateSubscription marks the user subscribed until endDate. The date is
// taken as-is: no future check and no expiry enforcement afterwards. A
// cleared session is a no-op.
func (s *sessionsService) UpdateSubscription(ctx context.Context, userID uuid.UUID, endDate time.Time) error {
	if err := s.usersRepo.SetSubscription(userID, endDate); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return nil
}

// IncrementTransactionCount adds one buy/sell to the user's running count.
// A cleared session is a no-op.
func (s *sessionsService) IncrementTransactionCount(ctx context.Context, userID uuid.UUID) error {
	if err := s.usersRepo.IncrementTransactionCount(userID); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return nil
}

// startSession replaces any persisted snapshot for the email with a fresh
// one, matching the original flow where every login starts clean.
func (s *sessionsService) startSession(name, email string) (*models.User, error) {
	if err := s.usersRepo.DeleteUserByEmail(email); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	user := &models.User{
		Name:             name,
		Email:            email,
		IsSubscribed:     false,
		TransactionCount: 0,
	}
	if err := s.usersRepo.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}
