package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nitin-nirvajna/crypto-mockfolio/internal/config"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/models"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/repository"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/service"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Holding{}, &models.Trade{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func demoConfig() config.DemoConfig {
	return config.DemoConfig{
		Email:    "admin@demo.com",
		Name:     "Admin User",
		Password: "pwd@123",
	}
}

func tokenConfig() config.TokenConfig {
	return config.TokenConfig{
		Secret:      "test-secret",
		AccessToken: time.Hour,
	}
}

func setupSessions(t *testing.T) (service.SessionsService, repository.UsersRepository) {
	testDB := setupTestDB(t)
	usersRepo := repository.NewUsersRepository(testDB)

	verifier, err := service.NewDemoVerifier(demoConfig())
	if err != nil {
		t.Fatalf("failed to build verifier: %v", err)
	}

	return service.NewSessionsService(usersRepo, verifier, tokenConfig()), usersRepo
}

func TestLogin(t *testing.T) {
	sessions, usersRepo := setupSessions(t)
	ctx := context.Background()

	t.Run("success_with_demo_account", func(t *testing.T) {
		user, token, err := sessions.Login(ctx, "admin@demo.com", "pwd@123")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if token == "" {
			t.Error("Expected a non-empty access token")
		}
		if user.TransactionCount != 0 {
			t.Errorf("Expected transaction count 0, got %d", user.TransactionCount)
		}
		if user.IsSubscribed {
			t.Error("Expected a fresh login to not be subscribed")
		}

		persisted, err := usersRepo.GetUserByID(user.ID)
		if err != nil {
			t.Fatalf("Expected the user snapshot to be persisted: %v", err)
		}
		if persisted.Name != "Admin User" {
			t.Errorf("Expected name %q, got %q", "Admin User", persisted.Name)
		}
	})

	t.Run("email_is_case_insensitive", func(t *testing.T) {
		if _, _, err := sessions.Login(ctx, "ADMIN@Demo.Com", "pwd@123"); err != nil {
			t.Errorf("Login with differently cased email failed: %v", err)
		}
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, _, err := sessions.Login(ctx, "admin@demo.com", "wrong")
		if !errors.Is(err, errs.ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown_email", func(t *testing.T) {
		_, _, err := sessions.Login(ctx, "someone@else.com", "pwd@123")
		if !errors.Is(err, errs.ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("relogin_resets_state", func(t *testing.T) {
		user, _, err := sessions.Login(ctx, "admin@demo.com", "pwd@123")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if err := sessions.IncrementTransactionCount(ctx, user.ID); err != nil {
			t.Fatalf("IncrementTransactionCount failed: %v", err)
		}

		fresh, _, err := sessions.Login(ctx, "admin@demo.com", "pwd@123")
		if err != nil {
			t.Fatalf("Second login failed: %v", err)
		}
		if fresh.TransactionCount != 0 {
			t.Errorf("Expected a fresh login to reset transaction count, got %d", fresh.TransactionCount)
		}
	})
}

func TestSignup(t *testing.T) {
	sessions, _ := setupSessions(t)
	ctx := context.Background()

	t.Run("demo_email_is_reserved", func(t *testing.T) {
		_, _, err := sessions.Signup(ctx, "x", "admin@demo.com", "anything")
		if !errors.Is(err, errs.ErrEmailInUse) {
			t.Errorf("Expected ErrEmailInUse, got %v", err)
		}

		_, _, err = sessions.Signup(ctx, "x", "Admin@DEMO.com", "anything")
		if !errors.Is(err, errs.ErrEmailInUse) {
			t.Errorf("Expected ErrEmailInUse for cased demo email, got %v", err)
		}
	})

	t.Run("success_with_other_email", func(t *testing.T) {
		user, token, err := sessions.Signup(ctx, "Jamie", "jamie@example.com", "whatever")
		if err != nil {
			t.Fatalf("Signup failed: %v", err)
		}
		if token == "" {
			t.Error("Expected a non-empty access token")
		}
		if user.Name != "Jamie" || user.Email != "jamie@example.com" {
			t.Errorf("Unexpected identity: %q %q", user.Name, user.Email)
		}
		if user.IsSubscribed || user.TransactionCount != 0 {
			t.Error("Expected a fresh signup state")
		}
	})
}

func TestResetPassword(t *testing.T) {
	sessions, _ := setupSessions(t)
	ctx := context.Background()

	t.Run("known_email", func(t *testing.T) {
		if err := sessions.ResetPassword(ctx, "admin@demo.com"); err != nil {
			t.Errorf("ResetPassword failed for the demo account: %v", err)
		}
	})

	t.Run("unknown_email", func(t *testing.T) {
		err := sessions.ResetPassword(ctx, "nobody@example.com")
		if !errors.Is(err, errs.ErrEmailNotFound) {
			t.Errorf("Expected ErrEmailNotFound, got %v", err)
		}
	})
}

func TestLogout(t *testing.T) {
	sessions, usersRepo := setupSessions(t)
	ctx := context.Background()

	user, _, err := sessions.Login(ctx, "admin@demo.com", "pwd@123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := sessions.Logout(ctx, user.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := usersRepo.GetUserByID(user.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected the persisted snapshot to be removed, got %v", err)
	}

	// Logging out again is not an error.
	if err := sessions.Logout(ctx, user.ID); err != nil {
		t.Errorf("Second logout failed: %v", err)
	}
}

func TestUpdateSubscription(t *testing.T) {
	sessions, usersRepo := setupSessions(t)
	ctx := context.Background()

	user, _, err := sessions.Login(ctx, "admin@demo.com", "pwd@123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	endDate := time.Now().AddDate(0, 1, 0).Truncate(time.Second)
	if err := sessions.UpdateSubscription(ctx, user.ID, endDate); err != nil {
		t.Fatalf("UpdateSubscription failed: %v", err)
	}

	updated, err := usersRepo.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if !updated.IsSubscribed {
		t.Error("Expected the user to be subscribed")
	}
	if updated.SubscriptionEndDate == nil || !updated.SubscriptionEndDate.Equal(endDate) {
		t.Errorf("Expected end date %v, got %v", endDate, updated.SubscriptionEndDate)
	}

	// No logged-in user: the call is a no-op, not an error.
	if err := sessions.Logout(ctx, user.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := sessions.UpdateSubscription(ctx, user.ID, endDate); err != nil {
		t.Errorf("Expected a no-op after logout, got %v", err)
	}
}
