package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/config"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
)

type PlanInterval string

const (
	PlanMonthly PlanInterval = "monthly"
	PlanYearly  PlanInterval = "yearly"
)

// PaymentGateway is the black-box payment provider. The service only
// learns whether the charge went through; failure details stay opaque.
type PaymentGateway interface {
	Charge(ctx context.Context, amountCents int64, interval PlanInterval) (confirmationToken string, err error)
}

// SandboxGateway stands in for the real checkout widget: every charge
// succeeds and returns a fresh confirmation token.
type SandboxGateway struct {
	log *slog.Logger
}

func NewSandboxGateway(log *slog.Logger) *SandboxGateway {
	return &SandboxGateway{log: log}
}

func (g *SandboxGateway) Charge(ctx context.Context, amountCents int64, interval PlanInterval) (string, error) {
	token := uuid.NewString()
	g.log.Info("sandbox charge confirmed", "amountCents", amountCents, "interval", interval, "confirmation", token)
	return token, nil
}

// BillingService charges for a plan and extends the subscription: monthly
// buys one month from now, yearly one year. The date arithmetic never
// depends on the gateway in use.
type BillingService interface {
	Subscribe(ctx context.Context, userID uuid.UUID, plan PlanInterval) (*time.Time, error)
}

type billingService struct {
	gateway  PaymentGateway
	sessions SessionsService
	cfg      config.BillingConfig
	now      func() time.Time
}

func NewBillingService(gateway PaymentGateway, sessions SessionsService, cfg config.BillingConfig) BillingService {
	return &billingService{
		gateway:  gateway,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *billingService) Subscribe(ctx context.Context, userID uuid.UUID, plan PlanInterval) (*time.Time, error) {
	var amountCents int64
	var endDate time.Time

	switch plan {
	case PlanMonthly:
		amountCents = s.cfg.MonthlyPriceCents
		endDate = s.now().AddDate(0, 1, 0)
	case PlanYearly:
		amountCents = s.cfg.YearlyPriceCents
		endDate = s.now().AddDate(1, 0, 0)
	default:
		return nil, fmt.Errorf("%w: unknown plan %q", errs.ErrPaymentDeclined, plan)
	}

	if _, err := s.gateway.Charge(ctx, amountCents, plan); err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrPaymentDeclined, err.Error())
	}

	if err := s.sessions.UpdateSubscription(ctx, userID, endDate); err != nil {
		return nil, err
	}

	return &endDate, nil
}
