package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/restaurant-system/internal/ledger"
	"github.com/mmeshcher/restaurant-system/internal/model"
)

// Performance содержит показатели работы сотрудника.
type Performance struct {
	AccountID     string                   `json:"accountId"`
	Name          string                   `json:"name"`
	Role          string                   `json:"role"`
	AverageRating float64                  `json:"averageRating"`
	RatingCount   int                      `json:"ratingCount"`
	Compliments   int                      `json:"compliments"`
	Complaints    int                      `json:"complaints"`
	Score         float64                  `json:"score"`
	Status        ledger.PerformanceStatus `json:"status"`
}

// PendingRegistrations возвращает учётные записи, ожидающие одобрения.
func (s *Service) PendingRegistrations(ctx context.Context, actor model.Session) ([]model.Account, error) {
	return s.QueryAccounts(ctx, actor, model.AccountFieldApproved, "false")
}

// ApproveRegistration одобряет учётную запись.
func (s *Service) ApproveRegistration(ctx context.Context, actor model.Session, id string) (*model.Account, error) {
	if !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}
	return s.repo.UpdateAccount(ctx, id, func(acc *model.Account) error {
		acc.Approved = true
		return nil
	})
}

// QueryAccounts возвращает учётные записи, у которых поле равно значению.
func (s *Service) QueryAccounts(ctx context.Context, actor model.Session, field model.AccountField, value string) ([]model.Account, error) {
	if !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}
	return s.repo.QueryAccountsByField(ctx, field, value)
}

// IssueWarning выдаёт клиенту предупреждение и возвращает вызванную им смену статуса.
func (s *Service) IssueWarning(ctx context.Context, actor model.Session, id, reason string) (*model.Account, ledger.Transition, error) {
	if !actor.IsManager() {
		return nil, ledger.TransitionNone, ledger.ErrPermissionDenied
	}

	var transition ledger.Transition
	acc, err := s.repo.UpdateAccount(ctx, id, func(acc *model.Account) error {
		var err error
		transition, err = ledger.IssueWarning(actor, acc, reason, s.now())
		return err
	})
	if err != nil {
		return nil, ledger.TransitionNone, err
	}

	s.logTransition(acc.ID, transition)
	return acc, transition, nil
}

func (s *Service) logTransition(accountID string, t ledger.Transition) {
	if t == ledger.TransitionNone {
		return
	}
	s.logger.Info("account status changed by warning",
		zap.String("accountID", accountID),
		zap.String("transition", string(t)))
}

// AdjustBalance изменяет баланс учётной записи на delta по решению менеджера.
func (s *Service) AdjustBalance(ctx context.Context, actor model.Session, id string, delta decimal.Decimal) (*model.Account, error) {
	return s.mutate(ctx, actor, id, func(acc *model.Account) error {
		return ledger.AdjustBalanceByManager(actor, acc, delta)
	})
}

// PromoteToVIP повышает клиента до VIP, если он удовлетворяет условиям.
func (s *Service) PromoteToVIP(ctx context.Context, actor model.Session, id string) (*model.Account, error) {
	return s.mutate(ctx, actor, id, func(acc *model.Account) error {
		return ledger.PromoteToVIP(actor, acc)
	})
}

// Blacklist блокирует учётную запись.
func (s *Service) Blacklist(ctx context.Context, actor model.Session, id string) (*model.Account, error) {
	return s.mutate(ctx, actor, id, func(acc *model.Account) error {
		return ledger.Blacklist(actor, acc)
	})
}

// RemoveFromBlacklist снимает блокировку с учётной записи.
func (s *Service) RemoveFromBlacklist(ctx context.Context, actor model.Session, id string) (*model.Account, error) {
	return s.mutate(ctx, actor, id, func(acc *model.Account) error {
		return ledger.RemoveFromBlacklist(actor, acc)
	})
}

// CloseAccount закрывает учётную запись. Клиент может закрыть только свою.
func (s *Service) CloseAccount(ctx context.Context, actor model.Session, id string) (*model.Account, error) {
	if !actor.IsManager() && actor.AccountID != id {
		return nil, ledger.ErrPermissionDenied
	}
	return s.repo.UpdateAccount(ctx, id, func(acc *model.Account) error {
		return ledger.CloseAccount(actor, acc)
	})
}

func (s *Service) mutate(ctx context.Context, actor model.Session, id string, fn func(acc *model.Account) error) (*model.Account, error) {
	if !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}
	return s.repo.UpdateAccount(ctx, id, fn)
}

// EmployeePerformance возвращает показатели работы сотрудника.
func (s *Service) EmployeePerformance(ctx context.Context, actor model.Session, id string) (*Performance, error) {
	if !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}

	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !acc.Role.IsEmployee() {
		return nil, ErrNotEmployee
	}

	score, status := ledger.EmployeePerformance(acc)
	return &Performance{
		AccountID:     acc.ID,
		Name:          acc.Name,
		Role:          acc.Role.String(),
		AverageRating: acc.AverageRating(),
		RatingCount:   acc.RatingCount,
		Compliments:   acc.ComplimentCount,
		Complaints:    acc.ComplaintCount,
		Score:         score,
		Status:        status,
	}, nil
}

// Dashboard собирает сводные показатели для менеджера запросами к хранилищу.
func (s *Service) Dashboard(ctx context.Context, actor model.Session) (*model.DashboardStats, error) {
	if !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}

	var stats model.DashboardStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.PendingRegistrations, err = s.repo.CountAccountsByField(gctx, model.AccountFieldApproved, "false")
		return err
	})
	g.Go(func() (err error) {
		stats.OpenComplaints, err = s.repo.CountComplaintsByStatus(gctx, model.ComplaintStatusOpen)
		return err
	})
	g.Go(func() (err error) {
		stats.VIPCustomers, err = s.repo.CountAccountsByField(gctx, model.AccountFieldVIP, "true")
		return err
	})
	g.Go(func() (err error) {
		stats.BlacklistedAccounts, err = s.repo.CountAccountsByField(gctx, model.AccountFieldBlacklisted, "true")
		return err
	})
	g.Go(func() (err error) {
		stats.OrdersInProgress, err = s.repo.CountOrdersByStatus(gctx,
			model.OrderStatusPlaced, model.OrderStatusPreparing, model.OrderStatusReady, model.OrderStatusDelivering)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return &stats, nil
}

// ParseAccountQuery проверяет параметры выборки учётных записей.
func ParseAccountQuery(field, value string) (model.AccountField, string, error) {
	f, err := model.ParseAccountField(field)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	value = strings.TrimSpace(value)
	switch f {
	case model.AccountFieldRole:
		if _, err := model.ParseRole(value); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	default:
		if _, err := strconv.ParseBool(value); err != nil {
			return "", "", fmt.Errorf("%w: %q is not a boolean", ErrInvalidInput, value)
		}
	}
	return f, value, nil
}
