package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/restaurant-system/internal/ledger"
	"github.com/mmeshcher/restaurant-system/internal/model"
	"github.com/mmeshcher/restaurant-system/internal/payment"
	"github.com/mmeshcher/restaurant-system/internal/validation"
)

const reconcileBatchSize = 100

// DepositRequest описывает запрос на пополнение баланса с карты.
type DepositRequest struct {
	Amount         decimal.Decimal
	CardNumber     string
	IdempotencyKey string
}

// Deposit пополняет баланс клиента через платёжную систему. Повтор запроса с тем же ключом
// возвращает уже созданное пополнение и не списывает деньги повторно.
// Ответ платёжной системы PENDING оставляет пополнение ожидающим, его завершит фоновая сверка.
func (s *Service) Deposit(ctx context.Context, sess model.Session, req DepositRequest) (*model.Deposit, error) {
	if err := ledger.ValidateDeposit(req.Amount); err != nil {
		return nil, err
	}
	if !validation.IsValidCardNumber(req.CardNumber) {
		return nil, ErrInvalidCard
	}

	key := req.IdempotencyKey
	if key == "" {
		key = s.newID()
	} else if _, err := uuid.Parse(key); err != nil {
		return nil, fmt.Errorf("%w: idempotency key must be a uuid", ErrInvalidInput)
	}

	acc, err := s.repo.GetAccount(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	if acc.IsBlacklisted {
		return nil, ledger.ErrAccountBlacklisted
	}

	dep, existed, err := s.repo.CreateDeposit(ctx, &model.Deposit{
		ID:         key,
		CustomerID: acc.ID,
		Amount:     req.Amount,
		CardLast4:  validation.CardLast4(req.CardNumber),
		Status:     model.DepositStatusPending,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if existed {
		if !dep.Amount.Equal(req.Amount) {
			return nil, ErrDepositConflict
		}
		return dep, nil
	}

	if s.payments == nil {
		return s.settleDeposit(ctx, dep, model.DepositStatusCredited)
	}

	resp, statusCode, _, err := s.payments.Charge(ctx, payment.ChargeRequest{
		ID:         dep.ID,
		Amount:     dep.Amount,
		CardNumber: validation.NormalizeCardNumber(req.CardNumber),
	})
	if err != nil {
		// Исход списания неизвестен: пополнение остаётся ожидающим до сверки.
		s.logger.Warn("charge failed", zap.String("depositID", dep.ID), zap.Error(err))
		return dep, nil
	}

	if statusCode == http.StatusTooManyRequests || resp == nil {
		if _, err := s.settleDeposit(ctx, dep, model.DepositStatusDeclined); err != nil {
			return nil, err
		}
		return nil, ErrPaymentUnavailable
	}

	switch resp.Status {
	case payment.StatusSucceeded:
		return s.settleDeposit(ctx, dep, model.DepositStatusCredited)
	case payment.StatusDeclined:
		declined, err := s.settleDeposit(ctx, dep, model.DepositStatusDeclined)
		if err != nil {
			return nil, err
		}
		return declined, ErrPaymentDeclined
	default:
		return dep, nil
	}
}

// settleDeposit завершает пополнение. Заблокированный или закрытый к моменту зачисления
// счёт не пополняется: пополнение отклоняется в той же транзакции.
func (s *Service) settleDeposit(ctx context.Context, dep *model.Deposit, status model.DepositStatus) (*model.Deposit, error) {
	settled, err := s.repo.SettleDeposit(ctx, dep.ID, status, func(acc *model.Account) (model.DepositStatus, error) {
		if acc.IsBlacklisted {
			return model.DepositStatusDeclined, nil
		}
		if err := ledger.DepositFunds(acc, dep.Amount); err != nil {
			return "", err
		}
		return model.DepositStatusCredited, nil
	})
	if err != nil {
		return nil, err
	}
	if status == model.DepositStatusCredited && settled.Status == model.DepositStatusDeclined {
		s.logger.Warn("deposit declined for blacklisted account",
			zap.String("depositID", settled.ID),
			zap.String("accountID", settled.CustomerID),
			zap.String("amount", settled.Amount.String()))
		return settled, ledger.ErrAccountBlacklisted
	}
	if settled.Status == model.DepositStatusCredited {
		s.logger.Info("deposit credited",
			zap.String("depositID", settled.ID),
			zap.String("accountID", settled.CustomerID),
			zap.String("amount", settled.Amount.String()))
	}
	return settled, nil
}

// Balance возвращает состояние лицевого счёта клиента.
func (s *Service) Balance(ctx context.Context, sess model.Session) (*model.Account, error) {
	return s.repo.GetAccount(ctx, sess.AccountID)
}

// Deposits возвращает историю пополнений клиента.
func (s *Service) Deposits(ctx context.Context, sess model.Session) ([]model.Deposit, error) {
	return s.repo.GetDepositsByCustomer(ctx, sess.AccountID)
}

// RunDepositReconciler сверяет ожидающие пополнения с платёжной системой раз в секунду
// и возвращает управление после отмены ctx. Без платёжной системы сразу возвращается.
func (s *Service) RunDepositReconciler(ctx context.Context) {
	if s.payments == nil {
		return
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcilePendingDeposits(ctx)
		}
	}
}

func (s *Service) reconcilePendingDeposits(ctx context.Context) {
	deposits, err := s.repo.GetPendingDeposits(ctx, reconcileBatchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("load pending deposits", zap.Error(err))
		}
		return
	}

	for i := range deposits {
		dep := &deposits[i]

		resp, statusCode, retryAfter, err := s.payments.GetPayment(ctx, dep.ID)
		if err != nil {
			s.logger.Warn("get payment", zap.String("depositID", dep.ID), zap.Error(err))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		var status model.DepositStatus
		switch {
		case statusCode == http.StatusNotFound:
			// Платёжная система не получила списание.
			status = model.DepositStatusDeclined
		case resp == nil:
			continue
		case resp.Status == payment.StatusSucceeded:
			status = model.DepositStatusCredited
		case resp.Status == payment.StatusDeclined:
			status = model.DepositStatusDeclined
		default:
			continue
		}

		if _, err := s.settleDeposit(ctx, dep, status); err != nil && !errors.Is(err, ledger.ErrAccountBlacklisted) {
			s.logger.Error("settle deposit", zap.String("depositID", dep.ID), zap.Error(err))
		}
	}
}
