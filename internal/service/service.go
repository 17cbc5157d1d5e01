// Package service реализует бизнес-логику сервиса ресторана поверх правил лицевого счёта.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/restaurant-system/internal/ledger"
	"github.com/mmeshcher/restaurant-system/internal/model"
	"github.com/mmeshcher/restaurant-system/internal/payment"
	"github.com/mmeshcher/restaurant-system/internal/repository"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре email и пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotApproved возвращается при входе в учётную запись, ещё не одобренную менеджером.
	ErrNotApproved = errors.New("account is not approved")
	// ErrInvalidInput возвращается при некорректных входных данных запроса.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidTransition возвращается при недопустимой смене статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrDishUnavailable возвращается, если блюда нет в меню или оно снято с продажи.
	ErrDishUnavailable = errors.New("dish is unavailable")
	// ErrInvalidCard возвращается при некорректном номере карты.
	ErrInvalidCard = errors.New("invalid card number")
	// ErrPaymentDeclined возвращается, если платёжная система отклонила списание.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentUnavailable возвращается, если платёжная система не приняла запрос.
	ErrPaymentUnavailable = errors.New("payment system unavailable")
	// ErrDepositConflict возвращается при повторе ключа идемпотентности с другой суммой.
	ErrDepositConflict = errors.New("idempotency key reused with different request")
	// ErrInvalidRating возвращается при оценке вне диапазона 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrOrderNotRateable возвращается при оценке недоставленного или уже оценённого заказа.
	ErrOrderNotRateable = errors.New("order cannot be rated")
	// ErrNotEmployee возвращается при запросе показателей учётной записи, не относящейся к персоналу.
	ErrNotEmployee = errors.New("account is not an employee")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateAccount(ctx context.Context, acc *model.Account, passwordHash string) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetCredentials(ctx context.Context, email string) (*model.Account, string, error)
	UpdateAccount(ctx context.Context, id string, fn func(acc *model.Account) error) (*model.Account, error)
	QueryAccountsByField(ctx context.Context, field model.AccountField, value string) ([]model.Account, error)
	CountAccountsByField(ctx context.Context, field model.AccountField, value string) (int, error)

	ListDishes(ctx context.Context, onlyAvailable bool) ([]model.Dish, error)
	GetDishes(ctx context.Context, ids []string) (map[string]model.Dish, error)
	UpsertDish(ctx context.Context, d model.Dish) error

	PlaceOrder(ctx context.Context, customerID string, fn func(acc *model.Account) (*model.Order, error)) (*model.Order, *model.Account, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error)
	GetOrdersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
	CountOrdersByStatus(ctx context.Context, statuses ...model.OrderStatus) (int, error)
	UpdateOrder(ctx context.Context, id string, fn func(o *model.Order) error) (*model.Order, error)
	RateOrder(ctx context.Context, id string, fn func(o *model.Order) error) (*model.Order, error)

	CreateDeposit(ctx context.Context, d *model.Deposit) (*model.Deposit, bool, error)
	SettleDeposit(ctx context.Context, id string, status model.DepositStatus, fn func(acc *model.Account) (model.DepositStatus, error)) (*model.Deposit, error)
	GetPendingDeposits(ctx context.Context, limit int) ([]model.Deposit, error)
	GetDepositsByCustomer(ctx context.Context, customerID string) ([]model.Deposit, error)

	CreateComplaint(ctx context.Context, c *model.Complaint) error
	GetComplaintsByStatus(ctx context.Context, status model.ComplaintStatus) ([]model.Complaint, error)
	CountComplaintsByStatus(ctx context.Context, status model.ComplaintStatus) (int, error)
	ResolveComplaint(ctx context.Context, id string, fn func(c *model.Complaint, target *model.Account) error) (*model.Complaint, *model.Account, error)
}

// PaymentGateway описывает обращения к внешней платёжной системе.
type PaymentGateway interface {
	Charge(ctx context.Context, charge payment.ChargeRequest) (*payment.Payment, int, time.Duration, error)
	GetPayment(ctx context.Context, id string) (*payment.Payment, int, time.Duration, error)
}

// Service содержит бизнес-логику сервиса ресторана.
type Service struct {
	repo        Repository
	payments    PaymentGateway
	logger      *zap.Logger
	deliveryFee decimal.Decimal

	now   func() time.Time
	newID func() string
}

// NewService создаёт сервис. payments может быть nil: тогда пополнения зачисляются без платёжной системы.
func NewService(repo Repository, payments PaymentGateway, logger *zap.Logger, deliveryFee decimal.Decimal) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		payments:    payments,
		logger:      logger,
		deliveryFee: deliveryFee,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// DeliveryFee возвращает стоимость доставки одного заказа.
func (s *Service) DeliveryFee() decimal.Decimal {
	return s.deliveryFee
}

// Register создаёт учётную запись клиента, ожидающую одобрения менеджером.
func (s *Service) Register(ctx context.Context, email, name, password string) (*model.Account, error) {
	return s.createAccount(ctx, email, name, password, model.RoleCustomer, false)
}

// HireEmployee создаёт одобренную учётную запись сотрудника. Доступно только менеджеру.
func (s *Service) HireEmployee(ctx context.Context, actor model.Session, email, name, password string, role model.Role) (*model.Account, error) {
	if !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}
	if !role.IsEmployee() {
		return nil, fmt.Errorf("%w: role %s is not an employee role", ErrInvalidInput, role)
	}
	return s.createAccount(ctx, email, name, password, role, true)
}

// EnsureManager создаёт учётную запись менеджера с указанными данными, если такого email ещё нет.
func (s *Service) EnsureManager(ctx context.Context, email, password string) error {
	acc, _, err := s.repo.GetCredentials(ctx, normalizeEmail(email))
	switch {
	case err == nil:
		if acc.Role != model.RoleManager {
			return fmt.Errorf("account %s exists with role %s", acc.Email, acc.Role)
		}
		return nil
	case !errors.Is(err, repository.ErrAccountNotFound):
		return err
	}

	_, err = s.createAccount(ctx, email, "Manager", password, model.RoleManager, true)
	if errors.Is(err, repository.ErrUserExists) {
		return nil
	}
	return err
}

func (s *Service) createAccount(ctx context.Context, email, name, password string, role model.Role, approved bool) (*model.Account, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if name == "" {
		name = email
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := &model.Account{
		ID:         s.newID(),
		Email:      email,
		Name:       name,
		Role:       role,
		Approved:   approved,
		Balance:    decimal.Zero,
		TotalSpent: decimal.Zero,
		Warnings:   []model.Warning{},
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.CreateAccount(ctx, acc, string(hash)); err != nil {
		return nil, err
	}
	return acc, nil
}

// Authenticate проверяет email и пароль и возвращает сессию пользователя.
func (s *Service) Authenticate(ctx context.Context, email, password string) (model.Session, error) {
	acc, hash, err := s.repo.GetCredentials(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return model.Session{}, ErrInvalidCredentials
		}
		return model.Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return model.Session{}, ErrInvalidCredentials
	}
	if !acc.Approved {
		return model.Session{}, ErrNotApproved
	}

	return model.Session{AccountID: acc.ID, Role: acc.Role}, nil
}

// Account возвращает учётную запись. Чужую учётную запись может получить только менеджер.
func (s *Service) Account(ctx context.Context, actor model.Session, id string) (*model.Account, error) {
	if actor.AccountID != id && !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}
	return s.repo.GetAccount(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
