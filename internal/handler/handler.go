// Package handler содержит HTTP-обработчики API сервиса ресторана.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/restaurant-system/internal/ledger"
	"github.com/mmeshcher/restaurant-system/internal/middleware"
	"github.com/mmeshcher/restaurant-system/internal/model"
	"github.com/mmeshcher/restaurant-system/internal/repository"
	"github.com/mmeshcher/restaurant-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, email, name, password string) (*model.Account, error)
	Authenticate(ctx context.Context, email, password string) (model.Session, error)
	HireEmployee(ctx context.Context, actor model.Session, email, name, password string, role model.Role) (*model.Account, error)
	Account(ctx context.Context, actor model.Session, id string) (*model.Account, error)

	Menu(ctx context.Context) ([]model.Dish, error)
	UpsertDish(ctx context.Context, actor model.Session, d model.Dish) error
	Quote(ctx context.Context, sess model.Session, lines []service.CartLine, useFreeDelivery bool) (model.Quote, error)
	PlaceOrder(ctx context.Context, sess model.Session, req service.OrderRequest) (*model.Order, error)
	CustomerOrders(ctx context.Context, sess model.Session) ([]model.Order, error)
	StaffQueue(ctx context.Context, actor model.Session, status model.OrderStatus) ([]model.Order, error)
	AdvanceOrder(ctx context.Context, actor model.Session, orderID string, next model.OrderStatus) (*model.Order, error)
	RateOrder(ctx context.Context, sess model.Session, orderID string, chefRating, deliveryRating int) (*model.Order, error)

	Deposit(ctx context.Context, sess model.Session, req service.DepositRequest) (*model.Deposit, error)
	Balance(ctx context.Context, sess model.Session) (*model.Account, error)
	Deposits(ctx context.Context, sess model.Session) ([]model.Deposit, error)

	FileComplaint(ctx context.Context, sess model.Session, req service.ComplaintRequest) (*model.Complaint, error)
	Complaints(ctx context.Context, actor model.Session, status model.ComplaintStatus) ([]model.Complaint, error)
	ResolveComplaint(ctx context.Context, actor model.Session, id string, upheld bool) (*model.Complaint, error)

	PendingRegistrations(ctx context.Context, actor model.Session) ([]model.Account, error)
	ApproveRegistration(ctx context.Context, actor model.Session, id string) (*model.Account, error)
	QueryAccounts(ctx context.Context, actor model.Session, field model.AccountField, value string) ([]model.Account, error)
	IssueWarning(ctx context.Context, actor model.Session, id, reason string) (*model.Account, ledger.Transition, error)
	AdjustBalance(ctx context.Context, actor model.Session, id string, delta decimal.Decimal) (*model.Account, error)
	PromoteToVIP(ctx context.Context, actor model.Session, id string) (*model.Account, error)
	Blacklist(ctx context.Context, actor model.Session, id string) (*model.Account, error)
	RemoveFromBlacklist(ctx context.Context, actor model.Session, id string) (*model.Account, error)
	CloseAccount(ctx context.Context, actor model.Session, id string) (*model.Account, error)
	EmployeePerformance(ctx context.Context, actor model.Session, id string) (*service.Performance, error)
	Dashboard(ctx context.Context, actor model.Session) (*model.DashboardStats, error)
}

// Handler реализует HTTP-обработчики API сервиса ресторана.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// errorStatuses сопоставляет доменные ошибки кодам ответа. Порядок важен только для
// ошибок, оборачивающих друг друга.
var errorStatuses = []struct {
	err  error
	code int
}{
	{ledger.ErrInsufficientBalance, http.StatusPaymentRequired},
	{service.ErrPaymentDeclined, http.StatusPaymentRequired},
	{ledger.ErrInvalidAmount, http.StatusUnprocessableEntity},
	{service.ErrInvalidCard, http.StatusUnprocessableEntity},
	{service.ErrDishUnavailable, http.StatusUnprocessableEntity},
	{ledger.ErrInvalidCart, http.StatusBadRequest},
	{ledger.ErrEmptyReason, http.StatusBadRequest},
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrInvalidRating, http.StatusBadRequest},
	{service.ErrNotEmployee, http.StatusBadRequest},
	{repository.ErrInvalidFieldValue, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{ledger.ErrPermissionDenied, http.StatusForbidden},
	{ledger.ErrAccountBlacklisted, http.StatusForbidden},
	{service.ErrNotApproved, http.StatusForbidden},
	{repository.ErrAccountNotFound, http.StatusNotFound},
	{repository.ErrOrderNotFound, http.StatusNotFound},
	{repository.ErrDepositNotFound, http.StatusNotFound},
	{repository.ErrComplaintNotFound, http.StatusNotFound},
	{ledger.ErrNegativeResultingBalance, http.StatusConflict},
	{ledger.ErrNoFreeDelivery, http.StatusConflict},
	{ledger.ErrNotEligible, http.StatusConflict},
	{ledger.ErrNotBlacklisted, http.StatusConflict},
	{ledger.ErrNotCustomer, http.StatusConflict},
	{repository.ErrUserExists, http.StatusConflict},
	{repository.ErrDepositOwnedByAnother, http.StatusConflict},
	{repository.ErrComplaintResolved, http.StatusConflict},
	{repository.ErrVersionConflict, http.StatusConflict},
	{service.ErrDepositConflict, http.StatusConflict},
	{service.ErrInvalidTransition, http.StatusConflict},
	{service.ErrOrderNotRateable, http.StatusConflict},
	{service.ErrPaymentUnavailable, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return http.StatusInternalServerError
}

// writeError отвечает кодом, соответствующим ошибке. Неизвестные ошибки журналируются.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		fields := []zap.Field{zap.Error(err), zap.String("path", r.URL.Path)}
		if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
			fields = append(fields, zap.String("accountID", sess.AccountID))
		}
		h.logger.Error(op+" error", fields...)
	}
	http.Error(w, http.StatusText(code), code)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func badRequest(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}

// session возвращает сессию из контекста или отвечает 401.
func session(w http.ResponseWriter, r *http.Request) (model.Session, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return sess, ok
}
