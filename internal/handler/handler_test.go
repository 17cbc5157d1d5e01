package handler

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/restaurant-system/internal/ledger"
	"github.com/mmeshcher/restaurant-system/internal/middleware"
	"github.com/mmeshcher/restaurant-system/internal/model"
	"github.com/mmeshcher/restaurant-system/internal/repository"
	"github.com/mmeshcher/restaurant-system/internal/service"
)

// stubService реализует только методы, нужные тестам; вызов остальных паникует.
type stubService struct {
	Service

	account    *model.Account
	accounts   []model.Account
	session    model.Session
	dishes     []model.Dish
	order      *model.Order
	orders     []model.Order
	deposit    *model.Deposit
	quote      model.Quote
	transition ledger.Transition
	stats      *model.DashboardStats
	err        error

	lastID      string
	lastDish    model.Dish
	lastLines   []service.CartLine
	lastFree    bool
	lastOrder   service.OrderRequest
	lastDeposit service.DepositRequest
	lastStatus  model.OrderStatus
}

func (s *stubService) Register(ctx context.Context, email, name, password string) (*model.Account, error) {
	return s.account, s.err
}

func (s *stubService) Authenticate(ctx context.Context, email, password string) (model.Session, error) {
	return s.session, s.err
}

func (s *stubService) Menu(ctx context.Context) ([]model.Dish, error) {
	return s.dishes, s.err
}

func (s *stubService) UpsertDish(ctx context.Context, actor model.Session, d model.Dish) error {
	s.lastDish = d
	return s.err
}

func (s *stubService) Quote(ctx context.Context, sess model.Session, lines []service.CartLine, useFreeDelivery bool) (model.Quote, error) {
	s.lastLines = lines
	s.lastFree = useFreeDelivery
	return s.quote, s.err
}

func (s *stubService) PlaceOrder(ctx context.Context, sess model.Session, req service.OrderRequest) (*model.Order, error) {
	s.lastOrder = req
	return s.order, s.err
}

func (s *stubService) CustomerOrders(ctx context.Context, sess model.Session) ([]model.Order, error) {
	return s.orders, s.err
}

func (s *stubService) AdvanceOrder(ctx context.Context, actor model.Session, orderID string, next model.OrderStatus) (*model.Order, error) {
	s.lastID = orderID
	s.lastStatus = next
	return s.order, s.err
}

func (s *stubService) Deposit(ctx context.Context, sess model.Session, req service.DepositRequest) (*model.Deposit, error) {
	s.lastDeposit = req
	return s.deposit, s.err
}

func (s *stubService) IssueWarning(ctx context.Context, actor model.Session, id, reason string) (*model.Account, ledger.Transition, error) {
	s.lastID = id
	return s.account, s.transition, s.err
}

func (s *stubService) PromoteToVIP(ctx context.Context, actor model.Session, id string) (*model.Account, error) {
	s.lastID = id
	return s.account, s.err
}

func (s *stubService) QueryAccounts(ctx context.Context, actor model.Session, field model.AccountField, value string) ([]model.Account, error) {
	return s.accounts, s.err
}

func (s *stubService) Dashboard(ctx context.Context, actor model.Session) (*model.DashboardStats, error) {
	return s.stats, s.err
}

var (
	customer = model.Session{AccountID: "cust-1", Role: model.RoleCustomer}
	chef     = model.Session{AccountID: "chef-1", Role: model.RoleChef}
	manager  = model.Session{AccountID: "mgr-1", Role: model.RoleManager}
)

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

// serve проводит запрос через полный маршрутизатор, при необходимости от имени sess.
func serve(t *testing.T, h *Handler, method, path string, body any, sess *model.Session) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)

	if sess != nil {
		cookieRec := httptest.NewRecorder()
		require.NoError(t, h.authMiddleware.SetAuthCookie(cookieRec, *sess))
		for _, c := range cookieRec.Result().Cookies() {
			req.AddCookie(c)
		}
	}

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

func testAccount() *model.Account {
	return &model.Account{
		ID:        "cust-1",
		Email:     "ann@example.com",
		Name:      "Ann",
		Role:      model.RoleCustomer,
		Balance:   decimal.RequireFromString("20"),
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRegister_Accepted(t *testing.T) {
	h := newTestHandler(t, &stubService{account: testAccount()})

	rec := serve(t, h, http.MethodPost, "/api/user/register",
		credentialsRequest{Email: "ann@example.com", Name: "Ann", Password: "secret"}, nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp accountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "cust-1", resp.ID)
	assert.False(t, resp.Approved)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name string
		body any
		err  error
		want int
	}{
		{name: "duplicate email", body: credentialsRequest{Email: "a@b.c", Password: "p"}, err: repository.ErrUserExists, want: http.StatusConflict},
		{name: "missing password", body: credentialsRequest{Email: "a@b.c"}, want: http.StatusBadRequest},
		{name: "malformed body", body: "not an object", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{account: testAccount(), err: tt.err})
			rec := serve(t, h, http.MethodPost, "/api/user/register", tt.body, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLogin_SetsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{session: customer})

	rec := serve(t, h, http.MethodPost, "/api/user/login",
		credentialsRequest{Email: "ann@example.com", Password: "secret"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEmpty(t, cookies[0].Value)

	var resp loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "customer", resp.Role)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: service.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{err: service.ErrNotApproved, want: http.StatusForbidden},
		{err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestHandler(t, &stubService{err: tt.err})
			rec := serve(t, h, http.MethodPost, "/api/user/login",
				credentialsRequest{Email: "ann@example.com", Password: "secret"}, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetMenu_Public(t *testing.T) {
	h := newTestHandler(t, &stubService{dishes: []model.Dish{
		{ID: "burger", Name: "Burger", Price: decimal.RequireFromString("10.50"), Available: true},
	}})

	rec := serve(t, h, http.MethodGet, "/api/menu", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp []dishResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.InDelta(t, 10.5, resp[0].Price, 1e-9)
}

func TestUserRoutes_RequireAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	for _, path := range []string{"/api/user/orders", "/api/user/balance", "/api/user/deposits"} {
		rec := serve(t, h, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestPlaceOrder_Created(t *testing.T) {
	svc := &stubService{order: &model.Order{
		ID:         "order-1",
		CustomerID: "cust-1",
		Status:     model.OrderStatusPlaced,
		Items:      []model.OrderItem{{DishID: "burger", Quantity: 1, UnitPrice: decimal.RequireFromString("10")}},
		Quote: model.Quote{
			Subtotal:    decimal.RequireFromString("10"),
			Discount:    decimal.Zero,
			DeliveryFee: decimal.RequireFromString("5"),
			Total:       decimal.RequireFromString("15"),
		},
		Tip: decimal.RequireFromString("2"),
	}}
	h := newTestHandler(t, svc)

	body := map[string]any{
		"items": []map[string]any{{"dishId": "burger", "quantity": 1}},
		"tip":   2,
	}
	rec := serve(t, h, http.MethodPost, "/api/user/orders", body, &customer)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp orderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "PLACED", resp.Status)
	assert.InDelta(t, 17.0, resp.Charged, 1e-9)

	require.Len(t, svc.lastOrder.Items, 1)
	assert.Equal(t, service.CartLine{DishID: "burger", Quantity: 1}, svc.lastOrder.Items[0])
	assert.True(t, svc.lastOrder.Tip.Equal(decimal.NewFromInt(2)))
}

func TestQuoteOrder_GzipRequestBody(t *testing.T) {
	svc := &stubService{quote: model.Quote{
		Subtotal:    decimal.RequireFromString("24"),
		Discount:    decimal.Zero,
		DeliveryFee: decimal.Zero,
		Total:       decimal.RequireFromString("24"),
	}}
	h := newTestHandler(t, svc)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"items":[{"dishId":"burger","quantity":2},{"dishId":"fries","quantity":1}],"useFreeDelivery":true}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/user/orders/quote", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	cookieRec := httptest.NewRecorder()
	require.NoError(t, h.authMiddleware.SetAuthCookie(cookieRec, customer))
	for _, c := range cookieRec.Result().Cookies() {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var resp quoteResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.InDelta(t, 24.0, resp.Total, 1e-9)
	assert.InDelta(t, 0.0, resp.DeliveryFee, 1e-9)

	assert.Equal(t, []service.CartLine{{DishID: "burger", Quantity: 2}, {DishID: "fries", Quantity: 1}}, svc.lastLines)
	assert.True(t, svc.lastFree)
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: ledger.ErrInsufficientBalance, want: http.StatusPaymentRequired},
		{err: ledger.ErrInvalidCart, want: http.StatusBadRequest},
		{err: ledger.ErrAccountBlacklisted, want: http.StatusForbidden},
		{err: ledger.ErrNoFreeDelivery, want: http.StatusConflict},
		{err: service.ErrDishUnavailable, want: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestHandler(t, &stubService{err: fmt.Errorf("place order: %w", tt.err)})
			body := map[string]any{"items": []map[string]any{{"dishId": "burger", "quantity": 1}}}
			rec := serve(t, h, http.MethodPost, "/api/user/orders", body, &customer)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetOrders_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{orders: []model.Order{}})

	rec := serve(t, h, http.MethodGet, "/api/user/orders", nil, &customer)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeposit_StatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		deposit *model.Deposit
		err     error
		want    int
	}{
		{name: "credited", deposit: &model.Deposit{ID: "k", Status: model.DepositStatusCredited}, want: http.StatusOK},
		{name: "pending", deposit: &model.Deposit{ID: "k", Status: model.DepositStatusPending}, want: http.StatusAccepted},
		{name: "declined", err: service.ErrPaymentDeclined, want: http.StatusPaymentRequired},
		{name: "gateway unavailable", err: service.ErrPaymentUnavailable, want: http.StatusServiceUnavailable},
		{name: "bad card", err: service.ErrInvalidCard, want: http.StatusUnprocessableEntity},
		{name: "key replay", err: service.ErrDepositConflict, want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{deposit: tt.deposit, err: tt.err})
			body := map[string]any{"amount": 25, "cardNumber": "4111111111111111"}
			rec := serve(t, h, http.MethodPost, "/api/user/balance/deposit", body, &customer)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDeposit_IdempotencyKeyHeader(t *testing.T) {
	svc := &stubService{deposit: &model.Deposit{ID: "k", Status: model.DepositStatusCredited}}
	h := newTestHandler(t, svc)

	body, err := json.Marshal(map[string]any{"amount": "12.34", "cardNumber": "4111111111111111"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/user/balance/deposit", bytes.NewReader(body))
	req.Header.Set(idempotencyKeyHeader, "5f0c6a8e-8d0b-4c52-9d8f-7b3a2e1c0d4f")

	cookieRec := httptest.NewRecorder()
	require.NoError(t, h.authMiddleware.SetAuthCookie(cookieRec, customer))
	req.AddCookie(cookieRec.Result().Cookies()[0])

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5f0c6a8e-8d0b-4c52-9d8f-7b3a2e1c0d4f", svc.lastDeposit.IdempotencyKey)
	assert.True(t, svc.lastDeposit.Amount.Equal(decimal.RequireFromString("12.34")))
}

func TestStaffRoutes(t *testing.T) {
	svc := &stubService{order: &model.Order{ID: "order-1", Status: model.OrderStatusPreparing}}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodPatch, "/api/staff/orders/order-1/status", statusRequest{Status: "PREPARING"}, &customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, h, http.MethodPatch, "/api/staff/orders/order-1/status", statusRequest{Status: "COOKED"}, &chef)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodPatch, "/api/staff/orders/order-1/status", statusRequest{Status: "PREPARING"}, &chef)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "order-1", svc.lastID)
	assert.Equal(t, model.OrderStatusPreparing, svc.lastStatus)

	rec = serve(t, h, http.MethodGet, "/api/staff/orders", nil, &chef)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvanceOrder_InvalidTransition(t *testing.T) {
	h := newTestHandler(t, &stubService{err: service.ErrInvalidTransition})

	rec := serve(t, h, http.MethodPatch, "/api/staff/orders/order-1/status", statusRequest{Status: "DELIVERED"}, &chef)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestManagerRoutes_RequireManager(t *testing.T) {
	h := newTestHandler(t, &stubService{stats: &model.DashboardStats{OpenComplaints: 2}})

	rec := serve(t, h, http.MethodGet, "/api/manager/dashboard", nil, &chef)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/manager/dashboard", nil, &manager)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.DashboardStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 2, stats.OpenComplaints)
}

func TestPutDish_AllowedForChef(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body := map[string]any{"name": "Soup", "price": "6.25"}
	rec := serve(t, h, http.MethodPut, "/api/manager/menu/soup", body, &chef)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "soup", svc.lastDish.ID)
	assert.True(t, svc.lastDish.Available)
	assert.True(t, svc.lastDish.Price.Equal(decimal.RequireFromString("6.25")))

	rec = serve(t, h, http.MethodPut, "/api/manager/menu/soup", body, &customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIssueWarning_ReportsTransition(t *testing.T) {
	acc := testAccount()
	acc.IsBlacklisted = true
	svc := &stubService{account: acc, transition: ledger.TransitionBlacklisted}
	h := newTestHandler(t, svc)

	rec := serve(t, h, http.MethodPost, "/api/manager/accounts/cust-1/warnings", warningRequest{Reason: "rude"}, &manager)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp warningIssuedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ledger.TransitionBlacklisted, resp.Transition)
	assert.Equal(t, "blacklisted", resp.Account.Status)
	assert.Equal(t, "cust-1", svc.lastID)
}

func TestAccountAction_NotEligible(t *testing.T) {
	h := newTestHandler(t, &stubService{err: ledger.ErrNotEligible})

	rec := serve(t, h, http.MethodPost, "/api/manager/accounts/cust-1/vip", nil, &manager)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestQueryAccounts(t *testing.T) {
	h := newTestHandler(t, &stubService{accounts: []model.Account{*testAccount()}})

	rec := serve(t, h, http.MethodGet, "/api/manager/accounts?field=password&value=x", nil, &manager)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/manager/accounts?field=vip&value=maybe", nil, &manager)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/manager/accounts?field=role&value=customer", nil, &manager)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []accountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.InDelta(t, 20.0, resp[0].Balance, 1e-9)
}

func TestStatusFor_WrappedErrors(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("get: %w", repository.ErrOrderNotFound)))
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("adjust: %w", ledger.ErrNegativeResultingBalance)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(ledger.ErrInvalidAmount))
	assert.Equal(t, http.StatusConflict, statusFor(ledger.ErrNotCustomer))
	assert.Equal(t, http.StatusForbidden, statusFor(ledger.ErrAccountBlacklisted))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := serve(t, h, http.MethodGet, "/api/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h, http.MethodDelete, "/api/menu", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
