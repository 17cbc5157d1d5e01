package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-system/internal/ledger"
	"github.com/mmeshcher/restaurant-system/internal/model"
	"github.com/mmeshcher/restaurant-system/internal/service"
)

type employeeRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type warningRequest struct {
	Reason string `json:"reason"`
}

type warningIssuedResponse struct {
	Account    accountResponse   `json:"account"`
	Transition ledger.Transition `json:"transition,omitempty"`
}

type adjustRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// accountAction описывает операцию менеджера над учётной записью по её идентификатору.
type accountAction func(ctx context.Context, actor model.Session, id string) (*model.Account, error)

func (h *Handler) accountActionHandler(op string, action accountAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session(w, r)
		if !ok {
			return
		}

		acc, err := action(r.Context(), sess, chi.URLParam(r, "accountID"))
		if err != nil {
			h.writeError(w, r, op, err)
			return
		}

		h.writeJSON(w, http.StatusOK, toAccount(acc))
	}
}

// HireEmployee создаёт учётную запись сотрудника.
func (h *Handler) HireEmployee(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req employeeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil || req.Email == "" || req.Password == "" {
		badRequest(w)
		return
	}

	acc, err := h.service.HireEmployee(r.Context(), sess, req.Email, req.Name, req.Password, role)
	if err != nil {
		h.writeError(w, r, "hire employee", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toAccount(acc))
}

// GetPendingRegistrations возвращает учётные записи, ожидающие одобрения.
func (h *Handler) GetPendingRegistrations(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.PendingRegistrations(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, "get pending registrations", err)
		return
	}

	if len(accounts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, toAccounts(accounts))
}

// QueryAccounts выполняет выборку учётных записей по полю и значению из query-параметров.
func (h *Handler) QueryAccounts(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	field, value, err := service.ParseAccountQuery(r.URL.Query().Get("field"), r.URL.Query().Get("value"))
	if err != nil {
		badRequest(w)
		return
	}

	accounts, err := h.service.QueryAccounts(r.Context(), sess, field, value)
	if err != nil {
		h.writeError(w, r, "query accounts", err)
		return
	}

	if len(accounts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, toAccounts(accounts))
}

// IssueWarning выдаёт предупреждение и сообщает о вызванной смене статуса.
func (h *Handler) IssueWarning(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req warningRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	acc, transition, err := h.service.IssueWarning(r.Context(), sess, chi.URLParam(r, "accountID"), req.Reason)
	if err != nil {
		h.writeError(w, r, "issue warning", err)
		return
	}

	h.writeJSON(w, http.StatusOK, warningIssuedResponse{Account: toAccount(acc), Transition: transition})
}

// AdjustBalance изменяет баланс на указанную величину.
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	acc, err := h.service.AdjustBalance(r.Context(), sess, chi.URLParam(r, "accountID"), req.Delta)
	if err != nil {
		h.writeError(w, r, "adjust balance", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toAccount(acc))
}

// GetEmployeePerformance возвращает показатели работы сотрудника.
func (h *Handler) GetEmployeePerformance(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	perf, err := h.service.EmployeePerformance(r.Context(), sess, chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, r, "get employee performance", err)
		return
	}

	h.writeJSON(w, http.StatusOK, perf)
}

// GetDashboard возвращает сводные показатели для менеджера.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Dashboard(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, "get dashboard", err)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}
