package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-system/internal/model"
	"github.com/mmeshcher/restaurant-system/internal/service"
)

// idempotencyKeyHeader позволяет передать ключ идемпотентности вне тела запроса.
const idempotencyKeyHeader = "Idempotency-Key"

type depositRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	CardNumber     string          `json:"cardNumber"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// Deposit пополняет баланс с карты. Зачисленное пополнение отвечает 200,
// ожидающее подтверждения платёжной системы 202.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(idempotencyKeyHeader)
	}

	dep, err := h.service.Deposit(r.Context(), sess, service.DepositRequest{
		Amount:         req.Amount,
		CardNumber:     req.CardNumber,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, r, "deposit", err)
		return
	}

	code := http.StatusOK
	if dep.Status == model.DepositStatusPending {
		code = http.StatusAccepted
	}
	h.writeJSON(w, code, toDeposit(dep))
}

// GetDeposits возвращает историю пополнений текущего клиента.
func (h *Handler) GetDeposits(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	deposits, err := h.service.Deposits(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, "get deposits", err)
		return
	}

	if len(deposits) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]depositResponse, 0, len(deposits))
	for i := range deposits {
		resp = append(resp, toDeposit(&deposits[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}
