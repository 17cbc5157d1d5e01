package handler

import (
	"net/http"

	"go.uber.org/zap"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccountID string `json:"accountId"`
	Role      string `json:"role"`
}

// Register обрабатывает регистрацию клиента. Учётная запись создаётся неодобренной,
// поэтому ответ 202 и cookie не выдаётся.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		badRequest(w)
		return
	}

	acc, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, toAccount(acc))
}

// Login аутентифицирует пользователя и выставляет cookie с токеном сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		badRequest(w)
		return
	}

	sess, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, sess); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{AccountID: sess.AccountID, Role: sess.Role.String()})
}

// GetBalance возвращает баланс и статус лояльности текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	acc, err := h.service.Balance(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, "get balance", err)
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse{
		Current:                 acc.Balance.InexactFloat64(),
		TotalSpent:              acc.TotalSpent.InexactFloat64(),
		OrderCount:              acc.OrderCount,
		Status:                  string(acc.Status()),
		VIP:                     acc.IsVIP,
		Blacklisted:             acc.IsBlacklisted,
		Warnings:                toWarnings(acc.Warnings),
		FreeDeliveriesAvailable: acc.FreeDeliveriesAvailable(),
	})
}

// CloseOwnAccount закрывает учётную запись текущего пользователя и возвращает её итоговое состояние.
func (h *Handler) CloseOwnAccount(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	acc, err := h.service.CloseAccount(r.Context(), sess, sess.AccountID)
	if err != nil {
		h.writeError(w, r, "close account", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toAccount(acc))
}
