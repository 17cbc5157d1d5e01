package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-system/internal/model"
	"github.com/mmeshcher/restaurant-system/internal/service"
)

type cartRequest struct {
	Items           []cartLineRequest `json:"items"`
	UseFreeDelivery bool              `json:"useFreeDelivery"`
	Tip             decimal.Decimal   `json:"tip"`
}

func (c cartRequest) lines() []service.CartLine {
	lines := make([]service.CartLine, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, service.CartLine{DishID: it.DishID, Quantity: it.Quantity})
	}
	return lines
}

type ratingRequest struct {
	ChefRating     int `json:"chefRating"`
	DeliveryRating int `json:"deliveryRating"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func parseOrderStatus(s string) (model.OrderStatus, bool) {
	switch st := model.OrderStatus(s); st {
	case model.OrderStatusPlaced, model.OrderStatusPreparing, model.OrderStatusReady,
		model.OrderStatusDelivering, model.OrderStatusDelivered:
		return st, true
	}
	return "", false
}

// GetMenu возвращает доступные блюда.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.service.Menu(r.Context())
	if err != nil {
		h.writeError(w, r, "get menu", err)
		return
	}

	resp := make([]dishResponse, 0, len(dishes))
	for _, d := range dishes {
		resp = append(resp, toDish(d))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// QuoteOrder рассчитывает стоимость корзины без списания средств.
func (h *Handler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	q, err := h.service.Quote(r.Context(), sess, req.lines(), req.UseFreeDelivery)
	if err != nil {
		h.writeError(w, r, "quote order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toQuote(q))
}

// PlaceOrder оформляет заказ и списывает его стоимость с баланса клиента.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), sess, service.OrderRequest{
		Items:           req.lines(),
		UseFreeDelivery: req.UseFreeDelivery,
		Tip:             req.Tip,
	})
	if err != nil {
		h.writeError(w, r, "place order", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrder(order))
}

// GetOrders возвращает заказы текущего клиента, новые первыми.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	orders, err := h.service.CustomerOrders(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, "get orders", err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrders(orders))
}

// RateOrder сохраняет оценки повара и курьера за доставленный заказ.
func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	order, err := h.service.RateOrder(r.Context(), sess, chi.URLParam(r, "orderID"), req.ChefRating, req.DeliveryRating)
	if err != nil {
		h.writeError(w, r, "rate order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrder(order))
}

// GetStaffQueue возвращает заказы в указанном статусе для повара или курьера.
func (h *Handler) GetStaffQueue(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	status, valid := parseOrderStatus(r.URL.Query().Get("status"))
	if !valid {
		badRequest(w)
		return
	}

	orders, err := h.service.StaffQueue(r.Context(), sess, status)
	if err != nil {
		h.writeError(w, r, "get staff queue", err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrders(orders))
}

// AdvanceOrder переводит заказ на следующий этап.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	next, valid := parseOrderStatus(req.Status)
	if !valid {
		badRequest(w)
		return
	}

	order, err := h.service.AdvanceOrder(r.Context(), sess, chi.URLParam(r, "orderID"), next)
	if err != nil {
		h.writeError(w, r, "advance order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrder(order))
}

// PutDish создаёт или изменяет позицию меню.
func (h *Handler) PutDish(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}

	var req dishRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	d := model.Dish{
		ID:          chi.URLParam(r, "dishID"),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Available:   req.Available == nil || *req.Available,
	}
	if err := h.service.UpsertDish(r.Context(), sess, d); err != nil {
		h.writeError(w, r, "put dish", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toDish(d))
}
