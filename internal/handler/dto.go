package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

type warningResponse struct {
	Reason   string `json:"reason"`
	IssuedAt string `json:"issuedAt"`
	IssuedBy string `json:"issuedBy"`
}

func toWarnings(ws []model.Warning) []warningResponse {
	resp := make([]warningResponse, 0, len(ws))
	for _, w := range ws {
		resp = append(resp, warningResponse{
			Reason:   w.Reason,
			IssuedAt: w.IssuedAt.Format(time.RFC3339),
			IssuedBy: w.IssuedBy,
		})
	}
	return resp
}

type accountResponse struct {
	ID                      string            `json:"id"`
	Email                   string            `json:"email"`
	Name                    string            `json:"name"`
	Role                    string            `json:"role"`
	Approved                bool              `json:"approved"`
	Status                  string            `json:"status"`
	Balance                 float64           `json:"balance"`
	TotalSpent              float64           `json:"totalSpent"`
	OrderCount              int               `json:"orderCount"`
	Warnings                []warningResponse `json:"warnings"`
	FreeDeliveriesAvailable int               `json:"freeDeliveriesAvailable"`
	CreatedAt               string            `json:"createdAt"`
}

func toAccount(a *model.Account) accountResponse {
	return accountResponse{
		ID:                      a.ID,
		Email:                   a.Email,
		Name:                    a.Name,
		Role:                    a.Role.String(),
		Approved:                a.Approved,
		Status:                  string(a.Status()),
		Balance:                 a.Balance.InexactFloat64(),
		TotalSpent:              a.TotalSpent.InexactFloat64(),
		OrderCount:              a.OrderCount,
		Warnings:                toWarnings(a.Warnings),
		FreeDeliveriesAvailable: a.FreeDeliveriesAvailable(),
		CreatedAt:               a.CreatedAt.Format(time.RFC3339),
	}
}

func toAccounts(accounts []model.Account) []accountResponse {
	resp := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, toAccount(&accounts[i]))
	}
	return resp
}

type balanceResponse struct {
	Current                 float64           `json:"current"`
	TotalSpent              float64           `json:"totalSpent"`
	OrderCount              int               `json:"orderCount"`
	Status                  string            `json:"status"`
	VIP                     bool              `json:"vip"`
	Blacklisted             bool              `json:"blacklisted"`
	Warnings                []warningResponse `json:"warnings"`
	FreeDeliveriesAvailable int               `json:"freeDeliveriesAvailable"`
}

type cartLineRequest struct {
	DishID   string `json:"dishId"`
	Quantity int    `json:"quantity"`
}

type quoteResponse struct {
	Subtotal    float64 `json:"subtotal"`
	Discount    float64 `json:"discount"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `json:"total"`
}

func toQuote(q model.Quote) quoteResponse {
	return quoteResponse{
		Subtotal:    q.Subtotal.InexactFloat64(),
		Discount:    q.Discount.InexactFloat64(),
		DeliveryFee: q.DeliveryFee.InexactFloat64(),
		Total:       q.Total.InexactFloat64(),
	}
}

type orderItemResponse struct {
	DishID    string  `json:"dishId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	CustomerID     string              `json:"customerId"`
	Status         string              `json:"status"`
	Items          []orderItemResponse `json:"items"`
	Quote          quoteResponse       `json:"quote"`
	Tip            float64             `json:"tip"`
	Charged        float64             `json:"charged"`
	FreeDelivery   bool                `json:"freeDelivery"`
	ChefID         string              `json:"chefId,omitempty"`
	DeliveryID     string              `json:"deliveryId,omitempty"`
	ChefRating     int                 `json:"chefRating,omitempty"`
	DeliveryRating int                 `json:"deliveryRating,omitempty"`
	CreatedAt      string              `json:"createdAt"`
	UpdatedAt      string              `json:"updatedAt"`
}

func toOrder(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			DishID:    it.DishID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.InexactFloat64(),
		})
	}
	return orderResponse{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		Status:         string(o.Status),
		Items:          items,
		Quote:          toQuote(o.Quote),
		Tip:            o.Tip.InexactFloat64(),
		Charged:        o.Charged().InexactFloat64(),
		FreeDelivery:   o.FreeDelivery,
		ChefID:         o.ChefID,
		DeliveryID:     o.DeliveryID,
		ChefRating:     o.ChefRating,
		DeliveryRating: o.DeliveryRating,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      o.UpdatedAt.Format(time.RFC3339),
	}
}

func toOrders(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrder(&orders[i]))
	}
	return resp
}

type depositResponse struct {
	ID        string  `json:"id"`
	Amount    float64 `json:"amount"`
	CardLast4 string  `json:"cardLast4"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt"`
}

func toDeposit(d *model.Deposit) depositResponse {
	return depositResponse{
		ID:        d.ID,
		Amount:    d.Amount.InexactFloat64(),
		CardLast4: d.CardLast4,
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}

type complaintResponse struct {
	ID          string `json:"id"`
	AuthorID    string `json:"authorId"`
	TargetID    string `json:"targetId"`
	OrderID     string `json:"orderId,omitempty"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Status      string `json:"status"`
	ResolvedBy  string `json:"resolvedBy,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func toComplaint(c *model.Complaint) complaintResponse {
	return complaintResponse{
		ID:          c.ID,
		AuthorID:    c.AuthorID,
		TargetID:    c.TargetID,
		OrderID:     c.OrderID,
		Kind:        string(c.Kind),
		Description: c.Description,
		Status:      string(c.Status),
		ResolvedBy:  c.ResolvedBy,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

type dishRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Available   *bool           `json:"available"`
}

type dishResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Available   bool    `json:"available"`
}

func toDish(d model.Dish) dishResponse {
	return dishResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price.InexactFloat64(),
		Available:   d.Available,
	}
}
