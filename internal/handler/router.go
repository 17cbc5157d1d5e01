package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/restaurant-system/internal/middleware"
	"github.com/mmeshcher/restaurant-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса ресторана.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/api/menu", h.GetMenu)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/orders/quote", h.QuoteOrder)
			r.Post("/orders", h.PlaceOrder)
			r.Get("/orders", h.GetOrders)
			r.Post("/orders/{orderID}/rating", h.RateOrder)

			r.Get("/balance", h.GetBalance)
			r.Post("/balance/deposit", h.Deposit)
			r.Get("/deposits", h.GetDeposits)

			r.Post("/complaints", h.FileComplaint)
			r.Post("/close", h.CloseOwnAccount)
		})
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(custommiddleware.RequireRole(model.RoleChef, model.RoleDelivery, model.RoleManager))

		r.Get("/orders", h.GetStaffQueue)
		r.Patch("/orders/{orderID}/status", h.AdvanceOrder)
	})

	r.Route("/api/manager", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.With(custommiddleware.RequireRole(model.RoleManager, model.RoleChef)).Put("/menu/{dishID}", h.PutDish)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireRole(model.RoleManager))

			r.Post("/employees", h.HireEmployee)
			r.Get("/employees/{accountID}/performance", h.GetEmployeePerformance)

			r.Get("/registrations", h.GetPendingRegistrations)
			r.Post("/registrations/{accountID}/approve", h.accountActionHandler("approve registration", h.service.ApproveRegistration))

			r.Get("/accounts", h.QueryAccounts)
			r.Get("/accounts/{accountID}", h.accountActionHandler("get account", h.service.Account))
			r.Post("/accounts/{accountID}/warnings", h.IssueWarning)
			r.Post("/accounts/{accountID}/balance", h.AdjustBalance)
			r.Post("/accounts/{accountID}/vip", h.accountActionHandler("promote to vip", h.service.PromoteToVIP))
			r.Post("/accounts/{accountID}/blacklist", h.accountActionHandler("blacklist", h.service.Blacklist))
			r.Delete("/accounts/{accountID}/blacklist", h.accountActionHandler("remove from blacklist", h.service.RemoveFromBlacklist))
			r.Post("/accounts/{accountID}/close", h.accountActionHandler("close account", h.service.CloseAccount))

			r.Get("/complaints", h.GetComplaints)
			r.Post("/complaints/{complaintID}/resolve", h.ResolveComplaint)

			r.Get("/dashboard", h.GetDashboard)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
