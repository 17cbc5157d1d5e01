package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/restaurant-system/internal/ledger"
	"github.com/mmeshcher/restaurant-system/internal/model"
)

const staffQueueLimit = 100

// CartLine описывает позицию корзины в запросе клиента.
type CartLine struct {
	DishID   string
	Quantity int
}

// OrderRequest описывает запрос на оформление заказа.
type OrderRequest struct {
	Items           []CartLine
	UseFreeDelivery bool
	Tip             decimal.Decimal
}

// stage описывает допустимый переход заказа и роль, которая его выполняет.
type stage struct {
	from model.OrderStatus
	role model.Role
}

var orderStages = map[model.OrderStatus]stage{
	model.OrderStatusPreparing:  {from: model.OrderStatusPlaced, role: model.RoleChef},
	model.OrderStatusReady:      {from: model.OrderStatusPreparing, role: model.RoleChef},
	model.OrderStatusDelivering: {from: model.OrderStatusReady, role: model.RoleDelivery},
	model.OrderStatusDelivered:  {from: model.OrderStatusDelivering, role: model.RoleDelivery},
}

// Menu возвращает блюда, доступные для заказа.
func (s *Service) Menu(ctx context.Context) ([]model.Dish, error) {
	return s.repo.ListDishes(ctx, true)
}

// UpsertDish создаёт или обновляет блюдо. Доступно менеджеру и повару.
func (s *Service) UpsertDish(ctx context.Context, actor model.Session, d model.Dish) error {
	if actor.Role != model.RoleManager && actor.Role != model.RoleChef {
		return ledger.ErrPermissionDenied
	}
	d.ID = strings.TrimSpace(d.ID)
	d.Name = strings.TrimSpace(d.Name)
	if d.ID == "" || d.Name == "" {
		return fmt.Errorf("%w: dish id and name are required", ErrInvalidInput)
	}
	if d.Price.IsNegative() {
		return fmt.Errorf("%w: dish price must not be negative", ErrInvalidInput)
	}
	return s.repo.UpsertDish(ctx, d)
}

// priceCart подставляет в корзину текущие цены меню и проверяет её.
func (s *Service) priceCart(ctx context.Context, lines []CartLine) ([]model.OrderItem, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.DishID)
	}

	dishes, err := s.repo.GetDishes(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		d, ok := dishes[l.DishID]
		if !ok || !d.Available {
			return nil, fmt.Errorf("%w: %s", ErrDishUnavailable, l.DishID)
		}
		items = append(items, model.OrderItem{DishID: d.ID, Quantity: l.Quantity, UnitPrice: d.Price})
	}

	if err := ledger.ValidateCart(items, s.deliveryFee); err != nil {
		return nil, err
	}
	return items, nil
}

// Quote рассчитывает стоимость корзины для клиента без оформления заказа.
func (s *Service) Quote(ctx context.Context, sess model.Session, lines []CartLine, useFreeDelivery bool) (model.Quote, error) {
	acc, err := s.repo.GetAccount(ctx, sess.AccountID)
	if err != nil {
		return model.Quote{}, err
	}
	if useFreeDelivery && acc.FreeDeliveriesAvailable() <= 0 {
		return model.Quote{}, ledger.ErrNoFreeDelivery
	}

	items, err := s.priceCart(ctx, lines)
	if err != nil {
		return model.Quote{}, err
	}
	return ledger.ComputeOrderTotal(items, s.deliveryFee, acc.IsVIP, useFreeDelivery), nil
}

// PlaceOrder оформляет заказ: списание, счётчики, начисление бесплатной доставки и
// автоматическое повышение до VIP выполняются в одной транзакции над заблокированным счётом.
func (s *Service) PlaceOrder(ctx context.Context, sess model.Session, req OrderRequest) (*model.Order, error) {
	if sess.Role != model.RoleCustomer {
		return nil, ledger.ErrPermissionDenied
	}

	items, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	orderID := s.newID()
	now := s.now().UTC()

	var (
		earnedFreeDelivery bool
		promoted           bool
	)

	order, acc, err := s.repo.PlaceOrder(ctx, sess.AccountID, func(acc *model.Account) (*model.Order, error) {
		earnedFreeDelivery, promoted = false, false

		quote := ledger.ComputeOrderTotal(items, s.deliveryFee, acc.IsVIP, req.UseFreeDelivery)
		checkout := ledger.Checkout{Quote: quote, Tip: req.Tip, FreeDelivery: req.UseFreeDelivery}
		if err := ledger.AuthorizeCheckout(acc, checkout); err != nil {
			return nil, err
		}

		earnedFreeDelivery = ledger.AccrueFreeDelivery(acc)
		if ledger.EvaluateVIPEligibility(acc) {
			if err := ledger.PromoteToVIP(model.SystemSession, acc); err != nil {
				return nil, err
			}
			promoted = true
		}

		return &model.Order{
			ID:           orderID,
			CustomerID:   acc.ID,
			Items:        items,
			Quote:        quote,
			Tip:          req.Tip,
			FreeDelivery: req.UseFreeDelivery,
			Status:       model.OrderStatusPlaced,
			CreatedAt:    now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if earnedFreeDelivery {
		s.logger.Info("free delivery earned", zap.String("accountID", acc.ID), zap.Int("orderCount", acc.OrderCount))
	}
	if promoted {
		s.logger.Info("customer promoted to vip", zap.String("accountID", acc.ID))
	}
	return order, nil
}

// CustomerOrders возвращает заказы клиента.
func (s *Service) CustomerOrders(ctx context.Context, sess model.Session) ([]model.Order, error) {
	return s.repo.GetOrdersByCustomer(ctx, sess.AccountID)
}

// StaffQueue возвращает заказы в указанном статусе для персонала.
func (s *Service) StaffQueue(ctx context.Context, actor model.Session, status model.OrderStatus) ([]model.Order, error) {
	if !actor.Role.IsEmployee() {
		return nil, ledger.ErrPermissionDenied
	}
	return s.repo.GetOrdersByStatus(ctx, status, staffQueueLimit)
}

// AdvanceOrder переводит заказ в следующий статус. Готовит заказ повар, взявший его в работу,
// доставляет курьер, забравший его.
func (s *Service) AdvanceOrder(ctx context.Context, actor model.Session, orderID string, next model.OrderStatus) (*model.Order, error) {
	st, ok := orderStages[next]
	if !ok {
		return nil, fmt.Errorf("%w: to %s", ErrInvalidTransition, next)
	}
	if actor.Role != st.role {
		return nil, ledger.ErrPermissionDenied
	}

	return s.repo.UpdateOrder(ctx, orderID, func(o *model.Order) error {
		if o.Status != st.from {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, next)
		}

		switch next {
		case model.OrderStatusPreparing:
			o.ChefID = actor.AccountID
		case model.OrderStatusReady:
			if o.ChefID != actor.AccountID {
				return ledger.ErrPermissionDenied
			}
		case model.OrderStatusDelivering:
			o.DeliveryID = actor.AccountID
		case model.OrderStatusDelivered:
			if o.DeliveryID != actor.AccountID {
				return ledger.ErrPermissionDenied
			}
		}

		o.Status = next
		o.UpdatedAt = s.now().UTC()
		return nil
	})
}

// RateOrder сохраняет оценки повару и курьеру за доставленный заказ клиента.
// Заказ оценивается один раз.
func (s *Service) RateOrder(ctx context.Context, sess model.Session, orderID string, chefRating, deliveryRating int) (*model.Order, error) {
	if !validRating(chefRating) || !validRating(deliveryRating) {
		return nil, ErrInvalidRating
	}

	return s.repo.RateOrder(ctx, orderID, func(o *model.Order) error {
		if o.CustomerID != sess.AccountID {
			return ledger.ErrPermissionDenied
		}
		if o.Status != model.OrderStatusDelivered || o.Rated() {
			return ErrOrderNotRateable
		}
		o.ChefRating = chefRating
		o.DeliveryRating = deliveryRating
		o.UpdatedAt = s.now().UTC()
		return nil
	})
}

func validRating(r int) bool {
	return r >= 1 && r <= 5
}
