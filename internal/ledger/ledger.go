// Package ledger реализует правила лицевого счёта клиента: расчёт стоимости заказа,
// проверку баланса при оформлении, пополнения, предупреждения и статус лояльности.
//
// Все функции работают со снимком учётной записи в памяти и не обращаются к хранилищу.
// Проверки выполняются до изменения снимка: при ошибке учётная запись остаётся прежней.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

// MaxDeposit задаёт предельную сумму одного пополнения.
var MaxDeposit = decimal.NewFromInt(1000)

var (
	vipDiscountRate   = decimal.New(5, -2)
	vipSpendThreshold = decimal.NewFromInt(100)
)

const (
	vipOrderThreshold = 3
	// vipWarningLimit предупреждений снимают с клиента статус VIP.
	vipWarningLimit = 2
	// regularWarningLimit предупреждений блокируют обычного клиента.
	regularWarningLimit = 3
	// VIP получает бесплатную доставку за каждый ordersPerFreeDelivery-й заказ.
	ordersPerFreeDelivery = 3
)

// Transition описывает смену статуса, вызванную предупреждением.
type Transition string

const (
	TransitionNone        Transition = ""
	TransitionDowngraded  Transition = "vip_downgraded"
	TransitionBlacklisted Transition = "blacklisted"
)

// ValidateCart проверяет входные ограничения корзины и стоимости доставки.
func ValidateCart(items []model.OrderItem, deliveryFee decimal.Decimal) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidCart)
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return fmt.Errorf("%w: dish %s quantity %d", ErrInvalidCart, it.DishID, it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: dish %s has negative price", ErrInvalidCart, it.DishID)
		}
	}
	if deliveryFee.IsNegative() {
		return fmt.Errorf("%w: negative delivery fee", ErrInvalidCart)
	}
	return nil
}

// ComputeOrderTotal рассчитывает стоимость корзины. Скидка VIP начисляется только на стоимость блюд.
// Право на бесплатную доставку должен проверить вызывающий код; чаевые сюда не входят.
func ComputeOrderTotal(items []model.OrderItem, deliveryFee decimal.Decimal, isVIP, useFreeDelivery bool) model.Quote {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	discount := decimal.Zero
	if isVIP {
		discount = subtotal.Mul(vipDiscountRate)
	}

	fee := deliveryFee
	if useFreeDelivery {
		fee = decimal.Zero
	}

	return model.Quote{
		Subtotal:    subtotal,
		Discount:    discount,
		DeliveryFee: fee,
		Total:       subtotal.Sub(discount).Add(fee),
	}
}

// Checkout описывает подтверждаемый заказ.
type Checkout struct {
	Quote        model.Quote
	Tip          decimal.Decimal
	FreeDelivery bool
}

// Total возвращает сумму к списанию с учётом чаевых.
func (c Checkout) Total() decimal.Decimal {
	return c.Quote.Total.Add(c.Tip)
}

// AuthorizeCheckout проверяет, что клиент может оплатить заказ, и применяет к снимку списание,
// учёт потраченной суммы (без доставки и чаевых), счётчик заказов и использование бесплатной доставки.
func AuthorizeCheckout(acc *model.Account, c Checkout) error {
	if acc.IsBlacklisted {
		return ErrAccountBlacklisted
	}
	if c.Tip.IsNegative() {
		return fmt.Errorf("%w: negative tip", ErrInvalidAmount)
	}
	if c.FreeDelivery && acc.FreeDeliveriesAvailable() <= 0 {
		return ErrNoFreeDelivery
	}

	total := c.Total()
	if acc.Balance.LessThan(total) {
		return fmt.Errorf("%w: balance %s, required %s", ErrInsufficientBalance, acc.Balance, total)
	}

	acc.Balance = acc.Balance.Sub(total)
	acc.TotalSpent = acc.TotalSpent.Add(c.Quote.Subtotal.Sub(c.Quote.Discount))
	acc.OrderCount++
	if c.FreeDelivery {
		acc.FreeDeliveriesUsed++
	}
	return nil
}

// AccrueFreeDelivery начисляет VIP-клиенту бесплатную доставку за каждый третий заказ.
// Вызывается после успешного AuthorizeCheckout и сообщает, была ли доставка начислена.
func AccrueFreeDelivery(acc *model.Account) bool {
	if !acc.IsVIP || acc.IsBlacklisted || acc.OrderCount == 0 || acc.OrderCount%ordersPerFreeDelivery != 0 {
		return false
	}
	acc.FreeDeliveriesEarned++
	return true
}

// ValidateDeposit проверяет сумму одного пополнения: 0 < amount <= MaxDeposit.
func ValidateDeposit(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(MaxDeposit) {
		return fmt.Errorf("%w: deposit must be in (0, %s], got %s", ErrInvalidAmount, MaxDeposit, amount)
	}
	return nil
}

// DepositFunds зачисляет пополнение на баланс.
func DepositFunds(acc *model.Account, amount decimal.Decimal) error {
	if err := ValidateDeposit(amount); err != nil {
		return err
	}
	acc.Balance = acc.Balance.Add(amount)
	return nil
}

// EvaluateVIPEligibility сообщает, может ли клиент быть повышен до VIP.
func EvaluateVIPEligibility(acc *model.Account) bool {
	if acc.Role != model.RoleCustomer || acc.IsVIP || acc.IsBlacklisted {
		return false
	}
	if len(acc.Warnings) != 0 {
		return false
	}
	return acc.TotalSpent.GreaterThanOrEqual(vipSpendThreshold) || acc.OrderCount >= vipOrderThreshold
}

// PromoteToVIP повышает клиента до VIP, если он удовлетворяет условиям.
func PromoteToVIP(actor model.Session, acc *model.Account) error {
	if !actor.IsManager() {
		return ErrPermissionDenied
	}
	if !EvaluateVIPEligibility(acc) {
		return ErrNotEligible
	}
	acc.IsVIP = true
	return nil
}

// IssueWarning добавляет предупреждение и применяет первое подходящее правило:
// VIP со вторым предупреждением становится обычным клиентом с чистой историей,
// обычный клиент с третьим предупреждением блокируется, предупреждения сохраняются.
// Сотрудникам предупреждения не выдаются: жалобы на них учитываются в показателях работы.
func IssueWarning(actor model.Session, acc *model.Account, reason string, now time.Time) (Transition, error) {
	if !actor.IsManager() {
		return TransitionNone, ErrPermissionDenied
	}
	if acc.Role != model.RoleCustomer {
		return TransitionNone, ErrNotCustomer
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return TransitionNone, ErrEmptyReason
	}

	acc.Warnings = append(acc.Warnings, model.Warning{
		Reason:   reason,
		IssuedAt: now.UTC(),
		IssuedBy: actor.AccountID,
	})

	switch {
	case acc.IsVIP && len(acc.Warnings) >= vipWarningLimit:
		acc.IsVIP = false
		acc.Warnings = []model.Warning{}
		return TransitionDowngraded, nil
	case !acc.IsVIP && len(acc.Warnings) >= regularWarningLimit:
		if acc.IsBlacklisted {
			return TransitionNone, nil
		}
		acc.IsBlacklisted = true
		return TransitionBlacklisted, nil
	default:
		return TransitionNone, nil
	}
}

// AdjustBalanceByManager изменяет баланс на delta без ограничения суммы пополнения.
func AdjustBalanceByManager(actor model.Session, acc *model.Account, delta decimal.Decimal) error {
	if !actor.IsManager() {
		return ErrPermissionDenied
	}
	next := acc.Balance.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: balance %s, delta %s", ErrNegativeResultingBalance, acc.Balance, delta)
	}
	acc.Balance = next
	return nil
}

// CloseAccount обнуляет баланс и блокирует учётную запись, снимая статус VIP.
// Закрыть учётную запись может менеджер или её владелец.
func CloseAccount(actor model.Session, acc *model.Account) error {
	if !actor.IsManager() && actor.AccountID != acc.ID {
		return ErrPermissionDenied
	}
	acc.Balance = decimal.Zero
	acc.IsBlacklisted = true
	acc.IsVIP = false
	return nil
}

// Blacklist блокирует учётную запись по решению менеджера.
func Blacklist(actor model.Session, acc *model.Account) error {
	if !actor.IsManager() {
		return ErrPermissionDenied
	}
	acc.IsBlacklisted = true
	acc.IsVIP = false
	return nil
}

// RemoveFromBlacklist возвращает клиента в обычный статус с чистой историей предупреждений.
func RemoveFromBlacklist(actor model.Session, acc *model.Account) error {
	if !actor.IsManager() {
		return ErrPermissionDenied
	}
	if !acc.IsBlacklisted {
		return ErrNotBlacklisted
	}
	acc.IsBlacklisted = false
	acc.IsVIP = false
	acc.Warnings = []model.Warning{}
	return nil
}
