package ledger

import "errors"

var (
	// ErrInsufficientBalance возвращается, если сумма заказа с чаевыми превышает баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount возвращается при недопустимой сумме пополнения или чаевых.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeResultingBalance возвращается, если корректировка менеджера уводит баланс в минус.
	ErrNegativeResultingBalance = errors.New("negative resulting balance")
	// ErrPermissionDenied возвращается при попытке выполнить операцию без нужных прав.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidCart возвращается при пустой корзине или некорректных позициях.
	ErrInvalidCart = errors.New("invalid cart")
	// ErrAccountBlacklisted возвращается для операций, запрещённых заблокированным клиентам.
	ErrAccountBlacklisted = errors.New("account is blacklisted")
	// ErrNoFreeDelivery возвращается, если у клиента нет неиспользованных бесплатных доставок.
	ErrNoFreeDelivery = errors.New("no free delivery available")
	// ErrNotEligible возвращается при попытке повысить до VIP клиента, не выполнившего условия.
	ErrNotEligible = errors.New("account is not eligible for vip")
	// ErrNotBlacklisted возвращается при снятии блокировки с незаблокированной учётной записи.
	ErrNotBlacklisted = errors.New("account is not blacklisted")
	// ErrNotCustomer возвращается при выдаче предупреждения сотруднику.
	ErrNotCustomer = errors.New("warnings apply to customers only")
	// ErrEmptyReason возвращается при выдаче предупреждения без причины.
	ErrEmptyReason = errors.New("warning reason is required")
)
