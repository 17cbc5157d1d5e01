// Package model содержит доменные сущности сервиса ресторана.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Warning описывает предупреждение, выданное клиенту менеджером или по итогам жалобы.
type Warning struct {
	Reason   string    `json:"reason"`
	IssuedAt time.Time `json:"issuedAt"`
	IssuedBy string    `json:"issuedBy"`
}

// Account представляет учётную запись пользователя вместе с его лицевым счётом.
type Account struct {
	ID       string
	Email    string
	Name     string
	Role     Role
	Approved bool

	Balance    decimal.Decimal
	TotalSpent decimal.Decimal
	OrderCount int
	Warnings   []Warning

	IsVIP         bool
	IsBlacklisted bool

	FreeDeliveriesEarned int
	FreeDeliveriesUsed   int

	RatingSum       int
	RatingCount     int
	ComplimentCount int
	ComplaintCount  int

	Version   int
	CreatedAt time.Time
}

// AccountStatus описывает статус лояльности клиента.
type AccountStatus string

const (
	AccountStatusRegular     AccountStatus = "regular"
	AccountStatusVIP         AccountStatus = "vip"
	AccountStatusBlacklisted AccountStatus = "blacklisted"
)

// Status вычисляет статус лояльности по флагам учётной записи.
// Блокировка важнее VIP.
func (a *Account) Status() AccountStatus {
	switch {
	case a.IsBlacklisted:
		return AccountStatusBlacklisted
	case a.IsVIP:
		return AccountStatusVIP
	default:
		return AccountStatusRegular
	}
}

// FreeDeliveriesAvailable возвращает количество ещё не использованных бесплатных доставок.
func (a *Account) FreeDeliveriesAvailable() int {
	return a.FreeDeliveriesEarned - a.FreeDeliveriesUsed
}

// AverageRating возвращает среднюю оценку сотрудника или 0, если оценок нет.
func (a *Account) AverageRating() float64 {
	if a.RatingCount == 0 {
		return 0
	}
	return float64(a.RatingSum) / float64(a.RatingCount)
}

// Clone возвращает копию учётной записи, не разделяющую список предупреждений с оригиналом.
func (a *Account) Clone() *Account {
	c := *a
	if a.Warnings != nil {
		c.Warnings = make([]Warning, len(a.Warnings))
		copy(c.Warnings, a.Warnings)
	}
	return &c
}

// Session описывает аутентифицированного пользователя, выполняющего операцию.
type Session struct {
	AccountID string
	Role      Role
}

// IsManager сообщает, обладает ли сессия правами менеджера.
func (s Session) IsManager() bool {
	return s.Role == RoleManager
}

// SystemSession используется для операций, которые выполняет сам сервис.
var SystemSession = Session{AccountID: "system", Role: RoleManager}

// Dish описывает позицию меню.
type Dish struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Available   bool            `json:"available"`
}

// OrderItem описывает позицию корзины с ценой на момент оформления.
type OrderItem struct {
	DishID    string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Quote содержит расчёт стоимости корзины без учёта чаевых.
type Quote struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// OrderStatus описывает этап жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "PLACED"
	OrderStatusPreparing  OrderStatus = "PREPARING"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusDelivering OrderStatus = "DELIVERING"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

// Order описывает оформленный заказ клиента.
type Order struct {
	ID             string
	CustomerID     string
	Items          []OrderItem
	Quote          Quote
	Tip            decimal.Decimal
	FreeDelivery   bool
	Status         OrderStatus
	ChefID         string
	DeliveryID     string
	ChefRating     int
	DeliveryRating int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Charged возвращает сумму, списанную с баланса клиента.
func (o *Order) Charged() decimal.Decimal {
	return o.Quote.Total.Add(o.Tip)
}

// Rated сообщает, оценён ли уже заказ.
func (o *Order) Rated() bool {
	return o.ChefRating != 0 || o.DeliveryRating != 0
}

// DepositStatus описывает состояние пополнения баланса.
type DepositStatus string

const (
	DepositStatusPending  DepositStatus = "PENDING"
	DepositStatusCredited DepositStatus = "CREDITED"
	DepositStatusDeclined DepositStatus = "DECLINED"
)

// Deposit описывает пополнение баланса через платёжную систему.
// ID совпадает с ключом идемпотентности запроса.
type Deposit struct {
	ID         string
	CustomerID string
	Amount     decimal.Decimal
	CardLast4  string
	Status     DepositStatus
	CreatedAt  time.Time
}

// FeedbackKind различает жалобы и благодарности.
type FeedbackKind string

const (
	FeedbackComplaint  FeedbackKind = "complaint"
	FeedbackCompliment FeedbackKind = "compliment"
)

// ComplaintStatus описывает состояние рассмотрения обращения.
type ComplaintStatus string

const (
	ComplaintStatusOpen      ComplaintStatus = "OPEN"
	ComplaintStatusUpheld    ComplaintStatus = "UPHELD"
	ComplaintStatusDismissed ComplaintStatus = "DISMISSED"
)

// Complaint описывает жалобу или благодарность в адрес клиента или сотрудника.
type Complaint struct {
	ID          string
	AuthorID    string
	TargetID    string
	OrderID     string
	Kind        FeedbackKind
	Description string
	Status      ComplaintStatus
	ResolvedBy  string
	CreatedAt   time.Time
}

// DashboardStats содержит сводные показатели панели менеджера.
type DashboardStats struct {
	PendingRegistrations int `json:"pendingRegistrations"`
	OpenComplaints       int `json:"openComplaints"`
	VIPCustomers         int `json:"vipCustomers"`
	BlacklistedAccounts  int `json:"blacklistedAccounts"`
	OrdersInProgress     int `json:"ordersInProgress"`
}
