package model

import "fmt"

// Role определяет тип учётной записи.
type Role uint8

const (
	RoleCustomer Role = iota + 1
	RoleChef
	RoleDelivery
	RoleManager
)

// String возвращает строковое представление роли, используемое в БД и токенах.
func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleChef:
		return "chef"
	case RoleDelivery:
		return "delivery"
	case RoleManager:
		return "manager"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// IsEmployee сообщает, относится ли роль к персоналу ресторана.
func (r Role) IsEmployee() bool {
	switch r {
	case RoleChef, RoleDelivery, RoleManager:
		return true
	case RoleCustomer:
		return false
	}
	return false
}

// ParseRole разбирает строковое представление роли.
func ParseRole(s string) (Role, error) {
	switch s {
	case "customer":
		return RoleCustomer, nil
	case "chef":
		return RoleChef, nil
	case "delivery":
		return RoleDelivery, nil
	case "manager":
		return RoleManager, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// AccountField перечисляет поля учётной записи, по которым допускается выборка на равенство.
type AccountField string

const (
	AccountFieldRole        AccountField = "role"
	AccountFieldApproved    AccountField = "approved"
	AccountFieldVIP         AccountField = "vip"
	AccountFieldBlacklisted AccountField = "blacklisted"
)

// ParseAccountField проверяет имя поля для выборки.
func ParseAccountField(s string) (AccountField, error) {
	switch f := AccountField(s); f {
	case AccountFieldRole, AccountFieldApproved, AccountFieldVIP, AccountFieldBlacklisted:
		return f, nil
	}
	return "", fmt.Errorf("unsupported account field %q", s)
}
