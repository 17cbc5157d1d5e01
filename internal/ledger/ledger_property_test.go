package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

func centsGen(minCents, maxCents int64) *rapid.Generator[decimal.Decimal] {
	return rapid.Custom(func(t *rapid.T) decimal.Decimal {
		return decimal.New(rapid.Int64Range(minCents, maxCents).Draw(t, "cents"), -2)
	})
}

func cartGen() *rapid.Generator[[]model.OrderItem] {
	item := rapid.Custom(func(t *rapid.T) model.OrderItem {
		return model.OrderItem{
			DishID:    rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "dish"),
			Quantity:  rapid.IntRange(1, 20).Draw(t, "quantity"),
			UnitPrice: centsGen(0, 10000).Draw(t, "price"),
		}
	})
	return rapid.SliceOfN(item, 1, 10)
}

func TestProperty_DiscountIsExactlyFivePercent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := cartGen().Draw(t, "items")
		fee := centsGen(0, 2000).Draw(t, "fee")

		vip := ComputeOrderTotal(items, fee, true, false)
		if !vip.Discount.Equal(vip.Subtotal.Mul(decimal.New(5, -2))) {
			t.Fatalf("discount %s is not 5%% of %s", vip.Discount, vip.Subtotal)
		}

		regular := ComputeOrderTotal(items, fee, false, false)
		if !regular.Discount.IsZero() {
			t.Fatalf("non-vip discount = %s", regular.Discount)
		}
		if !regular.Subtotal.Equal(vip.Subtotal) {
			t.Fatalf("subtotal depends on vip flag")
		}
	})
}

func TestProperty_FreeDeliveryZeroesFee(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := cartGen().Draw(t, "items")
		fee := centsGen(0, 100000).Draw(t, "fee")
		isVIP := rapid.Bool().Draw(t, "vip")

		q := ComputeOrderTotal(items, fee, isVIP, true)
		if !q.DeliveryFee.IsZero() {
			t.Fatalf("delivery fee = %s with free delivery", q.DeliveryFee)
		}
		if !q.Total.Equal(q.Subtotal.Sub(q.Discount)) {
			t.Fatalf("total %s != subtotal - discount", q.Total)
		}
	})
}

func TestProperty_BalanceNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		acc := &model.Account{ID: "c", Role: model.RoleCustomer, Balance: centsGen(0, 50000).Draw(t, "initial")}
		spent := acc.TotalSpent
		orders := acc.OrderCount

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				_ = DepositFunds(acc, centsGen(-1000, 120000).Draw(t, "deposit"))
			case 1:
				items := cartGen().Draw(t, "items")
				q := ComputeOrderTotal(items, centsGen(0, 1000).Draw(t, "fee"), acc.IsVIP, false)
				_ = AuthorizeCheckout(acc, Checkout{Quote: q, Tip: centsGen(0, 500).Draw(t, "tip")})
			case 2:
				_ = AdjustBalanceByManager(manager, acc, centsGen(-100000, 100000).Draw(t, "delta"))
			}

			if acc.Balance.IsNegative() {
				t.Fatalf("balance became negative: %s", acc.Balance)
			}
			if acc.TotalSpent.LessThan(spent) || acc.OrderCount < orders {
				t.Fatalf("spend counters decreased")
			}
			spent, orders = acc.TotalSpent, acc.OrderCount
		}
	})
}

func TestProperty_WarningTransitions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		acc := &model.Account{ID: "c", Role: model.RoleCustomer, IsVIP: rapid.Bool().Draw(t, "vip")}

		n := rapid.IntRange(1, 10).Draw(t, "warnings")
		for i := 0; i < n; i++ {
			wasVIP := acc.IsVIP
			tr, err := IssueWarning(manager, acc, "strike", now)
			if err != nil {
				t.Fatalf("issue warning: %v", err)
			}
			if wasVIP && tr == TransitionBlacklisted {
				t.Fatalf("vip went straight to blacklist")
			}
			if tr == TransitionDowngraded && len(acc.Warnings) != 0 {
				t.Fatalf("downgrade kept %d warnings", len(acc.Warnings))
			}
			if acc.IsVIP && len(acc.Warnings) >= 2 {
				t.Fatalf("vip with %d warnings", len(acc.Warnings))
			}
			if !acc.IsVIP && !acc.IsBlacklisted && len(acc.Warnings) >= 3 {
				t.Fatalf("regular customer with %d warnings not blacklisted", len(acc.Warnings))
			}
		}
	})
}
