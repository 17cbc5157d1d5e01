package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

const orderColumns = `id, customer_id, items, subtotal, discount, delivery_fee, tip, total, free_delivery,
	status, COALESCE(chef_id, ''), COALESCE(delivery_id, ''), chef_rating, delivery_rating, created_at, updated_at`

type orderItemRecord struct {
	DishID    string          `json:"dishId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func encodeItems(items []model.OrderItem) ([]byte, error) {
	records := make([]orderItemRecord, 0, len(items))
	for _, it := range items {
		records = append(records, orderItemRecord(it))
	}
	return json.Marshal(records)
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		items  []byte
		status string
	)

	err := row.Scan(
		&o.ID, &o.CustomerID, &items,
		&o.Quote.Subtotal, &o.Quote.Discount, &o.Quote.DeliveryFee, &o.Tip, &o.Quote.Total, &o.FreeDelivery,
		&status, &o.ChefID, &o.DeliveryID, &o.ChefRating, &o.DeliveryRating, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)

	var records []orderItemRecord
	if err := json.Unmarshal(items, &records); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	for _, rec := range records {
		o.Items = append(o.Items, model.OrderItem(rec))
	}
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// PlaceOrder блокирует счёт клиента и в одной транзакции сохраняет изменённый счёт
// вместе с заказом, который построила fn. Ошибка fn откатывает транзакцию.
func (r *PostgresRepository) PlaceOrder(ctx context.Context, customerID string, fn func(acc *model.Account) (*model.Order, error)) (*model.Order, *model.Account, error) {
	var (
		placed  *model.Order
		account *model.Account
	)

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, customerID)
		if err != nil {
			return err
		}

		order, err := fn(acc)
		if err != nil {
			return err
		}

		if err := saveAccount(ctx, tx, acc); err != nil {
			return err
		}

		items, err := encodeItems(order.Items)
		if err != nil {
			return fmt.Errorf("encode items: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO orders (id, customer_id, items, subtotal, discount, delivery_fee, tip, total, free_delivery, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		`, order.ID, order.CustomerID, items, order.Quote.Subtotal, order.Quote.Discount, order.Quote.DeliveryFee,
			order.Tip, order.Quote.Total, order.FreeDelivery, string(order.Status), order.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		order.UpdatedAt = order.CreatedAt
		placed, account = order, acc
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return placed, account, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return o, nil
}

// GetOrdersByCustomer возвращает заказы клиента, новые первыми.
func (r *PostgresRepository) GetOrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	return orders, nil
}

// GetOrdersByStatus возвращает заказы в указанном статусе, старые первыми.
func (r *PostgresRepository) GetOrdersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	return orders, nil
}

// CountOrdersByStatus возвращает количество заказов в любом из перечисленных статусов.
func (r *PostgresRepository) CountOrdersByStatus(ctx context.Context, statuses ...model.OrderStatus) (int, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE status = ANY($1)`, values).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// UpdateOrder блокирует заказ, применяет к нему fn и сохраняет статус и назначенных сотрудников.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, id string, fn func(o *model.Order) error) (*model.Order, error) {
	var updated *model.Order

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		if err := saveOrder(ctx, tx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RateOrder блокирует заказ, применяет к нему fn и в той же транзакции начисляет
// выставленные оценки повару и курьеру.
func (r *PostgresRepository) RateOrder(ctx context.Context, id string, fn func(o *model.Order) error) (*model.Order, error) {
	var rated *model.Order

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		if err := saveOrder(ctx, tx, o); err != nil {
			return err
		}

		for _, target := range []struct {
			employeeID string
			rating     int
		}{
			{o.ChefID, o.ChefRating},
			{o.DeliveryID, o.DeliveryRating},
		} {
			if target.employeeID == "" || target.rating == 0 {
				continue
			}
			acc, err := lockAccount(ctx, tx, target.employeeID)
			if err != nil {
				return err
			}
			acc.RatingSum += target.rating
			acc.RatingCount++
			if err := saveAccount(ctx, tx, acc); err != nil {
				return err
			}
		}

		rated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rated, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, id string) (*model.Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

func saveOrder(ctx context.Context, tx pgx.Tx, o *model.Order) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET
			status = $2,
			chef_id = NULLIF($3::text, ''),
			delivery_id = NULLIF($4::text, ''),
			chef_rating = $5,
			delivery_rating = $6,
			updated_at = $7
		WHERE id = $1
	`, o.ID, string(o.Status), o.ChefID, o.DeliveryID, o.ChefRating, o.DeliveryRating, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}
