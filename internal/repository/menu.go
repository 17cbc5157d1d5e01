package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

// ListDishes возвращает меню. При onlyAvailable скрываются снятые с продажи блюда.
func (r *PostgresRepository) ListDishes(ctx context.Context, onlyAvailable bool) ([]model.Dish, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, price, available
		FROM dishes
		WHERE available OR NOT $1::boolean
		ORDER BY name
	`, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("query dishes: %w", err)
	}
	defer rows.Close()

	var dishes []model.Dish
	for rows.Next() {
		var d model.Dish
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Price, &d.Available); err != nil {
			return nil, fmt.Errorf("scan dish: %w", err)
		}
		dishes = append(dishes, d)
	}
	return dishes, rows.Err()
}

// GetDishes возвращает блюда по идентификаторам. Отсутствующие идентификаторы пропускаются.
func (r *PostgresRepository) GetDishes(ctx context.Context, ids []string) (map[string]model.Dish, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, price, available
		FROM dishes
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query dishes: %w", err)
	}
	defer rows.Close()

	dishes := make(map[string]model.Dish, len(ids))
	for rows.Next() {
		var d model.Dish
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Price, &d.Available); err != nil {
			return nil, fmt.Errorf("scan dish: %w", err)
		}
		dishes[d.ID] = d
	}
	return dishes, rows.Err()
}

// UpsertDish создаёт блюдо или обновляет существующее.
func (r *PostgresRepository) UpsertDish(ctx context.Context, d model.Dish) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO dishes (id, name, description, price, available)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				available = EXCLUDED.available
		`, d.ID, d.Name, d.Description, d.Price, d.Available)
		if err != nil {
			return fmt.Errorf("upsert dish: %w", err)
		}
		return nil
	})
}
