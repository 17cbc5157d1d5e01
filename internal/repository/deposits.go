package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

const depositColumns = `id, customer_id, amount, card_last4, status, created_at`

func scanDeposit(row pgx.Row) (*model.Deposit, error) {
	var (
		d      model.Deposit
		status string
	)
	if err := row.Scan(&d.ID, &d.CustomerID, &d.Amount, &d.CardLast4, &status, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Status = model.DepositStatus(status)
	return &d, nil
}

// CreateDeposit регистрирует пополнение. Если пополнение с таким ключом уже есть,
// возвращает его и existed = true. Ключ другого клиента приводит к ErrDepositOwnedByAnother.
func (r *PostgresRepository) CreateDeposit(ctx context.Context, d *model.Deposit) (*model.Deposit, bool, error) {
	var (
		stored  *model.Deposit
		existed bool
	)

	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO deposits (id, customer_id, amount, card_last4, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (id) DO NOTHING
		`, d.ID, d.CustomerID, d.Amount, d.CardLast4, string(d.Status), d.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert deposit: %w", err)
		}

		existed = tag.RowsAffected() == 0
		if !existed {
			stored = d
			return nil
		}

		stored, err = scanDeposit(r.pool.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1`, d.ID))
		if err != nil {
			return fmt.Errorf("select deposit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if existed && stored.CustomerID != d.CustomerID {
		return nil, true, ErrDepositOwnedByAnother
	}
	return stored, existed, nil
}

// SettleDeposit переводит ожидающее пополнение в итоговый статус. Для зачисления
// в той же транзакции блокируется счёт клиента и вызывается fn, которая возвращает
// итоговый статус: при DECLINED счёт не сохраняется, пополнение отклоняется.
// Уже завершённое пополнение возвращается без изменений, поэтому повторный вызов не зачисляет сумму дважды.
func (r *PostgresRepository) SettleDeposit(ctx context.Context, id string, status model.DepositStatus, fn func(acc *model.Account) (model.DepositStatus, error)) (*model.Deposit, error) {
	var settled *model.Deposit

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		d, err := scanDeposit(tx.QueryRow(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrDepositNotFound
			}
			return fmt.Errorf("lock deposit: %w", err)
		}

		if d.Status != model.DepositStatusPending || status == model.DepositStatusPending {
			settled = d
			return nil
		}

		final := status
		if status == model.DepositStatusCredited {
			acc, err := lockAccount(ctx, tx, d.CustomerID)
			if err != nil {
				return err
			}
			final, err = fn(acc)
			if err != nil {
				return err
			}
			if final == model.DepositStatusCredited {
				if err := saveAccount(ctx, tx, acc); err != nil {
					return err
				}
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE deposits SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(final)); err != nil {
			return fmt.Errorf("update deposit: %w", err)
		}

		d.Status = final
		settled = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// GetPendingDeposits возвращает ожидающие пополнения, старые первыми.
func (r *PostgresRepository) GetPendingDeposits(ctx context.Context, limit int) ([]model.Deposit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+depositColumns+`
		FROM deposits
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, string(model.DepositStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending deposits: %w", err)
	}
	return collectDeposits(rows)
}

// GetDepositsByCustomer возвращает пополнения клиента, новые первыми.
func (r *PostgresRepository) GetDepositsByCustomer(ctx context.Context, customerID string) ([]model.Deposit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+depositColumns+`
		FROM deposits
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query deposits: %w", err)
	}
	return collectDeposits(rows)
}

func collectDeposits(rows pgx.Rows) ([]model.Deposit, error) {
	defer rows.Close()

	var deposits []model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		deposits = append(deposits, *d)
	}
	return deposits, rows.Err()
}
