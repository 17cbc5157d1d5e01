package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

const accountColumns = `id, email, name, role, approved, balance, total_spent, order_count, warnings,
	is_vip, is_blacklisted, free_deliveries_earned, free_deliveries_used,
	rating_sum, rating_count, compliment_count, complaint_count, version, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		acc      model.Account
		role     string
		warnings []byte
	)

	err := row.Scan(
		&acc.ID, &acc.Email, &acc.Name, &role, &acc.Approved,
		&acc.Balance, &acc.TotalSpent, &acc.OrderCount, &warnings,
		&acc.IsVIP, &acc.IsBlacklisted, &acc.FreeDeliveriesEarned, &acc.FreeDeliveriesUsed,
		&acc.RatingSum, &acc.RatingCount, &acc.ComplimentCount, &acc.ComplaintCount,
		&acc.Version, &acc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if acc.Role, err = model.ParseRole(role); err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &acc.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	return &acc, nil
}

func collectAccounts(rows pgx.Rows) ([]model.Account, error) {
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// CreateAccount сохраняет новую учётную запись. Занятый email приводит к ErrUserExists.
func (r *PostgresRepository) CreateAccount(ctx context.Context, acc *model.Account, passwordHash string) error {
	warnings, err := json.Marshal(nonNilWarnings(acc.Warnings))
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	err = r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO accounts (id, email, name, role, approved, password_hash, balance, total_spent, warnings, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		`, acc.ID, acc.Email, acc.Name, acc.Role.String(), acc.Approved, passwordHash,
			acc.Balance, acc.TotalSpent, warnings)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	acc.Version = 1
	return nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	acc, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return acc, nil
}

// GetCredentials возвращает учётную запись и хеш пароля по email.
func (r *PostgresRepository) GetCredentials(ctx context.Context, email string) (*model.Account, string, error) {
	var hash string
	acc, err := scanAccount(rowFunc(func(dest ...any) error {
		return r.pool.QueryRow(ctx, `SELECT `+accountColumns+`, password_hash FROM accounts WHERE email = $1`, email).
			Scan(append(dest, &hash)...)
	}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrAccountNotFound
		}
		return nil, "", fmt.Errorf("select credentials: %w", err)
	}
	return acc, hash, nil
}

// rowFunc позволяет дочитать дополнительные колонки после полей учётной записи.
type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

// UpdateAccount блокирует учётную запись, применяет к ней fn и сохраняет результат
// с увеличением версии. Ошибка fn откатывает транзакцию без изменений.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, id string, fn func(acc *model.Account) error) (*model.Account, error) {
	var updated *model.Account

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(acc); err != nil {
			return err
		}
		if err := saveAccount(ctx, tx, acc); err != nil {
			return err
		}
		updated = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// QueryAccountsByField возвращает учётные записи, у которых поле равно значению.
func (r *PostgresRepository) QueryAccountsByField(ctx context.Context, field model.AccountField, value string) ([]model.Account, error) {
	column, arg, err := accountFilter(field, value)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1 ORDER BY created_at`, arg)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}

	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}
	return accounts, nil
}

// CountAccountsByField возвращает количество учётных записей, у которых поле равно значению.
func (r *PostgresRepository) CountAccountsByField(ctx context.Context, field model.AccountField, value string) (int, error) {
	column, arg, err := accountFilter(field, value)
	if err != nil {
		return 0, err
	}

	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE `+column+` = $1`, arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// accountFilter сопоставляет полю колонку таблицы и приводит значение к её типу.
// Имя колонки берётся только из фиксированного набора.
func accountFilter(field model.AccountField, value string) (string, any, error) {
	switch field {
	case model.AccountFieldRole:
		role, err := model.ParseRole(value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidFieldValue, err)
		}
		return "role", role.String(), nil
	case model.AccountFieldApproved, model.AccountFieldVIP, model.AccountFieldBlacklisted:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidFieldValue, value)
		}
		column := map[model.AccountField]string{
			model.AccountFieldApproved:    "approved",
			model.AccountFieldVIP:         "is_vip",
			model.AccountFieldBlacklisted: "is_blacklisted",
		}[field]
		return column, b, nil
	}
	return "", nil, fmt.Errorf("%w: unsupported field %q", ErrInvalidFieldValue, field)
}

func lockAccount(ctx context.Context, tx pgx.Tx, id string) (*model.Account, error) {
	acc, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return acc, nil
}

// saveAccount записывает изменяемые поля, только если версия не изменилась с момента чтения.
func saveAccount(ctx context.Context, tx pgx.Tx, acc *model.Account) error {
	warnings, err := json.Marshal(nonNilWarnings(acc.Warnings))
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET
			role = $3, approved = $4, balance = $5, total_spent = $6, order_count = $7, warnings = $8,
			is_vip = $9, is_blacklisted = $10, free_deliveries_earned = $11, free_deliveries_used = $12,
			rating_sum = $13, rating_count = $14, compliment_count = $15, complaint_count = $16,
			version = version + 1
		WHERE id = $1 AND version = $2
	`, acc.ID, acc.Version, acc.Role.String(), acc.Approved, acc.Balance, acc.TotalSpent, acc.OrderCount, warnings,
		acc.IsVIP, acc.IsBlacklisted, acc.FreeDeliveriesEarned, acc.FreeDeliveriesUsed,
		acc.RatingSum, acc.RatingCount, acc.ComplimentCount, acc.ComplaintCount)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	acc.Version++
	return nil
}

func nonNilWarnings(w []model.Warning) []model.Warning {
	if w == nil {
		return []model.Warning{}
	}
	return w
}
