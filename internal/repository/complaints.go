package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

const complaintColumns = `id, author_id, target_id, COALESCE(order_id, ''), kind, description, status,
	COALESCE(resolved_by, ''), created_at`

func scanComplaint(row pgx.Row) (*model.Complaint, error) {
	var (
		c      model.Complaint
		kind   string
		status string
	)
	err := row.Scan(&c.ID, &c.AuthorID, &c.TargetID, &c.OrderID, &kind, &c.Description, &status, &c.ResolvedBy, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Kind = model.FeedbackKind(kind)
	c.Status = model.ComplaintStatus(status)
	return &c, nil
}

// CreateComplaint сохраняет новое обращение.
func (r *PostgresRepository) CreateComplaint(ctx context.Context, c *model.Complaint) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO complaints (id, author_id, target_id, order_id, kind, description, status, created_at)
			VALUES ($1, $2, $3, NULLIF($4::text, ''), $5, $6, $7, $8)
		`, c.ID, c.AuthorID, c.TargetID, c.OrderID, string(c.Kind), c.Description, string(c.Status), c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert complaint: %w", err)
		}
		return nil
	})
}

// GetComplaintsByStatus возвращает обращения в указанном статусе, старые первыми.
func (r *PostgresRepository) GetComplaintsByStatus(ctx context.Context, status model.ComplaintStatus) ([]model.Complaint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE status = $1
		ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query complaints: %w", err)
	}
	defer rows.Close()

	var complaints []model.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		complaints = append(complaints, *c)
	}
	return complaints, rows.Err()
}

// CountComplaintsByStatus возвращает количество обращений в указанном статусе.
func (r *PostgresRepository) CountComplaintsByStatus(ctx context.Context, status model.ComplaintStatus) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM complaints WHERE status = $1`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return n, nil
}

// ResolveComplaint блокирует открытое обращение и учётную запись адресата, применяет fn
// и сохраняет обе сущности в одной транзакции.
func (r *PostgresRepository) ResolveComplaint(ctx context.Context, id string, fn func(c *model.Complaint, target *model.Account) error) (*model.Complaint, *model.Account, error) {
	var (
		resolved *model.Complaint
		account  *model.Account
	)

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		c, err := scanComplaint(tx.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrComplaintNotFound
			}
			return fmt.Errorf("lock complaint: %w", err)
		}
		if c.Status != model.ComplaintStatusOpen {
			return ErrComplaintResolved
		}

		target, err := lockAccount(ctx, tx, c.TargetID)
		if err != nil {
			return err
		}

		if err := fn(c, target); err != nil {
			return err
		}

		if err := saveAccount(ctx, tx, target); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE complaints SET status = $2, resolved_by = NULLIF($3::text, ''), resolved_at = NOW()
			WHERE id = $1
		`, c.ID, string(c.Status), c.ResolvedBy)
		if err != nil {
			return fmt.Errorf("update complaint: %w", err)
		}

		resolved, account = c, target
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resolved, account, nil
}
