package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/restaurant-system/internal/model"
)

func TestWithRetry(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{time.Millisecond, time.Millisecond}}
	serialization := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	business := errors.New("insufficient balance")

	t.Run("retries serialization failure", func(t *testing.T) {
		calls := 0
		err := r.withRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("commit: %w", serialization)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after last delay", func(t *testing.T) {
		calls := 0
		err := r.withRetry(context.Background(), func() error {
			calls++
			return serialization
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("business error is not retried", func(t *testing.T) {
		calls := 0
		err := r.withRetry(context.Background(), func() error {
			calls++
			return business
		})
		assert.ErrorIs(t, err, business)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		slow := &PostgresRepository{delays: []time.Duration{time.Hour}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := slow.withRetry(ctx, func() error { return serialization })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAccountFilter(t *testing.T) {
	tests := []struct {
		field   model.AccountField
		value   string
		column  string
		arg     any
		wantErr bool
	}{
		{field: model.AccountFieldRole, value: "chef", column: "role", arg: "chef"},
		{field: model.AccountFieldApproved, value: "false", column: "approved", arg: false},
		{field: model.AccountFieldVIP, value: "true", column: "is_vip", arg: true},
		{field: model.AccountFieldBlacklisted, value: "1", column: "is_blacklisted", arg: true},
		{field: model.AccountFieldRole, value: "admin", wantErr: true},
		{field: model.AccountFieldVIP, value: "yes please", wantErr: true},
		{field: "password_hash", value: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.field)+"="+tt.value, func(t *testing.T) {
			column, arg, err := accountFilter(tt.field, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFieldValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.column, column)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.CheckViolation}))
	assert.False(t, isUniqueViolation(errors.New("unique")))
}

// newIntegrationRepository подключается к БД из TEST_DATABASE_URI или пропускает тест.
func newIntegrationRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	r, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func createTestCustomer(t *testing.T, r *PostgresRepository) *model.Account {
	t.Helper()

	acc := &model.Account{
		ID:       uuid.NewString(),
		Email:    uuid.NewString() + "@example.com",
		Name:     "Test",
		Role:     model.RoleCustomer,
		Approved: true,
	}
	require.NoError(t, r.CreateAccount(context.Background(), acc, "hash"))
	return acc
}

func TestIntegration_SettleDepositCreditsOnce(t *testing.T) {
	r := newIntegrationRepository(t)
	ctx := context.Background()
	acc := createTestCustomer(t, r)

	dep := &model.Deposit{
		ID:         uuid.NewString(),
		CustomerID: acc.ID,
		Amount:     decimal.RequireFromString("12.50"),
		CardLast4:  "1111",
		Status:     model.DepositStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	_, existed, err := r.CreateDeposit(ctx, dep)
	require.NoError(t, err)
	assert.False(t, existed)

	credit := func(a *model.Account) (model.DepositStatus, error) {
		a.Balance = a.Balance.Add(dep.Amount)
		return model.DepositStatusCredited, nil
	}
	for range 2 {
		settled, err := r.SettleDeposit(ctx, dep.ID, model.DepositStatusCredited, credit)
		require.NoError(t, err)
		assert.Equal(t, model.DepositStatusCredited, settled.Status)
	}

	got, err := r.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("12.50")), "balance = %s", got.Balance)

	other := createTestCustomer(t, r)
	replay := *dep
	replay.CustomerID = other.ID
	_, _, err = r.CreateDeposit(ctx, &replay)
	assert.ErrorIs(t, err, ErrDepositOwnedByAnother)
}

func TestIntegration_SettleDepositDeclinedByCallback(t *testing.T) {
	r := newIntegrationRepository(t)
	ctx := context.Background()
	acc := createTestCustomer(t, r)

	dep := &model.Deposit{
		ID:         uuid.NewString(),
		CustomerID: acc.ID,
		Amount:     decimal.RequireFromString("40"),
		CardLast4:  "1111",
		Status:     model.DepositStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	_, _, err := r.CreateDeposit(ctx, dep)
	require.NoError(t, err)

	settled, err := r.SettleDeposit(ctx, dep.ID, model.DepositStatusCredited, func(a *model.Account) (model.DepositStatus, error) {
		a.Balance = a.Balance.Add(dep.Amount)
		return model.DepositStatusDeclined, nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.DepositStatusDeclined, settled.Status)

	got, err := r.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero(), "balance = %s", got.Balance)
	assert.Equal(t, 1, got.Version)
}

func TestIntegration_ConcurrentUpdatesSerialize(t *testing.T) {
	r := newIntegrationRepository(t)
	ctx := context.Background()
	acc := createTestCustomer(t, r)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.UpdateAccount(ctx, acc.ID, func(a *model.Account) error {
				a.Balance = a.Balance.Add(decimal.NewFromInt(1))
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	got, err := r.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(workers)), "balance = %s", got.Balance)
	assert.Equal(t, 1+workers, got.Version)
}
