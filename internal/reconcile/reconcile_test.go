package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"polar-billing-bridge/internal/client"
	"polar-billing-bridge/internal/model"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := client.OpenDatabase("sqlite:file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func subscription(externalID, modifiedAt string, status model.SubscriptionStatus) *model.Subscription {
	sub := &model.Subscription{
		Mirror:             model.Mirror{ExternalID: externalID, CreatedAt: strPtr("2025-01-15T09:00:00.000Z")},
		UserID:             "user_456",
		CustomerID:         "cust_123",
		ProductID:          "prod_pro",
		PriceID:            "price_pro_monthly",
		Status:             status,
		CurrentPeriodStart: "2025-01-15T09:00:00.000Z",
	}
	if modifiedAt != "" {
		sub.ModifiedAt = strPtr(modifiedAt)
	}
	return sub
}

func loadSubscription(t *testing.T, db *gorm.DB, externalID string) *model.Subscription {
	t.Helper()
	var sub model.Subscription
	require.NoError(t, db.Where("external_id = ?", externalID).Take(&sub).Error)
	return &sub
}

func TestUpsertStaleScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := New[model.Subscription](db)

	first, err := r.Upsert(ctx, subscription("sub_123", "2025-01-15T10:00:00.000Z", model.SubscriptionActive))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, first.Outcome)
	assert.NotEmpty(t, first.RowID)

	second, err := r.Upsert(ctx, subscription("sub_123", "2025-01-16T12:00:00.000Z", model.SubscriptionCanceled))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, second.Outcome)
	assert.Equal(t, first.RowID, second.RowID)
	assert.Equal(t, model.SubscriptionCanceled, loadSubscription(t, db, "sub_123").Status)

	stale, err := r.Upsert(ctx, subscription("sub_123", "2025-01-14T08:00:00.000Z", model.SubscriptionActive))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, stale.Outcome)
	assert.Equal(t, first.RowID, stale.RowID)

	stored := loadSubscription(t, db, "sub_123")
	assert.Equal(t, model.SubscriptionCanceled, stored.Status)
	assert.Equal(t, "2025-01-16T12:00:00.000Z", *stored.ModifiedAt)

	var count int64
	require.NoError(t, db.Model(&model.Subscription{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertConvergesInEitherOrder(t *testing.T) {
	older := func() *model.Subscription {
		return subscription("sub_conv", "2025-02-01T00:00:00.000Z", model.SubscriptionActive)
	}
	newer := func() *model.Subscription {
		s := subscription("sub_conv", "2025-02-02T00:00:00.000Z", model.SubscriptionPastDue)
		s.CancelAtPeriodEnd = true
		return s
	}

	orders := map[string][]func() *model.Subscription{
		"older first": {older, newer},
		"newer first": {newer, older},
	}

	for name, seq := range orders {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			db := newTestDB(t)
			r := New[model.Subscription](db)

			for _, build := range seq {
				_, err := r.Upsert(ctx, build())
				require.NoError(t, err)
			}

			stored := loadSubscription(t, db, "sub_conv")
			assert.Equal(t, model.SubscriptionPastDue, stored.Status)
			assert.True(t, stored.CancelAtPeriodEnd)
			assert.Equal(t, "2025-02-02T00:00:00.000Z", *stored.ModifiedAt)
		})
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := New[model.Subscription](db)

	first, err := r.Upsert(ctx, subscription("sub_dup", "2025-03-01T00:00:00.000Z", model.SubscriptionActive))
	require.NoError(t, err)
	once := loadSubscription(t, db, "sub_dup")

	again, err := r.Upsert(ctx, subscription("sub_dup", "2025-03-01T00:00:00.000Z", model.SubscriptionActive))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, again.Outcome)
	assert.Equal(t, first.RowID, again.RowID)

	twice := loadSubscription(t, db, "sub_dup")
	assert.Equal(t, once, twice)
}

func TestUpsertNullModifiedAtIsMinimum(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := New[model.Subscription](db)

	_, err := r.Upsert(ctx, subscription("sub_null", "", model.SubscriptionIncomplete))
	require.NoError(t, err)

	res, err := r.Upsert(ctx, subscription("sub_null", "2025-01-01T00:00:00.000Z", model.SubscriptionActive))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	res, err = r.Upsert(ctx, subscription("sub_null", "", model.SubscriptionIncomplete))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)
	assert.Equal(t, model.SubscriptionActive, loadSubscription(t, db, "sub_null").Status)
}

func TestUpdateOnlyRequiresExistingRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := New[model.Subscription](db)

	_, err := r.UpdateOnly(ctx, subscription("sub_missing", "2025-01-01T00:00:00.000Z", model.SubscriptionActive))
	require.ErrorIs(t, err, ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&model.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)

	inserted, err := r.Upsert(ctx, subscription("sub_missing", "2025-01-01T00:00:00.000Z", model.SubscriptionActive))
	require.NoError(t, err)

	updated, err := r.UpdateOnly(ctx, subscription("sub_missing", "2025-01-02T00:00:00.000Z", model.SubscriptionCanceled))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, updated.Outcome)
	assert.Equal(t, inserted.RowID, updated.RowID)
}

func TestUpsertRejectsEmptyExternalID(t *testing.T) {
	r := New[model.Subscription](newTestDB(t))
	_, err := r.Upsert(context.Background(), subscription("", "2025-01-01T00:00:00.000Z", model.SubscriptionActive))
	require.Error(t, err)
}

func TestUpsertConcurrentDeliveriesConverge(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := New[model.Subscription](db)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			modified := fmt.Sprintf("2025-04-01T00:00:%02d.000Z", i)
			_, err := r.Upsert(ctx, subscription("sub_race", modified, model.SubscriptionActive))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, "2025-04-01T00:00:09.000Z", *loadSubscription(t, db, "sub_race").ModifiedAt)
}

func TestUpsertInsertsEveryKind(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	modified := strPtr("2025-01-01T00:00:00.000Z")

	_, err := New[model.Product](db).Upsert(ctx, &model.Product{
		Mirror:         model.Mirror{ExternalID: "prod_1", ModifiedAt: modified},
		Name:           "Pro",
		OrganizationID: "org_1",
		IsRecurring:    true,
		Prices: []model.Price{{
			ID:                "price_1",
			ProductID:         "prod_1",
			RecurringInterval: strPtr("month"),
			Amount:            model.FixedAmount{PriceCurrency: "usd", PriceAmount: 999},
		}},
	})
	require.NoError(t, err)

	_, err = New[model.Order](db).Upsert(ctx, &model.Order{
		Mirror: model.Mirror{ExternalID: "ord_1", ModifiedAt: modified},
		UserID: "user_1", CustomerID: "cust_1", Status: "paid", Amount: 999, Currency: "usd",
	})
	require.NoError(t, err)

	_, err = New[model.Benefit](db).Upsert(ctx, &model.Benefit{
		Mirror:         model.Mirror{ExternalID: "ben_1", ModifiedAt: modified},
		OrganizationID: "org_1", Type: "custom", Description: "Priority support",
	})
	require.NoError(t, err)

	_, err = New[model.BenefitGrant](db).Upsert(ctx, &model.BenefitGrant{
		Mirror: model.Mirror{ExternalID: "grant_1", ModifiedAt: modified},
		UserID: "user_1", CustomerID: "cust_1", BenefitID: "ben_1", IsGranted: true,
	})
	require.NoError(t, err)

	_, err = New[model.Subscription](db).Upsert(ctx, subscription("sub_1", *modified, model.SubscriptionActive))
	require.NoError(t, err)

	var product model.Product
	require.NoError(t, db.Where("external_id = ?", "prod_1").Take(&product).Error)
	require.Len(t, product.Prices, 1)
	assert.Equal(t, model.FixedAmount{PriceCurrency: "usd", PriceAmount: 999}, product.Prices[0].Amount)

	var order model.Order
	require.NoError(t, db.Where("external_id = ?", "ord_1").Take(&order).Error)
	assert.EqualValues(t, 999, order.Amount)

	var benefit model.Benefit
	require.NoError(t, db.Where("external_id = ?", "ben_1").Take(&benefit).Error)
	assert.Equal(t, "Priority support", benefit.Description)

	var grant model.BenefitGrant
	require.NoError(t, db.Where("external_id = ?", "grant_1").Take(&grant).Error)
	assert.True(t, grant.IsGranted)

	loadSubscription(t, db, "sub_1")
}

// failCreates makes the first n inserts on db fail with err and reports how
// many inserts were attempted.
func failCreates(t *testing.T, db *gorm.DB, n int, err error) *int {
	t.Helper()
	attempts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_create", func(tx *gorm.DB) {
		attempts++
		if attempts <= n {
			_ = tx.AddError(err)
		}
	}))
	return &attempts
}

func TestUpsertRetriesDeadlockedInsert(t *testing.T) {
	db := newTestDB(t)
	attempts := failCreates(t, db, 1, &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	r := New[model.Subscription](db)

	res, err := r.Upsert(context.Background(), subscription("sub_deadlock", "2025-04-01T00:00:00.000Z", model.SubscriptionActive))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, res.Outcome)
	assert.Equal(t, 2, *attempts)
	assert.Equal(t, model.SubscriptionActive, loadSubscription(t, db, "sub_deadlock").Status)
}

func TestUpsertGivesUpAfterRepeatedDeadlocks(t *testing.T) {
	db := newTestDB(t)
	attempts := failCreates(t, db, maxAttempts, sqlite3.Error{Code: sqlite3.ErrBusy})
	r := New[model.Subscription](db)

	_, err := r.Upsert(context.Background(), subscription("sub_busy", "2025-04-01T00:00:00.000Z", model.SubscriptionActive))
	require.Error(t, err)
	assert.True(t, isSerializationFailure(err))
	assert.Equal(t, maxAttempts, *attempts)
}

func TestUpsertDoesNotRetryOtherErrors(t *testing.T) {
	db := newTestDB(t)
	attempts := failCreates(t, db, 1, errors.New("disk full"))
	r := New[model.Subscription](db)

	_, err := r.Upsert(context.Background(), subscription("sub_full", "2025-04-01T00:00:00.000Z", model.SubscriptionActive))
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, *attempts)
}

func TestIsSerializationFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait timeout", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1205}), true},
		{"mysql duplicate key", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", fmt.Errorf("lookup: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isSerializationFailure(tc.err))
		})
	}
}
