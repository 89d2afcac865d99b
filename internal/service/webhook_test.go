package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/repository"
	"polar-billing-bridge/internal/webhook"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testWebhookSecret = "polar_whs_test_secret"
	freeProductID     = "prod_free"
)

type webhookFixture struct {
	db       *gorm.DB
	svc      WebhookService
	verifier *webhook.Verifier
	notifier *recordingNotifier
	events   repository.WebhookEventRepository
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	db := newTestDB(t)
	verifier, err := webhook.NewVerifier(testWebhookSecret, webhook.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	f := &webhookFixture{
		db:       db,
		verifier: verifier,
		notifier: &recordingNotifier{},
		events:   repository.NewWebhookEventRepository(db),
	}
	f.svc = NewWebhookService(
		db,
		verifier,
		freeProductID,
		f.notifier,
		repository.NewUserRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewProductRepository(db),
		f.events,
	)
	seedUser(t, db, "user_1", "ada@example.com")
	return f
}

// deliver signs body and hands it to the service, returning the delivery id.
func (f *webhookFixture) deliver(t *testing.T, body []byte) (string, error) {
	t.Helper()
	msgID := "msg_" + uuid.NewString()
	return msgID, f.svc.HandleWebhook(context.Background(), f.verifier.SignedHeaders(msgID, fixedNow, body), body)
}

func event(t *testing.T, eventType string, data map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"type": eventType, "data": data})
	require.NoError(t, err)
	return body
}

func customerData(metadata map[string]any) map[string]any {
	return map[string]any{
		"id":              "cust_1",
		"created_at":      "2025-01-10T08:00:00Z",
		"email":           "customer@example.com",
		"organization_id": "org_1",
		"metadata":        metadata,
	}
}

func subscriptionData(id, modifiedAt, status, productID string) map[string]any {
	data := map[string]any{
		"id":                   id,
		"created_at":           "2025-01-15T09:00:00Z",
		"modified_at":          nil,
		"status":               status,
		"current_period_start": "2025-01-15T09:00:00Z",
		"customer_id":          "cust_1",
		"product_id":           productID,
		"price_id":             "price_1",
		"amount":               1250,
		"currency":             "usd",
		"recurring_interval":   "month",
		"cancel_at_period_end": false,
		"metadata":             map[string]any{"userId": "user_1"},
		"customer":             customerData(nil),
	}
	if modifiedAt != "" {
		data["modified_at"] = modifiedAt
	}
	return data
}

func loadSubscription(t *testing.T, db *gorm.DB, externalID string) *model.Subscription {
	t.Helper()
	var sub model.Subscription
	require.NoError(t, db.Where("external_id = ?", externalID).Take(&sub).Error)
	return &sub
}

func countRows(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func TestWebhookRejectsBadSignatureWithoutStoreAccess(t *testing.T) {
	f := newWebhookFixture(t)
	body := event(t, "subscription.created", subscriptionData("sub_123", "", "active", "prod_pro"))

	headers := f.verifier.SignedHeaders("msg_1", fixedNow, body)
	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = ' '

	err := f.svc.HandleWebhook(context.Background(), headers, tampered)
	require.ErrorIs(t, err, webhook.ErrInvalidSignature)

	err = f.svc.HandleWebhook(context.Background(), http.Header{}, body)
	require.ErrorIs(t, err, webhook.ErrInvalidSignature)

	assert.Zero(t, countRows(t, f.db, &model.Subscription{}))
	assert.Zero(t, countRows(t, f.db, &model.Customer{}))
	assert.Zero(t, countRows(t, f.db, &model.WebhookEvent{}))
	assert.Empty(t, f.notifier.successes)
}

func TestWebhookSubscriptionCreated(t *testing.T) {
	f := newWebhookFixture(t)

	msgID, err := f.deliver(t, event(t, "subscription.created", subscriptionData("sub_123", "", "active", "prod_pro")))
	require.NoError(t, err)

	sub := loadSubscription(t, f.db, "sub_123")
	assert.Equal(t, "user_1", sub.UserID)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Equal(t, "2025-01-15T09:00:00.000Z", sub.CurrentPeriodStart)

	customer, err := repository.NewCustomerRepository(f.db).FindByUserID(context.Background(), "user_1")
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, "cust_1", customer.ExternalID)

	require.Len(t, f.notifier.successes, 1)
	assert.Equal(t, "ada@example.com", f.notifier.successes[0].Email)
	assert.Equal(t, "sub_123", f.notifier.successes[0].SubscriptionID)
	assert.Equal(t, "usd", f.notifier.successes[0].Currency)
	assert.Empty(t, f.notifier.failures)

	logged, err := f.events.Get(context.Background(), msgID)
	require.NoError(t, err)
	assert.Equal(t, "processed", logged.Outcome)
	assert.Equal(t, "subscription.created", logged.EventType)
}

func TestWebhookStaleSubscriptionUpdateIsIgnored(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.deliver(t, event(t, "subscription.created", subscriptionData("sub_123", "2025-01-15T10:00:00Z", "active", "prod_pro")))
	require.NoError(t, err)
	_, err = f.deliver(t, event(t, "subscription.canceled", subscriptionData("sub_123", "2025-01-16T12:00:00Z", "canceled", "prod_pro")))
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionCanceled, loadSubscription(t, f.db, "sub_123").Status)

	_, err = f.deliver(t, event(t, "subscription.updated", subscriptionData("sub_123", "2025-01-14T08:00:00Z", "active", "prod_pro")))
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionCanceled, loadSubscription(t, f.db, "sub_123").Status)
	assert.EqualValues(t, 1, countRows(t, f.db, &model.Subscription{}))
}

func TestWebhookCancellationEmailCarriesPeriodEnd(t *testing.T) {
	f := newWebhookFixture(t)

	data := subscriptionData("sub_123", "2025-01-16T12:00:00Z", "active", "prod_pro")
	data["cancel_at_period_end"] = true
	data["current_period_end"] = "2025-02-15T09:00:00Z"
	_, err := f.deliver(t, event(t, "subscription.canceled", data))
	require.NoError(t, err)

	require.Len(t, f.notifier.successes, 1)
	sent := f.notifier.successes[0]
	assert.True(t, sent.CancelAtPeriodEnd)
	assert.Equal(t, "February 15, 2025", sent.PeriodEnd)
	assert.Equal(t, "active", sent.Status)
}

func TestWebhookFreeProductSendsNoEmail(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.deliver(t, event(t, "subscription.created", subscriptionData("sub_free", "", "active", freeProductID)))
	require.NoError(t, err)

	assert.EqualValues(t, 1, countRows(t, f.db, &model.Subscription{}))
	assert.Empty(t, f.notifier.successes)
	assert.Empty(t, f.notifier.failures)
}

func TestWebhookUserResolvedFromCustomerExternalID(t *testing.T) {
	f := newWebhookFixture(t)

	data := subscriptionData("sub_ext", "", "active", "prod_pro")
	data["metadata"] = map[string]any{}
	customer := customerData(nil)
	customer["external_id"] = "user_1"
	data["customer"] = customer

	_, err := f.deliver(t, event(t, "subscription.created", data))
	require.NoError(t, err)
	assert.Equal(t, "user_1", loadSubscription(t, f.db, "sub_ext").UserID)
}

func TestWebhookUnknownUserTakesFailurePath(t *testing.T) {
	f := newWebhookFixture(t)

	data := subscriptionData("sub_orphan", "", "active", "prod_pro")
	data["metadata"] = map[string]any{"userId": "user_missing"}

	msgID, err := f.deliver(t, event(t, "subscription.created", data))
	require.NoError(t, err, "handler failures are acknowledged")

	assert.Zero(t, countRows(t, f.db, &model.Subscription{}))
	assert.Empty(t, f.notifier.successes)
	require.Len(t, f.notifier.failures, 1)
	assert.Equal(t, "customer@example.com", f.notifier.failures[0].Email)
	assert.Equal(t, "sub_orphan", f.notifier.failures[0].SubscriptionID)

	logged, err := f.events.Get(context.Background(), msgID)
	require.NoError(t, err)
	assert.Equal(t, "failed", logged.Outcome)
	assert.Contains(t, logged.ProcessingError, "user not found")
}

func TestWebhookUnknownEventTypeIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	msgID, err := f.deliver(t, event(t, "checkout.created", map[string]any{"id": "co_1"}))
	require.NoError(t, err)

	logged, err := f.events.Get(context.Background(), msgID)
	require.NoError(t, err)
	assert.Equal(t, "ignored", logged.Outcome)
	assert.Empty(t, f.notifier.successes)
}

func TestWebhookMalformedDataIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	data := subscriptionData("sub_bad", "", "active", "prod_pro")
	delete(data, "current_period_start")

	msgID, err := f.deliver(t, event(t, "subscription.updated", data))
	require.NoError(t, err)

	logged, err := f.events.Get(context.Background(), msgID)
	require.NoError(t, err)
	assert.Equal(t, "failed", logged.Outcome)
	assert.Zero(t, countRows(t, f.db, &model.Subscription{}))
	assert.Len(t, f.notifier.failures, 1)
}

func TestWebhookProductOrderAndGrant(t *testing.T) {
	f := newWebhookFixture(t)

	_, err := f.deliver(t, event(t, "product.created", map[string]any{
		"id":                 "prod_pro",
		"created_at":         "2025-01-01T00:00:00Z",
		"name":               "Pro",
		"is_recurring":       true,
		"recurring_interval": "month",
		"organization_id":    "org_1",
		"prices": []map[string]any{{
			"id":                 "price_1",
			"created_at":         "2025-01-01T00:00:00Z",
			"amount_type":        "fixed",
			"product_id":         "prod_pro",
			"recurring_interval": "month",
			"price_currency":     "usd",
			"price_amount":       1250,
		}},
	}))
	require.NoError(t, err)

	_, err = f.deliver(t, event(t, "customer.created", customerData(map[string]any{"userId": "user_1"})))
	require.NoError(t, err)

	_, err = f.deliver(t, event(t, "order.paid", map[string]any{
		"id":               "ord_1",
		"created_at":       "2025-01-15T09:00:00Z",
		"status":           "paid",
		"paid":             true,
		"amount":           1250,
		"tax_amount":       0,
		"currency":         "usd",
		"billing_reason":   "subscription_create",
		"customer_id":      "cust_1",
		"product_id":       "prod_pro",
		"product_price_id": "price_1",
		"subscription_id":  "sub_123",
	}))
	require.NoError(t, err)

	_, err = f.deliver(t, event(t, "benefit_grant.created", map[string]any{
		"id":          "grant_1",
		"created_at":  "2025-01-15T09:00:00Z",
		"granted_at":  "2025-01-15T09:00:01Z",
		"is_granted":  true,
		"customer_id": "cust_1",
		"benefit_id":  "ben_1",
	}))
	require.NoError(t, err)

	var product model.Product
	require.NoError(t, f.db.Where("external_id = ?", "prod_pro").Take(&product).Error)
	require.Len(t, product.Prices, 1)
	assert.Equal(t, model.AmountFixed, product.Prices[0].Amount.AmountType())

	var order model.Order
	require.NoError(t, f.db.Where("external_id = ?", "ord_1").Take(&order).Error)
	assert.Equal(t, "user_1", order.UserID, "order user resolved through the stored customer")

	var grant model.BenefitGrant
	require.NoError(t, f.db.Where("external_id = ?", "grant_1").Take(&grant).Error)
	assert.Equal(t, "user_1", grant.UserID)
	assert.True(t, grant.IsGranted)

	var logged int64
	require.NoError(t, f.db.Model(&model.WebhookEvent{}).Where("outcome = ?", "processed").Count(&logged).Error)
	assert.EqualValues(t, 4, logged)
}
