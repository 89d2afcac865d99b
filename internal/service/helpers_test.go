package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"polar-billing-bridge/internal/client"
	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/notify"
	"polar-billing-bridge/internal/polar"

	"github.com/google/uuid"
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

func seedUser(t *testing.T, db *gorm.DB, id, email string) {
	t.Helper()
	require.NoError(t, db.Create(&model.User{ID: id, Email: email}).Error)
}

var fixedNow = time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type recordingNotifier struct {
	mu        sync.Mutex
	successes []notify.SubscriptionEmail
	failures  []notify.SubscriptionEmail
}

func (n *recordingNotifier) SendSubscriptionSuccessEmail(_ context.Context, e notify.SubscriptionEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, e)
	return nil
}

func (n *recordingNotifier) SendSubscriptionErrorEmail(_ context.Context, e notify.SubscriptionEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, e)
	return nil
}

// fakePolar serves canned upstream responses and records mutations.
type fakePolar struct {
	mu sync.Mutex

	products []polar.Product
	pageSize int

	createdProducts  []*client.ProductCreate
	archived         []string
	createdCustomers []*client.CustomerCreate
	checkouts        []*client.CheckoutCreate
	sessions         []string
	subUpdates       map[string]*client.SubscriptionUpdate

	checkoutURL  string
	subscription *polar.Subscription
}

func (f *fakePolar) ListProducts(_ context.Context, page, limit int, includeArchived bool) (*polar.ListResource[polar.Product], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matching []polar.Product
	for _, p := range f.products {
		if includeArchived || !p.IsArchived {
			matching = append(matching, p)
		}
	}

	size := limit
	if f.pageSize > 0 {
		size = f.pageSize
	}
	out := &polar.ListResource[polar.Product]{}
	out.Pagination.TotalCount = len(matching)
	out.Pagination.MaxPage = (len(matching) + size - 1) / size
	start := (page - 1) * size
	if start < len(matching) {
		end := min(start+size, len(matching))
		out.Items = matching[start:end]
	}
	return out, nil
}

func (f *fakePolar) CreateProduct(_ context.Context, req *client.ProductCreate) (*polar.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdProducts = append(f.createdProducts, req)

	p := polar.Product{
		ID:             "prod_" + uuid.NewString()[:8],
		CreatedAt:      fixedNow,
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: "org_1",
		IsRecurring:    req.RecurringInterval != nil,
	}
	f.products = append(f.products, p)
	return &p, nil
}

func (f *fakePolar) ArchiveProduct(_ context.Context, productID string) (*polar.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, productID)
	for i := range f.products {
		if f.products[i].ID == productID {
			f.products[i].IsArchived = true
			modified := fixedNow.Add(time.Minute)
			f.products[i].ModifiedAt = &modified
			return &f.products[i], nil
		}
	}
	return nil, &client.APIError{StatusCode: 404}
}

func (f *fakePolar) CreateCustomer(_ context.Context, req *client.CustomerCreate) (*polar.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCustomers = append(f.createdCustomers, req)
	return &polar.Customer{
		ID:         "cust_new",
		CreatedAt:  fixedNow,
		Email:      req.Email,
		ExternalID: req.ExternalID,
		Metadata:   req.Metadata,
	}, nil
}

func (f *fakePolar) CreateCheckout(_ context.Context, req *client.CheckoutCreate) (*polar.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, req)
	return &polar.Checkout{ID: "co_1", URL: f.checkoutURL}, nil
}

func (f *fakePolar) CreateCustomerSession(_ context.Context, customerID string) (*polar.CustomerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, customerID)
	return &polar.CustomerSession{Token: "tok", CustomerPortalURL: "https://polar.sh/portal/" + customerID}, nil
}

func (f *fakePolar) UpdateSubscription(_ context.Context, subscriptionID string, req *client.SubscriptionUpdate) (*polar.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subUpdates == nil {
		f.subUpdates = map[string]*client.SubscriptionUpdate{}
	}
	f.subUpdates[subscriptionID] = req
	if f.subscription == nil {
		return nil, &client.APIError{StatusCode: 404}
	}
	sub := *f.subscription
	return &sub, nil
}
