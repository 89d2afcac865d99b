package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"polar-billing-bridge/internal/config"
	"polar-billing-bridge/internal/polar"
)

// PolarClient is the subset of the Polar REST API the bridge uses.
type PolarClient interface {
	ListProducts(ctx context.Context, page, limit int, includeArchived bool) (*polar.ListResource[polar.Product], error)
	CreateProduct(ctx context.Context, req *ProductCreate) (*polar.Product, error)
	ArchiveProduct(ctx context.Context, productID string) (*polar.Product, error)
	CreateCustomer(ctx context.Context, req *CustomerCreate) (*polar.Customer, error)
	CreateCheckout(ctx context.Context, req *CheckoutCreate) (*polar.Checkout, error)
	CreateCustomerSession(ctx context.Context, customerID string) (*polar.CustomerSession, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, req *SubscriptionUpdate) (*polar.Subscription, error)
}

type ProductPriceCreate struct {
	AmountType    string `json:"amount_type"`
	PriceCurrency string `json:"price_currency,omitempty"`
	PriceAmount   *int64 `json:"price_amount,omitempty"`
}

type ProductCreate struct {
	Name              string               `json:"name"`
	Description       *string              `json:"description,omitempty"`
	RecurringInterval *string              `json:"recurring_interval,omitempty"`
	Prices            []ProductPriceCreate `json:"prices"`
	Metadata          map[string]any       `json:"metadata,omitempty"`
}

type CustomerCreate struct {
	Email      string         `json:"email"`
	Name       *string        `json:"name,omitempty"`
	ExternalID *string        `json:"external_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type CheckoutCreate struct {
	Products           []string       `json:"products"`
	CustomerID         *string        `json:"customer_id,omitempty"`
	SubscriptionID     *string        `json:"subscription_id,omitempty"`
	SuccessURL         *string        `json:"success_url,omitempty"`
	EmbedOrigin        *string        `json:"embed_origin,omitempty"`
	AllowTrial         *bool          `json:"allow_trial,omitempty"`
	TrialInterval      *string        `json:"trial_interval,omitempty"`
	TrialIntervalCount *int           `json:"trial_interval_count,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type SubscriptionUpdate struct {
	ProductID         *string `json:"product_id,omitempty"`
	CancelAtPeriodEnd *bool   `json:"cancel_at_period_end,omitempty"`
	Revoke            *bool   `json:"revoke,omitempty"`
}

// APIError is a non-2xx answer from Polar.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("polar error %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a Polar 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type polarClientImpl struct {
	httpClient  *http.Client
	baseApiURL  string
	accessToken string
}

func NewPolarClient(polarCfg *config.Polar) PolarClient {
	return &polarClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:  strings.TrimRight(polarCfg.APIURL(), "/"),
		accessToken: polarCfg.OrganizationToken,
	}
}

func (c *polarClientImpl) ListProducts(ctx context.Context, page, limit int, includeArchived bool) (*polar.ListResource[polar.Product], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if !includeArchived {
		q.Set("is_archived", "false")
	}

	var out polar.ListResource[polar.Product]
	if err := c.do(ctx, http.MethodGet, "/v1/products/?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &out, nil
}

func (c *polarClientImpl) CreateProduct(ctx context.Context, req *ProductCreate) (*polar.Product, error) {
	var out polar.Product
	if err := c.do(ctx, http.MethodPost, "/v1/products/", req, &out); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &out, nil
}

func (c *polarClientImpl) ArchiveProduct(ctx context.Context, productID string) (*polar.Product, error) {
	var out polar.Product
	body := map[string]bool{"is_archived": true}
	if err := c.do(ctx, http.MethodPatch, "/v1/products/"+url.PathEscape(productID), body, &out); err != nil {
		return nil, fmt.Errorf("archive product %s: %w", productID, err)
	}
	return &out, nil
}

func (c *polarClientImpl) CreateCustomer(ctx context.Context, req *CustomerCreate) (*polar.Customer, error) {
	var out polar.Customer
	if err := c.do(ctx, http.MethodPost, "/v1/customers/", req, &out); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &out, nil
}

func (c *polarClientImpl) CreateCheckout(ctx context.Context, req *CheckoutCreate) (*polar.Checkout, error) {
	var out polar.Checkout
	if err := c.do(ctx, http.MethodPost, "/v1/checkouts/", req, &out); err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	return &out, nil
}

func (c *polarClientImpl) CreateCustomerSession(ctx context.Context, customerID string) (*polar.CustomerSession, error) {
	var out polar.CustomerSession
	body := map[string]string{"customer_id": customerID}
	if err := c.do(ctx, http.MethodPost, "/v1/customer-sessions/", body, &out); err != nil {
		return nil, fmt.Errorf("create customer session: %w", err)
	}
	return &out, nil
}

func (c *polarClientImpl) UpdateSubscription(ctx context.Context, subscriptionID string, req *SubscriptionUpdate) (*polar.Subscription, error) {
	var out polar.Subscription
	if err := c.do(ctx, http.MethodPatch, "/v1/subscriptions/"+url.PathEscape(subscriptionID), req, &out); err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", subscriptionID, err)
	}
	return &out, nil
}

func (c *polarClientImpl) do(ctx context.Context, method, path string, payload any, out any) error {
	if c.accessToken == "" {
		return errors.New("POLAR_ORGANIZATION_TOKEN is not configured")
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode polar response: %w", err)
	}
	return nil
}
