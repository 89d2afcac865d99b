// Package polar holds the wire shapes of Polar API resources and webhook
// payloads. Field names follow the Polar API (snake_case JSON).
package polar

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Event is the webhook envelope.
type Event struct {
	Type      string          `json:"type"`
	Timestamp *time.Time      `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type Customer struct {
	ID             string         `json:"id" validate:"required"`
	CreatedAt      time.Time      `json:"created_at" validate:"required"`
	ModifiedAt     *time.Time     `json:"modified_at"`
	ExternalID     *string        `json:"external_id"`
	Email          string         `json:"email"`
	Name           *string        `json:"name"`
	OrganizationID string         `json:"organization_id"`
	Metadata       map[string]any `json:"metadata"`
}

type Meter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SeatTier struct {
	MinSeats     int64  `json:"min_seats"`
	MaxSeats     *int64 `json:"max_seats"`
	PricePerSeat int64  `json:"price_per_seat"`
}

type SeatTiers struct {
	Tiers []SeatTier `json:"tiers"`
}

// Price carries the union of all amount type fields; AmountType selects
// which of them are meaningful.
type Price struct {
	ID                string     `json:"id" validate:"required"`
	CreatedAt         time.Time  `json:"created_at" validate:"required"`
	ModifiedAt        *time.Time `json:"modified_at"`
	AmountType        string     `json:"amount_type" validate:"required"`
	IsArchived        bool       `json:"is_archived"`
	ProductID         string     `json:"product_id" validate:"required"`
	Type              string     `json:"type"`
	RecurringInterval *string    `json:"recurring_interval"`

	PriceCurrency string `json:"price_currency"`
	PriceAmount   *int64 `json:"price_amount"`

	MinimumAmount *int64 `json:"minimum_amount"`
	MaximumAmount *int64 `json:"maximum_amount"`
	PresetAmount  *int64 `json:"preset_amount"`

	SeatTiers *SeatTiers `json:"seat_tiers"`

	UnitAmount *decimal.Decimal `json:"unit_amount"`
	CapAmount  *int64           `json:"cap_amount"`
	MeterID    string           `json:"meter_id"`
	Meter      *Meter           `json:"meter"`
}

type Media struct {
	ID                   string    `json:"id"`
	OrganizationID       string    `json:"organization_id"`
	Name                 string    `json:"name"`
	Path                 string    `json:"path"`
	MimeType             string    `json:"mime_type"`
	Size                 int64     `json:"size"`
	StorageVersion       *string   `json:"storage_version"`
	ChecksumEtag         *string   `json:"checksum_etag"`
	ChecksumSHA256Base64 *string   `json:"checksum_sha256_base64"`
	Version              *string   `json:"version"`
	IsUploaded           bool      `json:"is_uploaded"`
	CreatedAt            time.Time `json:"created_at"`
	SizeReadable         string    `json:"size_readable"`
	PublicURL            string    `json:"public_url"`
}

type Benefit struct {
	ID             string         `json:"id" validate:"required"`
	CreatedAt      time.Time      `json:"created_at" validate:"required"`
	ModifiedAt     *time.Time     `json:"modified_at"`
	Type           string         `json:"type" validate:"required"`
	Description    string         `json:"description"`
	Selectable     bool           `json:"selectable"`
	Deletable      bool           `json:"deletable"`
	OrganizationID string         `json:"organization_id" validate:"required"`
	Properties     map[string]any `json:"properties"`
	Metadata       map[string]any `json:"metadata"`
}

type Product struct {
	ID                string         `json:"id" validate:"required"`
	CreatedAt         time.Time      `json:"created_at" validate:"required"`
	ModifiedAt        *time.Time     `json:"modified_at"`
	Name              string         `json:"name" validate:"required"`
	Description       *string        `json:"description"`
	RecurringInterval *string        `json:"recurring_interval"`
	IsRecurring       bool           `json:"is_recurring"`
	IsArchived        bool           `json:"is_archived"`
	OrganizationID    string         `json:"organization_id" validate:"required"`
	Metadata          map[string]any `json:"metadata"`
	Prices            []Price        `json:"prices" validate:"-"`
	Benefits          []Benefit      `json:"benefits" validate:"-"`
	Medias            []Media        `json:"medias" validate:"-"`
}

type Subscription struct {
	ID                          string         `json:"id" validate:"required"`
	CreatedAt                   time.Time      `json:"created_at" validate:"required"`
	ModifiedAt                  *time.Time     `json:"modified_at"`
	Amount                      *int64         `json:"amount"`
	Currency                    *string        `json:"currency"`
	RecurringInterval           *string        `json:"recurring_interval"`
	Status                      string         `json:"status" validate:"required"`
	CurrentPeriodStart          time.Time      `json:"current_period_start" validate:"required"`
	CurrentPeriodEnd            *time.Time     `json:"current_period_end"`
	TrialStart                  *time.Time     `json:"trial_start"`
	TrialEnd                    *time.Time     `json:"trial_end"`
	CancelAtPeriodEnd           bool           `json:"cancel_at_period_end"`
	CanceledAt                  *time.Time     `json:"canceled_at"`
	StartedAt                   *time.Time     `json:"started_at"`
	EndsAt                      *time.Time     `json:"ends_at"`
	EndedAt                     *time.Time     `json:"ended_at"`
	CustomerID                  string         `json:"customer_id" validate:"required"`
	ProductID                   string         `json:"product_id" validate:"required"`
	PriceID                     string         `json:"price_id"`
	DiscountID                  *string        `json:"discount_id"`
	CheckoutID                  *string        `json:"checkout_id"`
	CustomerCancellationReason  *string        `json:"customer_cancellation_reason"`
	CustomerCancellationComment *string        `json:"customer_cancellation_comment"`
	Metadata                    map[string]any `json:"metadata"`
	Customer                    *Customer      `json:"customer" validate:"-"`
	Product                     *Product       `json:"product" validate:"-"`
	Prices                      []Price        `json:"prices" validate:"-"`
}

type Order struct {
	ID             string         `json:"id" validate:"required"`
	CreatedAt      time.Time      `json:"created_at" validate:"required"`
	ModifiedAt     *time.Time     `json:"modified_at"`
	Status         string         `json:"status" validate:"required"`
	Paid           bool           `json:"paid"`
	SubtotalAmount int64          `json:"subtotal_amount"`
	DiscountAmount int64          `json:"discount_amount"`
	NetAmount      int64          `json:"net_amount"`
	Amount         int64          `json:"amount"`
	TaxAmount      int64          `json:"tax_amount"`
	TotalAmount    int64          `json:"total_amount"`
	RefundedAmount int64          `json:"refunded_amount"`
	Currency       string         `json:"currency" validate:"required"`
	BillingReason  string         `json:"billing_reason"`
	CustomerID     string         `json:"customer_id" validate:"required"`
	ProductID      string         `json:"product_id"`
	ProductPriceID string         `json:"product_price_id"`
	SubscriptionID *string        `json:"subscription_id"`
	CheckoutID     *string        `json:"checkout_id"`
	Metadata       map[string]any `json:"metadata"`
	Customer       *Customer      `json:"customer" validate:"-"`
}

type BenefitGrant struct {
	ID             string         `json:"id" validate:"required"`
	CreatedAt      time.Time      `json:"created_at" validate:"required"`
	ModifiedAt     *time.Time     `json:"modified_at"`
	GrantedAt      *time.Time     `json:"granted_at"`
	IsGranted      bool           `json:"is_granted"`
	RevokedAt      *time.Time     `json:"revoked_at"`
	IsRevoked      bool           `json:"is_revoked"`
	SubscriptionID *string        `json:"subscription_id"`
	OrderID        *string        `json:"order_id"`
	CustomerID     string         `json:"customer_id" validate:"required"`
	BenefitID      string         `json:"benefit_id" validate:"required"`
	Properties     map[string]any `json:"properties"`
	Customer       *Customer      `json:"customer" validate:"-"`
}

// ListResource is one page of a Polar list endpoint.
type ListResource[T any] struct {
	Items      []T `json:"items"`
	Pagination struct {
		TotalCount int `json:"total_count"`
		MaxPage    int `json:"max_page"`
	} `json:"pagination"`
}

type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type CustomerSession struct {
	Token             string `json:"token"`
	CustomerPortalURL string `json:"customer_portal_url"`
}
