package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type AmountType string

const (
	AmountFixed       AmountType = "fixed"
	AmountFree        AmountType = "free"
	AmountCustom      AmountType = "custom"
	AmountSeatBased   AmountType = "seat_based"
	AmountMeteredUnit AmountType = "metered_unit"
)

// Amount is the variant part of a Price. Each AmountType has exactly one
// implementation and carries only the fields valid for it.
type Amount interface {
	AmountType() AmountType
	isAmount()
}

type FixedAmount struct {
	PriceCurrency string `json:"priceCurrency"`
	PriceAmount   int64  `json:"priceAmount"`
}

type FreeAmount struct{}

type CustomAmount struct {
	PriceCurrency string `json:"priceCurrency"`
	MinimumAmount *int64 `json:"minimumAmount"`
	MaximumAmount *int64 `json:"maximumAmount"`
	PresetAmount  *int64 `json:"presetAmount"`
}

type SeatTier struct {
	MinSeats     int64  `json:"minSeats"`
	MaxSeats     *int64 `json:"maxSeats"`
	PricePerSeat int64  `json:"pricePerSeat"`
}

type SeatBasedAmount struct {
	PriceCurrency string     `json:"priceCurrency"`
	SeatTiers     []SeatTier `json:"seatTiers"`
}

type MeteredUnitAmount struct {
	PriceCurrency string          `json:"priceCurrency"`
	UnitAmount    decimal.Decimal `json:"unitAmount"`
	CapAmount     *int64          `json:"capAmount"`
	MeterID       string          `json:"meterId"`
	MeterName     string          `json:"meterName"`
}

func (FixedAmount) AmountType() AmountType       { return AmountFixed }
func (FreeAmount) AmountType() AmountType        { return AmountFree }
func (CustomAmount) AmountType() AmountType      { return AmountCustom }
func (SeatBasedAmount) AmountType() AmountType   { return AmountSeatBased }
func (MeteredUnitAmount) AmountType() AmountType { return AmountMeteredUnit }

func (FixedAmount) isAmount()       {}
func (FreeAmount) isAmount()        {}
func (CustomAmount) isAmount()      {}
func (SeatBasedAmount) isAmount()   {}
func (MeteredUnitAmount) isAmount() {}

// Price is one purchasable price of a Product.
type Price struct {
	ID         string
	ProductID  string
	IsArchived bool
	// RecurringInterval is nil for prices of one-time products.
	RecurringInterval *string
	CreatedAt         *string
	ModifiedAt        *string
	Amount            Amount
}

type priceHeader struct {
	ID                string     `json:"id"`
	ProductID         string     `json:"productId"`
	AmountType        AmountType `json:"amountType"`
	IsArchived        bool       `json:"isArchived"`
	RecurringInterval *string    `json:"recurringInterval,omitempty"`
	CreatedAt         *string    `json:"createdAt"`
	ModifiedAt        *string    `json:"modifiedAt"`
}

var errNoAmount = errors.New("price has no amount variant")

// MarshalJSON writes the common price fields plus the fields of the selected
// amount variant, flat, keyed by amountType.
func (p Price) MarshalJSON() ([]byte, error) {
	if p.Amount == nil {
		return nil, errNoAmount
	}

	fields := map[string]json.RawMessage{}
	variant, err := json.Marshal(p.Amount)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(variant, &fields); err != nil {
		return nil, err
	}

	header, err := json.Marshal(priceHeader{
		ID:                p.ID,
		ProductID:         p.ProductID,
		AmountType:        p.Amount.AmountType(),
		IsArchived:        p.IsArchived,
		RecurringInterval: p.RecurringInterval,
		CreatedAt:         p.CreatedAt,
		ModifiedAt:        p.ModifiedAt,
	})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(header, &fields); err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var header priceHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}

	amount, err := NewAmount(header.AmountType)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, amount); err != nil {
		return fmt.Errorf("decode %s price: %w", header.AmountType, err)
	}

	*p = Price{
		ID:                header.ID,
		ProductID:         header.ProductID,
		IsArchived:        header.IsArchived,
		RecurringInterval: header.RecurringInterval,
		CreatedAt:         header.CreatedAt,
		ModifiedAt:        header.ModifiedAt,
		Amount:            derefAmount(amount),
	}
	return nil
}

// NewAmount returns a pointer to the zero variant for t.
func NewAmount(t AmountType) (any, error) {
	switch t {
	case AmountFixed:
		return &FixedAmount{}, nil
	case AmountFree:
		return &FreeAmount{}, nil
	case AmountCustom:
		return &CustomAmount{}, nil
	case AmountSeatBased:
		return &SeatBasedAmount{}, nil
	case AmountMeteredUnit:
		return &MeteredUnitAmount{}, nil
	default:
		return nil, fmt.Errorf("unknown price amount type %q", t)
	}
}

func derefAmount(v any) Amount {
	switch a := v.(type) {
	case *FixedAmount:
		return *a
	case *FreeAmount:
		return *a
	case *CustomAmount:
		return *a
	case *SeatBasedAmount:
		return *a
	case *MeteredUnitAmount:
		return *a
	}
	return nil
}
