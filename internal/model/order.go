package model

import "gorm.io/datatypes"

type Order struct {
	Mirror
	UserID         string            `gorm:"size:128;index;not null" json:"userId" validate:"required"`
	CustomerID     string            `gorm:"size:128;index;not null" json:"customerId" validate:"required"`
	ProductID      string            `gorm:"size:128;index" json:"productId"`
	ProductPriceID string            `gorm:"size:128" json:"productPriceId"`
	SubscriptionID *string           `gorm:"size:128;index" json:"subscriptionId"`
	CheckoutID     *string           `gorm:"size:128" json:"checkoutId"`
	Status         string            `gorm:"size:32;not null" json:"status" validate:"required"`
	Paid           bool              `gorm:"not null" json:"paid"`
	Amount         int64             `gorm:"not null" json:"amount"`
	TaxAmount      int64             `gorm:"not null" json:"taxAmount"`
	RefundedAmount int64             `gorm:"not null" json:"refundedAmount"`
	Currency       string            `gorm:"size:8;not null" json:"currency" validate:"required"`
	BillingReason  string            `gorm:"size:32" json:"billingReason"`
	Metadata       datatypes.JSONMap `json:"metadata"`
}

func (*Order) Kind() Kind { return KindOrder }
