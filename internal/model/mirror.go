package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind names a mirrored upstream entity type.
type Kind string

const (
	KindProduct      Kind = "product"
	KindSubscription Kind = "subscription"
	KindOrder        Kind = "order"
	KindBenefit      Kind = "benefit"
	KindBenefitGrant Kind = "benefit_grant"
	KindCustomer     Kind = "customer"
)

// Mirrored is implemented by every row that mirrors an upstream entity.
type Mirrored interface {
	Kind() Kind
	ExternalKey() string
	LastModified() *string
	RowID() string
	SetRowID(id string)
}

// Mirror holds the columns shared by all mirrored tables. ID is assigned by
// the store, ExternalID by Polar.
type Mirror struct {
	ID         string  `gorm:"primaryKey;size:36" json:"id"`
	ExternalID string  `gorm:"size:128;uniqueIndex;not null" json:"externalId" validate:"required"`
	CreatedAt  *string `gorm:"size:32" json:"createdAt"`
	ModifiedAt *string `gorm:"size:32" json:"modifiedAt"`
}

func (m *Mirror) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *Mirror) ExternalKey() string   { return m.ExternalID }
func (m *Mirror) LastModified() *string { return m.ModifiedAt }
func (m *Mirror) RowID() string         { return m.ID }
func (m *Mirror) SetRowID(id string)    { m.ID = id }
