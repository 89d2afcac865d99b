package model

import "gorm.io/datatypes"

type Benefit struct {
	Mirror
	OrganizationID string            `gorm:"size:128;index;not null" json:"organizationId" validate:"required"`
	Type           string            `gorm:"size:64;not null" json:"type" validate:"required"`
	Description    string            `gorm:"type:text" json:"description"`
	Selectable     bool              `json:"selectable"`
	Deletable      bool              `json:"deletable"`
	Properties     datatypes.JSONMap `json:"properties"`
	Metadata       datatypes.JSONMap `json:"metadata"`
}

func (*Benefit) Kind() Kind { return KindBenefit }

type BenefitGrant struct {
	Mirror
	UserID         string            `gorm:"size:128;index;not null" json:"userId" validate:"required"`
	CustomerID     string            `gorm:"size:128;index;not null" json:"customerId" validate:"required"`
	BenefitID      string            `gorm:"size:128;index;not null" json:"benefitId" validate:"required"`
	IsGranted      bool              `gorm:"not null" json:"isGranted"`
	IsRevoked      bool              `gorm:"not null" json:"isRevoked"`
	GrantedAt      *string           `gorm:"size:32" json:"grantedAt"`
	RevokedAt      *string           `gorm:"size:32" json:"revokedAt"`
	OrderID        *string           `gorm:"size:128" json:"orderId"`
	SubscriptionID *string           `gorm:"size:128" json:"subscriptionId"`
	Properties     datatypes.JSONMap `json:"properties"`
}

func (*BenefitGrant) Kind() Kind { return KindBenefitGrant }
