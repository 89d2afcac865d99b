package model

import "gorm.io/datatypes"

type Product struct {
	Mirror
	Name              string                       `gorm:"size:255;not null" json:"name" validate:"required"`
	Description       *string                      `gorm:"type:text" json:"description"`
	IsArchived        bool                         `gorm:"index;not null" json:"isArchived"`
	IsRecurring       bool                         `gorm:"not null" json:"isRecurring"`
	RecurringInterval *string                      `gorm:"size:16" json:"recurringInterval"`
	OrganizationID    string                       `gorm:"size:128;index;not null" json:"organizationId" validate:"required"`
	Prices            datatypes.JSONSlice[Price]   `json:"prices"`
	Medias            datatypes.JSONSlice[Media]   `json:"medias"`
	Benefits          datatypes.JSONSlice[Benefit] `json:"benefits,omitempty"`
	Metadata          datatypes.JSONMap            `json:"metadata"`
}

func (*Product) Kind() Kind { return KindProduct }

type Media struct {
	ID             string  `json:"id"`
	OrganizationID string  `json:"organizationId"`
	Name           string  `json:"name"`
	Path           string  `json:"path"`
	MimeType       string  `json:"mimeType"`
	Size           int64   `json:"size"`
	StorageVersion *string `json:"storageVersion"`
	ChecksumEtag   *string `json:"checksumEtag"`
	ChecksumSHA256 *string `json:"checksumSha256Base64"`
	Version        *string `json:"version"`
	IsUploaded     bool    `json:"isUploaded"`
	CreatedAt      *string `json:"createdAt"`
	SizeReadable   string  `json:"sizeReadable"`
	PublicURL      string  `json:"publicUrl"`
}
