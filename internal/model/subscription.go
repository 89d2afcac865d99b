package model

import (
	"time"

	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
)

type Subscription struct {
	Mirror
	UserID                      string             `gorm:"size:128;index:idx_subscriptions_user_status,priority:1;not null" json:"userId" validate:"required"`
	CustomerID                  string             `gorm:"size:128;index;not null" json:"customerId" validate:"required"`
	ProductID                   string             `gorm:"size:128;index;not null" json:"productId" validate:"required"`
	PriceID                     string             `gorm:"size:128" json:"priceId"`
	CheckoutID                  *string            `gorm:"size:128" json:"checkoutId"`
	Status                      SubscriptionStatus `gorm:"size:32;index:idx_subscriptions_user_status,priority:2;not null" json:"status" validate:"required"`
	Amount                      *int64             `json:"amount"`
	Currency                    *string            `gorm:"size:8" json:"currency"`
	RecurringInterval           *string            `gorm:"size:16" json:"recurringInterval"`
	CurrentPeriodStart          string             `gorm:"size:32;not null" json:"currentPeriodStart" validate:"required"`
	CurrentPeriodEnd            *string            `gorm:"size:32" json:"currentPeriodEnd"`
	TrialStart                  *string            `gorm:"size:32" json:"trialStart,omitempty"`
	TrialEnd                    *string            `gorm:"size:32" json:"trialEnd,omitempty"`
	CancelAtPeriodEnd           bool               `gorm:"not null" json:"cancelAtPeriodEnd"`
	CanceledAt                  *string            `gorm:"size:32" json:"canceledAt"`
	StartedAt                   *string            `gorm:"size:32" json:"startedAt"`
	EndedAt                     *string            `gorm:"size:32;index" json:"endedAt"`
	CustomerCancellationReason  *string            `gorm:"size:64" json:"customerCancellationReason"`
	CustomerCancellationComment *string            `gorm:"type:text" json:"customerCancellationComment"`
	Metadata                    datatypes.JSONMap  `json:"metadata"`
}

func (*Subscription) Kind() Kind { return KindSubscription }

// InTrial reports whether the subscription is trialing with a trial end after
// now. A trialing subscription without a trial end is not in trial.
func (s *Subscription) InTrial(now time.Time) bool {
	if s.Status != SubscriptionTrialing || s.TrialEnd == nil {
		return false
	}
	end, err := ParseTime(*s.TrialEnd)
	if err != nil {
		return false
	}
	return end.After(now)
}

// IsCurrent derives the effective status: not ended, and either not trialing
// or still inside the trial.
func (s *Subscription) IsCurrent(now time.Time) bool {
	if s.EndedAt != nil {
		return false
	}
	if s.Status == SubscriptionTrialing {
		return s.InTrial(now)
	}
	return true
}
