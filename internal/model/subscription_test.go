package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestSubscriptionIsCurrent(t *testing.T) {
	now := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		sub     Subscription
		current bool
		inTrial bool
	}{
		{"active", Subscription{Status: SubscriptionActive}, true, false},
		{"canceled at period end", Subscription{Status: SubscriptionCanceled, CancelAtPeriodEnd: true}, true, false},
		{"ended", Subscription{Status: SubscriptionCanceled, EndedAt: strPtr("2025-01-10T00:00:00.000Z")}, false, false},
		{"trial running", Subscription{Status: SubscriptionTrialing, TrialEnd: strPtr("2025-01-17T00:00:00.000Z")}, true, true},
		{"trial expired", Subscription{Status: SubscriptionTrialing, TrialEnd: strPtr("2025-01-16T11:00:00.000Z")}, false, false},
		{"trial without end", Subscription{Status: SubscriptionTrialing}, false, false},
		{"trial end unparsable", Subscription{Status: SubscriptionTrialing, TrialEnd: strPtr("soon")}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.current, tc.sub.IsCurrent(now))
			assert.Equal(t, tc.inTrial, tc.sub.InTrial(now))
		})
	}
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ts := time.Date(2025, 1, 15, 11, 0, 0, 123456789, loc)

	assert.Equal(t, "2025-01-15T10:00:00.123Z", FormatTime(ts))
	assert.Nil(t, FormatTimePtr(nil))
	assert.Equal(t, "2025-01-15T10:00:00.123Z", *FormatTimePtr(&ts))

	parsed, err := ParseTime("2025-01-15T10:00:00.123Z")
	assert.NoError(t, err)
	assert.True(t, parsed.Equal(ts.Truncate(time.Millisecond)))
}
