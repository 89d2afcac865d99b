package dto

type CheckoutLinkRequest struct {
	ProductIDs         []string `json:"productIds" validate:"required,min=1,dive,required"`
	SubscriptionID     *string  `json:"subscriptionId" validate:"omitempty,min=1"`
	Origin             string   `json:"origin" validate:"omitempty,url"`
	SuccessURL         string   `json:"successUrl" validate:"omitempty,url"`
	TrialInterval      *string  `json:"trialInterval" validate:"omitempty,oneof=day week month year"`
	TrialIntervalCount *int     `json:"trialIntervalCount" validate:"omitempty,min=1,max=1000"`
	Locale             *string  `json:"locale" validate:"omitempty,min=2,max=16"`
}

type LinkResponse struct {
	URL string `json:"url"`
}

type CancelSubscriptionRequest struct {
	Revoke bool `json:"revoke"`
}

type ChangeSubscriptionRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

type ReconcileResponse struct {
	RowID   string `json:"rowId"`
	Outcome string `json:"outcome"`
}

type SyncProductsResponse struct {
	Synced int `json:"synced"`
}
