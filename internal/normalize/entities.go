package normalize

import (
	"maps"
	"time"

	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/polar"

	"gorm.io/datatypes"
)

// Subscription converts a Polar subscription owned by userID.
func Subscription(in polar.Subscription, userID string) (*model.Subscription, error) {
	if err := Struct(model.KindSubscription, in); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, invalid(model.KindSubscription, "subscription %s has no user", in.ID)
	}

	priceID := in.PriceID
	if priceID == "" && len(in.Prices) > 0 {
		priceID = in.Prices[0].ID
	}

	return &model.Subscription{
		Mirror:                      mirror(in.ID, in.CreatedAt, in.ModifiedAt),
		UserID:                      userID,
		CustomerID:                  in.CustomerID,
		ProductID:                   in.ProductID,
		PriceID:                     priceID,
		CheckoutID:                  in.CheckoutID,
		Status:                      model.SubscriptionStatus(in.Status),
		Amount:                      in.Amount,
		Currency:                    in.Currency,
		RecurringInterval:           in.RecurringInterval,
		CurrentPeriodStart:          model.FormatTime(in.CurrentPeriodStart),
		CurrentPeriodEnd:            model.FormatTimePtr(in.CurrentPeriodEnd),
		TrialStart:                  model.FormatTimePtr(in.TrialStart),
		TrialEnd:                    model.FormatTimePtr(in.TrialEnd),
		CancelAtPeriodEnd:           in.CancelAtPeriodEnd,
		CanceledAt:                  model.FormatTimePtr(in.CanceledAt),
		StartedAt:                   model.FormatTimePtr(in.StartedAt),
		EndedAt:                     model.FormatTimePtr(in.EndedAt),
		CustomerCancellationReason:  in.CustomerCancellationReason,
		CustomerCancellationComment: in.CustomerCancellationComment,
		Metadata:                    jsonMap(in.Metadata),
	}, nil
}

// SubscriptionRecord validates an already-shaped subscription row, as sent by
// an operator, and rewrites its timestamps into the canonical layout.
func SubscriptionRecord(sub *model.Subscription) error {
	if err := Struct(model.KindSubscription, sub); err != nil {
		return err
	}

	start, err := canonicalTime("currentPeriodStart", sub.CurrentPeriodStart)
	if err != nil {
		return err
	}
	sub.CurrentPeriodStart = start

	for _, f := range []struct {
		name string
		v    **string
	}{
		{"createdAt", &sub.CreatedAt},
		{"modifiedAt", &sub.ModifiedAt},
		{"currentPeriodEnd", &sub.CurrentPeriodEnd},
		{"trialStart", &sub.TrialStart},
		{"trialEnd", &sub.TrialEnd},
		{"canceledAt", &sub.CanceledAt},
		{"startedAt", &sub.StartedAt},
		{"endedAt", &sub.EndedAt},
	} {
		if *f.v == nil {
			continue
		}
		s, err := canonicalTime(f.name, **f.v)
		if err != nil {
			return err
		}
		*f.v = &s
	}
	return nil
}

func canonicalTime(field, value string) (string, error) {
	t, err := model.ParseTime(value)
	if err != nil {
		return "", invalid(model.KindSubscription, "%s %q is not an ISO-8601 timestamp", field, value)
	}
	return model.FormatTime(t), nil
}

func Product(in polar.Product) (*model.Product, error) {
	if err := Struct(model.KindProduct, in); err != nil {
		return nil, err
	}

	prices := make([]model.Price, 0, len(in.Prices))
	for _, p := range in.Prices {
		price, err := Price(p, in.IsRecurring)
		if err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}

	medias := make([]model.Media, 0, len(in.Medias))
	for _, m := range in.Medias {
		medias = append(medias, Media(m))
	}

	var benefits []model.Benefit
	if len(in.Benefits) > 0 {
		benefits = make([]model.Benefit, 0, len(in.Benefits))
		for _, b := range in.Benefits {
			benefit, err := Benefit(b)
			if err != nil {
				return nil, err
			}
			benefits = append(benefits, *benefit)
		}
	}

	return &model.Product{
		Mirror:            mirror(in.ID, in.CreatedAt, in.ModifiedAt),
		Name:              in.Name,
		Description:       in.Description,
		IsArchived:        in.IsArchived,
		IsRecurring:       in.IsRecurring,
		RecurringInterval: in.RecurringInterval,
		OrganizationID:    in.OrganizationID,
		Prices:            prices,
		Medias:            medias,
		Benefits:          benefits,
		Metadata:          jsonMap(in.Metadata),
	}, nil
}

func Media(in polar.Media) model.Media {
	return model.Media{
		ID:             in.ID,
		OrganizationID: in.OrganizationID,
		Name:           in.Name,
		Path:           in.Path,
		MimeType:       in.MimeType,
		Size:           in.Size,
		StorageVersion: in.StorageVersion,
		ChecksumEtag:   in.ChecksumEtag,
		ChecksumSHA256: in.ChecksumSHA256Base64,
		Version:        in.Version,
		IsUploaded:     in.IsUploaded,
		CreatedAt:      createdAt(in.CreatedAt),
		SizeReadable:   in.SizeReadable,
		PublicURL:      in.PublicURL,
	}
}

func Benefit(in polar.Benefit) (*model.Benefit, error) {
	if err := Struct(model.KindBenefit, in); err != nil {
		return nil, err
	}
	return &model.Benefit{
		Mirror:         mirror(in.ID, in.CreatedAt, in.ModifiedAt),
		OrganizationID: in.OrganizationID,
		Type:           in.Type,
		Description:    in.Description,
		Selectable:     in.Selectable,
		Deletable:      in.Deletable,
		Properties:     jsonMap(in.Properties),
		Metadata:       jsonMap(in.Metadata),
	}, nil
}

func Order(in polar.Order, userID string) (*model.Order, error) {
	if err := Struct(model.KindOrder, in); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, invalid(model.KindOrder, "order %s has no user", in.ID)
	}
	return &model.Order{
		Mirror:         mirror(in.ID, in.CreatedAt, in.ModifiedAt),
		UserID:         userID,
		CustomerID:     in.CustomerID,
		ProductID:      in.ProductID,
		ProductPriceID: in.ProductPriceID,
		SubscriptionID: in.SubscriptionID,
		CheckoutID:     in.CheckoutID,
		Status:         in.Status,
		Paid:           in.Paid,
		Amount:         in.Amount,
		TaxAmount:      in.TaxAmount,
		RefundedAmount: in.RefundedAmount,
		Currency:       in.Currency,
		BillingReason:  in.BillingReason,
		Metadata:       jsonMap(in.Metadata),
	}, nil
}

func BenefitGrant(in polar.BenefitGrant, userID string) (*model.BenefitGrant, error) {
	if err := Struct(model.KindBenefitGrant, in); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, invalid(model.KindBenefitGrant, "benefit grant %s has no user", in.ID)
	}
	return &model.BenefitGrant{
		Mirror:         mirror(in.ID, in.CreatedAt, in.ModifiedAt),
		UserID:         userID,
		CustomerID:     in.CustomerID,
		BenefitID:      in.BenefitID,
		IsGranted:      in.IsGranted,
		IsRevoked:      in.IsRevoked,
		GrantedAt:      model.FormatTimePtr(in.GrantedAt),
		RevokedAt:      model.FormatTimePtr(in.RevokedAt),
		OrderID:        in.OrderID,
		SubscriptionID: in.SubscriptionID,
		Properties:     jsonMap(in.Properties),
	}, nil
}

func Customer(in polar.Customer, userID string) (*model.Customer, error) {
	if err := Struct(model.KindCustomer, in); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, invalid(model.KindCustomer, "customer %s has no user", in.ID)
	}
	return &model.Customer{
		Mirror:   mirror(in.ID, in.CreatedAt, in.ModifiedAt),
		UserID:   userID,
		Email:    in.Email,
		Metadata: jsonMap(in.Metadata),
	}, nil
}

func mirror(id string, created time.Time, modified *time.Time) model.Mirror {
	return model.Mirror{
		ExternalID: id,
		CreatedAt:  createdAt(created),
		ModifiedAt: model.FormatTimePtr(modified),
	}
}

func createdAt(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := model.FormatTime(t)
	return &s
}

// jsonMap copies m so the stored record never aliases the payload.
func jsonMap(m map[string]any) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	return datatypes.JSONMap(maps.Clone(m))
}
