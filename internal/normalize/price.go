package normalize

import (
	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/polar"
)

// Price projects a Polar price onto its amount variant. Only the fields of the
// selected amountType survive; a variant missing one of its own required
// fields fails instead of being defaulted. The recurring interval is kept only
// for prices of recurring products.
func Price(in polar.Price, recurring bool) (model.Price, error) {
	if err := Struct(model.KindProduct, in); err != nil {
		return model.Price{}, err
	}

	amount, err := priceAmount(in)
	if err != nil {
		return model.Price{}, err
	}

	out := model.Price{
		ID:         in.ID,
		ProductID:  in.ProductID,
		IsArchived: in.IsArchived,
		CreatedAt:  createdAt(in.CreatedAt),
		ModifiedAt: model.FormatTimePtr(in.ModifiedAt),
		Amount:     amount,
	}
	if recurring {
		out.RecurringInterval = in.RecurringInterval
	}
	return out, nil
}

func priceAmount(in polar.Price) (model.Amount, error) {
	switch model.AmountType(in.AmountType) {
	case model.AmountFixed:
		if in.PriceAmount == nil || in.PriceCurrency == "" {
			return nil, invalid(model.KindProduct, "fixed price %s requires price_amount and price_currency", in.ID)
		}
		return model.FixedAmount{
			PriceCurrency: in.PriceCurrency,
			PriceAmount:   *in.PriceAmount,
		}, nil

	case model.AmountFree:
		return model.FreeAmount{}, nil

	case model.AmountCustom:
		if in.PriceCurrency == "" {
			return nil, invalid(model.KindProduct, "custom price %s requires price_currency", in.ID)
		}
		return model.CustomAmount{
			PriceCurrency: in.PriceCurrency,
			MinimumAmount: in.MinimumAmount,
			MaximumAmount: in.MaximumAmount,
			PresetAmount:  in.PresetAmount,
		}, nil

	case model.AmountSeatBased:
		if in.PriceCurrency == "" || in.SeatTiers == nil || len(in.SeatTiers.Tiers) == 0 {
			return nil, invalid(model.KindProduct, "seat based price %s requires price_currency and seat_tiers", in.ID)
		}
		tiers := make([]model.SeatTier, 0, len(in.SeatTiers.Tiers))
		for _, t := range in.SeatTiers.Tiers {
			tiers = append(tiers, model.SeatTier{
				MinSeats:     t.MinSeats,
				MaxSeats:     t.MaxSeats,
				PricePerSeat: t.PricePerSeat,
			})
		}
		return model.SeatBasedAmount{
			PriceCurrency: in.PriceCurrency,
			SeatTiers:     tiers,
		}, nil

	case model.AmountMeteredUnit:
		if in.PriceCurrency == "" || in.UnitAmount == nil || in.MeterID == "" {
			return nil, invalid(model.KindProduct, "metered unit price %s requires price_currency, unit_amount and meter_id", in.ID)
		}
		out := model.MeteredUnitAmount{
			PriceCurrency: in.PriceCurrency,
			UnitAmount:    *in.UnitAmount,
			CapAmount:     in.CapAmount,
			MeterID:       in.MeterID,
		}
		if in.Meter != nil {
			out.MeterName = in.Meter.Name
		}
		return out, nil

	default:
		return nil, invalid(model.KindProduct, "price %s has unknown amount_type %q", in.ID, in.AmountType)
	}
}
