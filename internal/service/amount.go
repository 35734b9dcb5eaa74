package service

import (
	"marketplace-backend/internal/model"

	"github.com/shopspring/decimal"
)

// ExtractCapturedAmount pulls the captured amount out of a provider order
// payload. Extraction strategies run in order from most to least specific:
//
//  1. the amount on the first capture of any purchase unit
//  2. the amount on the purchase unit itself
//  3. zero
//
// A field that is present but unparseable falls through to the next strategy
// rather than failing the transition.
func ExtractCapturedAmount(order *model.PaypalOrder) decimal.Decimal {
	if order == nil {
		return decimal.Zero
	}

	for _, unit := range order.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			if amount, ok := parseAmount(capture.Amount.Value); ok {
				return amount
			}
		}
	}

	for _, unit := range order.PurchaseUnits {
		if amount, ok := parseAmount(unit.Amount.Value); ok {
			return amount
		}
	}

	return decimal.Zero
}

func parseAmount(value string) (decimal.Decimal, bool) {
	if value == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}
