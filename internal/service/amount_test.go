package service

import (
	"encoding/json"
	"testing"

	"marketplace-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderFromJSON(t *testing.T, payload string) *model.PaypalOrder {
	t.Helper()
	var order model.PaypalOrder
	require.NoError(t, json.Unmarshal([]byte(payload), &order))
	return &order
}

func TestExtractCapturedAmount(t *testing.T) {
	t.Run("capture-level amount wins", func(t *testing.T) {
		order := orderFromJSON(t, `{
			"id": "ORD1",
			"status": "COMPLETED",
			"purchase_units": [{
				"reference_id": "L1",
				"amount": {"currency_code": "USD", "value": "999.00"},
				"payments": {"captures": [{
					"id": "CAP1",
					"status": "COMPLETED",
					"amount": {"currency_code": "USD", "value": "10.00"}
				}]}
			}]
		}`)

		assert.True(t, ExtractCapturedAmount(order).Equal(dec("10.00")))
	})

	t.Run("falls back to unit-level amount", func(t *testing.T) {
		order := orderFromJSON(t, `{
			"id": "ORD1",
			"status": "COMPLETED",
			"purchase_units": [{
				"reference_id": "L1",
				"amount": {"currency_code": "USD", "value": "27.00"},
				"payments": {"captures": []}
			}]
		}`)

		assert.True(t, ExtractCapturedAmount(order).Equal(dec("27.00")))
	})

	t.Run("unparseable capture amount falls through", func(t *testing.T) {
		order := orderFromJSON(t, `{
			"id": "ORD1",
			"purchase_units": [{
				"amount": {"currency_code": "USD", "value": "48.00"},
				"payments": {"captures": [{
					"amount": {"currency_code": "USD", "value": "not-a-number"}
				}]}
			}]
		}`)

		assert.True(t, ExtractCapturedAmount(order).Equal(dec("48.00")))
	})

	t.Run("defaults to zero", func(t *testing.T) {
		assert.True(t, ExtractCapturedAmount(&model.PaypalOrder{ID: "ORD1"}).IsZero())
		assert.True(t, ExtractCapturedAmount(nil).IsZero())
	})
}
