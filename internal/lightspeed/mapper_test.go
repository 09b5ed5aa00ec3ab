package lightspeed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func decodeSale(t *testing.T, payload string) *Sale {
	t.Helper()

	var sale Sale
	require.NoError(t, json.Unmarshal([]byte(payload), &sale))
	return &sale
}

func TestSale_ToSoldItems(t *testing.T) {
	t.Parallel()

	syncedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("produces one row per line", func(t *testing.T) {
		t.Parallel()

		sale := decodeSale(t, `{
			"saleID": "220",
			"employeeID": "4",
			"registerID": "1",
			"shopID": "1",
			"customerID": "88",
			"completed": "true",
			"archived": "false",
			"voided": false,
			"total": "25.00",
			"calcTotal": "25.00",
			"calcTax1": "1.50",
			"calcTax2": "0.50",
			"totalDue": "0.00",
			"createTime": "2024-03-10T09:30:00+00:00",
			"timeStamp": "2024-03-12T17:58:05+00:00",
			"Customer": {"firstName": "Ada", "lastName": "Lovelace"},
			"SaleLines": {"SaleLine": [
				{
					"saleLineID": "410",
					"unitQuantity": "2",
					"unitPrice": "10.00",
					"calcSubtotal": "20.00",
					"calcTotal": "22.00",
					"calcLineDiscount": "0",
					"discountPercent": "0",
					"avgCost": "4.50",
					"fifoCost": "4.25",
					"tax1Rate": "0.06",
					"tax2Rate": "0.02",
					"isLayaway": "false",
					"isSpecialOrder": "false",
					"isWorkorder": "false",
					"Item": {
						"itemID": "900",
						"description": "Widget",
						"systemSku": "210000000900",
						"customSku": "WID-1",
						"manufacturerSku": "MFG-900",
						"upc": "012345678905"
					}
				},
				{
					"saleLineID": "411",
					"unitQuantity": "1",
					"unitPrice": "3.00",
					"calcSubtotal": "3.00",
					"calcTotal": "3.00"
				}
			]},
			"SalePayments": {"SalePayment": [
				{"amount": "20.00", "PaymentType": {"name": "Cash"}},
				{"amount": "5.00", "PaymentType": {"name": "Credit Card"}}
			]}
		}`)

		items := sale.ToSoldItems(syncedAt)
		require.Len(t, items, 2)

		first := items[0]
		require.Equal(t, "220", first.SaleID)
		require.Equal(t, "410", first.SaleLineID)
		require.Equal(t, "900", first.ItemID)
		require.Equal(t, "Widget", first.Description)
		require.Equal(t, "WID-1", first.CustomSKU)
		require.Equal(t, "012345678905", first.UPC)
		require.Equal(t, "Ada", first.CustomerFirstName)
		require.Equal(t, "Lovelace", first.CustomerLastName)
		require.Equal(t, "Cash, Credit Card", first.PaymentTypes)
		require.InDelta(t, 25.0, first.TotalPaid, 1e-9)
		require.InDelta(t, 2.0, first.TaxTotal, 1e-9)
		require.InDelta(t, 2.0, first.Quantity, 1e-9)
		require.True(t, first.Completed)
		require.False(t, first.Voided)
		require.Equal(t, syncedAt, first.SyncedAt)
		require.Equal(t, time.Date(2024, 3, 12, 17, 58, 5, 0, time.UTC), first.UpdateTime.UTC())

		second := items[1]
		require.Equal(t, "411", second.SaleLineID)
		require.Empty(t, second.ItemID)
		require.Equal(t, "Cash, Credit Card", second.PaymentTypes)
		require.InDelta(t, 25.0, second.SaleTotal, 1e-9)
	})

	t.Run("sale with no lines yields no rows", func(t *testing.T) {
		t.Parallel()

		sale := decodeSale(t, `{"saleID": "221", "calcTotal": "0"}`)
		require.Empty(t, sale.ToSoldItems(syncedAt))
	})

	t.Run("missing customer leaves names empty", func(t *testing.T) {
		t.Parallel()

		sale := decodeSale(t, `{
			"saleID": "222",
			"SaleLines": {"SaleLine": {"saleLineID": "500"}}
		}`)

		items := sale.ToSoldItems(syncedAt)
		require.Len(t, items, 1)
		require.Empty(t, items[0].CustomerFirstName)
		require.Empty(t, items[0].CustomerLastName)
	})

	t.Run("identical input yields identical output", func(t *testing.T) {
		t.Parallel()

		payload := `{
			"saleID": "223",
			"calcTotal": "9.99",
			"SaleLines": {"SaleLine": [{"saleLineID": "600"}, {"saleLineID": "601"}]},
			"SalePayments": {"SalePayment": {"amount": "9.99", "PaymentType": {"name": "Cash"}}}
		}`

		first := decodeSale(t, payload).ToSoldItems(syncedAt)
		second := decodeSale(t, payload).ToSoldItems(syncedAt)
		require.Equal(t, first, second)
	})
}

func TestSummarizePayments(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		payload   string
		wantNames string
		wantTotal float64
	}{
		"empty": {payload: `{}`, wantNames: "", wantTotal: 0},
		"single": {
			payload:   `{"SalePayments": {"SalePayment": {"amount": "12.00", "PaymentType": {"name": "Cash"}}}}`,
			wantNames: "Cash",
			wantTotal: 12,
		},
		"duplicate types collapse in first-seen order": {
			payload: `{"SalePayments": {"SalePayment": [
				{"amount": "5.00", "PaymentType": {"name": "Credit Card"}},
				{"amount": "5.00", "PaymentType": {"name": "Cash"}},
				{"amount": "2.50", "PaymentType": {"name": "Credit Card"}}
			]}}`,
			wantNames: "Credit Card, Cash",
			wantTotal: 12.5,
		},
		"missing payment type still counts amount": {
			payload: `{"SalePayments": {"SalePayment": [
				{"amount": "3.00"},
				{"amount": "4.00", "PaymentType": {"name": "Gift Card"}}
			]}}`,
			wantNames: "Gift Card",
			wantTotal: 7,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sale := decodeSale(t, tc.payload)
			names, total := summarizePayments(sale.Payments())
			require.Equal(t, tc.wantNames, names)
			require.InDelta(t, tc.wantTotal, total, 1e-9)
		})
	}
}
