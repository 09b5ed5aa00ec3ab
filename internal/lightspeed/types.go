// Package lightspeed provides a client for the Lightspeed Retail API.
package lightspeed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Bool is a boolean that the API may serialize as a JSON boolean or the
// string "true"/"false". Any other value decodes to false.
type Bool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("true")):
		*b = true
	case bytes.Equal(data, []byte(`"true"`)):
		*b = true
	default:
		*b = false
	}
	return nil
}

// Amount is a monetary or quantity value that the API may serialize as a
// JSON number or a numeric string. Missing or non-numeric values decode to 0.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*a = 0
		return nil
	}
	*a = Amount(v)
	return nil
}

// Timestamp is an RFC 3339 timestamp from the API. Unparseable values
// decode to the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = parsed
	return nil
}

// oneOrMany decodes a JSON value that may be either a single object or an
// array of objects, always returning a slice. The API collapses
// single-element relations to a bare object.
func oneOrMany[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, err
		}
		return many, nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

// Customer is the abbreviated customer identity attached to a sale.
type Customer struct {
	// CustomerID is the unique customer identifier.
	CustomerID string `json:"customerID"`

	// FirstName is the customer's first name.
	FirstName string `json:"firstName"`

	// LastName is the customer's last name.
	LastName string `json:"lastName"`
}

// Item is the catalog item attached to a sale line.
type Item struct {
	// CustomSKU is the retailer-assigned SKU.
	CustomSKU string `json:"customSku"`

	// Description is the item description.
	Description string `json:"description"`

	// ItemID is the unique item identifier.
	ItemID string `json:"itemID"`

	// ManufacturerSKU is the manufacturer-assigned SKU.
	ManufacturerSKU string `json:"manufacturerSku"`

	// SystemSKU is the Lightspeed-assigned SKU.
	SystemSKU string `json:"systemSku"`

	// UPC is the universal product code.
	UPC string `json:"upc"`
}

// PaymentType describes how a payment was made.
type PaymentType struct {
	// Name is the payment type name (e.g. Cash, Credit Card).
	Name string `json:"name"`

	// PaymentTypeID is the unique payment type identifier.
	PaymentTypeID string `json:"paymentTypeID"`
}

// SalePayment is a single payment applied to a sale.
type SalePayment struct {
	// Amount is the payment amount.
	Amount Amount `json:"amount"`

	// PaymentType describes how the payment was made.
	PaymentType *PaymentType `json:"PaymentType"`

	// SalePaymentID is the unique payment identifier.
	SalePaymentID string `json:"salePaymentID"`
}

// salePayments is the SalePayments relation wrapper. The API nests the
// payments under a SalePayment key that may be an object or an array.
type salePayments struct {
	payments []SalePayment
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *salePayments) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		SalePayment json.RawMessage `json:"SalePayment"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}

	payments, err := oneOrMany[SalePayment](wrapper.SalePayment)
	if err != nil {
		return err
	}
	p.payments = payments
	return nil
}

// SaleLine is a single line item on a sale.
type SaleLine struct {
	// AvgCost is the average cost basis for the item.
	AvgCost Amount `json:"avgCost"`

	// CalcLineDiscount is the computed discount applied to the line.
	CalcLineDiscount Amount `json:"calcLineDiscount"`

	// CalcSubtotal is the computed line subtotal before discount.
	CalcSubtotal Amount `json:"calcSubtotal"`

	// CalcTotal is the computed line total.
	CalcTotal Amount `json:"calcTotal"`

	// DiscountPercent is the discount rate applied to the line.
	DiscountPercent Amount `json:"discountPercent"`

	// FIFOCost is the first-in-first-out cost basis for the item.
	FIFOCost Amount `json:"fifoCost"`

	// IsLayaway indicates the line is part of a layaway.
	IsLayaway Bool `json:"isLayaway"`

	// IsSpecialOrder indicates the line is a special order.
	IsSpecialOrder Bool `json:"isSpecialOrder"`

	// IsWorkOrder indicates the line is part of a work order.
	IsWorkOrder Bool `json:"isWorkorder"`

	// Item is the catalog item sold on this line.
	Item *Item `json:"Item"`

	// SaleLineID is the unique line identifier.
	SaleLineID string `json:"saleLineID"`

	// Tax1Rate is the primary tax rate applied to the line.
	Tax1Rate Amount `json:"tax1Rate"`

	// Tax2Rate is the secondary tax rate applied to the line.
	Tax2Rate Amount `json:"tax2Rate"`

	// UnitPrice is the per-unit sale price.
	UnitPrice Amount `json:"unitPrice"`

	// UnitQuantity is the number of units sold.
	UnitQuantity Amount `json:"unitQuantity"`
}

// saleLines is the SaleLines relation wrapper. The API nests the lines
// under a SaleLine key that may be an object or an array.
type saleLines struct {
	lines []SaleLine
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *saleLines) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		SaleLine json.RawMessage `json:"SaleLine"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}

	lines, err := oneOrMany[SaleLine](wrapper.SaleLine)
	if err != nil {
		return err
	}
	l.lines = lines
	return nil
}

// Sale is a raw sale record from the Lightspeed API with its expanded
// SaleLines, SalePayments and Customer relations.
type Sale struct {
	// Archived indicates the sale has been archived.
	Archived Bool `json:"archived"`

	// CalcTax1 is the computed primary tax amount for the sale.
	CalcTax1 Amount `json:"calcTax1"`

	// CalcTax2 is the computed secondary tax amount for the sale.
	CalcTax2 Amount `json:"calcTax2"`

	// CalcTotal is the computed sale total.
	CalcTotal Amount `json:"calcTotal"`

	// Completed indicates the sale has been completed.
	Completed Bool `json:"completed"`

	// CreateTime is when the sale was created.
	CreateTime Timestamp `json:"createTime"`

	// Customer is the customer attached to the sale, if any.
	Customer *Customer `json:"Customer"`

	// CustomerID is the customer identifier on the sale.
	CustomerID string `json:"customerID"`

	// EmployeeID is the employee who rang up the sale.
	EmployeeID string `json:"employeeID"`

	// RegisterID is the register where the sale was made.
	RegisterID string `json:"registerID"`

	// SaleID is the unique sale identifier.
	SaleID string `json:"saleID"`

	// SaleLines holds the line items on the sale.
	SaleLines saleLines `json:"SaleLines"`

	// SalePayments holds the payments applied to the sale.
	SalePayments salePayments `json:"SalePayments"`

	// ShopID is the shop where the sale was made.
	ShopID string `json:"shopID"`

	// TimeStamp is when the sale was last updated.
	TimeStamp Timestamp `json:"timeStamp"`

	// Total is the sale total as reported by the API.
	Total Amount `json:"total"`

	// TotalDue is the outstanding balance on the sale.
	TotalDue Amount `json:"totalDue"`

	// Voided indicates the sale has been voided.
	Voided Bool `json:"voided"`
}

// Lines returns the sale's line items in array form.
func (s *Sale) Lines() []SaleLine {
	return s.SaleLines.lines
}

// Payments returns the sale's payments in array form.
func (s *Sale) Payments() []SalePayment {
	return s.SalePayments.payments
}

// pageAttributes carries pagination metadata from the API response.
type pageAttributes struct {
	// Count is the total number of matching records.
	Count string `json:"count"`

	// Next is the URL of the next page, empty on the last page.
	Next string `json:"next"`

	// Previous is the URL of the previous page.
	Previous string `json:"previous"`
}

// salesResponse represents the API response for listing sales. The Sale
// key may be a single object, an array, or absent on an empty page.
type salesResponse struct {
	// Attributes carries pagination metadata.
	Attributes pageAttributes `json:"@attributes"`

	// Sale contains the raw sale records for the page.
	Sale json.RawMessage `json:"Sale"`
}

// SalesPage is one page of sales from the API.
type SalesPage struct {
	// Next is the URL of the next page, empty when no more data exists.
	Next string

	// Sales contains the sales on this page, normalized to array form.
	Sales []Sale
}

// Account represents a Lightspeed account.
type Account struct {
	// AccountID is the unique account identifier.
	AccountID string `json:"accountID"`

	// Name is the account display name.
	Name string `json:"name"`
}

// accountResponse represents the API response for the account endpoint.
type accountResponse struct {
	// Account is the account owning the access token.
	Account Account `json:"Account"`
}

// tokenResponse represents the OAuth token response from Lightspeed.
type tokenResponse struct {
	// AccessToken is the OAuth access token.
	AccessToken string `json:"access_token"`

	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is the token used to obtain new access tokens.
	RefreshToken string `json:"refresh_token"`

	// TokenType is the type of token (e.g., Bearer).
	TokenType string `json:"token_type"`
}

// TokenPair is an OAuth access/refresh token pair with its expiry.
type TokenPair struct {
	// AccessToken is the OAuth access token.
	AccessToken string

	// ExpiresAt is when the access token expires.
	ExpiresAt time.Time

	// RefreshToken is the token used to obtain new access tokens.
	RefreshToken string
}
