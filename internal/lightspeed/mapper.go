package lightspeed

import (
	"strings"
	"time"

	"github.com/dgreenaway/posbridge/internal/storage"
)

// ToSoldItems flattens a raw sale into one storage row per line item.
// Each row is self-contained, carrying the sale's identifiers, flags and
// totals, the abbreviated customer identity, and a payment summary, so no
// joins are needed on the read side. A sale with no lines yields no rows.
// The function is pure: identical input always yields identical output.
func (s *Sale) ToSoldItems(syncedAt time.Time) []storage.SoldItem {
	lines := s.Lines()
	if len(lines) == 0 {
		return nil
	}

	firstName, lastName := "", ""
	if s.Customer != nil {
		firstName = s.Customer.FirstName
		lastName = s.Customer.LastName
	}

	paymentTypes, totalPaid := summarizePayments(s.Payments())

	// Tax total is computed from the two components rather than trusted
	// from an upstream aggregate field.
	taxTotal := float64(s.CalcTax1) + float64(s.CalcTax2)

	base := storage.SoldItem{
		Archived:          bool(s.Archived),
		Completed:         bool(s.Completed),
		CustomerFirstName: firstName,
		CustomerID:        s.CustomerID,
		CustomerLastName:  lastName,
		EmployeeID:        s.EmployeeID,
		PaymentTypes:      paymentTypes,
		RegisterID:        s.RegisterID,
		SaleID:            s.SaleID,
		SaleTime:          s.CreateTime.Time,
		SaleTotal:         float64(s.Total),
		ShopID:            s.ShopID,
		SyncedAt:          syncedAt,
		Tax1:              float64(s.CalcTax1),
		Tax2:              float64(s.CalcTax2),
		TaxTotal:          taxTotal,
		TotalDue:          float64(s.TotalDue),
		TotalPaid:         totalPaid,
		UpdateTime:        s.TimeStamp.Time,
		Voided:            bool(s.Voided),
	}

	items := make([]storage.SoldItem, 0, len(lines))
	for i := range lines {
		items = append(items, mergeLine(base, &lines[i]))
	}

	return items
}

// summarizePayments returns the distinct payment type names in first-seen
// order, joined with ", ", and the sum of all payment amounts.
func summarizePayments(payments []SalePayment) (string, float64) {
	var names []string
	seen := make(map[string]bool, len(payments))
	total := 0.0

	for i := range payments {
		total += float64(payments[i].Amount)

		pt := payments[i].PaymentType
		if pt == nil || pt.Name == "" {
			continue
		}
		if !seen[pt.Name] {
			seen[pt.Name] = true
			names = append(names, pt.Name)
		}
	}

	return strings.Join(names, ", "), total
}

// mergeLine combines the shared sale base with one line's fields.
func mergeLine(base storage.SoldItem, line *SaleLine) storage.SoldItem {
	item := base

	item.AvgCost = float64(line.AvgCost)
	item.CalcLineDiscount = float64(line.CalcLineDiscount)
	item.CalcSubtotal = float64(line.CalcSubtotal)
	item.CalcTotal = float64(line.CalcTotal)
	item.DiscountPercent = float64(line.DiscountPercent)
	item.FIFOCost = float64(line.FIFOCost)
	item.IsLayaway = bool(line.IsLayaway)
	item.IsSpecialOrder = bool(line.IsSpecialOrder)
	item.IsWorkOrder = bool(line.IsWorkOrder)
	item.Quantity = float64(line.UnitQuantity)
	item.SaleLineID = line.SaleLineID
	item.Tax1Rate = float64(line.Tax1Rate)
	item.Tax2Rate = float64(line.Tax2Rate)
	item.UnitPrice = float64(line.UnitPrice)

	if line.Item != nil {
		item.CustomSKU = line.Item.CustomSKU
		item.Description = line.Item.Description
		item.ItemID = line.Item.ItemID
		item.ManufacturerSKU = line.Item.ManufacturerSKU
		item.SystemSKU = line.Item.SystemSKU
		item.UPC = line.Item.UPC
	}

	return item
}
