// Package storage provides persistence implementations for the sync engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// maxBatchWriteItems is the DynamoDB BatchWriteItem per-request limit.
	maxBatchWriteItems = 25

	// maxUnprocessedAttempts bounds resubmission of unprocessed writes.
	maxUnprocessedAttempts = 3
)

// SoldItem is one denormalized row per sale line, self-contained with its
// parent sale, customer and payment context. Rows are keyed by SaleLineID
// and overwritten on every sync that re-observes the same line.
type SoldItem struct {
	// Archived indicates the parent sale has been archived.
	Archived bool `dynamodbav:"archived"`

	// AvgCost is the average cost basis for the line's item.
	AvgCost float64 `dynamodbav:"avg_cost"`

	// CalcLineDiscount is the discount applied to the line.
	CalcLineDiscount float64 `dynamodbav:"calc_line_discount"`

	// CalcSubtotal is the line subtotal before discount.
	CalcSubtotal float64 `dynamodbav:"calc_subtotal"`

	// CalcTotal is the line total.
	CalcTotal float64 `dynamodbav:"calc_total"`

	// Completed indicates the parent sale has been completed.
	Completed bool `dynamodbav:"completed"`

	// CustomSKU is the retailer-assigned SKU of the line's item.
	CustomSKU string `dynamodbav:"custom_sku"`

	// CustomerFirstName is the first name of the sale's customer.
	CustomerFirstName string `dynamodbav:"customer_first_name"`

	// CustomerID is the customer identifier on the sale.
	CustomerID string `dynamodbav:"customer_id"`

	// CustomerLastName is the last name of the sale's customer.
	CustomerLastName string `dynamodbav:"customer_last_name"`

	// Description is the description of the line's item.
	Description string `dynamodbav:"description"`

	// DiscountPercent is the discount rate applied to the line.
	DiscountPercent float64 `dynamodbav:"discount_percent"`

	// EmployeeID is the employee who rang up the sale.
	EmployeeID string `dynamodbav:"employee_id"`

	// FIFOCost is the first-in-first-out cost basis for the line's item.
	FIFOCost float64 `dynamodbav:"fifo_cost"`

	// IsLayaway indicates the line is part of a layaway.
	IsLayaway bool `dynamodbav:"is_layaway"`

	// IsSpecialOrder indicates the line is a special order.
	IsSpecialOrder bool `dynamodbav:"is_special_order"`

	// IsWorkOrder indicates the line is part of a work order.
	IsWorkOrder bool `dynamodbav:"is_work_order"`

	// ItemID is the catalog item identifier for the line.
	ItemID string `dynamodbav:"item_id"`

	// ManufacturerSKU is the manufacturer-assigned SKU of the line's item.
	ManufacturerSKU string `dynamodbav:"manufacturer_sku"`

	// PaymentTypes lists the distinct payment type names on the sale,
	// joined in first-seen order.
	PaymentTypes string `dynamodbav:"payment_types"`

	// Quantity is the number of units sold on the line.
	Quantity float64 `dynamodbav:"quantity"`

	// RegisterID is the register where the sale was made.
	RegisterID string `dynamodbav:"register_id"`

	// SaleID is the parent sale identifier.
	SaleID string `dynamodbav:"sale_id"`

	// SaleLineID is the unique line identifier and the row's natural key.
	SaleLineID string `dynamodbav:"sale_line_id"`

	// SaleTime is when the parent sale was created.
	SaleTime time.Time `dynamodbav:"sale_time"`

	// SaleTotal is the parent sale's reported total.
	SaleTotal float64 `dynamodbav:"sale_total"`

	// ShopID is the shop where the sale was made.
	ShopID string `dynamodbav:"shop_id"`

	// SyncedAt is when this row was produced by a sync run.
	SyncedAt time.Time `dynamodbav:"synced_at"`

	// SystemSKU is the system-assigned SKU of the line's item.
	SystemSKU string `dynamodbav:"system_sku"`

	// Tax1 is the parent sale's primary tax amount.
	Tax1 float64 `dynamodbav:"tax1"`

	// Tax1Rate is the primary tax rate applied to the line.
	Tax1Rate float64 `dynamodbav:"tax1_rate"`

	// Tax2 is the parent sale's secondary tax amount.
	Tax2 float64 `dynamodbav:"tax2"`

	// Tax2Rate is the secondary tax rate applied to the line.
	Tax2Rate float64 `dynamodbav:"tax2_rate"`

	// TaxTotal is the sum of the sale's primary and secondary tax amounts.
	TaxTotal float64 `dynamodbav:"tax_total"`

	// TotalDue is the outstanding balance on the parent sale.
	TotalDue float64 `dynamodbav:"total_due"`

	// TotalPaid is the sum of all payment amounts on the sale.
	TotalPaid float64 `dynamodbav:"total_paid"`

	// UPC is the universal product code of the line's item.
	UPC string `dynamodbav:"upc"`

	// UnitPrice is the per-unit sale price on the line.
	UnitPrice float64 `dynamodbav:"unit_price"`

	// UpdateTime is when the parent sale was last updated upstream.
	UpdateTime time.Time `dynamodbav:"update_time"`

	// Voided indicates the parent sale has been voided.
	Voided bool `dynamodbav:"voided"`
}

// SoldItemStore persists sold-item rows in DynamoDB, partitioned by user.
type SoldItemStore struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// tableName is the name of the sold-items table.
	tableName string
}

// Flush writes rows in batches of at most 25 (the BatchWriteItem limit),
// upserting each row by its sale line ID with a fresh write timestamp.
// Rows repeating a sale line ID collapse to the last occurrence first:
// BatchWriteItem rejects a request carrying duplicate keys, and a sale
// shifting between pages mid-run can put the same line in one buffer twice.
// Batches are committed sequentially; onProgress fires after each committed
// batch with offset plus the running total. Empty input is a no-op.
// A batch failure aborts the flush; previously committed batches are not
// rolled back, which is safe because writes are idempotent upserts.
func (s *SoldItemStore) Flush(
	ctx context.Context,
	userID string,
	items []SoldItem,
	onProgress func(written int),
	offset int,
) (int, error) {
	if userID == "" {
		return 0, errors.New("user ID is required")
	}
	if len(items) == 0 {
		return 0, nil
	}

	items = dedupeBySaleLine(items)

	written := 0
	for start := 0; start < len(items); start += maxBatchWriteItems {
		end := min(start+maxBatchWriteItems, len(items))

		if err := s.writeBatch(ctx, userID, items[start:end]); err != nil {
			return written, fmt.Errorf("writing batch at offset %d: %w", offset+written, err)
		}

		written += end - start
		if onProgress != nil {
			onProgress(offset + written)
		}
	}

	return written, nil
}

// dedupeBySaleLine collapses rows sharing a sale line ID, keeping each
// row's first position and the last occurrence's values.
func dedupeBySaleLine(items []SoldItem) []SoldItem {
	seen := make(map[string]int, len(items))
	deduped := make([]SoldItem, 0, len(items))

	for i := range items {
		if at, ok := seen[items[i].SaleLineID]; ok {
			deduped[at] = items[i]
			continue
		}
		seen[items[i].SaleLineID] = len(deduped)
		deduped = append(deduped, items[i])
	}

	return deduped
}

// writeBatch commits one BatchWriteItem request, resubmitting unprocessed
// writes up to maxUnprocessedAttempts times.
func (s *SoldItemStore) writeBatch(ctx context.Context, userID string, items []SoldItem) error {
	writtenAt := time.Now().UTC()

	requests := make([]types.WriteRequest, 0, len(items))
	for i := range items {
		av, err := attributevalue.MarshalMap(items[i])
		if err != nil {
			return fmt.Errorf("marshaling item %s: %w", items[i].SaleLineID, err)
		}
		av["user_id"] = &types.AttributeValueMemberS{Value: userID}
		av["written_at"] = &types.AttributeValueMemberS{Value: writtenAt.Format(time.RFC3339)}

		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: av},
		})
	}

	pending := map[string][]types.WriteRequest{s.tableName: requests}
	for attempt := 0; attempt < maxUnprocessedAttempts; attempt++ {
		output, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return fmt.Errorf("batch writing to DynamoDB: %w", err)
		}

		if len(output.UnprocessedItems) == 0 || len(output.UnprocessedItems[s.tableName]) == 0 {
			return nil
		}
		pending = output.UnprocessedItems
	}

	return fmt.Errorf("batch write left %d unprocessed items after %d attempts",
		len(pending[s.tableName]), maxUnprocessedAttempts)
}

// ItemsByUser returns a page of a user's sold items ordered by sale line ID.
func (s *SoldItemStore) ItemsByUser(ctx context.Context, userID string, limit int32) ([]SoldItem, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	output, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("querying DynamoDB: %w", err)
	}

	items := make([]SoldItem, 0, len(output.Items))
	for _, av := range output.Items {
		var item SoldItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, fmt.Errorf("unmarshaling item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

// NewSoldItemStore creates a new DynamoDB-backed sold-item store.
func NewSoldItemStore(client DynamoDBAPI, tableName string) (*SoldItemStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	return &SoldItemStore{
		client:    client,
		tableName: tableName,
	}, nil
}
