package sync

import (
	"context"
	"log/slog"

	"github.com/dgreenaway/posbridge/internal/storage"
)

// dryRunWriter logs what would be written instead of persisting anything.
type dryRunWriter struct {
	logger *slog.Logger
}

// newDryRunWriter creates a new dryRunWriter.
func newDryRunWriter(logger *slog.Logger) *dryRunWriter {
	return &dryRunWriter{logger: logger}
}

// Flush logs the rows that would be written and reports them all as written.
func (d *dryRunWriter) Flush(
	_ context.Context,
	userID string,
	items []storage.SoldItem,
	onProgress func(written int),
	offset int,
) (int, error) {
	for i := range items {
		d.logger.Info("[DRY-RUN] would write sold item",
			"user_id", userID,
			"sale_line_id", items[i].SaleLineID,
			"sale_id", items[i].SaleID,
			"quantity", items[i].Quantity,
			"calc_total", items[i].CalcTotal)
	}

	if onProgress != nil && len(items) > 0 {
		onProgress(offset + len(items))
	}

	return len(items), nil
}
