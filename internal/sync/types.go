// Package sync provides orchestration for syncing POS sales history into
// per-user storage.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/dgreenaway/posbridge/internal/lightspeed"
	"github.com/dgreenaway/posbridge/internal/storage"
)

// ErrNotConnected is returned when a user has no POS connection.
var ErrNotConnected = errors.New("no POS connection exists for this user")

// Result contains the outcome of a sync run.
type Result struct {
	// DryRun indicates this was a dry-run (no writes to storage).
	DryRun bool

	// RunID uniquely identifies the run for log correlation.
	RunID string

	// Synced is the number of sold-item rows persisted.
	Synced int

	// Total equals Synced; only persisted rows are tracked.
	Total int
}

// ConnectionStore manages persistent connection and checkpoint state.
type ConnectionStore interface {
	// AcquireRunLock atomically marks a sync run as in flight, failing
	// with storage.ErrSyncInProgress if one is already running.
	AcquireRunLock(ctx context.Context, userID string) error

	// CompleteSyncRun clears the resumption checkpoint and stamps the
	// last sync time with the run's start time.
	CompleteSyncRun(ctx context.Context, userID string, startedAt time.Time) error

	// Connection returns the user's connection, or nil if none exists.
	Connection(ctx context.Context, userID string) (*storage.Connection, error)

	// Delete removes the user's connection.
	Delete(ctx context.Context, userID string) error

	// ReleaseRunLock clears the in-flight marker.
	ReleaseRunLock(ctx context.Context, userID string) error

	// Save stores the full connection document.
	Save(ctx context.Context, conn *storage.Connection) error

	// UpdateSyncCursor checkpoints the oldest update-time boundary seen
	// by the in-progress run.
	UpdateSyncCursor(ctx context.Context, userID string, cursor time.Time, startedAt time.Time) error

	// UpdateTokens durably replaces the token pair on the connection.
	UpdateTokens(
		ctx context.Context,
		userID string,
		accessToken string,
		refreshToken string,
		expiresAt time.Time,
	) error
}

// POSClient defines the Lightspeed operations required by the sync service.
type POSClient interface {
	// FetchSales fetches one page of sales from the given page URL.
	FetchSales(ctx context.Context, accessToken string, pageURL string) (*lightspeed.SalesPage, error)

	// RefreshTokens exchanges a refresh token for a fresh token pair.
	RefreshTokens(ctx context.Context, refreshToken string) (*lightspeed.TokenPair, error)

	// SalesURL builds the URL of the first page for the given query.
	SalesURL(q lightspeed.SalesQuery) string
}

// ItemWriter persists sold-item rows in bounded-size batches.
type ItemWriter interface {
	// Flush writes rows in batches, upserting each by its sale line ID.
	// onProgress fires after each committed batch with offset plus the
	// running total. Returns the number of rows written.
	Flush(
		ctx context.Context,
		userID string,
		items []storage.SoldItem,
		onProgress func(written int),
		offset int,
	) (int, error)
}
