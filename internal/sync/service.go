package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dgreenaway/posbridge/internal/lightspeed"
	"github.com/dgreenaway/posbridge/internal/storage"
)

const (
	// defaultFlushThreshold is the buffered row count that triggers a flush.
	defaultFlushThreshold = 1000

	// defaultPageDelay throttles request rate between page fetches to
	// stay within the API's rate limits. The pause is blocking, not
	// best-effort, but honors context cancellation.
	defaultPageDelay = 500 * time.Millisecond
)

// Config holds the required configuration for creating a Service.
type Config struct {
	// Client is the Lightspeed API client.
	Client POSClient

	// Connections manages connection and checkpoint persistence.
	Connections ConnectionStore

	// DryRun indicates whether to skip all writes to storage.
	DryRun bool

	// FlushThreshold overrides the buffered row count that triggers a
	// flush. Default is 1000.
	FlushThreshold int

	// Items persists sold-item rows.
	Items ItemWriter

	// Logger is the structured logger for the service.
	Logger *slog.Logger

	// PageDelay overrides the inter-page throttle delay. Default is 500ms.
	PageDelay time.Duration
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Client == nil {
		errs = append(errs, errors.New("lightspeed client is required"))
	}
	if c.Connections == nil {
		errs = append(errs, errors.New("connection store is required"))
	}
	if c.Items == nil {
		errs = append(errs, errors.New("item writer is required"))
	}
	return errors.Join(errs...)
}

// Service orchestrates the sync of POS sales history into per-user storage.
type Service struct {
	client         POSClient
	connections    ConnectionStore
	dryRun         bool
	flushThreshold int
	items          ItemWriter
	logger         *slog.Logger
	now            func() time.Time
	pageDelay      time.Duration
	tokens         *TokenManager
}

// New creates a new sync orchestration service.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	items := cfg.Items
	if cfg.DryRun {
		items = newDryRunWriter(logger)
	}

	flushThreshold := cfg.FlushThreshold
	if flushThreshold <= 0 {
		flushThreshold = defaultFlushThreshold
	}

	pageDelay := cfg.PageDelay
	if pageDelay <= 0 {
		pageDelay = defaultPageDelay
	}

	return &Service{
		client:         cfg.Client,
		connections:    cfg.Connections,
		dryRun:         cfg.DryRun,
		flushThreshold: flushThreshold,
		items:          items,
		logger:         logger,
		now:            time.Now,
		pageDelay:      pageDelay,
		tokens:         NewTokenManager(cfg.Client, cfg.Connections, logger),
	}, nil
}

// SyncSales runs one sync for the user: it selects the run mode from the
// connection's checkpoint state, pages through the sales history newest to
// oldest, flattens each sale into sold-item rows, flushes them in batches
// with cursor checkpoints, and finalizes the run. onProgress, if non-nil,
// receives human-readable status messages as the run advances.
//
// A run that fails before finalizing leaves its cursor checkpoint intact,
// so the next invocation resumes instead of starting over.
func (s *Service) SyncSales(ctx context.Context, userID string, onProgress func(string)) (*Result, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}

	progress := func(format string, args ...any) {
		if onProgress != nil {
			onProgress(fmt.Sprintf(format, args...))
		}
	}

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "user_id", userID)

	conn, err := s.connections.Connection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading connection: %w", err)
	}
	if conn == nil {
		return nil, ErrNotConnected
	}

	if !s.dryRun {
		if err := s.connections.AcquireRunLock(ctx, userID); err != nil {
			return nil, err
		}
		defer func() {
			if err := s.connections.ReleaseRunLock(ctx, userID); err != nil {
				logger.Error("failed to release run lock", "error", err)
			}
		}()
	}

	plan := planRun(conn, s.now())

	logger.Info("starting sales sync",
		"mode", plan.mode.String(),
		"account_id", conn.AccountID,
		"started_at", plan.startedAt,
		"dry_run", s.dryRun)
	progress("Starting %s sync", plan.mode)

	token, _, err := s.tokens.EnsureValidToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	total, err := s.runLoop(ctx, logger, runState{
		accountID: conn.AccountID,
		plan:      plan,
		progress:  progress,
		token:     token,
		userID:    userID,
	})
	if err != nil {
		return nil, err
	}

	if !s.dryRun {
		if err := s.connections.CompleteSyncRun(ctx, userID, plan.startedAt); err != nil {
			return nil, fmt.Errorf("completing sync run: %w", err)
		}
	}

	logger.Info("sales sync completed", "synced", total)
	progress("Sync complete: %d items", total)

	return &Result{
		DryRun: s.dryRun,
		RunID:  runID,
		Synced: total,
		Total:  total,
	}, nil
}

// runState carries the per-run values threaded through the fetch loop.
type runState struct {
	accountID string
	plan      runPlan
	progress  func(format string, args ...any)
	token     string
	userID    string
}

// runLoop drives the paginated fetch until the stream ends, flushing the
// row buffer whenever it reaches the threshold. Returns the number of
// rows persisted.
func (s *Service) runLoop(ctx context.Context, logger *slog.Logger, st runState) (int, error) {
	query := lightspeed.SalesQuery{AccountID: st.accountID}
	switch st.plan.mode {
	case modeIncremental:
		query.UpdatedAfter = st.plan.since
	case modeResume:
		query.UpdatedBefore = st.plan.cursor
	}

	pageURL := s.client.SalesURL(query)
	syncedAt := s.now().UTC()

	var buffer []storage.SoldItem
	var oldest time.Time
	total := 0
	pageNum := 0

	for pageURL != "" {
		page, err := s.fetchPage(ctx, logger, st.userID, &st.token, pageURL)
		if err != nil {
			return total, err
		}
		pageNum++

		// An empty page means the end of the stream, not an error.
		if len(page.Sales) == 0 {
			break
		}

		for i := range page.Sales {
			sale := &page.Sales[i]
			buffer = append(buffer, sale.ToSoldItems(syncedAt)...)

			if ts := sale.TimeStamp.Time; !ts.IsZero() && (oldest.IsZero() || ts.Before(oldest)) {
				oldest = ts
			}
		}

		logger.Info("fetched sales page", "page", pageNum, "sales", len(page.Sales), "buffered", len(buffer))
		st.progress("Fetched page %d (%d sales)", pageNum, len(page.Sales))

		if len(buffer) >= s.flushThreshold {
			total, err = s.flushBuffer(ctx, st, buffer, oldest, total)
			if err != nil {
				return total, err
			}
			buffer = buffer[:0]
		}

		pageURL = page.Next
		if pageURL == "" {
			break
		}
		if err := sleepContext(ctx, s.pageDelay); err != nil {
			return total, err
		}
	}

	if len(buffer) > 0 {
		var err error
		total, err = s.flushBuffer(ctx, st, buffer, oldest, total)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// fetchPage fetches one page, recovering exactly once from a rejected
// access token by refreshing and retrying the same page. The refreshed
// token replaces *token for subsequent pages. Any other error propagates.
func (s *Service) fetchPage(
	ctx context.Context,
	logger *slog.Logger,
	userID string,
	token *string,
	pageURL string,
) (*lightspeed.SalesPage, error) {
	page, err := s.client.FetchSales(ctx, *token, pageURL)
	if err == nil {
		return page, nil
	}

	var apiErr *lightspeed.APIError
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() {
		return nil, err
	}

	logger.Warn("access token rejected mid-run, refreshing", "error", err)

	refreshed, err := s.tokens.ForceRefresh(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("refreshing rejected token: %w", err)
	}
	*token = refreshed

	page, err = s.client.FetchSales(ctx, *token, pageURL)
	if err != nil {
		return nil, fmt.Errorf("retrying page after token refresh: %w", err)
	}
	return page, nil
}

// flushBuffer persists the buffered rows and, outside incremental mode,
// checkpoints the oldest update time seen so an interrupted run can resume.
func (s *Service) flushBuffer(
	ctx context.Context,
	st runState,
	rows []storage.SoldItem,
	oldest time.Time,
	total int,
) (int, error) {
	written, err := s.items.Flush(ctx, st.userID, rows, func(n int) {
		st.progress("Saved %d items", n)
	}, total)
	total += written
	if err != nil {
		return total, fmt.Errorf("flushing %d rows: %w", len(rows), err)
	}

	if st.plan.mode != modeIncremental && !oldest.IsZero() && !s.dryRun {
		if err := s.connections.UpdateSyncCursor(ctx, st.userID, oldest, st.plan.startedAt); err != nil {
			return total, fmt.Errorf("checkpointing sync cursor: %w", err)
		}
	}

	return total, nil
}

// Connection returns the user's connection, or ErrNotConnected if none exists.
func (s *Service) Connection(ctx context.Context, userID string) (*storage.Connection, error) {
	conn, err := s.connections.Connection(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// SaveConnection stores the full connection document.
func (s *Service) SaveConnection(ctx context.Context, conn *storage.Connection) error {
	return s.connections.Save(ctx, conn)
}

// Disconnect removes the user's connection. Synced sold items are kept.
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	return s.connections.Delete(ctx, userID)
}

// sleepContext pauses for the given duration or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
