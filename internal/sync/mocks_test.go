package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgreenaway/posbridge/internal/lightspeed"
	"github.com/dgreenaway/posbridge/internal/storage"
)

// mockConnectionStore is an in-memory ConnectionStore for tests.
type mockConnectionStore struct {
	acquireErr    error
	completeCalls []time.Time
	conn          *storage.Connection
	connErr       error
	cursorCalls   []cursorCall
	deleteCalls   int
	locksAcquired int
	locksReleased int
	saveCalls     []*storage.Connection
	tokenUpdates  []tokenUpdate
}

type cursorCall struct {
	cursor    time.Time
	startedAt time.Time
}

type tokenUpdate struct {
	accessToken  string
	expiresAt    time.Time
	refreshToken string
}

func (m *mockConnectionStore) AcquireRunLock(_ context.Context, _ string) error {
	if m.acquireErr != nil {
		return m.acquireErr
	}
	m.locksAcquired++
	return nil
}

func (m *mockConnectionStore) CompleteSyncRun(_ context.Context, _ string, startedAt time.Time) error {
	m.completeCalls = append(m.completeCalls, startedAt)
	if m.conn != nil {
		m.conn.LastSalesSync = startedAt
		m.conn.SyncCursor = time.Time{}
		m.conn.SyncStartedAt = time.Time{}
	}
	return nil
}

func (m *mockConnectionStore) Connection(_ context.Context, _ string) (*storage.Connection, error) {
	if m.connErr != nil {
		return nil, m.connErr
	}
	return m.conn, nil
}

func (m *mockConnectionStore) Delete(_ context.Context, _ string) error {
	m.deleteCalls++
	m.conn = nil
	return nil
}

func (m *mockConnectionStore) ReleaseRunLock(_ context.Context, _ string) error {
	m.locksReleased++
	return nil
}

func (m *mockConnectionStore) Save(_ context.Context, conn *storage.Connection) error {
	m.saveCalls = append(m.saveCalls, conn)
	m.conn = conn
	return nil
}

func (m *mockConnectionStore) UpdateSyncCursor(_ context.Context, _ string, cursor time.Time, startedAt time.Time) error {
	m.cursorCalls = append(m.cursorCalls, cursorCall{cursor: cursor, startedAt: startedAt})
	if m.conn != nil {
		m.conn.SyncCursor = cursor
		m.conn.SyncStartedAt = startedAt
	}
	return nil
}

func (m *mockConnectionStore) UpdateTokens(
	_ context.Context,
	_ string,
	accessToken string,
	refreshToken string,
	expiresAt time.Time,
) error {
	m.tokenUpdates = append(m.tokenUpdates, tokenUpdate{
		accessToken:  accessToken,
		expiresAt:    expiresAt,
		refreshToken: refreshToken,
	})
	if m.conn != nil {
		m.conn.AccessToken = accessToken
		m.conn.ExpiresAt = expiresAt
		m.conn.RefreshToken = refreshToken
	}
	return nil
}

// mockPOSClient serves canned sales pages keyed by page URL. SalesURL
// always returns "page-1" and records the query it was built from.
type mockPOSClient struct {
	fetchTokens  []string
	fetchURLs    []string
	pages        map[string]*lightspeed.SalesPage
	queries      []lightspeed.SalesQuery
	refreshCalls int
	refreshErr   error
	refreshPair  *lightspeed.TokenPair

	// unauthorized maps a page URL to the number of times fetching it
	// fails with a 401 before succeeding.
	unauthorized map[string]int
}

func (m *mockPOSClient) FetchSales(_ context.Context, accessToken string, pageURL string) (*lightspeed.SalesPage, error) {
	m.fetchTokens = append(m.fetchTokens, accessToken)
	m.fetchURLs = append(m.fetchURLs, pageURL)

	if m.unauthorized[pageURL] > 0 {
		m.unauthorized[pageURL]--
		return nil, &lightspeed.APIError{
			Body:       "invalid token",
			StatusCode: http.StatusUnauthorized,
		}
	}

	page, ok := m.pages[pageURL]
	if !ok {
		return &lightspeed.SalesPage{}, nil
	}
	return page, nil
}

func (m *mockPOSClient) RefreshTokens(_ context.Context, _ string) (*lightspeed.TokenPair, error) {
	m.refreshCalls++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.refreshPair, nil
}

func (m *mockPOSClient) SalesURL(q lightspeed.SalesQuery) string {
	m.queries = append(m.queries, q)
	return "page-1"
}

// mockItemWriter records flushed rows, upserting by sale line ID.
type mockItemWriter struct {
	flushErr error
	flushes  [][]storage.SoldItem
	rows     map[string]storage.SoldItem
}

func (m *mockItemWriter) Flush(
	_ context.Context,
	_ string,
	items []storage.SoldItem,
	onProgress func(written int),
	offset int,
) (int, error) {
	if m.flushErr != nil {
		return 0, m.flushErr
	}

	if m.rows == nil {
		m.rows = make(map[string]storage.SoldItem)
	}
	for i := range items {
		m.rows[items[i].SaleLineID] = items[i]
	}

	flushed := make([]storage.SoldItem, len(items))
	copy(flushed, items)
	m.flushes = append(m.flushes, flushed)

	if onProgress != nil && len(items) > 0 {
		onProgress(offset + len(items))
	}

	return len(items), nil
}

// newTestSale decodes a sale from its JSON representation.
func newTestSale(t *testing.T, payload string) lightspeed.Sale {
	t.Helper()

	var sale lightspeed.Sale
	require.NoError(t, json.Unmarshal([]byte(payload), &sale))
	return sale
}

// connectedUser returns a connection with a token that is valid well past
// the refresh buffer.
func connectedUser() *storage.Connection {
	return &storage.Connection{
		AccessToken:  "valid-token",
		AccountID:    "12345",
		AccountName:  "Test Shop",
		ExpiresAt:    time.Now().Add(time.Hour),
		RefreshToken: "refresh-token",
		UserID:       "user-1",
	}
}
