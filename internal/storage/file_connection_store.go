package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileConnectionStore stores a single connection in a local JSON file.
// Used by the CLI auth flow and local development; it implements the same
// surface as ConnectionStore minus the run lock's atomicity guarantees.
type FileConnectionStore struct {
	path string
}

// NewFileConnectionStore creates a new FileConnectionStore that
// reads/writes to the given path.
func NewFileConnectionStore(path string) (*FileConnectionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("connection file path is required")
	}
	return &FileConnectionStore{path: path}, nil
}

// Connection returns the stored connection for the user, or nil if the
// file does not exist or belongs to a different user.
func (s *FileConnectionStore) Connection(_ context.Context, userID string) (*Connection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading connection file: %w", err)
	}

	var conn Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("parsing connection file: %w", err)
	}

	if conn.UserID != userID {
		return nil, nil
	}

	return &conn, nil
}

// Save writes the full connection document to the file.
func (s *FileConnectionStore) Save(_ context.Context, conn *Connection) error {
	if conn == nil {
		return errors.New("connection is required")
	}
	if conn.UserID == "" {
		return errors.New("user ID is required")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating connection directory: %w", err)
	}

	data, err := json.MarshalIndent(conn, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling connection: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing connection file: %w", err)
	}

	return nil
}

// Delete removes the connection file.
func (s *FileConnectionStore) Delete(_ context.Context, _ string) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing connection file: %w", err)
	}
	return nil
}

// UpdateTokens replaces the token pair on the stored connection.
func (s *FileConnectionStore) UpdateTokens(
	ctx context.Context,
	userID string,
	accessToken string,
	refreshToken string,
	expiresAt time.Time,
) error {
	return s.merge(ctx, userID, func(conn *Connection) {
		conn.AccessToken = accessToken
		conn.RefreshToken = refreshToken
		conn.ExpiresAt = expiresAt
	})
}

// UpdateSyncCursor checkpoints the cursor and run start time.
func (s *FileConnectionStore) UpdateSyncCursor(
	ctx context.Context,
	userID string,
	cursor time.Time,
	startedAt time.Time,
) error {
	return s.merge(ctx, userID, func(conn *Connection) {
		conn.SyncCursor = cursor
		conn.SyncStartedAt = startedAt
	})
}

// CompleteSyncRun clears the checkpoint and stamps the last sync time
// with the run's start time.
func (s *FileConnectionStore) CompleteSyncRun(ctx context.Context, userID string, startedAt time.Time) error {
	return s.merge(ctx, userID, func(conn *Connection) {
		conn.LastSalesSync = startedAt
		conn.SyncCursor = time.Time{}
		conn.SyncStartedAt = time.Time{}
	})
}

// AcquireRunLock marks a run as in flight. The file store offers no
// cross-process atomicity; it exists for single-user local runs.
func (s *FileConnectionStore) AcquireRunLock(ctx context.Context, userID string) error {
	conn, err := s.Connection(ctx, userID)
	if err != nil {
		return err
	}
	if conn != nil && conn.SyncRunning {
		return ErrSyncInProgress
	}
	return s.merge(ctx, userID, func(conn *Connection) {
		conn.SyncRunning = true
	})
}

// ReleaseRunLock clears the in-flight marker.
func (s *FileConnectionStore) ReleaseRunLock(ctx context.Context, userID string) error {
	return s.merge(ctx, userID, func(conn *Connection) {
		conn.SyncRunning = false
	})
}

// merge loads the stored connection, applies the mutation, and writes it back.
func (s *FileConnectionStore) merge(ctx context.Context, userID string, apply func(*Connection)) error {
	conn, err := s.Connection(ctx, userID)
	if err != nil {
		return err
	}
	if conn == nil {
		return fmt.Errorf("no connection stored for user %s", userID)
	}

	apply(conn)
	return s.Save(ctx, conn)
}
