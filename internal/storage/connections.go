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

// ErrSyncInProgress is returned when a run lock is already held for a user.
var ErrSyncInProgress = errors.New("a sync run is already in progress for this user")

// Connection is the persisted OAuth and sync-checkpoint state for one
// Lightspeed account, scoped to one user. At most one of LastSalesSync and
// SyncCursor drives resumption at a time; their joint state selects the
// sync mode for the next run.
type Connection struct {
	// AccessToken is the current OAuth access token.
	AccessToken string `dynamodbav:"access_token"`

	// AccountID is the Lightspeed account identifier.
	AccountID string `dynamodbav:"account_id"`

	// AccountName is the Lightspeed account display name.
	AccountName string `dynamodbav:"account_name"`

	// ExpiresAt is when the access token expires.
	ExpiresAt time.Time `dynamodbav:"expires_at"`

	// LastSalesSync is the start time of the last completed sync run.
	// Zero when no run has completed.
	LastSalesSync time.Time `dynamodbav:"last_sales_sync,omitempty"`

	// RefreshToken is the current OAuth refresh token.
	RefreshToken string `dynamodbav:"refresh_token"`

	// SyncCursor is the oldest update-time boundary seen by an in-progress
	// historical run. Zero when no run is in progress.
	SyncCursor time.Time `dynamodbav:"sync_cursor,omitempty"`

	// SyncRunning marks a run as in flight to reject concurrent runs.
	SyncRunning bool `dynamodbav:"sync_running"`

	// SyncStartedAt is when the in-progress run originally started.
	// Zero when no run is in progress.
	SyncStartedAt time.Time `dynamodbav:"sync_started_at,omitempty"`

	// UserID identifies the user owning this connection.
	UserID string `dynamodbav:"user_id"`
}

// ConnectionStore persists per-user connections in DynamoDB. All partial
// writes are attribute-level merges so unrelated connection fields are
// never clobbered.
type ConnectionStore struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// tableName is the name of the connections table.
	tableName string
}

// Connection returns the user's connection, or nil if none exists.
func (s *ConnectionStore) Connection(ctx context.Context, userID string) (*Connection, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}

	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       connectionKey(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting connection from DynamoDB: %w", err)
	}

	if output.Item == nil {
		return nil, nil
	}

	var conn Connection
	if err := attributevalue.UnmarshalMap(output.Item, &conn); err != nil {
		return nil, fmt.Errorf("unmarshaling connection: %w", err)
	}

	return &conn, nil
}

// Save stores the full connection document.
func (s *ConnectionStore) Save(ctx context.Context, conn *Connection) error {
	if conn == nil {
		return errors.New("connection is required")
	}
	if conn.UserID == "" {
		return errors.New("user ID is required")
	}

	av, err := attributevalue.MarshalMap(conn)
	if err != nil {
		return fmt.Errorf("marshaling connection: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting connection to DynamoDB: %w", err)
	}

	return nil
}

// Delete removes the user's connection.
func (s *ConnectionStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user ID is required")
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       connectionKey(userID),
	})
	if err != nil {
		return fmt.Errorf("deleting connection from DynamoDB: %w", err)
	}

	return nil
}

// UpdateTokens durably replaces the token pair on the connection.
func (s *ConnectionStore) UpdateTokens(
	ctx context.Context,
	userID string,
	accessToken string,
	refreshToken string,
	expiresAt time.Time,
) error {
	if userID == "" {
		return errors.New("user ID is required")
	}
	if accessToken == "" {
		return errors.New("access token is required")
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              connectionKey(userID),
		UpdateExpression: aws.String("SET access_token = :at, refresh_token = :rt, expires_at = :exp"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at":  &types.AttributeValueMemberS{Value: accessToken},
			":rt":  &types.AttributeValueMemberS{Value: refreshToken},
			":exp": &types.AttributeValueMemberS{Value: expiresAt.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("updating tokens in DynamoDB: %w", err)
	}

	return nil
}

// UpdateSyncCursor checkpoints the oldest update-time boundary seen by the
// in-progress run, preserving the run's original start time.
func (s *ConnectionStore) UpdateSyncCursor(
	ctx context.Context,
	userID string,
	cursor time.Time,
	startedAt time.Time,
) error {
	if userID == "" {
		return errors.New("user ID is required")
	}
	if cursor.IsZero() {
		return errors.New("cursor is required")
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              connectionKey(userID),
		UpdateExpression: aws.String("SET sync_cursor = :cur, sync_started_at = :st"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cur": &types.AttributeValueMemberS{Value: cursor.UTC().Format(time.RFC3339)},
			":st":  &types.AttributeValueMemberS{Value: startedAt.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("updating sync cursor in DynamoDB: %w", err)
	}

	return nil
}

// CompleteSyncRun clears the resumption checkpoint and stamps the last
// sync time with the run's start time. Using the start time rather than
// the completion time keeps the next incremental window conservative:
// records updated while the run was in flight are fetched again.
func (s *ConnectionStore) CompleteSyncRun(ctx context.Context, userID string, startedAt time.Time) error {
	if userID == "" {
		return errors.New("user ID is required")
	}
	if startedAt.IsZero() {
		return errors.New("start time is required")
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              connectionKey(userID),
		UpdateExpression: aws.String("SET last_sales_sync = :ls REMOVE sync_cursor, sync_started_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ls": &types.AttributeValueMemberS{Value: startedAt.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("completing sync run in DynamoDB: %w", err)
	}

	return nil
}

// AcquireRunLock atomically marks a sync run as in flight. It fails with
// ErrSyncInProgress if another run already holds the lock.
func (s *ConnectionStore) AcquireRunLock(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user ID is required")
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 connectionKey(userID),
		UpdateExpression:    aws.String("SET sync_running = :t"),
		ConditionExpression: aws.String("attribute_not_exists(sync_running) OR sync_running = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrSyncInProgress
		}
		return fmt.Errorf("acquiring run lock in DynamoDB: %w", err)
	}

	return nil
}

// ReleaseRunLock clears the in-flight marker.
func (s *ConnectionStore) ReleaseRunLock(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user ID is required")
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              connectionKey(userID),
		UpdateExpression: aws.String("SET sync_running = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return fmt.Errorf("releasing run lock in DynamoDB: %w", err)
	}

	return nil
}

// connectionKey builds the primary key for a user's connection item.
func connectionKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

// NewConnectionStore creates a new DynamoDB-backed connection store.
func NewConnectionStore(client DynamoDBAPI, tableName string) (*ConnectionStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	return &ConnectionStore{
		client:    client,
		tableName: tableName,
	}, nil
}
