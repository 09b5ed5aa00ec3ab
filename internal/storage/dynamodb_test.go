package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// mockDynamoDB implements DynamoDBAPI with overridable call hooks. Calls
// without a hook succeed with an empty output.
type mockDynamoDB struct {
	batchWriteItemFunc func(ctx context.Context, params *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	deleteItemFunc     func(ctx context.Context, params *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	getItemFunc        func(ctx context.Context, params *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItemFunc        func(ctx context.Context, params *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	queryFunc          func(ctx context.Context, params *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	updateItemFunc     func(ctx context.Context, params *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
}

func (m *mockDynamoDB) BatchWriteItem(
	ctx context.Context,
	params *dynamodb.BatchWriteItemInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.BatchWriteItemOutput, error) {
	if m.batchWriteItemFunc != nil {
		return m.batchWriteItemFunc(ctx, params)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockDynamoDB) DeleteItem(
	ctx context.Context,
	params *dynamodb.DeleteItemInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFunc != nil {
		return m.deleteItemFunc(ctx, params)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockDynamoDB) GetItem(
	ctx context.Context,
	params *dynamodb.GetItemInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamoDB) PutItem(
	ctx context.Context,
	params *dynamodb.PutItemInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDB) Query(
	ctx context.Context,
	params *dynamodb.QueryInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDynamoDB) UpdateItem(
	ctx context.Context,
	params *dynamodb.UpdateItemInput,
	_ ...func(*dynamodb.Options),
) (*dynamodb.UpdateItemOutput, error) {
	if m.updateItemFunc != nil {
		return m.updateItemFunc(ctx, params)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}
