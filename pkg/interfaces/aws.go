// Package interfaces provides abstractions for AWS SDK operations to enable mocking
package interfaces

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDBClientInterface abstracts the DynamoDB operations the document gateway uses
type DynamoDBClientInterface interface {
	// Table bootstrap
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)

	// Data Operations
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// TableWaiterInterface abstracts DynamoDB table waiters for mocking
type TableWaiterInterface interface {
	// Wait waits for a table to reach the desired state
	Wait(ctx context.Context, params *dynamodb.DescribeTableInput, maxWaitDur time.Duration, optFns ...func(*dynamodb.TableExistsWaiterOptions)) error
}

var _ DynamoDBClientInterface = (*dynamodb.Client)(nil)

// TableExistsWaiterWrapper wraps the real AWS table exists waiter
type TableExistsWaiterWrapper struct {
	waiter *dynamodb.TableExistsWaiter
}

// NewTableExistsWaiterWrapper creates a new wrapper around the AWS table exists waiter
func NewTableExistsWaiterWrapper(client dynamodb.DescribeTableAPIClient) *TableExistsWaiterWrapper {
	return &TableExistsWaiterWrapper{
		waiter: dynamodb.NewTableExistsWaiter(client),
	}
}

// Wait blocks until the table is ACTIVE or maxWaitDur elapses
func (w *TableExistsWaiterWrapper) Wait(ctx context.Context, params *dynamodb.DescribeTableInput, maxWaitDur time.Duration, optFns ...func(*dynamodb.TableExistsWaiterOptions)) error {
	return w.waiter.Wait(ctx, params, maxWaitDur, optFns...)
}
