// Package dynamo implements the document gateway on DynamoDB.
//
// Each collection maps to one table named TablePrefix+collection whose
// partition key is the string attribute "id". Filters compile to Scan
// FilterExpressions; ordering is applied after the scan because Scan
// returns items in no particular order.
package dynamo

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/theory-cloud/docquery/internal/expr"
	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/interfaces"
	"github.com/theory-cloud/docquery/pkg/logger"
	dqtypes "github.com/theory-cloud/docquery/pkg/types"
	"github.com/theory-cloud/docquery/pkg/validation"
)

// DefaultTableWait bounds how long EnsureTable waits for a new table
const DefaultTableWait = 5 * time.Minute

// Options configures a Gateway
type Options struct {
	Logger      *slog.Logger
	Converter   *dqtypes.Converter
	NewID       func() string
	Waiter      interfaces.TableWaiterInterface
	TablePrefix string
	// ScanPageSize sets the Scan Limit (items evaluated per page). Zero leaves it to DynamoDB.
	ScanPageSize   int32
	ConsistentRead bool
}

// Gateway stores documents in DynamoDB tables
type Gateway struct {
	client    interfaces.DynamoDBClientInterface
	converter *dqtypes.Converter
	logger    *slog.Logger
	newID     func() string
	waiter    interfaces.TableWaiterInterface
	opts      Options
}

var _ core.Gateway = (*Gateway)(nil)

// New creates a gateway over a DynamoDB client
func New(client interfaces.DynamoDBClientInterface, opts Options) *Gateway {
	g := &Gateway{
		client:    client,
		converter: opts.Converter,
		logger:    opts.Logger,
		newID:     opts.NewID,
		waiter:    opts.Waiter,
		opts:      opts,
	}
	if g.converter == nil {
		g.converter = dqtypes.NewConverter()
	}
	if g.logger == nil {
		g.logger = logger.Nop()
	}
	if g.newID == nil {
		g.newID = uuid.NewString
	}
	if g.waiter == nil {
		g.waiter = interfaces.NewTableExistsWaiterWrapper(client)
	}
	return g
}

// TableName returns the table backing a collection
func (g *Gateway) TableName(collection string) string {
	return g.opts.TablePrefix + collection
}

// QueryCollection scans the collection table with the compiled filter
func (g *Gateway) QueryCollection(ctx context.Context, query *core.CompiledQuery) ([]core.Document, error) {
	table := g.TableName(query.Collection)

	builder := expr.NewBuilder(g.converter)
	if err := builder.SetFilter(query.Filter); err != nil {
		return nil, fmt.Errorf("failed to build filter for %s: %w", table, err)
	}
	components := builder.Build()

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(table),
		ExpressionAttributeNames:  components.ExpressionAttributeNames,
		ExpressionAttributeValues: components.ExpressionAttributeValues,
		ConsistentRead:            aws.Bool(g.opts.ConsistentRead),
	}
	if components.FilterExpression != "" {
		input.FilterExpression = aws.String(components.FilterExpression)
	}
	if g.opts.ScanPageSize > 0 {
		input.Limit = aws.Int32(g.opts.ScanPageSize)
	}

	// Without an ordering the first Limit matches are as good as any others.
	// With one, every page is needed before sorting.
	stopEarly := query.Limit > 0 && len(query.OrderBy) == 0

	docs := make([]core.Document, 0)
	for {
		out, err := g.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		for _, item := range out.Items {
			doc, err := g.converter.FromItem(item)
			if err != nil {
				return nil, fmt.Errorf("failed to decode item from %s: %w", table, err)
			}
			docs = append(docs, doc)
		}
		g.logger.DebugContext(ctx, "scanned page",
			slog.String("table", table),
			slog.Int("items", len(out.Items)),
			slog.Bool("more", len(out.LastEvaluatedKey) > 0),
		)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		if stopEarly && len(docs) >= query.Limit {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	core.SortDocuments(docs, query.OrderBy)
	if query.Limit > 0 && len(docs) > query.Limit {
		docs = docs[:query.Limit]
	}
	return docs, nil
}

// ReadDocument fetches one item by id
func (g *Gateway) ReadDocument(ctx context.Context, collection, id string) (core.Document, bool, error) {
	table := g.TableName(collection)
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(g.opts.ConsistentRead),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get item %s from %s: %w", id, table, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	doc, err := g.converter.FromItem(out.Item)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode item %s from %s: %w", id, table, err)
	}
	doc[core.IdentityField] = id
	return doc, true, nil
}

// CreateDocument puts a new item under a generated id
func (g *Gateway) CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error) {
	table := g.TableName(collection)
	item, err := g.converter.ToItem(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode document for %s: %w", table, err)
	}

	id := g.newID()
	item[core.IdentityField] = &types.AttributeValueMemberS{Value: id}

	builder := expr.NewBuilder(g.converter)
	builder.AddAttributeNotExists(core.IdentityField)
	components := builder.Build()

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String(components.ConditionExpression),
		ExpressionAttributeNames: components.ExpressionAttributeNames,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return "", fmt.Errorf("document id %s already exists in %s: %w", id, table, err)
		}
		return "", fmt.Errorf("failed to put item into %s: %w", table, err)
	}
	return id, nil
}

// UpdateDocument sets top-level fields on an existing item
func (g *Gateway) UpdateDocument(ctx context.Context, collection, id string, data map[string]any) error {
	table := g.TableName(collection)

	fields := make([]string, 0, len(data))
	for field := range data {
		if field == core.IdentityField {
			continue
		}
		fields = append(fields, field)
	}
	if len(fields) == 0 {
		_, found, err := g.ReadDocument(ctx, collection, id)
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrItemNotFound
		}
		return nil
	}
	sort.Strings(fields)

	builder := expr.NewBuilder(g.converter)
	for _, field := range fields {
		if err := builder.AddUpdateSet(field, data[field]); err != nil {
			return fmt.Errorf("failed to build update for %s: %w", table, err)
		}
	}
	builder.AddAttributeExists(core.IdentityField)
	components := builder.Build()

	_, err := g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(components.UpdateExpression),
		ConditionExpression:       aws.String(components.ConditionExpression),
		ExpressionAttributeNames:  components.ExpressionAttributeNames,
		ExpressionAttributeValues: components.ExpressionAttributeValues,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return errors.ErrItemNotFound
		}
		return fmt.Errorf("failed to update item %s in %s: %w", id, table, err)
	}
	return nil
}

// DeleteDocument removes an existing item
func (g *Gateway) DeleteDocument(ctx context.Context, collection, id string) error {
	table := g.TableName(collection)

	builder := expr.NewBuilder(g.converter)
	builder.AddAttributeExists(core.IdentityField)
	components := builder.Build()

	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(table),
		Key:                      idKey(id),
		ConditionExpression:      aws.String(components.ConditionExpression),
		ExpressionAttributeNames: components.ExpressionAttributeNames,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return errors.ErrItemNotFound
		}
		return fmt.Errorf("failed to delete item %s from %s: %w", id, table, err)
	}
	return nil
}

// TableOption configures table creation
type TableOption func(*dynamodb.CreateTableInput)

// WithBillingMode sets the billing mode for the table
func WithBillingMode(mode types.BillingMode) TableOption {
	return func(input *dynamodb.CreateTableInput) {
		input.BillingMode = mode
		if mode == types.BillingModePayPerRequest {
			input.ProvisionedThroughput = nil
		}
	}
}

// WithThroughput sets provisioned throughput for the table
func WithThroughput(rcu, wcu int64) TableOption {
	return func(input *dynamodb.CreateTableInput) {
		input.BillingMode = types.BillingModeProvisioned
		input.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(rcu),
			WriteCapacityUnits: aws.Int64(wcu),
		}
	}
}

// EnsureTable creates the collection table when it does not exist and waits
// for it to become active. It reports whether a table was created.
func (g *Gateway) EnsureTable(ctx context.Context, collection string, opts ...TableOption) (bool, error) {
	if err := validation.ValidateCollectionName(collection); err != nil {
		return false, err
	}
	table := g.TableName(collection)

	_, err := g.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return false, nil
	}
	var notFoundErr *types.ResourceNotFoundException
	if !stderrors.As(err, &notFoundErr) {
		return false, fmt.Errorf("failed to describe table %s: %w", table, err)
	}

	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: types.BillingModePayPerRequest,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(core.IdentityField), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(core.IdentityField), AttributeType: types.ScalarAttributeTypeS},
		},
	}
	for _, opt := range opts {
		opt(input)
	}

	if _, err := g.client.CreateTable(ctx, input); err != nil {
		var existsErr *types.ResourceInUseException
		if stderrors.As(err, &existsErr) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create table %s: %w", table, err)
	}

	g.logger.InfoContext(ctx, "created table", slog.String("table", table))

	if err := g.waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, DefaultTableWait); err != nil {
		return true, fmt.Errorf("failed waiting for table %s to be active: %w", table, err)
	}
	return true, nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		core.IdentityField: &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionalCheckFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return stderrors.As(err, &cfe)
}
