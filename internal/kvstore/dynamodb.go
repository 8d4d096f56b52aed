package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/starford/synka/internal/apperr"
)

// DynamoDBStore keeps entries in a DynamoDB table keyed by the string
// attribute "store_key". The table must already exist.
type DynamoDBStore struct {
	client *dynamodb.Client
	table  string
}

var _ Store = (*DynamoDBStore)(nil)

type dynamoItem struct {
	Key       string `dynamodbav:"store_key"`
	Value     []byte `dynamodbav:"store_value"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

// OpenDynamoDB loads the default AWS configuration (environment, shared
// config files) and checks that the table is reachable.
func OpenDynamoDB(ctx context.Context, table string, opts DynamoDBOptions) (*DynamoDBStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("kvstore: load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}); err != nil {
		return nil, fmt.Errorf("kvstore: describe dynamodb table %s: %w", table, err)
	}
	return &DynamoDBStore{client: client, table: table}, nil
}

func (s *DynamoDBStore) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"store_key": &types.AttributeValueMemberS{Value: key},
	}
}

// Get returns the value stored under key.
func (s *DynamoDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("kvstore: dynamodb get %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, apperr.ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("kvstore: dynamodb decode %s: %w", key, err)
	}
	return item.Value, nil
}

// Set puts the value under key.
func (s *DynamoDBStore) Set(ctx context.Context, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(dynamoItem{Key: key, Value: value, UpdatedAt: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("kvstore: dynamodb encode %s: %w", key, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("kvstore: dynamodb put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *DynamoDBStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(key),
	}); err != nil {
		return fmt.Errorf("kvstore: dynamodb delete %s: %w", key, err)
	}
	return nil
}

// Status reports the approximate item count and table size DynamoDB publishes.
func (s *DynamoDBStore) Status(ctx context.Context) (Status, error) {
	status := Status{Backend: string(DynamoDBBackend)}
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return status, fmt.Errorf("kvstore: describe dynamodb table: %w", err)
	}
	status.Connected = true
	if out.Table != nil {
		status.TotalEntries = int(aws.ToInt64(out.Table.ItemCount))
		status.TableSizeBytes = aws.ToInt64(out.Table.TableSizeBytes)
	}
	return status, nil
}

// Close is a no-op; the AWS client holds no persistent connection.
func (s *DynamoDBStore) Close() error {
	return nil
}
