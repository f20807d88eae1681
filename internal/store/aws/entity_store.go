package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
	"github.com/stackpilot/tenantctl/internal/models"
	"github.com/stackpilot/tenantctl/internal/store"
	"github.com/stackpilot/tenantctl/internal/telemetry"
)

// Index names on the control-plane table.
const (
	naturalKeyIndex = "GSI1"
	ownerIndex      = "GSI2"
)

// EntityStore is the DynamoDB implementation of store.EntityStore.
type EntityStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewEntityStore creates a DynamoDB entity store bound to one table.
func NewEntityStore(client *dynamodb.Client, tableName string) *EntityStore {
	return &EntityStore{
		client:    client,
		tableName: tableName,
	}
}

// Get loads the item at key into out.
func (s *EntityStore) Get(ctx context.Context, key models.Key, out any) error {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       keyAttributes(key),
	})
	if err != nil {
		return wrapAWSError(ctx, err, "failed to get item")
	}

	if result.Item == nil {
		return store.ErrNotFound
	}

	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return nil
}

// Put writes an item unconditionally.
func (s *EntityStore) Put(ctx context.Context, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return wrapAWSError(ctx, err, "failed to put item")
	}

	return nil
}

// Create writes an item only if nothing exists at its key.
func (s *EntityStore) Create(ctx context.Context, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	// Use ConditionExpression to prevent duplicates
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return store.ErrAlreadyExists
		}
		return wrapAWSError(ctx, err, "failed to create item")
	}

	return nil
}

// Update applies attribute assignments to an existing item.
func (s *EntityStore) Update(ctx context.Context, key models.Key, set map[string]any) error {
	var update expression.UpdateBuilder
	for name, value := range set {
		update = update.Set(expression.Name(name), expression.Value(value))
	}

	condition := expression.AttributeExists(expression.Name("pk"))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(condition).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       keyAttributes(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return store.ErrNotFound
		}
		return wrapAWSError(ctx, err, "failed to update item")
	}

	return nil
}

// Delete removes the item at key. Absent items are a no-op.
func (s *EntityStore) Delete(ctx context.Context, key models.Key) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       keyAttributes(key),
	})
	if err != nil {
		return wrapAWSError(ctx, err, "failed to delete item")
	}

	return nil
}

// Query loads all items sharing pk whose sort key begins with skPrefix.
func (s *EntityStore) Query(ctx context.Context, pk, skPrefix string, out any) error {
	keyCond := expression.Key("pk").Equal(expression.Value(pk))
	if skPrefix != "" {
		keyCond = keyCond.And(expression.Key("sk").BeginsWith(skPrefix))
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return wrapAWSError(ctx, err, "failed to query items")
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal items: %w", err)
	}

	return nil
}

// FindByNaturalKey looks up a single item on GSI1 (entity-type, natural-key).
func (s *EntityStore) FindByNaturalKey(ctx context.Context, entityType, naturalKey string, out any) error {
	keyCond := expression.Key("gsi1pk").Equal(expression.Value(entityType)).
		And(expression.Key("gsi1sk").Equal(expression.Value(naturalKey)))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(naturalKeyIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return wrapAWSError(ctx, err, "failed to query natural key index")
	}

	if len(result.Items) == 0 {
		return store.ErrNotFound
	}

	if err := attributevalue.UnmarshalMap(result.Items[0], out); err != nil {
		return fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return nil
}

// QueryOwned loads items of one entity type owned by ownerPK from GSI2.
func (s *EntityStore) QueryOwned(ctx context.Context, ownerPK, entityType string, out any) error {
	keyCond := expression.Key("gsi2pk").Equal(expression.Value(ownerPK)).
		And(expression.Key("gsi2sk").BeginsWith(entityType + "#"))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(ownerIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return wrapAWSError(ctx, err, "failed to query owner index")
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal items: %w", err)
	}

	return nil
}

// queryAll follows pagination until all matching items are collected.
func (s *EntityStore) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue

	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}

	return items, nil
}

func keyAttributes(key models.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: key.PK},
		"sk": &types.AttributeValueMemberS{Value: key.SK},
	}
}

// wrapAWSError wraps AWS SDK errors, identifying throttling errors
// Returns store.ErrThrottled for throttling errors, otherwise wraps the original error
func wrapAWSError(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	// Check for DynamoDB throttling errors
	var provisionedErr *types.ProvisionedThroughputExceededException
	if errors.As(err, &provisionedErr) {
		telemetry.GetMetrics().RecordThrottle(ctx, "dynamodb")
		return fmt.Errorf("%s: %w: %v", msg, store.ErrThrottled, err)
	}

	// Check for common throttling error messages in error strings
	// AWS SDK v2 doesn't always use typed errors for all services
	errMsg := err.Error()
	if strings.Contains(errMsg, "ThrottlingException") ||
		strings.Contains(errMsg, "RequestLimitExceeded") ||
		strings.Contains(errMsg, "TooManyRequestsException") ||
		strings.Contains(errMsg, "Throttling") {
		log.Debug().Err(err).Msg("throttled store call")
		telemetry.GetMetrics().RecordThrottle(ctx, "dynamodb")
		return fmt.Errorf("%s: %w: %v", msg, store.ErrThrottled, err)
	}

	// Wrap other AWS errors
	return fmt.Errorf("%s: %w", msg, err)
}
