package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
)

type cartLineRecord struct {
	ProductID string `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
}

type cartRecord struct {
	PK        string           `dynamodbav:"PK"`
	SK        string           `dynamodbav:"SK"`
	UserID    string           `dynamodbav:"user_id"`
	Lines     []cartLineRecord `dynamodbav:"lines"`
	Version   int64            `dynamodbav:"version"`
	UpdatedAt time.Time        `dynamodbav:"updated_at"`
}

type CartRepository struct {
	client    *dynamodb.Client
	tableName string
}

func NewCartRepository(client *dynamodb.Client, tableName string) *CartRepository {
	return &CartRepository{
		client:    client,
		tableName: tableName,
	}
}

func (r *CartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(userPK(userID), skCart),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if len(out.Item) == 0 {
		return &domain.Cart{UserID: userID}, nil
	}
	var rec cartRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	cart := &domain.Cart{
		UserID:    userID,
		Lines:     make([]domain.CartLine, 0, len(rec.Lines)),
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	}
	for _, l := range rec.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return cart, nil
}

func (r *CartRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	rec := cartRecord{
		PK:        userPK(cart.UserID),
		SK:        skCart,
		UserID:    cart.UserID,
		Lines:     make([]cartLineRecord, 0, len(cart.Lines)),
		Version:   cart.Version + 1,
		UpdatedAt: now,
	}
	for _, l := range cart.Lines {
		rec.Lines = append(rec.Lines, cartLineRecord{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	cond, names, values := versionCondition(cart.Version)
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrConcurrentUpdate
		}
		return fmt.Errorf("failed to put cart: %w", err)
	}
	cart.Version = rec.Version
	cart.UpdatedAt = now
	return nil
}

func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	_, err := r.client.UpdateItem(ctx, clearCartUpdate(r.tableName, userID, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func clearCartUpdate(table, userID string, now time.Time) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:        aws.String(table),
		Key:              key(userPK(userID), skCart),
		UpdateExpression: aws.String("SET #lines = :empty, user_id = :uid, updated_at = :now, #v = if_not_exists(#v, :zero) + :one"),
		ExpressionAttributeNames: map[string]string{
			"#lines": "lines",
			"#v":     "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":uid":   str(userID),
			":now":   stamp(now),
			":zero":  num(0),
			":one":   num(1),
		},
	}
}

// versionCondition guards a cart write against a concurrent one. Version 0
// means the cart was never stored.
func versionCondition(version int64) (string, map[string]string, map[string]types.AttributeValue) {
	if version == 0 {
		return "attribute_not_exists(PK)", nil, nil
	}
	return "#v = :v",
		map[string]string{"#v": "version"},
		map[string]types.AttributeValue{":v": num(version)}
}
