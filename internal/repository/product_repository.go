package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
)

type productRecord struct {
	PK          string    `dynamodbav:"PK"`
	SK          string    `dynamodbav:"SK"`
	ProductID   string    `dynamodbav:"product_id"`
	Name        string    `dynamodbav:"product_name"`
	Description string    `dynamodbav:"description,omitempty"`
	CategoryID  string    `dynamodbav:"category_id,omitempty"`
	Price       money     `dynamodbav:"price"`
	Quantity    int       `dynamodbav:"quantity"`
	CreatedBy   string    `dynamodbav:"created_by,omitempty"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
	UpdatedAt   time.Time `dynamodbav:"updated_at"`
}

func (r *productRecord) toDomain() *domain.Product {
	return &domain.Product{
		ProductID:   r.ProductID,
		Name:        r.Name,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		Price:       r.Price.Decimal,
		Quantity:    r.Quantity,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ProductRepository owns product documents and implements the inventory
// ledger on top of DynamoDB conditional writes: a reservation is a single
// UpdateItem that decrements only while quantity >= requested.
type ProductRepository struct {
	client    *dynamodb.Client
	tableName string
}

func NewProductRepository(client *dynamodb.Client, tableName string) *ProductRepository {
	return &ProductRepository{
		client:    client,
		tableName: tableName,
	}
}

func (r *ProductRepository) PutProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	rec := productRecord{
		PK:          productPK(p.ProductID),
		SK:          skMetadata,
		ProductID:   p.ProductID,
		Name:        p.Name,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		Price:       money{p.Price},
		Quantity:    p.Quantity,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   created,
		UpdatedAt:   now,
	}
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put product: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(productPK(productID), skMetadata),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, domain.ErrProductNotFound
	}
	var rec productRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *ProductRepository) Reserve(ctx context.Context, productID string, qty int) (domain.Reservation, error) {
	if qty <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 key(productPK(productID), skMetadata),
		UpdateExpression:    aws.String("SET #qty = #qty - :q, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(PK) AND #qty >= :q"),
		ExpressionAttributeNames: map[string]string{
			"#qty": "quantity",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":   &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":now": stamp(time.Now()),
		},
		ReturnValues:                        types.ReturnValueAllOld,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return domain.Reservation{}, domain.ErrProductNotFound
			}
			var rec productRecord
			_ = attributevalue.UnmarshalMap(ccf.Item, &rec)
			return domain.Reservation{}, domain.InsufficientStock(productID, rec.Name)
		}
		return domain.Reservation{}, fmt.Errorf("failed to reserve stock: %w", err)
	}

	var before productRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &before); err != nil {
		return domain.Reservation{}, fmt.Errorf("failed to unmarshal reserved product: %w", err)
	}
	return domain.Reservation{
		ProductID:   productID,
		ProductName: before.Name,
		UnitPrice:   before.Price.Decimal,
		Quantity:    qty,
	}, nil
}

func (r *ProductRepository) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	_, err := r.client.UpdateItem(ctx, releaseInput(r.tableName, productID, qty, time.Now()))
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to release stock: %w", err)
	}
	return nil
}

func releaseInput(table, productID string, qty int, now time.Time) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 key(productPK(productID), skMetadata),
		UpdateExpression:    aws.String("SET #qty = #qty + :q, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#qty": "quantity",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":   &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":now": stamp(now),
		},
	}
}
