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

type orderLineRecord struct {
	ProductID   string `dynamodbav:"product_id"`
	ProductName string `dynamodbav:"product_name"`
	Price       money  `dynamodbav:"price"`
	Quantity    int    `dynamodbav:"quantity"`
	ItemTotal   money  `dynamodbav:"item_total"`
}

type orderRecord struct {
	PK              string                 `dynamodbav:"PK"`
	SK              string                 `dynamodbav:"SK"`
	GSI1PK          string                 `dynamodbav:"GSI1PK"`
	GSI1SK          string                 `dynamodbav:"GSI1SK"`
	GSI2PK          string                 `dynamodbav:"GSI2PK"`
	GSI2SK          string                 `dynamodbav:"GSI2SK"`
	OrderID         string                 `dynamodbav:"order_id"`
	UserID          string                 `dynamodbav:"user_id"`
	Items           []orderLineRecord      `dynamodbav:"items"`
	TotalAmount     money                  `dynamodbav:"total_amount"`
	ShippingAddress domain.ShippingAddress `dynamodbav:"shipping_address"`
	Status          string                 `dynamodbav:"status"`
	PaymentStatus   string                 `dynamodbav:"payment_status"`
	PaymentMethod   string                 `dynamodbav:"payment_method"`
	TrackingNumber  string                 `dynamodbav:"tracking_number,omitempty"`
	DeliveryDate    *time.Time             `dynamodbav:"delivery_date,omitempty"`
	CancelReason    string                 `dynamodbav:"cancel_reason,omitempty"`
	Notes           string                 `dynamodbav:"notes,omitempty"`
	CreatedAt       time.Time              `dynamodbav:"created_at"`
	UpdatedAt       time.Time              `dynamodbav:"updated_at"`
}

func newOrderRecord(o *domain.Order) orderRecord {
	created := o.CreatedAt.UTC().Format(timeLayout)
	rec := orderRecord{
		PK:              orderPK(o.OrderID),
		SK:              skMetadata,
		GSI1PK:          userPK(o.UserID),
		GSI1SK:          "ORDER#" + created,
		GSI2PK:          allOrdersPK,
		GSI2SK:          created + "#" + o.OrderID,
		OrderID:         o.OrderID,
		UserID:          o.UserID,
		Items:           make([]orderLineRecord, 0, len(o.Items)),
		TotalAmount:     money{o.TotalAmount},
		ShippingAddress: o.ShippingAddress,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		TrackingNumber:  o.TrackingNumber,
		DeliveryDate:    o.DeliveryDate,
		CancelReason:    o.CancelReason,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, l := range o.Items {
		rec.Items = append(rec.Items, orderLineRecord{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       money{l.Price},
			Quantity:    l.Quantity,
			ItemTotal:   money{l.ItemTotal},
		})
	}
	return rec
}

func (r *orderRecord) toDomain() *domain.Order {
	o := &domain.Order{
		OrderID:         r.OrderID,
		UserID:          r.UserID,
		Items:           make([]domain.OrderLine, 0, len(r.Items)),
		TotalAmount:     r.TotalAmount.Decimal,
		ShippingAddress: r.ShippingAddress,
		Status:          domain.OrderStatus(r.Status),
		PaymentStatus:   domain.PaymentStatus(r.PaymentStatus),
		PaymentMethod:   domain.PaymentMethod(r.PaymentMethod),
		TrackingNumber:  r.TrackingNumber,
		DeliveryDate:    r.DeliveryDate,
		CancelReason:    r.CancelReason,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	for _, l := range r.Items {
		o.Items = append(o.Items, domain.OrderLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       l.Price.Decimal,
			Quantity:    l.Quantity,
			ItemTotal:   l.ItemTotal.Decimal,
		})
	}
	return o
}

type OrderRepository struct {
	client    *dynamodb.Client
	tableName string
}

func NewOrderRepository(client *dynamodb.Client, tableName string) *OrderRepository {
	return &OrderRepository{
		client:    client,
		tableName: tableName,
	}
}

// PlaceOrder writes the order (unique on its code) and empties the owner's
// cart in one transaction.
func (r *OrderRepository) PlaceOrder(ctx context.Context, order *domain.Order, cartVersion int64) error {
	av, err := attributevalue.MarshalMap(newOrderRecord(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	emptyCart := clearCartUpdate(r.tableName, order.UserID, order.CreatedAt)
	cond, names, values := versionCondition(cartVersion)
	for k, v := range names {
		emptyCart.ExpressionAttributeNames[k] = v
	}
	for k, v := range values {
		emptyCart.ExpressionAttributeValues[k] = v
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
			{Update: &types.Update{
				TableName:                 emptyCart.TableName,
				Key:                       emptyCart.Key,
				UpdateExpression:          emptyCart.UpdateExpression,
				ConditionExpression:       aws.String(cond),
				ExpressionAttributeNames:  emptyCart.ExpressionAttributeNames,
				ExpressionAttributeValues: emptyCart.ExpressionAttributeValues,
			}},
		},
	})
	if err != nil {
		switch failedCondition(err) {
		case 0:
			return domain.ErrOrderCodeTaken
		case 1:
			return domain.ErrConcurrentUpdate
		}
		return fmt.Errorf("failed to place order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(orderPK(orderID), skMetadata),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, domain.ErrOrderNotFound
	}

	var rec orderRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *OrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.query(ctx, gsiUserOrders, "GSI1PK", userPK(userID))
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return r.query(ctx, gsiAllOrders, "GSI2PK", allOrdersPK)
}

func (r *OrderRepository) query(ctx context.Context, index, attr, value string) ([]domain.Order, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": str(value),
		},
		ScanIndexForward: aws.Bool(false),
	})

	var orders []domain.Order
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query orders: %w", err)
		}
		var recs []orderRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orders: %w", err)
		}
		for i := range recs {
			orders = append(orders, *recs[i].toDomain())
		}
	}
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, from domain.OrderStatus, change domain.StatusChange, at time.Time) (*domain.Order, error) {
	expr := "SET #status = :to, updated_at = :now"
	values := map[string]types.AttributeValue{
		":to":   str(string(change.Status)),
		":from": str(string(from)),
		":now":  stamp(at),
	}
	if change.TrackingNumber != "" {
		expr += ", tracking_number = :tn"
		values[":tn"] = str(change.TrackingNumber)
	}
	if change.DeliveryDate != nil {
		expr += ", delivery_date = :dd"
		values[":dd"] = stamp(*change.DeliveryDate)
	}
	return r.conditionalUpdate(ctx, orderID, expr, "#status = :from", map[string]string{"#status": "status"}, values)
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, from, to domain.PaymentStatus, at time.Time) (*domain.Order, error) {
	return r.conditionalUpdate(ctx, orderID,
		"SET #ps = :to, updated_at = :now",
		"#ps = :from",
		map[string]string{"#ps": "payment_status"},
		map[string]types.AttributeValue{
			":to":   str(string(to)),
			":from": str(string(from)),
			":now":  stamp(at),
		})
}

func (r *OrderRepository) conditionalUpdate(ctx context.Context, orderID, update, cond string, names map[string]string, values map[string]types.AttributeValue) (*domain.Order, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 key(orderPK(orderID), skMetadata),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String("attribute_exists(PK) AND " + cond),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return nil, domain.ErrOrderNotFound
			}
			return nil, domain.ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	var rec orderRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return rec.toDomain(), nil
}

// CancelOrder flips the status and adds every line's quantity back to its
// product in a single transaction, so the order and the stock never
// disagree.
func (r *OrderRepository) CancelOrder(ctx context.Context, orderID string, from domain.OrderStatus, reason string, at time.Time) (*domain.Order, error) {
	order, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != from {
		return nil, domain.ErrConcurrentUpdate
	}

	items := make([]types.TransactWriteItem, 0, len(order.Items)+1)
	items = append(items, types.TransactWriteItem{Update: &types.Update{
		TableName:           aws.String(r.tableName),
		Key:                 key(orderPK(orderID), skMetadata),
		UpdateExpression:    aws.String("SET #status = :cancelled, cancel_reason = :reason, updated_at = :now"),
		ConditionExpression: aws.String("#status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cancelled": str(string(domain.OrderStatusCancelled)),
			":reason":    str(reason),
			":from":      str(string(from)),
			":now":       stamp(at),
		},
	}})
	for _, line := range order.Items {
		rel := releaseInput(r.tableName, line.ProductID, line.Quantity, at)
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:                 rel.TableName,
			Key:                       rel.Key,
			UpdateExpression:          rel.UpdateExpression,
			ConditionExpression:       rel.ConditionExpression,
			ExpressionAttributeNames:  rel.ExpressionAttributeNames,
			ExpressionAttributeValues: rel.ExpressionAttributeValues,
		}})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		switch idx := failedCondition(err); {
		case idx == 0:
			return nil, domain.ErrConcurrentUpdate
		case idx > 0:
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	order.Status = domain.OrderStatusCancelled
	order.CancelReason = reason
	order.UpdatedAt = at
	return order, nil
}

// failedCondition returns the index of the first transaction item whose
// condition check failed, or -1.
func failedCondition(err error) int {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return -1
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return i
		}
	}
	return -1
}
