package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	pkgconfig "github.com/cloud-wave-best-zizon/storefront-service/pkg/config"
	"github.com/shopspring/decimal"
)

// Single-table layout:
//
//	PRODUCT#<id> / METADATA   catalog entry, quantity is the stock counter
//	USER#<id>    / CART       cart lines with an optimistic version
//	ORDER#<code> / METADATA   order, GSI1 = USER#<id> by creation time,
//	                          GSI2 = ORDERS by creation time
const (
	skMetadata = "METADATA"
	skCart     = "CART"

	gsiUserOrders = "GSI1"
	gsiAllOrders  = "GSI2"
	allOrdersPK   = "ORDERS"

	timeLayout = time.RFC3339Nano
)

func NewDynamoDBClient(cfg *pkgconfig.Config) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

// Ping checks that the table is reachable.
func Ping(ctx context.Context, client *dynamodb.Client, tableName string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)})
	return err
}

func productPK(id string) string { return "PRODUCT#" + id }
func userPK(id string) string    { return "USER#" + id }
func orderPK(id string) string   { return "ORDER#" + id }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func str(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }

func num(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func stamp(t time.Time) types.AttributeValue { return str(t.UTC().Format(timeLayout)) }

// money stores a decimal as a DynamoDB number without going through float64.
type money struct {
	decimal.Decimal
}

func (m money) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.Decimal.String()}, nil
}

func (m *money) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		m.Decimal = decimal.Zero
		return nil
	default:
		return fmt.Errorf("unexpected attribute type %T for money", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	m.Decimal = d
	return nil
}
