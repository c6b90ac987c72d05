package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Secondary indexes the DynamoDB tables are expected to carry.
const (
	DateIndex      = "date-index"
	NameLowerIndex = "name_lower-index"
)

// DynamoDBAPI is the subset of the DynamoDB client the repository uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error)
	GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error)
	Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error)
}

// DynamoTables names the tables backing the repository.
type DynamoTables struct {
	Bookings  string // PK id, GSI date-index on date
	Pending   string // PK reference_id
	Customers string // PK phone, GSI name_lower-index on name_lower
}

// DynamoRepository stores bookings in DynamoDB. Confirmed bookings are
// written with attribute_not_exists(id) so the table enforces uniqueness.
type DynamoRepository struct {
	client DynamoDBAPI
	tables DynamoTables
}

// NewDynamoRepository returns a repository over the given tables.
func NewDynamoRepository(client DynamoDBAPI, tables DynamoTables) *DynamoRepository {
	return &DynamoRepository{client: client, tables: tables}
}

func (r *DynamoRepository) CountConfirmed(ctx context.Context, date string) (int, error) {
	input := &dyn.QueryInput{
		TableName:              aws.String(r.tables.Bookings),
		IndexName:              aws.String(DateIndex),
		KeyConditionExpression: aws.String("#d = :d"),
		ExpressionAttributeNames: map[string]string{
			"#d": "date",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: date},
		},
		Select: types.SelectCount,
	}

	total := 0
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("query bookings by date: %w", err)
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *DynamoRepository) InsertConfirmed(ctx context.Context, b ConfirmedBooking) error {
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           aws.String(r.tables.Bookings),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrBookingExists
		}
		return fmt.Errorf("put booking: %w", err)
	}
	return nil
}

func (r *DynamoRepository) InsertPending(ctx context.Context, req BookingRequest) error {
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("marshal pending request: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: aws.String(r.tables.Pending),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put pending request: %w", err)
	}
	return nil
}

// FindCustomer tries the phone key first, then the lowercased name index.
func (r *DynamoRepository) FindCustomer(ctx context.Context, identifier string) (*Customer, error) {
	out, err := r.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: aws.String(r.tables.Customers),
		Key: map[string]types.AttributeValue{
			"phone": &types.AttributeValueMemberS{Value: identifier},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if len(out.Item) > 0 {
		return unmarshalCustomer(out.Item)
	}

	q, err := r.client.Query(ctx, &dyn.QueryInput{
		TableName:              aws.String(r.tables.Customers),
		IndexName:              aws.String(NameLowerIndex),
		KeyConditionExpression: aws.String("name_lower = :n"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberS{Value: strings.ToLower(identifier)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query customer by name: %w", err)
	}
	if len(q.Items) == 0 {
		return nil, ErrNotFound
	}
	return unmarshalCustomer(q.Items[0])
}

// UpsertCustomer writes a customer keyed on phone.
func (r *DynamoRepository) UpsertCustomer(ctx context.Context, c Customer) error {
	c.NameLower = strings.ToLower(c.Name)
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: aws.String(r.tables.Customers),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put customer %s: %w", c.Phone, err)
	}
	return nil
}

func (r *DynamoRepository) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dyn.DescribeTableInput{
		TableName: aws.String(r.tables.Bookings),
	})
	return err
}

func unmarshalCustomer(item map[string]types.AttributeValue) (*Customer, error) {
	var c Customer
	if err := attributevalue.UnmarshalMap(item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	return &c, nil
}

func isConditionalCheckFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}
