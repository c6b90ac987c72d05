package booking

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo keeps one map per table keyed on the table's hash key. It
// understands the conditional put and the two index queries the repository
// issues.
type mockDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]types.AttributeValue
	hashKeys map[string]string
	putErr   error
	putCalls int
}

func newMockDynamo(tables DynamoTables) *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{
			tables.Bookings:  {},
			tables.Pending:   {},
			tables.Customers: {},
		},
		hashKeys: map[string]string{
			tables.Bookings:  "id",
			tables.Pending:   "reference_id",
			tables.Customers: "phone",
		},
	}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}

	table, ok := m.tables[*params.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	hk := m.hashKeys[*params.TableName]
	key := strAttr(params.Item, hk)
	if key == "" {
		return nil, errors.New("missing hash key")
	}

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists("+hk+")" {
		if _, exists := table[key]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	table[key] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.tables[*params.TableName]
	hk := m.hashKeys[*params.TableName]
	item, ok := table[strAttr(params.Key, hk)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.tables[*params.TableName]

	var attr, want string
	switch *params.IndexName {
	case DateIndex:
		attr, want = "date", strAttr(params.ExpressionAttributeValues, ":d")
	case NameLowerIndex:
		attr, want = "name_lower", strAttr(params.ExpressionAttributeValues, ":n")
	default:
		return nil, errors.New("unknown index")
	}

	var items []map[string]types.AttributeValue
	for _, item := range table {
		if strAttr(item, attr) == want {
			items = append(items, item)
		}
	}

	out := &dyn.QueryOutput{Count: int32(len(items))}
	if params.Select != types.SelectCount {
		out.Items = items
	}
	return out, nil
}

func (m *mockDynamo) DescribeTable(ctx context.Context, params *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error) {
	if _, ok := m.tables[*params.TableName]; !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dyn.DescribeTableOutput{}, nil
}
