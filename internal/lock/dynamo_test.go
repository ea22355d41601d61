package lock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo evaluates the one condition expression the store sends.
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	putErr  error
	lastPut *dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func numberAttr(av types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(av.(*types.AttributeValueMemberN).Value, 10, 64)
	return n
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := in.Item["user_id"].(*types.AttributeValueMemberS).Value
	if cur, ok := f.items[key]; ok {
		now := numberAttr(in.ExpressionAttributeValues[":now"])
		if numberAttr(cur["expires_at"]) > now {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, in.Key["user_id"].(*types.AttributeValueMemberS).Value)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoStore_PutShape(t *testing.T) {
	fake := newFakeDynamo()
	m := NewManager(Config{
		Store:  NewDynamoStore(fake, "tako_locks"),
		Logger: testLogger(),
		Now:    func() time.Time { return time.Unix(1_700_000_000, 0) },
	})

	ok, err := m.Acquire(context.Background(), "5511999990000", 45*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	in := fake.lastPut
	require.NotNil(t, in)
	assert.Equal(t, "tako_locks", aws.ToString(in.TableName))
	assert.Equal(t, "attribute_not_exists(user_id) OR expires_at <= :now", aws.ToString(in.ConditionExpression))
	assert.Equal(t, "1700000045", in.Item["expires_at"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "1700000000", in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN).Value)
	assert.NotEmpty(t, in.Item["owner"].(*types.AttributeValueMemberS).Value)
}

func TestDynamoStore_OtherErrorsPropagate(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("ProvisionedThroughputExceededException")
	m := NewManager(Config{Store: NewDynamoStore(fake, "tako_locks"), Logger: testLogger()})

	ok, err := m.Acquire(context.Background(), "u1", time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrStore)
}
