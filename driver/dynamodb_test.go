package driver

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

// fakeDynamo is an in-memory stand-in for the DynamoDB API.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) itemKey(key map[string]types.AttributeValue) string {
	for _, v := range key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			return s.Value
		}
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[f.itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[f.itemKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, f.itemKey(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func newTestDynamo(t *testing.T, fake *fakeDynamo, prefix string) Driver {
	t.Helper()
	d, err := NewDynamo(context.Background(), DynamoConfig{
		Table:  "cache",
		Prefix: prefix,
		Client: fake,
	})
	assert.NoError(t, err)
	return d
}

func TestDynamoConfigValidation(t *testing.T) {
	_, err := NewDynamo(context.Background(), DynamoConfig{})
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Table", cfgErr.Field)
}

func TestDynamoPutGetDelete(t *testing.T) {
	ctx := context.Background()
	d := newTestDynamo(t, newFakeDynamo(), "")

	entry, err := d.Get(ctx, "key")
	assert.NoError(t, err)
	assert.Nil(t, entry)

	now := time.Now()
	assert.NoError(t, d.Put(ctx, &Entry{
		Key: "key", Payload: []byte("payload"), CreatedAt: now, ExpiresAt: now.Add(time.Minute),
	}))

	entry, err = d.Get(ctx, "key")
	assert.NoError(t, err)
	assert.NotNil(t, entry)
	assert.Equal(t, []byte("payload"), entry.Payload)
	assert.WithinDuration(t, now, entry.CreatedAt, time.Millisecond)
	// Deadlines round-trip at second precision (the unit DynamoDB TTL uses).
	assert.WithinDuration(t, now.Add(time.Minute), entry.ExpiresAt, time.Second)

	assert.NoError(t, d.Delete(ctx, "key"))
	entry, err = d.Get(ctx, "key")
	assert.NoError(t, err)
	assert.Nil(t, entry)

	assert.NoError(t, d.Delete(ctx, "key"))
}

func TestDynamoNeverExpiresOmitsAttribute(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	d := newTestDynamo(t, fake, "")

	now := time.Now()
	assert.NoError(t, d.Put(ctx, &Entry{Key: "pinned", Payload: []byte("x"), CreatedAt: now}))

	item := fake.items["pinned"]
	assert.NotNil(t, item)
	_, hasExpires := item["expires_at"]
	assert.False(t, hasExpires, "never-expiring items carry no TTL attribute")

	entry, err := d.Get(ctx, "pinned")
	assert.NoError(t, err)
	assert.True(t, entry.ExpiresAt.IsZero())
}

func TestDynamoGetReturnsSweptButExpiredItems(t *testing.T) {
	ctx := context.Background()
	d := newTestDynamo(t, newFakeDynamo(), "")

	// DynamoDB's TTL sweeper is best-effort; an expired item may still be
	// served by GetItem. The raw driver passes it through for the façade's
	// lazy check.
	now := time.Now()
	assert.NoError(t, d.Put(ctx, &Entry{
		Key: "dead", Payload: []byte("x"), CreatedAt: now, ExpiresAt: now.Add(-time.Minute),
	}))

	entry, err := d.Get(ctx, "dead")
	assert.NoError(t, err)
	assert.NotNil(t, entry)
	assert.True(t, entry.Expired(time.Now()))

	// Exists applies the stored deadline.
	found, err := d.Exists(ctx, "dead")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestDynamoExists(t *testing.T) {
	ctx := context.Background()
	d := newTestDynamo(t, newFakeDynamo(), "")

	found, err := d.Exists(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)

	now := time.Now()
	assert.NoError(t, d.Put(ctx, &Entry{Key: "key", Payload: []byte("x"), CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))
	found, err = d.Exists(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestDynamoPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	d := newTestDynamo(t, fake, "app")

	now := time.Now()
	assert.NoError(t, d.Put(ctx, &Entry{Key: "key", Payload: []byte("x"), CreatedAt: now}))

	_, stored := fake.items["app:key"]
	assert.True(t, stored, "items are stored under the prefixed key")

	entry, err := d.Get(ctx, "key")
	assert.NoError(t, err)
	assert.NotNil(t, entry)
	assert.Equal(t, "key", entry.Key, "the prefix never leaks back to the caller")
}

func TestDynamoCustomAttributeNames(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	d, err := NewDynamo(ctx, DynamoConfig{
		Table:            "cache",
		Client:           fake,
		KeyAttribute:     "pk",
		PayloadAttribute: "blob",
		ExpiresAttribute: "ttl",
	})
	assert.NoError(t, err)

	now := time.Now()
	assert.NoError(t, d.Put(ctx, &Entry{Key: "k", Payload: []byte("x"), CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	item := fake.items["k"]
	assert.NotNil(t, item)
	assert.Contains(t, item, "pk")
	assert.Contains(t, item, "blob")
	assert.Contains(t, item, "ttl")

	entry, err := d.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, []byte("x"), entry.Payload)
}

func TestDynamoFlushNotSupported(t *testing.T) {
	d := newTestDynamo(t, newFakeDynamo(), "")
	assert.ErrorIs(t, d.Flush(context.Background()), ErrFlushNotSupported)
}

func TestDynamoBackendErrorWrapped(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	fake.err = context.DeadlineExceeded
	d := newTestDynamo(t, fake, "")

	_, err := d.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrTimeout)
}
