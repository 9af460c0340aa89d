package driver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoClient is the subset of the DynamoDB API the driver uses. Tests
// substitute a fake; production code passes nothing and lets NewDynamo build
// a real client from ambient AWS configuration.
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoConfig configures the DynamoDB driver.
type DynamoConfig struct {
	// Table is the DynamoDB table name. Required.
	Table string
	// Region overrides the ambient AWS region when building a client.
	Region string
	// Prefix namespaces keys as "<prefix>:<key>". Empty means no prefix.
	Prefix string
	// KeyAttribute, PayloadAttribute, CreatedAttribute and ExpiresAttribute
	// name the item attributes. Defaults: "key", "payload", "created_at",
	// "expires_at". Point ExpiresAttribute at the table's TTL attribute to
	// get native expiry sweeping.
	KeyAttribute     string
	PayloadAttribute string
	CreatedAttribute string
	ExpiresAttribute string
	// Client is a pre-built client; when nil, one is constructed from the
	// default AWS config chain.
	Client DynamoClient
	// QueryTimeout bounds each API call. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// errDynamoItemFormat reports a stored item missing its binary payload
// attribute, typically a table shared with writers using different
// attribute names.
var errDynamoItemFormat = errors.New("stored item has unexpected format")

// DynamoDB has native TTL, but the service only sweeps expired items
// eventually (typically within minutes, sometimes longer). The deadline is
// therefore stored as an epoch-seconds attribute and the caller's lazy check
// remains mandatory to avoid serving a just-expired item the sweeper has not
// reached yet.
type dynamoDriver struct {
	client DynamoClient
	cfg    DynamoConfig
}

var _ Driver = (*dynamoDriver)(nil)

// NewDynamo returns a Driver backed by a DynamoDB table keyed by the
// configured key attribute. The table itself is managed out of band.
func NewDynamo(ctx context.Context, cfg DynamoConfig) (Driver, error) {
	if cfg.Table == "" {
		return nil, &ConfigError{Driver: "dynamodb", Field: "Table", Reason: "required"}
	}
	if cfg.KeyAttribute == "" {
		cfg.KeyAttribute = "key"
	}
	if cfg.PayloadAttribute == "" {
		cfg.PayloadAttribute = "payload"
	}
	if cfg.CreatedAttribute == "" {
		cfg.CreatedAttribute = "created_at"
	}
	if cfg.ExpiresAttribute == "" {
		cfg.ExpiresAttribute = "expires_at"
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.Client == nil {
		loadOptions := []func(*awsconfig.LoadOptions) error{}
		if cfg.Region != "" {
			loadOptions = append(loadOptions, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
		if err != nil {
			return nil, &ConfigError{Driver: "dynamodb", Field: "Region", Reason: err.Error()}
		}
		cfg.Client = dynamodb.NewFromConfig(awsCfg)
	}
	return &dynamoDriver{client: cfg.Client, cfg: cfg}, nil
}

func (d *dynamoDriver) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d.cfg.QueryTimeout)
}

func (d *dynamoDriver) prefixKey(key string) string {
	if d.cfg.Prefix == "" {
		return key
	}
	return d.cfg.Prefix + ":" + key
}

func (d *dynamoDriver) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		d.cfg.KeyAttribute: &types.AttributeValueMemberS{Value: d.prefixKey(key)},
	}
}

func (d *dynamoDriver) Get(ctx context.Context, key string) (*Entry, error) {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	out, err := d.client.GetItem(qctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.cfg.Table),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		return nil, wrapOp("dynamodb", "get", key, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return d.entryFromItem(key, out.Item)
}

func (d *dynamoDriver) entryFromItem(key string, item map[string]types.AttributeValue) (*Entry, error) {
	entry := &Entry{Key: key}
	payload, ok := item[d.cfg.PayloadAttribute].(*types.AttributeValueMemberB)
	if !ok {
		return nil, wrapOp("dynamodb", "get", key, errDynamoItemFormat)
	}
	entry.Payload = payload.Value
	if created, ok := item[d.cfg.CreatedAttribute].(*types.AttributeValueMemberN); ok {
		if ns, err := strconv.ParseInt(created.Value, 10, 64); err == nil {
			entry.CreatedAt = time.Unix(0, ns)
		}
	}
	if expires, ok := item[d.cfg.ExpiresAttribute].(*types.AttributeValueMemberN); ok {
		if sec, err := strconv.ParseInt(expires.Value, 10, 64); err == nil {
			entry.ExpiresAt = time.Unix(sec, 0)
		}
	}
	return entry, nil
}

func (d *dynamoDriver) Put(ctx context.Context, entry *Entry) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	item := map[string]types.AttributeValue{
		d.cfg.KeyAttribute:     &types.AttributeValueMemberS{Value: d.prefixKey(entry.Key)},
		d.cfg.PayloadAttribute: &types.AttributeValueMemberB{Value: entry.Payload},
		d.cfg.CreatedAttribute: &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.CreatedAt.UnixNano(), 10)},
	}
	if !entry.ExpiresAt.IsZero() {
		// Epoch seconds, the unit DynamoDB's TTL sweeper understands.
		// Never-expiring entries omit the attribute; the sweeper ignores
		// items without it.
		item[d.cfg.ExpiresAttribute] = &types.AttributeValueMemberN{
			Value: strconv.FormatInt(entry.ExpiresAt.Unix(), 10),
		}
	}
	if _, err := d.client.PutItem(qctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.cfg.Table),
		Item:      item,
	}); err != nil {
		return wrapOp("dynamodb", "put", entry.Key, err)
	}
	return nil
}

func (d *dynamoDriver) Delete(ctx context.Context, key string) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	if _, err := d.client.DeleteItem(qctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.cfg.Table),
		Key:       d.keyAttr(key),
	}); err != nil {
		return wrapOp("dynamodb", "delete", key, err)
	}
	return nil
}

func (d *dynamoDriver) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()
	out, err := d.client.GetItem(qctx, &dynamodb.GetItemInput{
		TableName:            aws.String(d.cfg.Table),
		Key:                  d.keyAttr(key),
		ProjectionExpression: aws.String("#k, #e"),
		ExpressionAttributeNames: map[string]string{
			"#k": d.cfg.KeyAttribute,
			"#e": d.cfg.ExpiresAttribute,
		},
	})
	if err != nil {
		return false, wrapOp("dynamodb", "exists", key, err)
	}
	if out.Item == nil {
		return false, nil
	}
	if expires, ok := out.Item[d.cfg.ExpiresAttribute].(*types.AttributeValueMemberN); ok {
		if sec, err := strconv.ParseInt(expires.Value, 10, 64); err == nil {
			return time.Now().Unix() < sec, nil
		}
	}
	return true, nil
}

func (d *dynamoDriver) Flush(context.Context) error {
	// DynamoDB cannot enumerate and clear a keyspace in one operation
	// without a full table scan; truncation is managed out of band.
	return ErrFlushNotSupported
}

// Close is a no-op: the SDK client holds no connection of its own to
// release.
func (d *dynamoDriver) Close(context.Context) error {
	return nil
}
