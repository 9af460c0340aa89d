// cache-cli is a small operator tool for poking at a cache backend: put,
// get, probe, forget, and flush string values against any supported driver.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/keyfold/cache"
	"github.com/keyfold/cache/codec"
	"github.com/keyfold/cache/driver"
)

var (
	driverName  string
	codecName   string
	redisURL    string
	postgresURL string
	sqlitePath  string
	dynamoTable string
	awsRegion   string
	prefix      string
	table       string
	ttlFlag     string
)

func envDefault(val, key string) string {
	if val != "" {
		return val
	}
	return os.Getenv(key)
}

func openCache(ctx context.Context) (*cache.Cache, error) {
	var (
		drv driver.Driver
		err error
	)
	switch driverName {
	case "memory":
		drv = driver.NewMemory(ctx, driver.MemoryConfig{})
	case "null":
		drv = driver.NewNull()
	case "redis":
		drv, err = driver.NewRedis(ctx, driver.RedisConfig{
			URL:    envDefault(redisURL, "CACHE_REDIS_URL"),
			Prefix: prefix,
		})
	case "sqlite":
		drv, err = driver.NewSQLite(ctx, driver.SQLiteConfig{
			Path:  envDefault(sqlitePath, "CACHE_SQLITE_PATH"),
			Table: table,
		})
	case "postgres":
		drv, err = driver.NewPostgres(ctx, driver.PostgresConfig{
			URL:   envDefault(postgresURL, "CACHE_POSTGRES_URL"),
			Table: table,
		})
	case "dynamodb":
		drv, err = driver.NewDynamo(ctx, driver.DynamoConfig{
			Table:  envDefault(dynamoTable, "CACHE_DYNAMO_TABLE"),
			Region: envDefault(awsRegion, "AWS_REGION"),
			Prefix: prefix,
		})
	default:
		return nil, fmt.Errorf("unknown driver %q", driverName)
	}
	if err != nil {
		return nil, err
	}
	opts := []cache.Option{}
	switch codecName {
	case "msgpack":
	case "json":
		opts = append(opts, cache.WithCodec(codec.JSON{}))
	default:
		return nil, fmt.Errorf("unknown codec %q", codecName)
	}
	return cache.New(drv, opts...), nil
}

func withCache(fn func(ctx context.Context, c *cache.Cache, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer c.Close(ctx)
		return fn(ctx, c, args)
	}
}

func main() {
	// Best-effort: a missing .env is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "cache-cli",
		Short:         "Inspect and mutate a cache backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&driverName, "driver", "memory", "backend driver: memory|null|redis|sqlite|postgres|dynamodb")
	pf.StringVar(&codecName, "codec", "msgpack", "value codec: msgpack|json")
	pf.StringVar(&redisURL, "redis-url", "", "redis:// URL (or CACHE_REDIS_URL)")
	pf.StringVar(&postgresURL, "postgres-url", "", "postgres:// URL (or CACHE_POSTGRES_URL)")
	pf.StringVar(&sqlitePath, "sqlite-path", "", "sqlite database file (or CACHE_SQLITE_PATH)")
	pf.StringVar(&dynamoTable, "dynamo-table", "", "DynamoDB table name (or CACHE_DYNAMO_TABLE)")
	pf.StringVar(&awsRegion, "region", "", "AWS region (or AWS_REGION)")
	pf.StringVar(&prefix, "prefix", "", "key prefix for redis/dynamodb namespacing")
	pf.StringVar(&table, "table", "", "table name for sqlite/postgres (default \"cache\")")

	putCmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a string value",
		Args:  cobra.ExactArgs(2),
		RunE: withCache(func(ctx context.Context, c *cache.Cache, args []string) error {
			ttl := cache.NoTTL
			if ttlFlag != "" {
				d, err := str2duration.ParseDuration(ttlFlag)
				if err != nil {
					return fmt.Errorf("invalid --ttl %q: %w", ttlFlag, err)
				}
				ttl = d
			}
			return cache.Put(ctx, c, args[0], args[1], ttl)
		}),
	}
	putCmd.Flags().StringVar(&ttlFlag, "ttl", "", `time to live, e.g. "90s", "2h", "7d" (empty = never expires)`)

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a string value",
		Args:  cobra.ExactArgs(1),
		RunE: withCache(func(ctx context.Context, c *cache.Cache, args []string) error {
			found, val, err := cache.Get[string](ctx, c, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Println(val)
			return nil
		}),
	}

	hasCmd := &cobra.Command{
		Use:   "has <key>",
		Short: "Probe for a key without decoding it",
		Args:  cobra.ExactArgs(1),
		RunE: withCache(func(ctx context.Context, c *cache.Cache, args []string) error {
			found, err := c.Has(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(found)
			return nil
		}),
	}

	forgetCmd := &cobra.Command{
		Use:   "forget <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: withCache(func(ctx context.Context, c *cache.Cache, args []string) error {
			return c.Forget(ctx, args[0])
		}),
	}

	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove every entry",
		Args:  cobra.NoArgs,
		RunE: withCache(func(ctx context.Context, c *cache.Cache, _ []string) error {
			return c.Flush(ctx)
		}),
	}

	rootCmd.AddCommand(putCmd, getCmd, hasCmd, forgetCmd, flushCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
