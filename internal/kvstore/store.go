// Package kvstore provides the durable key/value layer behind the local cache
// and the pending-interaction slot. Several backends share one contract so a
// client can keep its cache in an embedded SQLite file or in a shared server.
package kvstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Backend names a storage engine.
type Backend string

// Supported backends.
const (
	SQLiteBackend     Backend = "sqlite" // default
	MySQLBackend      Backend = "mysql"
	PostgreSQLBackend Backend = "postgresql"
	RedisBackend      Backend = "redis"
	DynamoDBBackend   Backend = "dynamodb"
	MemoryBackend     Backend = "memory"
	NoneBackend       Backend = "none"
)

// Store is a byte-oriented key/value store. Get returns apperr.ErrNotFound
// when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Status(ctx context.Context) (Status, error)
	Close() error
}

// Status describes the health and size of a store.
type Status struct {
	Backend        string    `json:"backend"`
	Connected      bool      `json:"connected"`
	TotalEntries   int       `json:"total_entries"`
	LastEntryTime  time.Time `json:"last_entry_time,omitzero"`
	TableSizeBytes int64     `json:"table_size_bytes,omitempty"`
}

// Options selects and configures a backend.
type Options struct {
	Backend Backend `yaml:"backend"`
	// DSN is the connection string for SQL backends. For sqlite it is a file path.
	DSN      string          `yaml:"dsn"`
	Table    string          `yaml:"table"`
	Redis    RedisOptions    `yaml:"redis"`
	DynamoDB DynamoDBOptions `yaml:"dynamodb"`
}

// RedisOptions configures the redis backend.
type RedisOptions struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DynamoDBOptions configures the dynamodb backend.
type DynamoDBOptions struct {
	Region string `yaml:"region"`
	// Endpoint overrides the service endpoint, e.g. DynamoDB Local.
	Endpoint string `yaml:"endpoint"`
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := validation.ValidateStruct(o,
		validation.Field(&o.Backend, validation.Required, validation.In(
			SQLiteBackend, MySQLBackend, PostgreSQLBackend, RedisBackend,
			DynamoDBBackend, MemoryBackend, NoneBackend,
		)),
		validation.Field(&o.Table, validation.Required, validation.Match(tableNamePattern)),
	); err != nil {
		return err
	}
	switch o.Backend {
	case SQLiteBackend, MySQLBackend, PostgreSQLBackend:
		if o.DSN == "" {
			return fmt.Errorf("kvstore: dsn is required for %s backend", o.Backend)
		}
	case RedisBackend:
		if o.Redis.Addr == "" {
			return fmt.Errorf("kvstore: redis.addr is required for %s backend", o.Backend)
		}
	case DynamoDBBackend:
		if o.DynamoDB.Region == "" {
			return fmt.Errorf("kvstore: dynamodb.region is required for %s backend", o.Backend)
		}
	}
	return nil
}

// Open initializes the store selected by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	if err := validateTableName(opts.Table); err != nil {
		return nil, err
	}
	switch opts.Backend {
	case SQLiteBackend, MySQLBackend, PostgreSQLBackend:
		return OpenSQL(opts.Table, opts.Backend, opts.DSN)
	case RedisBackend:
		return OpenRedis(ctx, opts.Table, opts.Redis)
	case DynamoDBBackend:
		return OpenDynamoDB(ctx, opts.Table, opts.DynamoDB)
	case MemoryBackend:
		return NewMemory(), nil
	case NoneBackend:
		return None{}, nil
	default:
		return nil, fmt.Errorf("kvstore: unsupported backend %q", opts.Backend)
	}
}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("kvstore: table name cannot be empty")
	}
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("kvstore: invalid table name %s (must match %s)", name, tableNamePattern)
	}
	return nil
}

func quoteTableName(name string, backend Backend) string {
	if backend == MySQLBackend {
		return fmt.Sprintf("`%s`", name)
	}
	return fmt.Sprintf("%q", name)
}
