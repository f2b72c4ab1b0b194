package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/methodin/KeyValueStore/internal/infra/storage/memory"
	"github.com/methodin/KeyValueStore/internal/infra/storage/postgres"
	"github.com/methodin/KeyValueStore/internal/infra/storage/s3"
	"github.com/methodin/KeyValueStore/internal/infra/storage/sqlite"
	"github.com/methodin/KeyValueStore/pkg/domain"
)

// StorageDriver identifies a concrete storage driver implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageS3       StorageDriver = "s3"       // S3-compatible object store
)

// OpenStorageDriver selects a backend using environment variables.
// Defaults to memory when unset.
//
//	KVSTORE_STORAGE_DRIVER: memory|sqlite|postgres|s3 (default memory)
//	KVSTORE_SQLITE_PATH: path to sqlite file (default ./kvstore.db)
//	KVSTORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	KVSTORE_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE: s3 settings
func OpenStorageDriver(ctx context.Context) (domain.Driver, error) {
	driver := os.Getenv("KVSTORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageMemory)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewDriver(), nil
	case StorageSQLite:
		path := os.Getenv("KVSTORE_SQLITE_PATH")
		return sqlite.NewDriver(path)
	case StoragePostgres:
		dsn := os.Getenv("KVSTORE_POSTGRES_DSN")
		return postgres.NewDriver(ctx, dsn)
	case StorageS3:
		return s3.New(ctx, s3.Config{
			Bucket:    os.Getenv("KVSTORE_S3_BUCKET"),
			Region:    os.Getenv("KVSTORE_S3_REGION"),
			Endpoint:  os.Getenv("KVSTORE_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("KVSTORE_S3_PATH_STYLE"), "true"),
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
