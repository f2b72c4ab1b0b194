// Package s3 provides a storage driver persisting each record as a JSON
// object in an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"

	"github.com/methodin/KeyValueStore/internal/infra/storage/storagekey"
	"github.com/methodin/KeyValueStore/pkg/domain"
)

// Compile-time contract assertion ensuring the driver satisfies the domain interface.
var _ domain.Driver = (*Driver)(nil)

// Driver maps records to object keys "<storage>/<sha256-of-key>.json" in a
// single bucket. Objects are whole-record JSON documents, so partial updates
// are not supported; composite keys are (they hash into the object key).
type Driver struct {
	client *s3.Client
	bucket string
}

// Config holds explicit construction parameters (mostly for tests). For prod
// we rely primarily on environment variables.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional; if set enables custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
}

// New creates an S3 storage driver from Config.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Driver{client: client, bucket: cfg.Bucket}, nil
}

// OpenFromEnv constructs an S3 driver from process environment.
func OpenFromEnv(ctx context.Context) (*Driver, error) {
	bucket := os.Getenv("KVSTORE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("KVSTORE_S3_BUCKET required for s3 driver")
	}
	cfg := Config{
		Bucket:    bucket,
		Region:    os.Getenv("KVSTORE_S3_REGION"),
		Endpoint:  os.Getenv("KVSTORE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("KVSTORE_S3_PATH_STYLE"), "true"),
	}
	return New(ctx, cfg)
}

func objectKey(storageName string, key any) string {
	sum := sha256.Sum256([]byte(storagekey.Canonical(key)))
	return storageName + "/" + hex.EncodeToString(sum[:]) + ".json"
}

// Find fetches a record by key.
func (d *Driver) Find(ctx context.Context, storageName string, key any) (domain.Record, bool, error) {
	obj := objectKey(storageName, key)
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &d.bucket, Key: &obj})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = out.Body.Close() }()
	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	var rec domain.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, false, fmt.Errorf("decode record: %w", err)
	}
	return rec, true, nil
}

// Insert stores a new record. Create-only semantics are emulated with a Head
// check first, matching the bucket's lack of conditional writes.
func (d *Driver) Insert(ctx context.Context, storageName string, key any, data domain.Record) error {
	obj := objectKey(storageName, key)
	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &d.bucket, Key: &obj})
	if err == nil {
		return fmt.Errorf("record %q already exists in %q", storagekey.Canonical(key), storageName)
	}
	if !isNotFound(err) {
		return err
	}
	return d.put(ctx, obj, data)
}

// Update replaces the stored object with the full merged record. The object
// must already exist.
func (d *Driver) Update(ctx context.Context, storageName string, key any, changes domain.Record) error {
	obj := objectKey(storageName, key)
	if _, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &d.bucket, Key: &obj}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("record %q not found in %q", storagekey.Canonical(key), storageName)
		}
		return err
	}
	return d.put(ctx, obj, changes)
}

// Delete removes a record by key.
func (d *Driver) Delete(ctx context.Context, storageName string, key any) error {
	obj := objectKey(storageName, key)
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &d.bucket, Key: &obj})
	return err
}

func (d *Driver) put(ctx context.Context, obj string, data domain.Record) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	contentType := "application/json"
	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &d.bucket,
		Key:         &obj,
		Body:        bytes.NewReader(payload),
		ContentType: &contentType,
	})
	return err
}

// SupportsCompositePrimaryKeys reports composite key support.
func (d *Driver) SupportsCompositePrimaryKeys() bool { return true }

// SupportsPartialUpdates reports partial update support.
func (d *Driver) SupportsPartialUpdates() bool { return false }

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
