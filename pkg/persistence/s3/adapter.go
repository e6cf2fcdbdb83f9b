// Package s3 implements engine.Adapter on top of an S3-compatible object
// store, for deployments where the cache process's local disk is ephemeral
// but an object store is available.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cachegrid/assetcache/pkg/engine"
)

// Config configures the S3-backed adapter.
type Config struct {
	// Bucket is the S3 bucket holding the snapshot object.
	Bucket string
	// Key is the object key the snapshot is stored under.
	Key string
}

// Adapter persists the memory backend's index snapshot as a single S3
// object.
type Adapter struct {
	client *s3.Client
	cfg    Config
}

// New constructs an adapter using an already-configured S3 client.
func New(client *s3.Client, cfg Config) *Adapter {
	return &Adapter{client: client, cfg: cfg}
}

// NewFromEnv loads the default AWS SDK configuration (environment, shared
// config file, or instance role, in the SDK's usual order) and constructs
// an adapter from it. This is the path production deployments take;
// New exists for a locally-endpointed client, e.g. Localstack in
// integration tests.
func NewFromEnv(ctx context.Context, cfg Config) (*Adapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 adapter: load AWS config: %w", err)
	}
	return New(s3.NewFromConfig(awsCfg), cfg), nil
}

var _ engine.Adapter = (*Adapter)(nil)

// SaveDatabase uploads blob as the snapshot object, overwriting any
// previous snapshot.
func (a *Adapter) SaveDatabase(ctx context.Context, blob []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.cfg.Key),
		Body:   bytes.NewReader(blob),
	})
	if err != nil {
		return fmt.Errorf("s3 adapter: put %s/%s: %w", a.cfg.Bucket, a.cfg.Key, err)
	}
	return nil
}

// LoadDatabase downloads the snapshot object, or engine.ErrNoSnapshot if it
// does not exist.
func (a *Adapter) LoadDatabase(ctx context.Context) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.cfg.Key),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, engine.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("s3 adapter: get %s/%s: %w", a.cfg.Bucket, a.cfg.Key, err)
	}
	defer out.Body.Close()

	blob, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 adapter: read body: %w", err)
	}
	return blob, nil
}
