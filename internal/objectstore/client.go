// Package objectstore wraps the S3-compatible bucket service
// (github.com/minio/minio-go/v7) the node uses as a result/payload
// collaborator, grounded on
// _examples/original_source/node/swift_stream_service.py's SwiftStreamService.
package objectstore

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// Client is a thin wrapper over a minio.Client, reconnecting through the
// container restart path the original swift-stream service used when the
// bucket service is unreachable on first connect.
type Client struct {
	mc  *minio.Client
	log zerolog.Logger
}

// Config holds the bucket service connection parameters.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// New connects to the bucket service, attempting one container-restart
// recovery cycle if the first connection attempt fails to list buckets.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	c := &Client{log: log.With().Str("component", "objectstore").Logger()}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("construct minio client: %w", err)
	}
	c.mc = mc

	if _, err := mc.ListBuckets(ctx); err == nil {
		return c, nil
	}

	c.log.Warn().Msg("bucket service unreachable, attempting container restart")
	if err := c.restartAndReconnect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect to bucket service: %w", err)
	}
	return c, nil
}

func (c *Client) restartAndReconnect(ctx context.Context, cfg Config) error {
	const maxAttempts = 10
	const retryDelay = 5 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := exec.CommandContext(ctx, "docker", "start", "etny-swift-stream").Run(); err != nil {
			time.Sleep(retryDelay)
			continue
		}
		time.Sleep(35 * time.Second)

		mc, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.Secure,
		})
		if err == nil {
			if _, err := mc.ListBuckets(ctx); err == nil {
				c.mc = mc
				return nil
			}
		}
		if attempt < maxAttempts {
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("bucket service did not become reachable after %d attempts", maxAttempts)
}

// CreateBucket creates bucket if it does not already exist.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

// DeleteBucket removes an empty bucket.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	return c.mc.RemoveBucket(ctx, bucket)
}

// UploadFile uploads the file at localPath into bucket under objectName.
func (c *Client) UploadFile(ctx context.Context, bucket, objectName, localPath string) error {
	_, err := c.mc.FPutObject(ctx, bucket, objectName, localPath, minio.PutObjectOptions{})
	return err
}

// DownloadFile downloads bucket/objectName to localPath.
func (c *Client) DownloadFile(ctx context.Context, bucket, objectName, localPath string) error {
	return c.mc.FGetObject(ctx, bucket, objectName, localPath, minio.GetObjectOptions{})
}

// DeleteFile removes bucket/objectName.
func (c *Client) DeleteFile(ctx context.Context, bucket, objectName string) error {
	return c.mc.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
}

// IsObjectInBucket reports whether objectName exists in bucket.
func (c *Client) IsObjectInBucket(ctx context.Context, bucket, objectName string) (bool, error) {
	_, err := c.mc.StatObject(ctx, bucket, objectName, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	errResp := minio.ToErrorResponse(err)
	if errResp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}
