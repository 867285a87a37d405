package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/goccy/go-json"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/klauspost/compress/gzip"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive keeps gzipped JSON copies of analyses in S3-compatible storage.
type Archive struct {
	client objectPutter
	bucket string
	prefix string
}

// NewArchive connects to the object store and makes sure the bucket exists.
// It returns nil when archiving is disabled.
func NewArchive(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: failed to create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to verify bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("archive: failed to create bucket %s: %w", cfg.Bucket, err)
		}
		log.Infof("archive: created bucket %s", cfg.Bucket)
	}
	return &Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key of an analysis: <prefix>/YYYY/MM/DD/<id>.json.gz.
func (a *Archive) Key(id string, at time.Time) string {
	at = at.UTC()
	return path.Join(a.prefix, fmt.Sprintf("%04d/%02d/%02d", at.Year(), int(at.Month()), at.Day()), id+".json.gz")
}

// Put uploads v under the key of id.
func (a *Archive) Put(ctx context.Context, id string, at time.Time, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("archive: failed to encode %s: %w", id, err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err = zw.Write(raw); err != nil {
		return fmt.Errorf("archive: failed to compress %s: %w", id, err)
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("archive: failed to compress %s: %w", id, err)
	}

	key := a.Key(id, at)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
	})
	if err != nil {
		return fmt.Errorf("archive: failed to upload %s: %w", key, err)
	}
	return nil
}
