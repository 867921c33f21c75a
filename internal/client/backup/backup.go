// Package backup uploads gzip-compressed JSON snapshots of the local store to
// S3-compatible object storage.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/pilotlog/internal/client/models"
	"github.com/dmitrijs2005/pilotlog/internal/logging"
)

// Snapshotter reads the full local store.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
}

// Uploader is the subset of *s3.Client used for uploads.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client with static credentials. Endpoint may point
// at MinIO or any other S3-compatible service.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// StorageKey returns backups/yyyy/mm/dd/<uuid>.json.gz for t.
func StorageKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("backups/%04d/%02d/%02d/%s.json.gz", t.Year(), t.Month(), t.Day(), uuid.New())
}

type Exporter struct {
	store    Snapshotter
	uploader Uploader
	bucket   string
	log      logging.Logger
	now      func() time.Time
}

func NewExporter(store Snapshotter, uploader Uploader, bucket string, log logging.Logger) *Exporter {
	if log == nil {
		log = logging.Nop()
	}
	return &Exporter{store: store, uploader: uploader, bucket: bucket, log: log, now: time.Now}
}

// Run uploads one snapshot and returns its object key.
func (e *Exporter) Run(ctx context.Context) (string, error) {
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, snap); err != nil {
		return "", err
	}

	key := StorageKey(e.now())
	_, err = e.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(e.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	e.log.Info(ctx, "backup uploaded", "bucket", e.bucket, "key", key, "bytes", buf.Len(),
		"flights", len(snap.Flights), "aircraft", len(snap.Aircraft),
		"airports", len(snap.Airports), "personnel", len(snap.Personnel))
	return key, nil
}

// Write encodes snap as gzip-compressed JSON.
func Write(w io.Writer, snap *models.Snapshot) error {
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return zw.Close()
}

// Read decodes a snapshot written by Write.
func Read(r io.Reader) (*models.Snapshot, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var snap models.Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
