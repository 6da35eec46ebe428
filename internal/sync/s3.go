package sync

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const ndjson = "application/x-ndjson"

// S3Options configures an S3Destination.
type S3Options struct {
	Bucket   string
	Key      string // object overwritten on every sync
	Region   string
	Endpoint string // non-empty enables path-style addressing (MinIO)

	// SnapshotPrefix, when set, also stores each backup under
	// <prefix>/YYYY/MM/DD/backup-<unix>.jsonl so older states stay restorable.
	SnapshotPrefix string
}

// objectPutter is the part of *s3.Client the destination needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination writes booking backups to an S3-compatible bucket.
type S3Destination struct {
	client objectPutter
	opts   S3Options
	now    func() time.Time
}

// NewS3Destination loads the default AWS credential chain and returns a
// destination for opts.Bucket.
func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 destination: bucket is required")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("s3 destination: key is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Destination(client, opts), nil
}

func newS3Destination(client objectPutter, opts S3Options) *S3Destination {
	return &S3Destination{client: client, opts: opts, now: time.Now}
}

func (d *S3Destination) String() string {
	return "s3://" + d.opts.Bucket + "/" + d.opts.Key
}

// Write uploads data as the latest backup and, if snapshots are enabled, as
// a dated snapshot. The latest object is written last so that it never
// points at a backup whose snapshot failed.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	at := d.now().UTC()
	if d.opts.SnapshotPrefix != "" {
		if err := d.put(ctx, d.snapshotKey(at), data, at); err != nil {
			return fmt.Errorf("s3 snapshot: %w", err)
		}
	}
	if err := d.put(ctx, d.opts.Key, data, at); err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (d *S3Destination) snapshotKey(at time.Time) string {
	return path.Join(d.opts.SnapshotPrefix, at.Format("2006/01/02"),
		"backup-"+strconv.FormatInt(at.Unix(), 10)+".jsonl")
}

func (d *S3Destination) put(ctx context.Context, key string, data []byte, at time.Time) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(d.opts.Bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ContentType:       aws.String(ndjson),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		Metadata: map[string]string{
			"exported-at": at.Format(time.RFC3339),
			"lines":       strconv.Itoa(bytes.Count(data, []byte{'\n'})),
		},
	})
	return err
}
