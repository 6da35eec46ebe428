package sync

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type putCall struct {
	key  string
	body string
	in   *s3.PutObjectInput
}

type fakePutter struct {
	calls []putCall
	fail  map[string]error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, putCall{key: key, body: string(body), in: in})
	return &s3.PutObjectOutput{}, nil
}

func fixedClock() time.Time {
	return time.Date(2026, 11, 2, 14, 5, 0, 0, time.UTC)
}

func TestS3Destination_Write(t *testing.T) {
	fp := &fakePutter{}
	d := newS3Destination(fp, S3Options{Bucket: "backups", Key: "quillbooking/backup.jsonl"})
	d.now = fixedClock

	data := "{\"type\":\"header\"}\n{\"type\":\"booking\"}\n"
	if err := d.Write(context.Background(), []byte(data)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(fp.calls) != 1 {
		t.Fatalf("got %d puts, want 1", len(fp.calls))
	}
	c := fp.calls[0]
	if c.key != "quillbooking/backup.jsonl" || c.body != data {
		t.Errorf("put %q = %q", c.key, c.body)
	}
	if got := aws.ToString(c.in.Bucket); got != "backups" {
		t.Errorf("bucket = %q", got)
	}
	if got := aws.ToString(c.in.ContentType); got != "application/x-ndjson" {
		t.Errorf("content type = %q", got)
	}
	if c.in.ChecksumAlgorithm != types.ChecksumAlgorithmSha256 {
		t.Errorf("checksum = %q", c.in.ChecksumAlgorithm)
	}
	if c.in.Metadata["lines"] != "2" || c.in.Metadata["exported-at"] != "2026-11-02T14:05:00Z" {
		t.Errorf("metadata = %v", c.in.Metadata)
	}
	if got := d.String(); got != "s3://backups/quillbooking/backup.jsonl" {
		t.Errorf("String() = %q", got)
	}
}

func TestS3Destination_Snapshots(t *testing.T) {
	fp := &fakePutter{}
	d := newS3Destination(fp, S3Options{
		Bucket:         "backups",
		Key:            "latest.jsonl",
		SnapshotPrefix: "snapshots/",
	})
	d.now = fixedClock

	if err := d.Write(context.Background(), []byte("{}\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var keys []string
	for _, c := range fp.calls {
		keys = append(keys, c.key)
	}
	want := "snapshots/2026/11/02/backup-1793628300.jsonl,latest.jsonl"
	if got := strings.Join(keys, ","); got != want {
		t.Errorf("keys = %s, want %s", got, want)
	}
}

func TestS3Destination_SnapshotFailureKeepsLatest(t *testing.T) {
	fp := &fakePutter{fail: map[string]error{}}
	d := newS3Destination(fp, S3Options{Bucket: "b", Key: "latest.jsonl", SnapshotPrefix: "snap"})
	d.now = fixedClock
	fp.fail[d.snapshotKey(fixedClock())] = errors.New("access denied")

	err := d.Write(context.Background(), []byte("{}\n"))
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("Write error = %v", err)
	}
	if len(fp.calls) != 0 {
		t.Errorf("latest object written after snapshot failure: %+v", fp.calls)
	}
}

func TestNewS3Destination_Validation(t *testing.T) {
	for _, opts := range []S3Options{
		{Key: "k"},
		{Bucket: "b"},
	} {
		if _, err := NewS3Destination(context.Background(), opts); err == nil {
			t.Errorf("NewS3Destination(%+v) succeeded", opts)
		}
	}
}
