package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string // QUILL_DATABASE_URL (required)
	GRPCAddr    string // QUILL_GRPC_ADDR (default ":9090")
	HTTPAddr    string // QUILL_HTTP_ADDR (default ":8080")
	NATSURL     string // QUILL_NATS_URL (optional, empty = no events)
	AuthToken   string // QUILL_AUTH_TOKEN (optional token or name:token list, empty = auth disabled)
	ConfirmURL  string // QUILL_CONFIRM_URL (optional, base of confirmation links)

	// Sync settings
	SyncInterval   time.Duration // QUILL_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // QUILL_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // QUILL_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // QUILL_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // QUILL_SYNC_S3_KEY (default "quillbooking/backup.jsonl")
	SyncS3Snapshot string        // QUILL_SYNC_S3_SNAPSHOTS (key prefix for dated copies; empty = latest only)
	SyncFile       string        // QUILL_SYNC_FILE (enables a local file export when set)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("QUILL_DATABASE_URL"),
		GRPCAddr:       envOrDefault("QUILL_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("QUILL_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("QUILL_NATS_URL"),
		AuthToken:      os.Getenv("QUILL_AUTH_TOKEN"),
		ConfirmURL:     os.Getenv("QUILL_CONFIRM_URL"),
		SyncS3Bucket:   os.Getenv("QUILL_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("QUILL_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("QUILL_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("QUILL_SYNC_S3_KEY", "quillbooking/backup.jsonl"),
		SyncS3Snapshot: os.Getenv("QUILL_SYNC_S3_SNAPSHOTS"),
		SyncFile:       os.Getenv("QUILL_SYNC_FILE"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("QUILL_DATABASE_URL is required")
	}

	d, err := durationEnv("QUILL_SYNC_INTERVAL", 3*time.Minute)
	if err != nil {
		return nil, err
	}
	c.SyncInterval = d

	return c, nil
}

// SaveDebounce returns the authoring save delay from QUILL_SAVE_DEBOUNCE,
// falling back to def when unset.
func SaveDebounce(def time.Duration) (time.Duration, error) {
	return durationEnv("QUILL_SAVE_DEBOUNCE", def)
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
