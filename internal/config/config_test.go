package config

import (
	"testing"
	"time"
)

// syncEnvVars lists all sync-related env vars that must be cleared between tests.
var syncEnvVars = []string{
	"QUILL_SYNC_INTERVAL", "QUILL_SYNC_S3_BUCKET", "QUILL_SYNC_S3_ENDPOINT",
	"QUILL_SYNC_S3_REGION", "QUILL_SYNC_S3_KEY", "QUILL_SYNC_S3_SNAPSHOTS", "QUILL_SYNC_FILE",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QUILL_DATABASE_URL", "QUILL_GRPC_ADDR", "QUILL_HTTP_ADDR", "QUILL_NATS_URL",
		"QUILL_AUTH_TOKEN", "QUILL_CONFIRM_URL", "QUILL_SAVE_DEBOUNCE",
	} {
		t.Setenv(key, "")
	}
	for _, key := range syncEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantGRPCAddr string
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "DefaultAddresses",
			env:          map[string]string{"QUILL_DATABASE_URL": "postgres://localhost/quill"},
			wantGRPCAddr: ":9090",
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"QUILL_DATABASE_URL": "postgres://db:5432/quill",
				"QUILL_GRPC_ADDR":    ":5050",
				"QUILL_HTTP_ADDR":    ":3000",
				"QUILL_NATS_URL":     "nats://localhost:4222",
			},
			wantGRPCAddr: ":5050",
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["QUILL_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["QUILL_DATABASE_URL"])
			}
			if cfg.GRPCAddr != tc.wantGRPCAddr {
				t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, tc.wantGRPCAddr)
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoadSync(t *testing.T) {
	const db = "postgres://localhost/quill"
	base := Config{
		DatabaseURL:  db,
		GRPCAddr:     ":9090",
		HTTPAddr:     ":8080",
		SyncInterval: 3 * time.Minute,
		SyncS3Region: "us-east-1",
		SyncS3Key:    "quillbooking/backup.jsonl",
	}
	for _, tc := range []struct {
		name string
		env  map[string]string
		want func(c *Config)
	}{
		{
			name: "Defaults",
			want: func(*Config) {},
		},
		{
			name: "Disabled",
			env:  map[string]string{"QUILL_SYNC_INTERVAL": "0s"},
			want: func(c *Config) { c.SyncInterval = 0 },
		},
		{
			name: "MinIOWithSnapshots",
			env: map[string]string{
				"QUILL_SYNC_INTERVAL":     "10m",
				"QUILL_SYNC_S3_BUCKET":    "my-bucket",
				"QUILL_SYNC_S3_ENDPOINT":  "http://minio:9000",
				"QUILL_SYNC_S3_REGION":    "eu-west-1",
				"QUILL_SYNC_S3_KEY":       "custom/key.jsonl",
				"QUILL_SYNC_S3_SNAPSHOTS": "snapshots",
			},
			want: func(c *Config) {
				c.SyncInterval = 10 * time.Minute
				c.SyncS3Bucket = "my-bucket"
				c.SyncS3Endpoint = "http://minio:9000"
				c.SyncS3Region = "eu-west-1"
				c.SyncS3Key = "custom/key.jsonl"
				c.SyncS3Snapshot = "snapshots"
			},
		},
		{
			name: "FileAndConfirmation",
			env: map[string]string{
				"QUILL_SYNC_FILE":   "/var/backups/quill.jsonl",
				"QUILL_CONFIRM_URL": "https://example.com/book",
			},
			want: func(c *Config) {
				c.SyncFile = "/var/backups/quill.jsonl"
				c.ConfirmURL = "https://example.com/book"
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			t.Setenv("QUILL_DATABASE_URL", db)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			got, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			want := base
			tc.want(&want)
			if *got != want {
				t.Errorf("Load() =\n%+v\nwant\n%+v", *got, want)
			}
		})
	}
}

func TestLoadSyncInvalidInterval(t *testing.T) {
	for _, v := range []string{"not-a-duration", "-1m"} {
		t.Run(v, func(t *testing.T) {
			clearAllEnv(t)
			t.Setenv("QUILL_DATABASE_URL", "postgres://localhost/quill")
			t.Setenv("QUILL_SYNC_INTERVAL", v)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for QUILL_SYNC_INTERVAL=%q", v)
			}
		})
	}
}

func TestSaveDebounce(t *testing.T) {
	for _, tc := range []struct {
		name    string
		env     string
		want    time.Duration
		wantErr bool
	}{
		{"Unset", "", 300 * time.Millisecond, false},
		{"Custom", "50ms", 50 * time.Millisecond, false},
		{"Zero", "0s", 0, false},
		{"Invalid", "soon", 0, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QUILL_SAVE_DEBOUNCE", tc.env)
			got, err := SaveDebounce(300 * time.Millisecond)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("SaveDebounce = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
