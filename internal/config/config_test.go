package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"billed/internal/core"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Port:               "8081",
		PublicBaseURL:      "http://localhost:8081",
		MaxUploadBytes:     10 << 20,
		RateLimitPerMinute: 60,
		CacheTTL:           time.Minute,
		SQLiteDBPath:       filepath.Join(dir, "db", "billed.db"),
		BlobDir:            filepath.Join(dir, "receipts"),
		JWTSecret:          "0123456789abcdef0123",
		JWTTTL:             time.Hour,
		AMQPExchange:       "billed",
		AMQPQueue:          "export_bills",
		ExportBatchSize:    10,
		ExportInterval:     30 * time.Second,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "valid config with amqp and sheets",
			mutate:  func(c *Config) { c.AMQPURL = "amqps://u:p@mq:5671/"; c.GoogleSpreadsheetID = "sheet"; c.GoogleSheetName = "Bills" },
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range high",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "relative public base url",
			mutate:      func(c *Config) { c.PublicBaseURL = "/files" },
			wantErr:     true,
			errorString: "invalid public base URL",
		},
		{
			name:        "short jwt secret",
			mutate:      func(c *Config) { c.JWTSecret = "short" },
			wantErr:     true,
			errorString: "JWT secret must be at least 16 characters",
		},
		{
			name:        "bad amqp scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost:5672/" },
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name:        "amqp without queue",
			mutate:      func(c *Config) { c.AMQPURL = "amqp://localhost:5672/"; c.AMQPQueue = "" },
			wantErr:     true,
			errorString: "AMQP queue name cannot be empty",
		},
		{
			name:        "spreadsheet without sheet name",
			mutate:      func(c *Config) { c.GoogleSpreadsheetID = "sheet"; c.GoogleSheetName = "" },
			wantErr:     true,
			errorString: "Google Sheet name is required",
		},
		{
			name:        "batch size too large",
			mutate:      func(c *Config) { c.ExportBatchSize = 5000 },
			wantErr:     true,
			errorString: "invalid export batch size 5000: must be at most 1000",
		},
		{
			name:        "interval too short",
			mutate:      func(c *Config) { c.ExportInterval = time.Millisecond },
			wantErr:     true,
			errorString: "must be at least 1 second",
		},
		{
			name:        "unknown log format",
			mutate:      func(c *Config) { c.LogFormat = "xml" },
			wantErr:     true,
			errorString: "invalid log format 'xml'",
		},
		{
			name:        "bad seed user",
			mutate:      func(c *Config) { c.SeedUsers = []SeedUser{{Email: "a@a", Password: "a", Type: "Guest"}} },
			wantErr:     true,
			errorString: "invalid seed user 'a@a'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("expected error to contain '%s', got: %v", tt.errorString, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = "abc"
	cfg.JWTSecret = ""
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if got := strings.Count(err.Error(), "\n- "); got != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", got, err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"PORT", "PUBLIC_BASE_URL", "SQLITE_DB_PATH", "EXPORT_BATCH_SIZE", "EXPORT_INTERVAL", "SEED_USERS"} {
			t.Setenv(key, "")
		}
		cfg := Load()
		if cfg.Port != "8081" {
			t.Errorf("Port = %s", cfg.Port)
		}
		if cfg.PublicBaseURL != "http://localhost:8081" {
			t.Errorf("PublicBaseURL = %s", cfg.PublicBaseURL)
		}
		if cfg.ExportBatchSize != 10 || cfg.ExportInterval != 30*time.Second {
			t.Errorf("worker defaults = %d %v", cfg.ExportBatchSize, cfg.ExportInterval)
		}
		if len(cfg.SeedUsers) != 0 {
			t.Errorf("SeedUsers = %v", cfg.SeedUsers)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("PUBLIC_BASE_URL", "https://bills.example.com/")
		t.Setenv("EXPORT_BATCH_SIZE", "25")
		t.Setenv("EXPORT_INTERVAL", "45s")
		t.Setenv("SEED_USERS", "employee@test.tld:employee, admin@test.tld:admin:Admin")

		cfg := Load()
		if cfg.Port != "9090" {
			t.Errorf("Port = %s", cfg.Port)
		}
		if cfg.PublicBaseURL != "https://bills.example.com" {
			t.Errorf("PublicBaseURL = %s", cfg.PublicBaseURL)
		}
		if cfg.ExportBatchSize != 25 || cfg.ExportInterval != 45*time.Second {
			t.Errorf("worker overrides = %d %v", cfg.ExportBatchSize, cfg.ExportInterval)
		}
		want := []SeedUser{
			{Email: "employee@test.tld", Password: "employee", Type: core.Employee},
			{Email: "admin@test.tld", Password: "admin", Type: core.Admin},
		}
		if len(cfg.SeedUsers) != len(want) {
			t.Fatalf("SeedUsers = %v", cfg.SeedUsers)
		}
		for i := range want {
			if cfg.SeedUsers[i] != want[i] {
				t.Errorf("SeedUsers[%d] = %+v, want %+v", i, cfg.SeedUsers[i], want[i])
			}
		}
	})

	t.Run("invalid numbers fall back to defaults", func(t *testing.T) {
		t.Setenv("EXPORT_BATCH_SIZE", "invalid")
		t.Setenv("EXPORT_INTERVAL", "invalid")
		cfg := Load()
		if cfg.ExportBatchSize != 10 || cfg.ExportInterval != 30*time.Second {
			t.Errorf("expected defaults, got %d %v", cfg.ExportBatchSize, cfg.ExportInterval)
		}
	})
}
