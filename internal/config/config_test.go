package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://catalog")
	t.Setenv("ADMIN_EMAILS", " Ops@Example.com, ,shop@example.com ")
	t.Setenv("EXPORT_GRACE_PERIOD", "not-a-duration")
	t.Setenv("UPLOAD_MAX_BYTES", "1024")

	cfg := Load()
	if cfg.StateDatabaseURL != "postgres://catalog" || cfg.StateDriver != "pgx" {
		t.Fatalf("state database should default to the catalog: %+v", cfg)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[0] != "ops@example.com" {
		t.Fatalf("unexpected admin emails %v", cfg.AdminEmails)
	}
	if cfg.ExportGracePeriod != 2*time.Minute {
		t.Fatalf("grace period = %s", cfg.ExportGracePeriod)
	}
	if cfg.UploadMaxBytes != 1024 {
		t.Fatalf("upload max = %d", cfg.UploadMaxBytes)
	}
	if len(cfg.AllowOrigins) != 1 || cfg.AllowOrigins[0] != "*" {
		t.Fatalf("allow origins = %v", cfg.AllowOrigins)
	}
	if cfg.MinIOEnabled() {
		t.Fatalf("minio should be disabled without credentials")
	}
}

func TestLoadPanicsWithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing DATABASE_URL")
		}
	}()
	Load()
}
