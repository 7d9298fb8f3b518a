package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/config"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/elastic"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/minio"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/ports"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/postgres"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/sqlite"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/staging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/service"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/util"
)

const auditRequestTimeout = 5 * time.Second

// Services holds everything the HTTP server and the CLI drive.
type Services struct {
	Analysis *service.AnalysisService
	Export   *service.ExportService
	Upload   *service.UploadService
	Apply    *service.ApplyService

	closers []io.Closer
}

// Close releases the database handles.
func (s *Services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SetupLogging installs the process logger, mirrored to Logstash when an
// address is configured. The returned mirror is nil without one; flush reports
// lost lines and closes it.
func SetupLogging(cfg config.Config) (*slog.Logger, *logging.LogstashWriter, func(), error) {
	var (
		mirrors []io.Writer
		mirror  *logging.LogstashWriter
	)
	if cfg.LogstashTCPAddr != "" {
		w, err := logging.NewLogstashWriter(cfg.LogstashTCPAddr)
		if err != nil {
			return nil, nil, nil, err
		}
		mirror = w
		mirrors = append(mirrors, w)
	}
	logger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, mirrors...)
	if err != nil {
		if mirror != nil {
			mirror.Close()
		}
		return nil, nil, nil, err
	}
	flush := func() {
		if mirror == nil {
			return
		}
		if stats := mirror.Stats(); stats.Dropped > 0 {
			logger.Warn("logstash mirror lost lines", "addr", stats.Addr, "dropped", stats.Dropped, "sent", stats.Sent, "last_error", stats.LastError)
		}
		mirror.Close()
	}
	return logger, mirror, flush, nil
}

// Build connects the stores named by cfg and assembles the services.
func Build(ctx context.Context, cfg config.Config) (*Services, error) {
	svc := &Services{}
	fail := func(err error) (*Services, error) {
		svc.Close()
		return nil, err
	}

	catalogDB, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	svc.closers = append(svc.closers, catalogDB)

	stateDB, err := openState(ctx, cfg, catalogDB)
	if err != nil {
		return fail(err)
	}
	if stateDB != catalogDB {
		svc.closers = append(svc.closers, stateDB)
	}

	store, err := staging.New(cfg.StagingDir)
	if err != nil {
		return fail(err)
	}

	var storage ports.ObjectStorage
	if cfg.MinIOEnabled() {
		client, err := minio.NewClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
		if err != nil {
			return fail(fmt.Errorf("minio client: %w", err))
		}
		objects := minio.NewStorage(client, cfg.MinIOPublicURL)
		if err := objects.EnsureBucket(ctx, cfg.MinIOBucketBackups); err != nil {
			return fail(err)
		}
		storage = objects
	} else {
		slog.Warn("object storage disabled; exports and uploads are not archived")
	}

	var audit ports.AuditSink
	if cfg.ElasticsearchURL != "" {
		es, err := elastic.NewClient(cfg.ElasticsearchURL)
		if err != nil {
			return fail(err)
		}
		audit = elastic.NewAuditSink(es, cfg.ElasticsearchAuditIndex, auditRequestTimeout)
	}

	items := postgres.NewWorkItemRepo(stateDB)
	catalogRepo := postgres.NewCatalogRepo(catalogDB)

	svc.Analysis = service.NewAnalysisService(items, catalogRepo, store)
	svc.Export = service.NewExportService(catalogRepo, store, storage, service.ExportServiceConfig{
		Bucket:      cfg.MinIOBucketBackups,
		GracePeriod: cfg.ExportGracePeriod,
	})
	svc.Upload = service.NewUploadService(store, storage, service.UploadServiceConfig{
		Bucket:       cfg.MinIOBucketBackups,
		MaxFileBytes: cfg.UploadMaxBytes,
	})
	svc.Apply = service.NewApplyService(items, catalogRepo, audit, service.ApplyServiceConfig{
		Enabled: cfg.EnableImportActions,
	})
	return svc, nil
}

// NewAuth returns the Google sign-in service backed by the configured JWT secret.
func NewAuth(cfg config.Config) (*service.AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return service.NewAuthService(util.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL), cfg.GoogleAudience, cfg.AdminEmails), nil
}

func openState(ctx context.Context, cfg config.Config, catalogDB *sqlx.DB) (*sqlx.DB, error) {
	if cfg.StateDriver == "sqlite" {
		return sqlite.Open(ctx, cfg.StateDatabaseURL)
	}
	db := catalogDB
	if cfg.StateDatabaseURL != "" && cfg.StateDatabaseURL != cfg.DatabaseURL {
		var err error
		if db, err = postgres.New(ctx, cfg.StateDatabaseURL); err != nil {
			return nil, err
		}
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		if db != catalogDB {
			db.Close()
		}
		return nil, err
	}
	return db, nil
}
