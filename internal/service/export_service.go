package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/catalog"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/catalogxml"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/ports"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/staging"
)

var ErrExportMissing = errors.New("no export has been created yet")

var exportMessages = map[domain.ExportCode]string{
	domain.ExportAbortBusy:   "The catalog was modified moments ago. Try again in a few minutes.",
	domain.ExportReady:       "The export is up to date.",
	domain.ExportSuccessful:  "The export was created.",
	domain.ExportProgressing: "An export is being created.",
	domain.ExportFailed:      "The export could not be created.",
}

type ExportServiceConfig struct {
	Bucket      string
	GracePeriod time.Duration
}

// ExportService writes the whole catalog into a cached product-list document.
type ExportService struct {
	catalog ports.CatalogRepository
	staging *staging.Store
	storage ports.ObjectStorage
	bucket  string
	grace   time.Duration
	now     func() time.Time
}

// Artifact is an export ready to be streamed. The caller closes File.
type Artifact struct {
	Name        string
	ContentType string
	File        *os.File
	Size        int64
}

func NewExportService(catalogRepo ports.CatalogRepository, store *staging.Store, storage ports.ObjectStorage, cfg ExportServiceConfig) *ExportService {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = 120 * time.Second
	}
	return &ExportService{
		catalog: catalogRepo,
		staging: store,
		storage: storage,
		bucket:  cfg.Bucket,
		grace:   grace,
		now:     time.Now,
	}
}

// Check makes sure the cached export matches the catalog, creating it when
// needed. Generation problems are reported in the status.
func (s *ExportService) Check(ctx context.Context) (domain.ExportStatus, error) {
	maxTS, table, err := s.catalog.MaxTimestamp(ctx)
	if err != nil {
		return domain.ExportStatus{}, fmt.Errorf("catalog timestamp: %w", err)
	}
	if s.now().Unix()-maxTS < int64(s.grace/time.Second) {
		logging.FromContext(ctx).Info("export postponed", "table", table, "modified_at", maxTS)
		return exportStatus(domain.ExportAbortBusy, maxTS), nil
	}
	if s.staging.Exists(staging.ExportLock) {
		return exportStatus(domain.ExportProgressing, maxTS), nil
	}
	if stored, err := s.staging.ReadTimestamp(staging.ExportTS); err == nil && stored == maxTS && s.cached() != "" {
		status := exportStatus(domain.ExportReady, maxTS)
		status.File = s.cached()
		return status, nil
	}

	unlock, err := s.staging.Lock(staging.ExportLock)
	if errors.Is(err, staging.ErrLocked) {
		return exportStatus(domain.ExportProgressing, maxTS), nil
	}
	if err != nil {
		return domain.ExportStatus{}, err
	}
	defer func() {
		if err := unlock(); err != nil {
			logging.FromContext(ctx).Error("release export lock", "error", err)
		}
	}()

	if err := s.generate(ctx, maxTS); err != nil {
		logging.FromContext(ctx).Error("export failed", "error", err)
		status := exportStatus(domain.ExportFailed, maxTS)
		status.Message = fmt.Sprintf("%s %v", status.Message, err)
		return status, nil
	}
	status := exportStatus(domain.ExportSuccessful, maxTS)
	status.File = staging.ExportZip
	return status, nil
}

// Open returns the cached export, preferring the zip archive.
func (s *ExportService) Open() (*Artifact, error) {
	for _, candidate := range []struct{ name, contentType string }{
		{staging.ExportZip, "application/zip"},
		{staging.ExportXML, "application/xml"},
	} {
		f, err := s.staging.Open(candidate.name)
		if errors.Is(err, staging.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		return &Artifact{Name: candidate.name, ContentType: candidate.contentType, File: f, Size: info.Size()}, nil
	}
	return nil, ErrExportMissing
}

func (s *ExportService) generate(ctx context.Context, maxTS int64) error {
	ids, err := s.catalog.ListTopLevelIDs(ctx)
	if err != nil {
		return err
	}

	xmlFile, err := s.staging.Create(staging.ExportXML)
	if err != nil {
		return err
	}
	reader := catalog.NewReader(s.catalog)
	enc := catalogxml.NewEncoder(xmlFile)
	for _, id := range ids {
		tree, err := reader.Tree(ctx, id, catalog.BuildOptions{})
		if err != nil {
			xmlFile.Abort()
			return fmt.Errorf("product %d: %w", id, err)
		}
		if err := enc.WriteProduct(tree); err != nil {
			xmlFile.Abort()
			return err
		}
	}
	if err := enc.Close(); err != nil {
		xmlFile.Abort()
		return err
	}
	if err := xmlFile.Commit(); err != nil {
		return err
	}

	if err := s.compress(); err != nil {
		return fmt.Errorf("compress export: %w", err)
	}
	if err := s.staging.WriteTimestamp(staging.ExportTS, maxTS); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("export created", "products", len(ids), "catalog_ts", maxTS)
	s.archive(ctx, maxTS)
	return nil
}

func (s *ExportService) compress() error {
	src, err := s.staging.Open(staging.ExportXML)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := s.staging.Create(staging.ExportZip)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	w, err := zw.Create(staging.ExportXML)
	if err == nil {
		_, err = io.Copy(w, src)
	}
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		out.Abort()
		return err
	}
	return out.Commit()
}

// archive keeps a copy of every generated export in object storage.
func (s *ExportService) archive(ctx context.Context, maxTS int64) {
	if s.storage == nil || s.bucket == "" {
		return
	}
	f, err := s.staging.Open(staging.ExportZip)
	if err != nil {
		logging.FromContext(ctx).Warn("archive export", "error", err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logging.FromContext(ctx).Warn("archive export", "error", err)
		return
	}
	objectName := fmt.Sprintf("exports/product_export-%d.zip", maxTS)
	url, err := s.storage.Upload(ctx, s.bucket, objectName, "application/zip", f, info.Size())
	if err != nil {
		logging.FromContext(ctx).Warn("archive export", "error", err)
		return
	}
	logging.FromContext(ctx).Info("export archived", "url", url)
}

func (s *ExportService) cached() string {
	switch {
	case s.staging.Exists(staging.ExportZip):
		return staging.ExportZip
	case s.staging.Exists(staging.ExportXML):
		return staging.ExportXML
	}
	return ""
}

func exportStatus(code domain.ExportCode, ts int64) domain.ExportStatus {
	return domain.ExportStatus{
		Success:   code == domain.ExportReady || code == domain.ExportSuccessful,
		Code:      code,
		Message:   exportMessages[code],
		Timestamp: ts,
	}
}
