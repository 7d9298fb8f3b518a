package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/ports"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/staging"
)

var (
	ErrUploadEmpty    = errors.New("uploaded file is empty")
	ErrUploadTooLarge = errors.New("uploaded file exceeds maximum size")
	ErrUploadNoXML    = errors.New("zip archive contains no xml document")
)

var importFiles = []string{staging.ImportXML, staging.ImportZip, staging.ImportTS, staging.ImportName}

type UploadServiceConfig struct {
	Bucket       string
	MaxFileBytes int64
}

// UploadService stages the document an analysis run works on.
type UploadService struct {
	staging      *staging.Store
	storage      ports.ObjectStorage
	bucket       string
	maxFileBytes int64
	now          func() time.Time
}

func NewUploadService(store *staging.Store, storage ports.ObjectStorage, cfg UploadServiceConfig) *UploadService {
	maxFile := cfg.MaxFileBytes
	if maxFile <= 0 {
		maxFile = 64 * 1024 * 1024
	}
	return &UploadService{
		staging:      store,
		storage:      storage,
		bucket:       cfg.Bucket,
		maxFileBytes: maxFile,
		now:          time.Now,
	}
}

// Upload replaces the staged import with contents. Zip archives are unpacked,
// the first xml entry becomes the import document.
func (s *UploadService) Upload(ctx context.Context, filename, contentType string, contents []byte) (domain.StagedImport, error) {
	if len(contents) == 0 {
		return domain.StagedImport{}, ErrUploadEmpty
	}
	if int64(len(contents)) > s.maxFileBytes {
		return domain.StagedImport{}, fmt.Errorf("%w: %s, limit %s", ErrUploadTooLarge,
			humanize.Bytes(uint64(len(contents))), humanize.Bytes(uint64(s.maxFileBytes)))
	}
	if err := s.staging.Remove(importFiles...); err != nil {
		return domain.StagedImport{}, fmt.Errorf("remove previous upload: %w", err)
	}

	name := filepath.Base(filename)
	if isZip(name, contentType, contents) {
		if _, err := s.staging.WriteFile(staging.ImportZip, bytes.NewReader(contents)); err != nil {
			return domain.StagedImport{}, err
		}
		entry, err := s.extractXML(contents)
		if err != nil {
			s.staging.Remove(staging.ImportZip)
			return domain.StagedImport{}, err
		}
		logging.FromContext(ctx).Info("import archive unpacked", "entry", entry)
	} else {
		if _, err := s.staging.WriteFile(staging.ImportXML, bytes.NewReader(contents)); err != nil {
			return domain.StagedImport{}, err
		}
	}

	ts := s.now().Unix()
	if err := s.staging.WriteText(staging.ImportName, name); err != nil {
		return domain.StagedImport{}, err
	}
	if err := s.staging.WriteTimestamp(staging.ImportTS, ts); err != nil {
		return domain.StagedImport{}, err
	}
	logging.FromContext(ctx).Info("import staged", "file", name, "size", humanize.Bytes(uint64(len(contents))))

	if s.storage != nil && s.bucket != "" {
		objectName := fmt.Sprintf("imports/%d-%s", ts, name)
		if _, err := s.storage.Upload(ctx, s.bucket, objectName, contentTypeOf(name, contentType), bytes.NewReader(contents), int64(len(contents))); err != nil {
			logging.FromContext(ctx).Warn("archive upload", "error", err)
		}
	}

	return domain.StagedImport{Success: true, Code: domain.ImportCheckReady, Name: name, Timestamp: ts}, nil
}

// Check describes the staged import.
func (s *UploadService) Check() domain.StagedImport {
	if !s.staging.Exists(staging.ImportXML) {
		return domain.StagedImport{Code: domain.ImportCheckMissing, Message: "No import document has been uploaded."}
	}
	ts, err := s.staging.ReadTimestamp(staging.ImportTS)
	if err != nil {
		return domain.StagedImport{Code: domain.ImportCheckFailed, Message: err.Error()}
	}
	name, _ := s.staging.ReadText(staging.ImportName)
	return domain.StagedImport{Success: true, Code: domain.ImportCheckReady, Name: name, Timestamp: ts}
}

// Cleanup deletes every staged import file.
func (s *UploadService) Cleanup(ctx context.Context) error {
	if err := s.staging.Remove(importFiles...); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("import files removed")
	return nil
}

func (s *UploadService) extractXML(contents []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(contents), int64(len(contents)))
	if err != nil {
		return "", fmt.Errorf("read zip archive: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".xml") {
			continue
		}
		if f.UncompressedSize64 > uint64(s.maxFileBytes) {
			return "", fmt.Errorf("%w: %s unpacks to %s", ErrUploadTooLarge, f.Name, humanize.Bytes(f.UncompressedSize64))
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		_, err = s.staging.WriteFile(staging.ImportXML, io.LimitReader(rc, s.maxFileBytes))
		rc.Close()
		if err != nil {
			return "", err
		}
		return f.Name, nil
	}
	return "", ErrUploadNoXML
}

func isZip(name, contentType string, contents []byte) bool {
	switch {
	case strings.Contains(contentType, "zip"):
		return true
	case strings.EqualFold(filepath.Ext(name), ".zip"):
		return true
	default:
		return bytes.HasPrefix(contents, []byte("PK\x03\x04"))
	}
}

func contentTypeOf(name, contentType string) string {
	if contentType != "" {
		return contentType
	}
	if strings.EqualFold(filepath.Ext(name), ".zip") {
		return "application/zip"
	}
	return "application/xml"
}
