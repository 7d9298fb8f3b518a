package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/staging"
)

const importDoc = `<?xml version="1.0" encoding="UTF-8"?><catalog:product-list xmlns:catalog="x"></catalog:product-list>`

func newUploadFixture(t *testing.T, maxBytes int64) (*UploadService, *staging.Store, *fakeStorage) {
	t.Helper()
	store, err := staging.New(t.TempDir())
	if err != nil {
		t.Fatalf("staging.New: %v", err)
	}
	storage := &fakeStorage{}
	svc := NewUploadService(store, storage, UploadServiceConfig{Bucket: "catalog-backups", MaxFileBytes: maxBytes})
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc, store, storage
}

func zipOf(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestUploadStagesXML(t *testing.T) {
	svc, store, storage := newUploadFixture(t, 0)

	staged, err := svc.Upload(context.Background(), "../backup.xml", "text/xml", []byte(importDoc))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !staged.Success || staged.Name != "backup.xml" || staged.Timestamp != 1700000000 {
		t.Fatalf("unexpected result %+v", staged)
	}
	if text, _ := store.ReadText(staging.ImportXML); text != importDoc {
		t.Fatalf("document not staged: %q", text)
	}
	if _, ok := storage.objects["catalog-backups/imports/1700000000-backup.xml"]; !ok {
		t.Fatalf("upload was not archived: %v", storage.objects)
	}

	check := svc.Check()
	if check.Code != domain.ImportCheckReady || check.Name != "backup.xml" {
		t.Fatalf("unexpected check %+v", check)
	}
}

func TestUploadUnpacksZip(t *testing.T) {
	svc, store, _ := newUploadFixture(t, 0)
	archive := zipOf(t, map[string]string{"notes.txt": "hi", "export/catalog.XML": importDoc})

	if _, err := svc.Upload(context.Background(), "backup.bin", "application/octet-stream", archive); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !store.Exists(staging.ImportZip) {
		t.Fatalf("archive should be kept")
	}
	if text, _ := store.ReadText(staging.ImportXML); text != importDoc {
		t.Fatalf("xml entry not extracted: %q", text)
	}
}

func TestUploadRejectsZipWithoutXML(t *testing.T) {
	svc, store, _ := newUploadFixture(t, 0)
	archive := zipOf(t, map[string]string{"notes.txt": "hi"})

	if _, err := svc.Upload(context.Background(), "backup.zip", "", archive); !errors.Is(err, ErrUploadNoXML) {
		t.Fatalf("expected ErrUploadNoXML, got %v", err)
	}
	if store.Exists(staging.ImportZip) || store.Exists(staging.ImportTS) {
		t.Fatalf("a rejected upload must not stay staged")
	}
	if check := svc.Check(); check.Code != domain.ImportCheckMissing {
		t.Fatalf("unexpected check %+v", check)
	}
}

func TestUploadLimits(t *testing.T) {
	svc, _, _ := newUploadFixture(t, 10)
	if _, err := svc.Upload(context.Background(), "a.xml", "", nil); !errors.Is(err, ErrUploadEmpty) {
		t.Fatalf("expected ErrUploadEmpty, got %v", err)
	}
	_, err := svc.Upload(context.Background(), "a.xml", "", []byte(importDoc))
	if !errors.Is(err, ErrUploadTooLarge) {
		t.Fatalf("expected ErrUploadTooLarge, got %v", err)
	}
}

func TestUploadReplacesAndCleansUp(t *testing.T) {
	svc, store, _ := newUploadFixture(t, 0)
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "a.zip", "application/zip", zipOf(t, map[string]string{"a.xml": importDoc})); err != nil {
		t.Fatalf("Upload zip: %v", err)
	}
	if _, err := svc.Upload(ctx, "b.xml", "application/xml", []byte(importDoc)); err != nil {
		t.Fatalf("Upload xml: %v", err)
	}
	if store.Exists(staging.ImportZip) {
		t.Fatalf("previous archive must be removed")
	}

	if err := svc.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	for _, name := range []string{staging.ImportXML, staging.ImportZip, staging.ImportTS, staging.ImportName} {
		if store.Exists(name) {
			t.Fatalf("%s survived cleanup", name)
		}
	}
}
