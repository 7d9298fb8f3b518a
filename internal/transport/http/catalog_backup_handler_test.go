package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/service"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/util"
)

type stubAuth struct{}

func (stubAuth) Authenticate(token string) (*util.Claims, error) {
	switch token {
	case "admin":
		return &util.Claims{Email: "ops@example.com", Admin: true}, nil
	case "guest":
		return nil, service.ErrNotAdmin
	default:
		return nil, service.ErrInvalidToken
	}
}

type stubAnalysis struct {
	steps []domain.Stage
}

func (s *stubAnalysis) Step(_ context.Context, stage domain.Stage) (domain.Report, error) {
	s.steps = append(s.steps, stage)
	progress := 5.0
	return domain.Report{Progress: &progress, NextStep: stage.Next(), Code: domain.MessageAnalysisReadXMLFile}, nil
}

func (s *stubAnalysis) IsReady(context.Context) (bool, error) { return true, nil }

func (s *stubAnalysis) Items(_ context.Context, statuses ...domain.ItemStatus) ([]domain.ImportItem, error) {
	return []domain.ImportItem{{ID: 1, Status: statuses[0], Data: "never exposed"}}, nil
}

func (s *stubAnalysis) Errors(context.Context) ([]domain.ErrorEntry, error) {
	return []domain.ErrorEntry{{Code: domain.ErrorAmbiguousMatch, Messages: []string{"two matches"}}}, nil
}

type stubExport struct {
	path string
}

func (s *stubExport) Check(context.Context) (domain.ExportStatus, error) {
	return domain.ExportStatus{Success: true, Code: domain.ExportReady}, nil
}

func (s *stubExport) Open() (*service.Artifact, error) {
	if s.path == "" {
		return nil, service.ErrExportMissing
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	info, _ := f.Stat()
	return &service.Artifact{Name: "product_export.zip", ContentType: "application/zip", File: f, Size: info.Size()}, nil
}

type stubUpload struct {
	name string
	data []byte
}

func (s *stubUpload) Upload(_ context.Context, filename, _ string, contents []byte) (domain.StagedImport, error) {
	s.name, s.data = filename, contents
	return domain.StagedImport{Success: true, Code: domain.ImportCheckReady, Name: filename}, nil
}

func (s *stubUpload) Check() domain.StagedImport {
	return domain.StagedImport{Code: domain.ImportCheckMissing}
}

func (s *stubUpload) Cleanup(context.Context) error { return nil }

type stubApply struct {
	err error
}

func (s *stubApply) ApplyAction(_ context.Context, itemID int64, index int) (domain.ApplyResult, error) {
	if s.err != nil {
		return domain.ApplyResult{}, s.err
	}
	return domain.ApplyResult{Success: true, ItemID: itemID, Index: index}, nil
}

func (s *stubApply) ApplyGroup(context.Context, domain.ActionGroup) (domain.ApplyResult, error) {
	return domain.ApplyResult{}, service.ErrNoPendingAction
}

func (s *stubApply) Pending(context.Context, domain.ActionGroup) (int, error) { return 3, nil }

type backupFixture struct {
	e        *echo.Echo
	analysis *stubAnalysis
	export   *stubExport
	upload   *stubUpload
	apply    *stubApply
}

func newBackupFixture() *backupFixture {
	f := &backupFixture{
		e:        NewRouter(RouterConfig{AllowOrigins: []string{"*"}}),
		analysis: &stubAnalysis{},
		export:   &stubExport{},
		upload:   &stubUpload{},
		apply:    &stubApply{},
	}
	RegisterCatalogBackup(f.e, stubAuth{}, CatalogBackupServices{
		Analysis: f.analysis,
		Export:   f.export,
		Upload:   f.upload,
		Apply:    f.apply,
	}, 1024)
	return f
}

func (f *backupFixture) do(method, target, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestCatalogBackupRequiresAdmin(t *testing.T) {
	f := newBackupFixture()
	if rec := f.do(http.MethodGet, "/api/v1/admin/catalog-backup/export", "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/admin/catalog-backup/export", "guest", nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	rec := f.do(http.MethodGet, "/api/v1/admin/catalog-backup/export", "admin", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestAnalysisStepEndpoint(t *testing.T) {
	f := newBackupFixture()
	rec := f.do(http.MethodPost, "/api/v1/admin/catalog-backup/analysis/read-init", "admin", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var report domain.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.NextStep != domain.StageReadXMLFile || report.Progress == nil {
		t.Fatalf("unexpected report %+v", report)
	}

	if rec := f.do(http.MethodPost, "/api/v1/admin/catalog-backup/analysis/bogus", "admin", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown step, got %d", rec.Code)
	}
	if len(f.analysis.steps) != 1 {
		t.Fatalf("unexpected steps %v", f.analysis.steps)
	}
}

func TestUploadEndpoint(t *testing.T) {
	f := newBackupFixture()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "backup.xml")
	part.Write([]byte("<catalog:product-list/>"))
	mw.Close()

	rec := f.do(http.MethodPost, "/api/v1/admin/catalog-backup/upload", "admin", &body, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	if f.upload.name != "backup.xml" || string(f.upload.data) != "<catalog:product-list/>" {
		t.Fatalf("upload not forwarded: %q %q", f.upload.name, f.upload.data)
	}

	if rec := f.do(http.MethodPost, "/api/v1/admin/catalog-backup/upload", "admin", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", rec.Code)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	f := newBackupFixture()
	if rec := f.do(http.MethodGet, "/api/v1/admin/catalog-backup/download", "admin", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without export, got %d", rec.Code)
	}

	f.export.path = filepath.Join(t.TempDir(), "product_export.zip")
	if err := os.WriteFile(f.export.path, []byte("PK-archive"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rec := f.do(http.MethodGet, "/api/v1/admin/catalog-backup/download", "admin", nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "PK-archive" {
		t.Fatalf("unexpected download %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != `attachment; filename="product_export.zip"` {
		t.Fatalf("unexpected disposition %q", got)
	}
}

func TestItemsAndActionsEndpoints(t *testing.T) {
	f := newBackupFixture()

	rec := f.do(http.MethodGet, "/api/v1/admin/catalog-backup/items?status=analysed", "admin", nil, "")
	if rec.Code != http.StatusOK || bytes.Contains(rec.Body.Bytes(), []byte("never exposed")) {
		t.Fatalf("unexpected items response %d %s", rec.Code, rec.Body)
	}
	if rec := f.do(http.MethodGet, "/api/v1/admin/catalog-backup/items?status=bogus", "admin", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}

	if rec := f.do(http.MethodPost, "/api/v1/admin/catalog-backup/items/4/actions/1", "admin", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if rec := f.do(http.MethodPost, "/api/v1/admin/catalog-backup/items/x/actions/1", "admin", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}

	f.apply.err = service.ErrActionNotPending
	if rec := f.do(http.MethodPost, "/api/v1/admin/catalog-backup/items/4/actions/1", "admin", nil, ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	f.apply.err = errors.New("database gone")
	rec = f.do(http.MethodPost, "/api/v1/admin/catalog-backup/items/4/actions/1", "admin", nil, "")
	if rec.Code != http.StatusInternalServerError || bytes.Contains(rec.Body.Bytes(), []byte("database gone")) {
		t.Fatalf("internal errors must stay internal: %d %s", rec.Code, rec.Body)
	}

	if rec := f.do(http.MethodPost, "/api/v1/admin/catalog-backup/groups/price/apply", "admin", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when nothing is pending, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/admin/catalog-backup/groups/stock", "admin", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown group, got %d", rec.Code)
	}
}

func TestSanitizeBodyRedactsTokens(t *testing.T) {
	got := sanitizeBody([]byte(`{"id_token":"abc","nested":{"secret_key":"x","ok":"y"}}`), "application/json")
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a map, got %T", got)
	}
	if m["id_token"] != "redacted" {
		t.Fatalf("token not redacted: %v", m)
	}
	nested := m["nested"].(map[string]interface{})
	if nested["secret_key"] != "redacted" || nested["ok"] != "y" {
		t.Fatalf("unexpected nested values %v", nested)
	}
	if sanitizeBody([]byte{0xff, 0x00}, "application/octet-stream") != "binary" {
		t.Fatalf("expected binary marker")
	}
}
