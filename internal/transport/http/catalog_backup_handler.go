package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/logging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/repository/staging"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/service"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/util"
)

type analysisRunner interface {
	Step(ctx context.Context, stage domain.Stage) (domain.Report, error)
	IsReady(ctx context.Context) (bool, error)
	Items(ctx context.Context, statuses ...domain.ItemStatus) ([]domain.ImportItem, error)
	Errors(ctx context.Context) ([]domain.ErrorEntry, error)
}

type exporter interface {
	Check(ctx context.Context) (domain.ExportStatus, error)
	Open() (*service.Artifact, error)
}

type uploader interface {
	Upload(ctx context.Context, filename, contentType string, contents []byte) (domain.StagedImport, error)
	Check() domain.StagedImport
	Cleanup(ctx context.Context) error
}

type actionApplier interface {
	ApplyAction(ctx context.Context, itemID int64, index int) (domain.ApplyResult, error)
	ApplyGroup(ctx context.Context, group domain.ActionGroup) (domain.ApplyResult, error)
	Pending(ctx context.Context, group domain.ActionGroup) (int, error)
}

type CatalogBackupServices struct {
	Analysis analysisRunner
	Export   exporter
	Upload   uploader
	Apply    actionApplier
}

type CatalogBackupHandler struct {
	analysis      analysisRunner
	export        exporter
	upload        uploader
	apply         actionApplier
	maxUploadSize int64
}

func RegisterCatalogBackup(e *echo.Echo, auth authenticator, svc CatalogBackupServices, maxUpload int64) {
	handler := &CatalogBackupHandler{
		analysis:      svc.Analysis,
		export:        svc.Export,
		upload:        svc.Upload,
		apply:         svc.Apply,
		maxUploadSize: maxUpload,
	}

	group := e.Group("/api/v1/admin/catalog-backup", RequireAuth(auth), RequireAdmin())
	group.GET("/export", handler.checkExport)
	group.GET("/download", handler.download)
	group.POST("/upload", handler.uploadFile)
	group.GET("/upload", handler.checkUpload)
	group.DELETE("/upload", handler.cleanupUpload)
	group.POST("/analysis/:step", handler.analysisStep)
	group.GET("/items", handler.listItems)
	group.GET("/errors", handler.listErrors)
	group.POST("/items/:id/actions/:index", handler.applyAction)
	group.GET("/groups/:group", handler.pendingGroup)
	group.POST("/groups/:group/apply", handler.applyGroup)
}

func (h *CatalogBackupHandler) checkExport(c echo.Context) error {
	status, err := h.export.Check(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *CatalogBackupHandler) download(c echo.Context) error {
	artifact, err := h.export.Open()
	if err != nil {
		return h.writeError(c, err)
	}
	defer artifact.File.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, artifact.Name))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(artifact.Size, 10))
	return c.Stream(http.StatusOK, artifact.ContentType, artifact.File)
}

func (h *CatalogBackupHandler) uploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("file is required"))
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("unable to read upload"))
	}
	defer src.Close()

	limit := h.maxUploadSize
	if limit <= 0 {
		limit = 64 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("failed reading upload"))
	}

	staged, err := h.upload.Upload(c.Request().Context(), file.Filename, file.Header.Get(echo.HeaderContentType), data)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, staged)
}

func (h *CatalogBackupHandler) checkUpload(c echo.Context) error {
	return c.JSON(http.StatusOK, h.upload.Check())
}

func (h *CatalogBackupHandler) cleanupUpload(c echo.Context) error {
	if err := h.upload.Cleanup(c.Request().Context()); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.OK())
}

func (h *CatalogBackupHandler) analysisStep(c echo.Context) error {
	stage, ok := domain.ParseStage(c.Param("step"))
	if !ok {
		return c.JSON(http.StatusBadRequest, util.Error("unknown analysis step"))
	}
	report, err := h.analysis.Step(c.Request().Context(), stage)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *CatalogBackupHandler) listItems(c echo.Context) error {
	statuses, err := parseStatuses(c.QueryParam("status"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}
	ctx := c.Request().Context()
	items, err := h.analysis.Items(ctx, statuses...)
	if err != nil {
		return h.writeError(c, err)
	}
	ready, err := h.analysis.IsReady(ctx)
	if err != nil {
		return h.writeError(c, err)
	}
	if items == nil {
		items = []domain.ImportItem{}
	}
	return c.JSON(http.StatusOK, util.Envelope{"items": items, "ready": ready})
}

func (h *CatalogBackupHandler) listErrors(c echo.Context) error {
	entries, err := h.analysis.Errors(c.Request().Context())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.Data("errors", entries))
}

func (h *CatalogBackupHandler) applyAction(c echo.Context) error {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || itemID <= 0 {
		return c.JSON(http.StatusBadRequest, util.Error("invalid item id"))
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return c.JSON(http.StatusBadRequest, util.Error("invalid action index"))
	}
	result, err := h.apply.ApplyAction(c.Request().Context(), itemID, index)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *CatalogBackupHandler) pendingGroup(c echo.Context) error {
	group, ok := domain.ParseActionGroup(c.Param("group"))
	if !ok {
		return c.JSON(http.StatusBadRequest, util.Error("unknown action group"))
	}
	n, err := h.apply.Pending(c.Request().Context(), group)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, util.Envelope{"group": group, "pending": n})
}

func (h *CatalogBackupHandler) applyGroup(c echo.Context) error {
	group, ok := domain.ParseActionGroup(c.Param("group"))
	if !ok {
		return c.JSON(http.StatusBadRequest, util.Error("unknown action group"))
	}
	result, err := h.apply.ApplyGroup(c.Request().Context(), group)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *CatalogBackupHandler) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrUploadEmpty), errors.Is(err, service.ErrUnknownStage):
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	case errors.Is(err, service.ErrUploadTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, util.Error(err.Error()))
	case errors.Is(err, service.ErrUploadNoXML):
		return c.JSON(http.StatusUnprocessableEntity, util.Error(err.Error()))
	case errors.Is(err, service.ErrExportMissing),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrActionNotFound),
		errors.Is(err, service.ErrNoPendingAction):
		return c.JSON(http.StatusNotFound, util.Error(err.Error()))
	case errors.Is(err, service.ErrActionNotPending):
		return c.JSON(http.StatusConflict, util.Error(err.Error()))
	case errors.Is(err, service.ErrImportActionsDisabled):
		return c.JSON(http.StatusForbidden, util.Error(err.Error()))
	case errors.Is(err, staging.ErrSurvived):
		return c.JSON(http.StatusInternalServerError, util.Error(err.Error()))
	default:
		logging.FromContext(c.Request().Context()).Error("catalog backup request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, util.Error("internal error"))
	}
}

func parseStatuses(raw string) ([]domain.ItemStatus, error) {
	var out []domain.ItemStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		status, ok := domain.ParseItemStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown item status %q", part)
		}
		out = append(out, status)
	}
	return out, nil
}
