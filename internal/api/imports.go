package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/auth"
	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

const multipartMemory = 8 << 20

var importExtensions = map[string]string{
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type importResponse struct {
	warehouse.ImportResult
	Table      string `json:"table"`
	ArchiveKey string `json:"archive_key,omitempty"`
}

// handleImportFile stages the upload in a temp file, optionally archives the
// original bytes, and replaces the destination table with its contents.
func handleImportFile(deps Dependencies, cfg config.ImportConfig, w http.ResponseWriter, r *http.Request) {
	if !warehouseConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleTableWriter); err != nil {
		forbidden(w, r, err)
		return
	}
	if cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "uploaded file exceeds the size limit", false, map[string]any{"limit_bytes": tooLarge.Limit})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_MULTIPART", "invalid multipart request", false, map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	upload, header, err := r.FormFile("file")
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "FILE_REQUIRED", "file is required", false, nil)
		return
	}
	defer func() { _ = upload.Close() }()

	extension := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := importExtensions[extension]
	if !ok {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FILE_FORMAT", "Invalid file format. Only .xlsx and .csv files are supported.", false, nil)
		return
	}
	table := strings.TrimSpace(r.FormValue("table_name"))
	if table == "" {
		table = warehouse.TableNameFromFile(header.Filename)
	}

	staged, err := stageUpload(cfg.UploadDir, extension, upload)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "UPLOAD_STAGING_FAILED", "failed to stage upload", true, map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = os.Remove(staged) }()

	response := importResponse{Table: table}
	if deps.Archive != nil {
		response.ArchiveKey = archiveUpload(deps, r, staged, header.Filename, contentType)
	}

	response.ImportResult = deps.Warehouse.ImportFile(r.Context(), staged, table)
	if response.Status != warehouse.ImportStatusSuccess {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "IMPORT_FAILED", response.Message, false, map[string]any{"table": table})
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func stageUpload(dir, extension string, body io.Reader) (string, error) {
	file, err := os.CreateTemp(dir, "ledgerlens-upload-*"+extension)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

// archiveUpload returns the archive key, or "" when archiving failed. A
// failed archive never blocks the import.
func archiveUpload(deps Dependencies, r *http.Request, staged, fileName, contentType string) string {
	file, err := os.Open(staged)
	if err != nil {
		logArchiveFailure(deps, r, fileName, err)
		return ""
	}
	defer func() { _ = file.Close() }()
	stat, err := file.Stat()
	if err != nil {
		logArchiveFailure(deps, r, fileName, err)
		return ""
	}
	info, err := deps.Archive.PutUpload(r.Context(), fileName, file, stat.Size(), contentType)
	if err != nil {
		logArchiveFailure(deps, r, fileName, err)
		return ""
	}
	return info.Key
}

func logArchiveFailure(deps Dependencies, r *http.Request, fileName string, err error) {
	if deps.Logger == nil {
		return
	}
	deps.Logger.WarnContext(r.Context(), "upload archive failed",
		slog.String("file", fileName),
		slog.String("error", err.Error()),
	)
}
