package api

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/ledgerlens/ledgerlens/internal/auth"
	"github.com/ledgerlens/ledgerlens/internal/storage"
)

func handleArchiveDownload(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !archiveConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		forbidden(w, r, err)
		return
	}
	key := r.PathValue("key")
	reader, info, err := deps.Archive.Open(r.Context(), key)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer func() { _ = reader.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(path.Base(key)))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func handleArchiveDelete(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !archiveConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleTableAdmin); err != nil {
		forbidden(w, r, err)
		return
	}
	key := r.PathValue("key")
	if err := deps.Archive.Remove(r.Context(), key); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			writeFailure(w, r, err)
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "ARCHIVE_FAILED", "failed to delete archived object", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": key})
}

func archiveConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return false
	}
	return true
}
