package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ledgerlens/ledgerlens/internal/agent"
	"github.com/ledgerlens/ledgerlens/internal/auth"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/storage"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

// writeFailure maps pipeline and warehouse errors onto the error envelope.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	details := map[string]any{"details": err.Error()}

	var tableErr *warehouse.TableError
	switch {
	case errors.Is(err, agent.ErrRejected):
		writeError(ctx, w, http.StatusUnprocessableEntity, "QUERY_REJECTED", "generated query was rejected by the mutation guard", false, nil)
	case errors.Is(err, agent.ErrIterationLimit):
		writeError(ctx, w, http.StatusUnprocessableEntity, "QUERY_NOT_GENERATED", "no acceptable query could be generated", true, nil)
	case errors.As(err, &tableErr) && errors.Is(err, warehouse.ErrTableNotFound):
		writeError(ctx, w, http.StatusNotFound, "TABLE_NOT_FOUND", fmt.Sprintf("Table '%s' does not exist", tableErr.Table), false, nil)
	case errors.Is(err, warehouse.ErrUnknownColumn):
		writeError(ctx, w, http.StatusBadRequest, "UNKNOWN_COLUMN", err.Error(), false, nil)
	case errors.Is(err, warehouse.ErrInvalidInput):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), false, nil)
	case errors.Is(err, llm.ErrBackend):
		writeError(ctx, w, http.StatusBadGateway, "COMPLETION_FAILED", "model backend request failed", true, details)
	case errors.Is(err, storage.ErrInvalidKey):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_ARCHIVE_KEY", err.Error(), false, nil)
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(ctx, w, http.StatusNotFound, "OBJECT_NOT_FOUND", "archived object not found", false, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "QUERY_EXECUTION_FAILED", "query execution failed", false, details)
	}
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func forbidden(w http.ResponseWriter, r *http.Request, err error) {
	writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
}
