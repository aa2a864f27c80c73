package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/auth"
	"github.com/ledgerlens/ledgerlens/internal/export"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

// fetchRequest accepts db_name and db_user for older clients; the
// configured warehouse is always used.
type fetchRequest struct {
	Table     string `json:"table"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Search    string `json:"search"`
	AccountNo string `json:"acc_no"`
	DBName    string `json:"db_name"`
	DBUser    string `json:"db_user"`
}

type executeSQLRequest struct {
	Table        string         `json:"table"`
	Function     string         `json:"function"`
	Condition    []string       `json:"condition"`
	UpdateValues map[string]any `json:"update_values"`
	DBName       string         `json:"db_name"`
	DBUser       string         `json:"db_user"`
}

func handleFetchData(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !warehouseConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		forbidden(w, r, err)
		return
	}
	var request fetchRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Table) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table is required", false, nil)
		return
	}

	result, err := deps.Warehouse.FetchFiltered(r.Context(), warehouse.Filter{
		Table:         request.Table,
		Start:         request.StartDate,
		End:           request.EndDate,
		Search:        request.Search,
		AccountNumber: request.AccountNo,
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{Data: result.Records(), Columns: result.Columns})
}

func handleExecuteSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !warehouseConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleTableWriter); err != nil {
		forbidden(w, r, err)
		return
	}
	var request executeSQLRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Table) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table is required", false, nil)
		return
	}

	result, err := deps.Warehouse.Mutate(r.Context(), warehouse.Mutation{
		Table:     request.Table,
		Operation: request.Function,
		Condition: request.Condition,
		Values:    request.UpdateValues,
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func handleCheckTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !warehouseConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		forbidden(w, r, err)
		return
	}
	exists, err := deps.Warehouse.TableExists(r.Context(), r.PathValue("table"))
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "WAREHOUSE_ERROR", "failed to look up table", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exists": exists})
}

func handleDeleteTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !warehouseConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleTableAdmin); err != nil {
		forbidden(w, r, err)
		return
	}
	table := r.PathValue("table")
	dropped, err := deps.Warehouse.DropTable(r.Context(), strings.ToLower(table))
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "WAREHOUSE_ERROR", "failed to drop table", false, map[string]any{"details": err.Error()})
		return
	}
	if !dropped {
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", fmt.Sprintf("Table '%s' does not exist", table), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Table '%s' deleted successfully", table)})
}

// handleExport streams the filtered rows of a table as CSV or Parquet. With
// archive=true and an object store configured, a copy is kept under exports/.
func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !warehouseConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		forbidden(w, r, err)
		return
	}
	params := r.URL.Query()
	format, err := export.ParseFormat(params.Get("format"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}
	archive := false
	if raw := params.Get("archive"); raw != "" {
		archive, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ARCHIVE_FLAG", "archive must be a boolean", false, nil)
			return
		}
	}
	if archive && deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}

	table := r.PathValue("table")
	rows, err := deps.Warehouse.FetchFiltered(r.Context(), warehouse.Filter{
		Table:         table,
		Start:         params.Get("start"),
		End:           params.Get("end"),
		Search:        params.Get("search"),
		AccountNumber: params.Get("acc_no"),
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	encoded, err := export.Encode(format, rows)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode export", false, map[string]any{"details": err.Error()})
		return
	}

	if archive {
		info, err := deps.Archive.PutExport(r.Context(), table, format.Extension(), encoded.Data, format.ContentType())
		if err != nil {
			writeError(r.Context(), w, http.StatusBadGateway, "ARCHIVE_FAILED", "failed to archive export", true, map[string]any{"details": err.Error()})
			return
		}
		w.Header().Set("X-Archive-Key", info.Key)
		if deps.Logger != nil {
			deps.Logger.InfoContext(r.Context(), "export archived",
				slog.String("table", table),
				slog.String("key", info.Key),
				slog.Int64("rows", encoded.RowCount),
			)
		}
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table+format.Extension()))
	w.Header().Set("Content-Length", strconv.Itoa(len(encoded.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded.Data)
}

func warehouseConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Warehouse == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "WAREHOUSE_NOT_CONFIGURED", "warehouse is not configured", false, nil)
		return false
	}
	return true
}
