package api

import (
	"net/http"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/auth"
	"github.com/ledgerlens/ledgerlens/internal/sqlguard"
)

type questionRequest struct {
	Question string `json:"question"`
}

type generateResponse struct {
	Result      string `json:"result"`
	Description string `json:"description"`
}

type executeResponse struct {
	Query         string           `json:"query"`
	Data          []map[string]any `json:"data"`
	Columns       []string         `json:"columns"`
	Description   string           `json:"description"`
	ExecutionTime float64          `json:"execution_time"`
}

type rowsResponse struct {
	Data    []map[string]any `json:"data"`
	Columns []string         `json:"columns"`
}

func handleGenerateQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	question, ok := readQuestion(deps, w, r)
	if !ok {
		return
	}
	answer, err := deps.Pipeline.Ask(r.Context(), question)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Result: answer.SQL, Description: answer.Description})
}

func handleExecuteQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	question, ok := readQuestion(deps, w, r)
	if !ok {
		return
	}
	execution, err := deps.Pipeline.Execute(r.Context(), question)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if execution.Refused {
		writeJSON(w, http.StatusOK, map[string]any{
			"query":          nil,
			"description":    execution.Description,
			"execution_time": 0,
		})
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{
		Query:         execution.Query,
		Data:          execution.Result.Records(),
		Columns:       execution.Result.Columns,
		Description:   execution.Description,
		ExecutionTime: execution.Elapsed.Seconds(),
	})
}

// handleDirectQuery runs caller SQL without generation. It is held to the
// same mutation guard as generated SQL.
func handleDirectQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !warehouseConfigured(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		forbidden(w, r, err)
		return
	}
	var request questionRequest
	if !decodeJSON(w, r, &request) {
		return
	}
	sql := strings.TrimSpace(request.Question)
	if sql == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "question is required", false, nil)
		return
	}
	if sqlguard.Denied(sql) {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "QUERY_REJECTED", "query was rejected by the mutation guard", false, nil)
		return
	}
	if !sqlguard.IsReadOnly(sql) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH queries are allowed", false, nil)
		return
	}

	result, err := deps.Warehouse.Run(r.Context(), sql)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{Data: result.Records(), Columns: result.Columns})
}

func readQuestion(deps Dependencies, w http.ResponseWriter, r *http.Request) (string, bool) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return "", false
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		forbidden(w, r, err)
		return "", false
	}
	var request questionRequest
	if !decodeJSON(w, r, &request) {
		return "", false
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return "", false
	}
	return request.Question, true
}
