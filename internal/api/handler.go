package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerlens/ledgerlens/internal/agent"
	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/observability"
	"github.com/ledgerlens/ledgerlens/internal/storage"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

type ReadinessCheck func(ctx context.Context) error

type QuestionPipeline interface {
	Ask(ctx context.Context, question string) (agent.Answer, error)
	Execute(ctx context.Context, question string) (agent.Execution, error)
}

type Warehouse interface {
	Run(ctx context.Context, query string) (warehouse.ResultSet, error)
	FetchFiltered(ctx context.Context, filter warehouse.Filter) (warehouse.ResultSet, error)
	Mutate(ctx context.Context, mutation warehouse.Mutation) (warehouse.MutationResult, error)
	TableExists(ctx context.Context, table string) (bool, error)
	DropTable(ctx context.Context, table string) (bool, error)
	ImportFile(ctx context.Context, path, table string) warehouse.ImportResult
}

type Archive interface {
	PutUpload(ctx context.Context, fileName string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	PutExport(ctx context.Context, table, extension string, data []byte, contentType string) (storage.ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}

type Dependencies struct {
	Logger           *slog.Logger
	Readiness        ReadinessCheck
	AuthMiddleware   func(http.Handler) http.Handler
	DependencyTimout time.Duration
	Pipeline         QuestionPipeline
	Warehouse        Warehouse
	// Archive is nil when the object store is disabled.
	Archive Archive
	UI      http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/query", func(w http.ResponseWriter, r *http.Request) {
		handleGenerateQuery(deps, w, r)
	})
	protected.HandleFunc("POST /api/execute-query", func(w http.ResponseWriter, r *http.Request) {
		handleExecuteQuery(deps, w, r)
	})
	protected.HandleFunc("POST /api/direct-query", func(w http.ResponseWriter, r *http.Request) {
		handleDirectQuery(deps, w, r)
	})
	protected.HandleFunc("POST /api/fetch-data", func(w http.ResponseWriter, r *http.Request) {
		handleFetchData(deps, w, r)
	})
	protected.HandleFunc("POST /api/execute-sql", func(w http.ResponseWriter, r *http.Request) {
		handleExecuteSQL(deps, w, r)
	})
	protected.HandleFunc("GET /api/check-table/{table}", func(w http.ResponseWriter, r *http.Request) {
		handleCheckTable(deps, w, r)
	})
	protected.HandleFunc("DELETE /api/delete-table/{table}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteTable(deps, w, r)
	})
	protected.HandleFunc("POST /api/import-file", func(w http.ResponseWriter, r *http.Request) {
		handleImportFile(deps, cfg.Import, w, r)
	})
	protected.HandleFunc("GET /api/export/{table}", func(w http.ResponseWriter, r *http.Request) {
		handleExport(deps, w, r)
	})
	protected.HandleFunc("GET /api/archive/{key...}", func(w http.ResponseWriter, r *http.Request) {
		handleArchiveDownload(deps, w, r)
	})
	protected.HandleFunc("DELETE /api/archive/{key...}", func(w http.ResponseWriter, r *http.Request) {
		handleArchiveDelete(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, pattern := range []string{
		"POST /api/query",
		"POST /api/execute-query",
		"POST /api/direct-query",
		"POST /api/fetch-data",
		"POST /api/execute-sql",
		"GET /api/check-table/{table}",
		"DELETE /api/delete-table/{table}",
		"POST /api/import-file",
		"GET /api/export/{table}",
		"GET /api/archive/{key...}",
		"DELETE /api/archive/{key...}",
	} {
		mux.Handle(pattern, protectedHandler)
	}

	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	} else {
		mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"message": "Welcome to ledgerlens API"})
		})
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		CORSMiddleware(cfg.CORS.AllowedOrigins),
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckWarehouse pings the warehouse connection pool.
func CheckWarehouse(pinger interface{ Ping(context.Context) error }) ReadinessCheck {
	return func(ctx context.Context) error {
		if pinger == nil {
			return errors.New("warehouse is not configured")
		}
		return pinger.Ping(ctx)
	}
}

func CheckObjectStore(cfg config.Config, ready func(context.Context) error) ReadinessCheck {
	if !cfg.ObjectStore.Enabled {
		return nil
	}
	return func(ctx context.Context) error {
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		if ready == nil {
			return nil
		}
		return ready(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
