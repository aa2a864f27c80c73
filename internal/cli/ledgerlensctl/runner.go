package ledgerlensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type usageError struct {
	message string
}

func (e usageError) Error() string { return e.message }

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("ledgerlensctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8000"), "ledgerlens API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")
	format := fs.String("format", "csv", "export format: csv or parquet")
	archive := fs.Bool("archive", false, "keep a copy of the export in the object store")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	base := strings.TrimRight(*baseURL, "/")
	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	req, err := buildRequest(ctx, base, command, rest, *format, *archive)
	if err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			_, _ = fmt.Fprintf(stderr, "%s\n\n", usage.message)
			writeUsage(stderr)
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "build request: %v\n", err)
		return 1
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(*apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(*apiKey))
	}

	code, responseBody, err := doRequest(client, req)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if command == "export" {
		_, _ = stdout.Write(responseBody)
		return 0
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(ctx context.Context, base, command string, args []string, format string, archive bool) (*http.Request, error) {
	switch command {
	case "health":
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/health", nil)
	case "ready":
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/ready", nil)
	case "ask", "run", "sql":
		if len(args) == 0 {
			return nil, usageError{message: command + " needs a question"}
		}
		path := map[string]string{"ask": "/api/query", "run": "/api/execute-query", "sql": "/api/direct-query"}[command]
		return jsonRequest(ctx, base+path, map[string]string{"question": strings.Join(args, " ")})
	case "check-table", "delete-table":
		if len(args) != 1 {
			return nil, usageError{message: command + " needs exactly one table name"}
		}
		method := http.MethodGet
		if command == "delete-table" {
			method = http.MethodDelete
		}
		return http.NewRequestWithContext(ctx, method, base+"/api/"+command+"/"+url.PathEscape(args[0]), nil)
	case "export":
		if len(args) != 1 {
			return nil, usageError{message: "export needs exactly one table name"}
		}
		query := url.Values{"format": {format}}
		if archive {
			query.Set("archive", "true")
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/export/"+url.PathEscape(args[0])+"?"+query.Encode(), nil)
	case "import":
		if len(args) < 1 || len(args) > 2 {
			return nil, usageError{message: "import needs a file and an optional table name"}
		}
		table := ""
		if len(args) == 2 {
			table = args[1]
		}
		return uploadRequest(ctx, base+"/api/import-file", args[0], table)
	default:
		return nil, usageError{message: fmt.Sprintf("unknown command %q", command)}
	}
}

func jsonRequest(ctx context.Context, endpoint string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func uploadRequest(ctx context.Context, endpoint, filePath, table string) (*http.Request, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if table != "" {
		if err := writer.WriteField("table_name", table); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func doRequest(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: ledgerlensctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                    GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                     GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  ask <question>            generate SQL for a question")
	_, _ = fmt.Fprintln(w, "  run <question>            generate and execute SQL for a question")
	_, _ = fmt.Fprintln(w, "  sql <query>               run a read-only query directly")
	_, _ = fmt.Fprintln(w, "  check-table <table>       report whether a table exists")
	_, _ = fmt.Fprintln(w, "  delete-table <table>      drop a table")
	_, _ = fmt.Fprintln(w, "  import <file> [table]     import a .csv or .xlsx file")
	_, _ = fmt.Fprintln(w, "  export <table>            write table rows to stdout (-format, -archive)")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
