package api

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/ledgerlens/ledgerlens/internal/agent"
	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/storage"
	"github.com/ledgerlens/ledgerlens/internal/warehouse"
)

type fakePipeline struct {
	answer    agent.Answer
	askErr    error
	execution agent.Execution
	execErr   error
	questions []string
}

func (f *fakePipeline) Ask(_ context.Context, question string) (agent.Answer, error) {
	f.questions = append(f.questions, question)
	return f.answer, f.askErr
}

func (f *fakePipeline) Execute(_ context.Context, question string) (agent.Execution, error) {
	f.questions = append(f.questions, question)
	return f.execution, f.execErr
}

type fakeWarehouse struct {
	result       warehouse.ResultSet
	runErr       error
	ran          []string
	filter       warehouse.Filter
	fetchErr     error
	mutation     warehouse.Mutation
	mutateResult warehouse.MutationResult
	mutateErr    error
	tables       map[string]bool
	dropped      []string
	importResult warehouse.ImportResult
	importTable  string
	importPath   string
	importBody   string
}

func (f *fakeWarehouse) Run(_ context.Context, query string) (warehouse.ResultSet, error) {
	f.ran = append(f.ran, query)
	return f.result, f.runErr
}

func (f *fakeWarehouse) FetchFiltered(_ context.Context, filter warehouse.Filter) (warehouse.ResultSet, error) {
	f.filter = filter
	return f.result, f.fetchErr
}

func (f *fakeWarehouse) Mutate(_ context.Context, mutation warehouse.Mutation) (warehouse.MutationResult, error) {
	f.mutation = mutation
	return f.mutateResult, f.mutateErr
}

func (f *fakeWarehouse) TableExists(_ context.Context, table string) (bool, error) {
	return f.tables[table], nil
}

func (f *fakeWarehouse) DropTable(_ context.Context, table string) (bool, error) {
	if !f.tables[table] {
		return false, nil
	}
	delete(f.tables, table)
	f.dropped = append(f.dropped, table)
	return true, nil
}

// ImportFile records the staged file while it still exists.
func (f *fakeWarehouse) ImportFile(_ context.Context, path, table string) warehouse.ImportResult {
	f.importPath = path
	f.importTable = table
	if data, err := os.ReadFile(path); err == nil {
		f.importBody = string(data)
	}
	return f.importResult
}

type fakeArchive struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
	nextKey string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeArchive) PutUpload(_ context.Context, fileName string, body io.Reader, _ int64, contentType string) (storage.ObjectInfo, error) {
	if f.putErr != nil {
		return storage.ObjectInfo{}, f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	key := "uploads/" + fileName
	if f.nextKey != "" {
		key = f.nextKey
	}
	f.objects[key] = data
	f.types[key] = contentType
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeArchive) PutExport(_ context.Context, table, extension string, data []byte, contentType string) (storage.ObjectInfo, error) {
	if f.putErr != nil {
		return storage.ObjectInfo{}, f.putErr
	}
	key := "exports/" + table + extension
	f.objects[key] = data
	f.types[key] = contentType
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeArchive) Open(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if err := storage.ValidateArchiveKey(key); err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: f.types[key]}, nil
}

func (f *fakeArchive) Remove(_ context.Context, key string) error {
	if err := storage.ValidateArchiveKey(key); err != nil {
		return err
	}
	delete(f.objects, key)
	return nil
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func testConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("ledgerlens-api", mapLookup(values))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func statementRows() warehouse.ResultSet {
	return warehouse.ResultSet{
		Columns: []string{"DESCRIPTION", "AMOUNT"},
		Rows: [][]any{
			{"Rent", 1200.5},
			{"Coffee", nil},
		},
	}
}
