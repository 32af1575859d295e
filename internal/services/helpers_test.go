// internal/services/helpers_test.go
package services

import (
	"context"
	"sync"
	"testing"

	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/llm"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/storage"
	"github.com/stretchr/testify/require"
)

var (
	tablesOnce sync.Once
	tables     *config.Heuristics
)

func testTables() *config.Heuristics {
	tablesOnce.Do(func() { tables = config.DefaultHeuristics() })
	return tables
}

func newTestStore(t *testing.T) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

// fakeCompleter returns a canned reply or error.
type fakeCompleter struct {
	ready bool
	text  string
	err   error

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

func (f *fakeCompleter) IsReady() bool { return f.ready }

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text, ProviderName: "fake"}, nil
}

func (f *fakeCompleter) lastRequest() llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func drawingsWithText(texts ...string) []models.Drawing {
	out := make([]models.Drawing, len(texts))
	for i, text := range texts {
		out[i] = models.Drawing{Title: text}
	}
	return out
}
