package aigen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGenerator records calls and serves canned results.
type mockGenerator struct {
	mu      sync.Mutex
	calls   int
	result  GenerationResult
	err     error
	lastReq GenerationRequest
}

func (g *mockGenerator) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return GenerationResult{}, g.err
	}
	return g.result, nil
}

func (g *mockGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// failingHistoryStore fails every write while serving reads from an embedded
// in-memory store.
type failingHistoryStore struct {
	*InMemoryHistoryStore
}

func (s *failingHistoryStore) Insert(ctx context.Context, entry HistoryEntry) error {
	return errors.New("connection refused")
}

// recordingMonitor captures breadcrumbs and errors for assertions.
type recordingMonitor struct {
	mu          sync.Mutex
	breadcrumbs []Breadcrumb
	captured    []error
}

func (m *recordingMonitor) AddBreadcrumb(ctx context.Context, b Breadcrumb) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breadcrumbs = append(m.breadcrumbs, b)
}

func (m *recordingMonitor) CaptureError(ctx context.Context, err error, data map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, err)
}

type erroringQuotaSource struct{}

func (erroringQuotaSource) FeatureLimit(ctx context.Context, feature string) (int, error) {
	return 0, errors.New("billing service unavailable")
}

func seedHistory(t *testing.T, store HistoryStore, userID string, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		err := store.Insert(context.Background(), HistoryEntry{
			ID:        uuid.New(),
			UserID:    userID,
			Prompt:    fmt.Sprintf("prompt %d", i),
			Content:   fmt.Sprintf("content %d", i),
			ModelID:   "gemini-pro",
			Provider:  "google",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
}

func newTestOrchestrator(t *testing.T, config OrchestratorConfig) *Orchestrator {
	t.Helper()

	if config.Client == nil {
		config.Client = &mockGenerator{result: GenerationResult{
			Content:  "Soft rain on rooftops",
			ModelID:  "gemini-pro",
			Provider: "google",
			Usage:    &TokenUsage{PromptTokens: 10, CompletionTokens: 15, TotalTokens: 25},
		}}
	}
	if config.Registry == nil {
		config.Registry = NewRegistry()
	}
	if config.Sessions == nil {
		config.Sessions = NewStaticSessionProvider(Session{UserID: "user-1", AccessToken: "token-abc"})
	}
	if config.Quota == nil {
		config.Quota = NewStaticQuotaSource(nil)
	}
	return NewOrchestrator(config)
}

func TestOrchestrator_Generate_WithinQuota(t *testing.T) {
	store := NewInMemoryHistoryStore()
	seedHistory(t, store, "user-1", 3)

	generator := &mockGenerator{result: GenerationResult{
		Content:  "Soft rain on rooftops",
		ModelID:  "gemini-pro",
		Provider: "google",
		Usage:    &TokenUsage{PromptTokens: 10, CompletionTokens: 15, TotalTokens: 25},
	}}

	o := newTestOrchestrator(t, OrchestratorConfig{
		Client: generator,
		Quota:  NewStaticQuotaSource(map[string]int{FeatureAIGenerations: 5}),
		Store:  store,
	})
	require.NoError(t, o.LoadHistory(context.Background()))
	require.Len(t, o.History(), 3)

	entry, err := o.Generate(context.Background(), "Write a haiku about rain", GenerateParams{ModelID: "gemini-pro"})

	require.NoError(t, err)
	assert.Equal(t, "Soft rain on rooftops", entry.Content)
	assert.Equal(t, "gemini-pro", entry.ModelID)
	assert.Equal(t, "user-1", entry.UserID)
	assert.NotEqual(t, uuid.Nil, entry.ID)

	history := o.History()
	require.Len(t, history, 4)
	assert.Equal(t, entry.ID, history[0].ID, "new entry is prepended, most recent first")

	count, err := store.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count, "entry is also written durably")

	assert.Equal(t, StateIdle, o.State(), "state returns to idle after the attempt")
}

func TestOrchestrator_Generate_QuotaExceeded(t *testing.T) {
	store := NewInMemoryHistoryStore()
	seedHistory(t, store, "user-1", 5)

	generator := &mockGenerator{}
	monitor := &recordingMonitor{}

	o := newTestOrchestrator(t, OrchestratorConfig{
		Client:  generator,
		Quota:   NewStaticQuotaSource(map[string]int{FeatureAIGenerations: 5}),
		Store:   store,
		Monitor: monitor,
	})
	require.NoError(t, o.LoadHistory(context.Background()))

	_, err := o.Generate(context.Background(), "Write a haiku about rain", GenerateParams{})

	require.Error(t, err)
	assert.True(t, IsKind(err, KindQuotaExceeded))
	assert.Contains(t, err.Error(), "5", "error message names the plan limit")
	assert.Contains(t, err.Error(), "upgrade")
	assert.Equal(t, 0, generator.callCount(), "rejected before any network call")
	assert.Len(t, o.History(), 5, "history is unchanged")

	var sawExceeded bool
	for _, b := range monitor.breadcrumbs {
		if b.Data["state"] == string(StateQuotaExceeded) {
			sawExceeded = true
		}
	}
	assert.True(t, sawExceeded, "quota_exceeded transition leaves a breadcrumb")
}

func TestOrchestrator_Generate_UnlimitedQuota(t *testing.T) {
	store := NewInMemoryHistoryStore()
	seedHistory(t, store, "user-1", 120)

	o := newTestOrchestrator(t, OrchestratorConfig{
		Quota: NewStaticQuotaSource(map[string]int{FeatureAIGenerations: -1}),
		Store: store,
	})
	require.NoError(t, o.LoadHistory(context.Background()))

	_, err := o.Generate(context.Background(), "Write a haiku about rain", GenerateParams{})

	assert.NoError(t, err, "limit -1 always permits generation")
}

func TestOrchestrator_Generate_QuotaSourceFailureAllows(t *testing.T) {
	o := newTestOrchestrator(t, OrchestratorConfig{
		Quota: erroringQuotaSource{},
	})

	_, err := o.Generate(context.Background(), "Write a haiku about rain", GenerateParams{})

	assert.NoError(t, err, "a quota lookup failure must not block generation")
}

func TestOrchestrator_Generate_PersistenceFailureStillSucceeds(t *testing.T) {
	monitor := &recordingMonitor{}
	o := newTestOrchestrator(t, OrchestratorConfig{
		Store:   &failingHistoryStore{NewInMemoryHistoryStore()},
		Monitor: monitor,
	})

	entry, err := o.Generate(context.Background(), "Write a haiku about rain", GenerateParams{})

	require.NoError(t, err, "persistence failures never surface as generation failures")
	assert.Equal(t, "Soft rain on rooftops", entry.Content)

	history := o.History()
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID, "entry stays visible locally")

	require.NotEmpty(t, monitor.captured)
	assert.True(t, IsKind(monitor.captured[0], KindPersistenceFailed))
}

func TestOrchestrator_Generate_ClientFailure(t *testing.T) {
	generator := &mockGenerator{err: NewError(KindGenerationFailed, "rate limited")}
	o := newTestOrchestrator(t, OrchestratorConfig{Client: generator})

	_, err := o.Generate(context.Background(), "Write a haiku about rain", GenerateParams{})

	require.Error(t, err)
	assert.True(t, IsKind(err, KindGenerationFailed))
	assert.Contains(t, err.Error(), "rate limited")
	assert.Empty(t, o.History(), "failed attempts never enter history")
	assert.Equal(t, StateIdle, o.State())
}

func TestOrchestrator_Generate_DefaultsToRegistryModel(t *testing.T) {
	generator := &mockGenerator{result: GenerationResult{Content: "ok", ModelID: "gemini-pro", Provider: "google"}}
	registry := NewRegistry()
	require.NoError(t, registry.SetDefaultModel("gemini-pro"))

	o := newTestOrchestrator(t, OrchestratorConfig{Client: generator, Registry: registry})

	_, err := o.Generate(context.Background(), "hi", GenerateParams{})

	require.NoError(t, err)
	assert.Equal(t, "gemini-pro", generator.lastReq.ModelID)
}

func TestOrchestrator_Generate_AnonymousSkipsDurableWrite(t *testing.T) {
	store := NewInMemoryHistoryStore()
	o := newTestOrchestrator(t, OrchestratorConfig{
		Sessions: NewStaticSessionProvider(Session{AccessToken: "anon-token"}),
		Store:    store,
	})

	entry, err := o.Generate(context.Background(), "hi", GenerateParams{})

	require.NoError(t, err)
	assert.Empty(t, entry.UserID)
	require.Len(t, o.History(), 1)

	count, err := store.CountByUser(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "anonymous sessions never write durable history")
}

func TestOrchestrator_LoadHistory_CorruptCacheRecovers(t *testing.T) {
	path := t.TempDir() + "/history.json"
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"`), 0o600))

	cache := NewFileFallbackCache(path, nil)
	monitor := &recordingMonitor{}

	o := newTestOrchestrator(t, OrchestratorConfig{
		Sessions: NewStaticSessionProvider(Session{AccessToken: "anon-token"}),
		Cache:    cache,
		Monitor:  monitor,
	})

	err := o.LoadHistory(context.Background())

	require.NoError(t, err, "a corrupt cache is recovered from, not surfaced")
	assert.Empty(t, o.History())
	assert.NotEmpty(t, monitor.captured, "the parse failure is reported to the monitor")

	entries, err := cache.Load(context.Background())
	require.NoError(t, err, "the corrupt cache file was cleared")
	assert.Empty(t, entries)
}

func TestOrchestrator_ClearHistory(t *testing.T) {
	store := NewInMemoryHistoryStore()
	seedHistory(t, store, "user-1", 3)

	o := newTestOrchestrator(t, OrchestratorConfig{Store: store})
	require.NoError(t, o.LoadHistory(context.Background()))
	require.Len(t, o.History(), 3)

	require.NoError(t, o.ClearHistory(context.Background()))

	assert.Empty(t, o.History())
	count, err := store.CountByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOrchestrator_SaveToLibrary(t *testing.T) {
	t.Run("unauthenticated fails before any I/O", func(t *testing.T) {
		library := NewInMemoryLibraryStore()
		o := newTestOrchestrator(t, OrchestratorConfig{
			Sessions: NewStaticSessionProvider(Session{AccessToken: "anon-token"}),
			Library:  library,
		})

		err := o.SaveToLibrary(context.Background(), uuid.New())

		require.Error(t, err)
		assert.True(t, IsKind(err, KindUnauthenticated))
		assert.Empty(t, library.Saved(""))
	})

	t.Run("saves a history entry", func(t *testing.T) {
		library := NewInMemoryLibraryStore()
		o := newTestOrchestrator(t, OrchestratorConfig{Library: library})

		entry, err := o.Generate(context.Background(), "hi", GenerateParams{})
		require.NoError(t, err)

		require.NoError(t, o.SaveToLibrary(context.Background(), entry.ID))

		saved := library.Saved("user-1")
		require.Len(t, saved, 1)
		assert.Equal(t, entry.ID, saved[0].ID)
	})

	t.Run("unknown entry id", func(t *testing.T) {
		o := newTestOrchestrator(t, OrchestratorConfig{Library: NewInMemoryLibraryStore()})

		err := o.SaveToLibrary(context.Background(), uuid.New())

		require.Error(t, err)
		assert.True(t, IsKind(err, KindPersistenceFailed))
	})
}
