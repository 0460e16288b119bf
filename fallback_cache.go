package aigen

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/postloom/aigen/observability"
)

// FallbackCache is the client-local history cache used when durable storage
// is unavailable or the session is anonymous. Entries are most-recent-first
// and capped at HistoryLimit.
type FallbackCache interface {
	Load(ctx context.Context) ([]HistoryEntry, error)
	Store(ctx context.Context, entries []HistoryEntry) error
	Clear(ctx context.Context) error
}

// historyCacheSchema validates the cached payload before unmarshaling so a
// corrupt cache surfaces as KindParseFailed instead of partially-decoded
// garbage.
const historyCacheSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "prompt", "content", "model", "provider", "createdAt"],
		"properties": {
			"id": {"type": "string"},
			"userId": {"type": "string"},
			"prompt": {"type": "string"},
			"content": {"type": "string"},
			"templateId": {"type": "string"},
			"templateName": {"type": "string"},
			"variables": {"type": "object"},
			"model": {"type": "string"},
			"provider": {"type": "string"},
			"usage": {
				"type": "object",
				"properties": {
					"promptTokens": {"type": "integer"},
					"completionTokens": {"type": "integer"},
					"totalTokens": {"type": "integer"}
				}
			},
			"createdAt": {"type": "string"}
		}
	}
}`

// FileFallbackCache stores the serialized history under a single file,
// mirroring the single-key local storage slot of the dashboard client.
type FileFallbackCache struct {
	path   string
	mu     sync.Mutex
	logger observability.Logger
}

// NewFileFallbackCache creates a file-backed fallback cache at path.
func NewFileFallbackCache(path string, logger observability.Logger) *FileFallbackCache {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &FileFallbackCache{
		path:   path,
		logger: logger,
	}
}

// Load reads and validates the cached history. A missing file yields an
// empty result; malformed content yields a KindParseFailed error the caller
// recovers from by dropping the cache.
func (c *FileFallbackCache) Load(ctx context.Context) ([]HistoryEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, WrapError(KindParseFailed, err, "failed to read history cache")
	}

	if len(raw) == 0 {
		return nil, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(historyCacheSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, WrapError(KindParseFailed, err, "cached history is not valid JSON")
	}
	if !result.Valid() {
		return nil, NewError(KindParseFailed, "cached history failed schema validation: %v", result.Errors())
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, WrapError(KindParseFailed, err, "failed to decode cached history")
	}

	if len(entries) > HistoryLimit {
		entries = entries[:HistoryLimit]
	}

	return entries, nil
}

// Store writes the entries to the cache file, keeping only the most recent
// HistoryLimit entries. The caller supplies entries most-recent-first.
func (c *FileFallbackCache) Store(ctx context.Context, entries []HistoryEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) > HistoryLimit {
		entries = entries[:HistoryLimit]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return WrapError(KindPersistenceFailed, err, "failed to encode history cache")
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WrapError(KindPersistenceFailed, err, "failed to create cache directory")
		}
	}

	if err := os.WriteFile(c.path, raw, 0o600); err != nil {
		return WrapError(KindPersistenceFailed, err, "failed to write history cache")
	}

	return nil
}

// Clear removes the cache file.
func (c *FileFallbackCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return WrapError(KindPersistenceFailed, err, "failed to clear history cache")
	}
	return nil
}

// NullFallbackCache discards all writes; Load always yields empty history.
type NullFallbackCache struct{}

// NewNullFallbackCache creates a NullFallbackCache.
func NewNullFallbackCache() *NullFallbackCache { return &NullFallbackCache{} }

func (c *NullFallbackCache) Load(ctx context.Context) ([]HistoryEntry, error)        { return nil, nil }
func (c *NullFallbackCache) Store(ctx context.Context, entries []HistoryEntry) error { return nil }
func (c *NullFallbackCache) Clear(ctx context.Context) error                         { return nil }

var _ FallbackCache = (*FileFallbackCache)(nil)
var _ FallbackCache = (*NullFallbackCache)(nil)
