package aigen

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postloom/aigen/observability"
)

// State tracks where a generation attempt is in its lifecycle. Every
// transition after StateIdle emits a breadcrumb to the monitor.
type State string

const (
	StateIdle          State = "idle"
	StateQuotaChecking State = "quota_checking"
	StateQuotaExceeded State = "quota_exceeded"
	StateRequesting    State = "requesting"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
)

// FeatureAIGenerations is the quota feature key for generation attempts.
const FeatureAIGenerations = "aiGenerations"

// QuotaSource exposes per-plan feature limits. A limit of -1 means
// unlimited.
type QuotaSource interface {
	FeatureLimit(ctx context.Context, feature string) (int, error)
}

// StaticQuotaSource serves limits from a fixed map. Features without an
// entry are unlimited.
type StaticQuotaSource struct {
	limits map[string]int
}

// NewStaticQuotaSource creates a quota source with the given limits.
func NewStaticQuotaSource(limits map[string]int) *StaticQuotaSource {
	return &StaticQuotaSource{limits: limits}
}

// FeatureLimit implements QuotaSource.
func (s *StaticQuotaSource) FeatureLimit(ctx context.Context, feature string) (int, error) {
	if limit, ok := s.limits[feature]; ok {
		return limit, nil
	}
	return -1, nil
}

// Generator is the client-side surface the orchestrator drives. *Client
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerateParams carries the per-attempt inputs besides the prompt.
type GenerateParams struct {
	// ModelID selects the model; empty means the registry default.
	ModelID string

	// TemplateID/TemplateName/Variables record which dashboard template
	// produced the prompt, if any.
	TemplateID   string
	TemplateName string
	Variables    map[string]string

	// Options tune the request (max tokens, temperature, ...).
	Options []RequestOption
}

// OrchestratorConfig holds the dependencies of an Orchestrator. Client,
// Registry, Sessions and Quota are required; Store, Cache and Library are
// optional.
type OrchestratorConfig struct {
	Client   Generator
	Registry *Registry
	Sessions SessionProvider
	Quota    QuotaSource
	Store    HistoryStore
	Cache    FallbackCache
	Library  LibraryStore
	Monitor  Monitor
	Logger   observability.Logger
}

// Orchestrator coordinates one generation attempt at a time: quota check,
// client call, then best-effort durable persistence with an always-visible
// local history. The dashboard keeps a single attempt in flight; concurrent
// Generate calls are serialized by an internal mutex rather than rejected.
type Orchestrator struct {
	client   Generator
	registry *Registry
	sessions SessionProvider
	quota    QuotaSource
	store    HistoryStore
	cache    FallbackCache
	library  LibraryStore
	monitor  Monitor
	logger   observability.Logger

	mu      sync.Mutex
	state   State
	history []HistoryEntry
}

// NewOrchestrator creates an orchestrator from the given configuration.
// Call LoadHistory before the first Generate to seed the in-memory history
// view.
func NewOrchestrator(config OrchestratorConfig) *Orchestrator {
	if config.Monitor == nil {
		config.Monitor = NewNullMonitor()
	}
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}
	if config.Cache == nil {
		config.Cache = NewNullFallbackCache()
	}

	return &Orchestrator{
		client:   config.Client,
		registry: config.Registry,
		sessions: config.Sessions,
		quota:    config.Quota,
		store:    config.Store,
		cache:    config.Cache,
		library:  config.Library,
		monitor:  config.Monitor,
		logger:   config.Logger,
		state:    StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns a copy of the in-memory history, most recent first.
func (o *Orchestrator) History() []HistoryEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]HistoryEntry, len(o.history))
	copy(out, o.history)
	return out
}

// LoadHistory seeds the in-memory history from durable storage for
// authenticated sessions, falling back to the local cache. A corrupt cache
// is reported to the monitor and dropped; LoadHistory itself only fails on
// session errors.
func (o *Orchestrator) LoadHistory(ctx context.Context) error {
	session, err := o.sessions.Session(ctx)
	if err != nil {
		return WrapError(KindUnauthenticated, err, "no active session")
	}

	if session.Authenticated() && o.store != nil {
		entries, err := o.store.ListByUser(ctx, session.UserID, HistoryLimit)
		if err == nil {
			o.mu.Lock()
			o.history = entries
			o.mu.Unlock()
			return nil
		}
		o.logger.WithErr(err).Warn("durable history load failed, using fallback cache")
		o.monitor.CaptureError(ctx, err, map[string]interface{}{"operation": "load_history"})
	}

	entries, err := o.cache.Load(ctx)
	if err != nil {
		// Malformed cache: report, drop it, start empty.
		o.logger.WithErr(err).Warn("cached history is unreadable, clearing it")
		o.monitor.CaptureError(ctx, err, map[string]interface{}{"operation": "load_cache"})
		if clearErr := o.cache.Clear(ctx); clearErr != nil {
			o.logger.WithErr(clearErr).Warn("failed to clear corrupt history cache")
		}
		entries = nil
	}

	o.mu.Lock()
	o.history = entries
	o.mu.Unlock()
	return nil
}

// Generate runs one generation attempt: quota check, client call, history
// recording. On success the returned entry is already prepended to History.
// Persistence failures never surface as generation failures.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, params GenerateParams) (HistoryEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.setState(ctx, StateIdle, nil)

	o.setState(ctx, StateQuotaChecking, nil)

	limit := o.featureLimit(ctx)
	used := len(o.history)
	if limit >= 0 && used >= limit {
		o.setState(ctx, StateQuotaExceeded, map[string]interface{}{"limit": limit, "used": used})
		return HistoryEntry{}, NewError(KindQuotaExceeded,
			"you have reached your plan's limit of %d generations, upgrade your plan to continue", limit)
	}

	modelID := params.ModelID
	if modelID == "" {
		modelID = o.registry.DefaultModel()
	}

	o.setState(ctx, StateRequesting, map[string]interface{}{"model": modelID})

	req := NewGenerationRequest(prompt, modelID, params.Options...)
	result, err := o.client.Generate(ctx, req)
	if err != nil {
		o.setState(ctx, StateFailed, map[string]interface{}{"model": modelID})
		o.monitor.CaptureError(ctx, err, map[string]interface{}{"model": modelID})
		return HistoryEntry{}, err
	}

	entry := HistoryEntry{
		ID:           uuid.New(),
		Prompt:       prompt,
		Content:      result.Content,
		TemplateID:   params.TemplateID,
		TemplateName: params.TemplateName,
		Variables:    params.Variables,
		ModelID:      result.ModelID,
		Provider:     result.Provider,
		Usage:        result.Usage,
		CreatedAt:    time.Now().UTC(),
	}

	if session, serr := o.sessions.Session(ctx); serr == nil {
		entry.UserID = session.UserID
	}

	o.recordHistory(ctx, entry)
	o.setState(ctx, StateSucceeded, map[string]interface{}{"model": modelID})

	return entry, nil
}

// featureLimit resolves the plan limit, treating a quota source failure as
// unlimited so a billing hiccup never blocks generation.
func (o *Orchestrator) featureLimit(ctx context.Context) int {
	limit, err := o.quota.FeatureLimit(ctx, FeatureAIGenerations)
	if err != nil {
		o.logger.WithErr(err).Warn("quota lookup failed, allowing generation")
		return -1
	}
	return limit
}

// recordHistory is the single place the "best-effort durable, always
// visible locally" policy lives. The durable write and the local append are
// two explicit steps with distinct outcomes in logs and breadcrumbs; no
// atomicity is pretended.
func (o *Orchestrator) recordHistory(ctx context.Context, entry HistoryEntry) {
	durable := "skipped"
	if o.store != nil && entry.UserID != "" {
		if err := o.store.Insert(ctx, entry); err != nil {
			durable = "failed"
			o.logger.WithErr(err).WithFields(map[string]interface{}{
				"entry_id": entry.ID.String(),
			}).Error("durable history write failed, entry kept locally")
			o.monitor.CaptureError(ctx, WrapError(KindPersistenceFailed, err, "durable history write failed"),
				map[string]interface{}{"entry_id": entry.ID.String()})
		} else {
			durable = "ok"
		}
	}

	o.history = append([]HistoryEntry{entry}, o.history...)

	cached := o.history
	if len(cached) > HistoryLimit {
		cached = cached[:HistoryLimit]
	}
	if err := o.cache.Store(ctx, cached); err != nil {
		o.logger.WithErr(err).Warn("fallback cache write failed")
		o.monitor.CaptureError(ctx, err, map[string]interface{}{"operation": "cache_store"})
	}

	o.monitor.AddBreadcrumb(ctx, Breadcrumb{
		Category: "generation",
		Message:  "history recorded",
		Data: map[string]interface{}{
			"entry_id":      entry.ID.String(),
			"durable_write": durable,
		},
	})
}

// ClearHistory removes the user's durable entries and resets the local
// history and fallback cache. Durable delete failures follow the same
// best-effort policy as writes.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store != nil {
		if session, err := o.sessions.Session(ctx); err == nil && session.Authenticated() {
			if err := o.store.DeleteByUser(ctx, session.UserID); err != nil {
				o.logger.WithErr(err).Error("durable history delete failed")
				o.monitor.CaptureError(ctx, WrapError(KindPersistenceFailed, err, "durable history delete failed"), nil)
			}
		}
	}

	o.history = nil
	if err := o.cache.Clear(ctx); err != nil {
		o.logger.WithErr(err).Warn("fallback cache clear failed")
	}
	return nil
}

// SaveToLibrary copies a history entry into the user's content library.
// It requires an authenticated session and fails before any I/O without
// one.
func (o *Orchestrator) SaveToLibrary(ctx context.Context, entryID uuid.UUID) error {
	session, err := o.sessions.Session(ctx)
	if err != nil || !session.Authenticated() {
		return NewError(KindUnauthenticated, "authentication required to save to library")
	}
	if o.library == nil {
		return NewError(KindPersistenceFailed, "no library store configured")
	}

	o.mu.Lock()
	entry, ok := entryByID(o.history, entryID)
	o.mu.Unlock()
	if !ok {
		return NewError(KindPersistenceFailed, "history entry not found: %s", entryID)
	}

	if err := o.library.Save(ctx, session.UserID, entry); err != nil {
		return WrapError(KindPersistenceFailed, err, "failed to save entry to library")
	}
	return nil
}

// setState transitions the lifecycle state and emits a breadcrumb. Callers
// hold o.mu.
func (o *Orchestrator) setState(ctx context.Context, state State, data map[string]interface{}) {
	o.state = state
	if state == StateIdle {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["state"] = string(state)
	o.monitor.AddBreadcrumb(ctx, Breadcrumb{
		Category: "generation",
		Message:  "state transition",
		Data:     data,
	})
}
