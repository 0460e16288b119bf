package aigen

import (
	"sort"
	"sync"
)

// Provider identifiers used by the model catalog and the generation endpoint.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderBedrock   = "bedrock"
)

// ModelDescriptor describes a generation model available to the dashboard.
// Descriptors are immutable for the process lifetime.
type ModelDescriptor struct {
	ID             string
	DisplayName    string
	Provider       string
	MaxTokens      int64
	SupportsImages bool
}

// DefaultCatalog returns the static model catalog the registry is seeded
// with when no descriptors are supplied.
func DefaultCatalog() []ModelDescriptor {
	return []ModelDescriptor{
		{ID: "gemini-pro", DisplayName: "Gemini Pro", Provider: ProviderGoogle, MaxTokens: 8192},
		{ID: "gemini-1.5-flash", DisplayName: "Gemini 1.5 Flash", Provider: ProviderGoogle, MaxTokens: 8192, SupportsImages: true},
		{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: ProviderOpenAI, MaxTokens: 16384, SupportsImages: true},
		{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: ProviderOpenAI, MaxTokens: 16384, SupportsImages: true},
		{ID: "claude-3-5-sonnet-20240620", DisplayName: "Claude 3.5 Sonnet", Provider: ProviderAnthropic, MaxTokens: 8192, SupportsImages: true},
		{ID: "anthropic.claude-3-5-sonnet-20240620-v1:0", DisplayName: "Claude 3.5 Sonnet (Bedrock)", Provider: ProviderBedrock, MaxTokens: 8192},
	}
}

// Registry is the static catalog of generation models plus a mutable default
// model pointer. Lookups never fail hard; unknown ids return ok=false.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]ModelDescriptor
	defaultID string
}

// NewRegistry creates a Registry seeded with the given descriptors, or with
// DefaultCatalog when none are provided. The first descriptor becomes the
// default model.
func NewRegistry(descriptors ...ModelDescriptor) *Registry {
	if len(descriptors) == 0 {
		descriptors = DefaultCatalog()
	}

	models := make(map[string]ModelDescriptor, len(descriptors))
	for _, d := range descriptors {
		models[d.ID] = d
	}

	return &Registry{
		models:    models,
		defaultID: descriptors[0].ID,
	}
}

// Lookup returns the descriptor for the given model id, or ok=false when the
// id is unknown.
func (r *Registry) Lookup(id string) (ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.models[id]
	return d, ok
}

// Models returns all descriptors sorted by id.
func (r *Registry) Models() []ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModelDescriptor, 0, len(r.models))
	for _, d := range r.models {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultModel returns the id of the current default model.
func (r *Registry) DefaultModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// SetDefaultModel changes the default model. Unknown ids are rejected and
// the previous default stays intact.
func (r *Registry) SetDefaultModel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[id]; !ok {
		return NewError(KindUnsupportedModel, "unsupported model: %s", id)
	}

	r.defaultID = id
	return nil
}
