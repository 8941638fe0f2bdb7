package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Router manages multiple LLM providers and routes requests by a route
// key, which is the specialty of the calling work function.
type Router struct {
	providers map[string]Provider
	bindings  map[string]string   // route -> providerID
	fallbacks map[string][]string // route -> fallback provider chain
	defaults  string              // default provider ID
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]string),
		fallbacks: make(map[string][]string),
		logger:    logger,
	}
}

// Register adds a provider to the router. The first one becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// Bind sends every request for route to a specific provider.
func (r *Router) Bind(route, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[route] = providerID
}

// SetFallbacks configures the providers tried, in order, when the primary fails.
func (r *Router) SetFallbacks(route string, providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[route] = providerIDs
}

// Route sends a chat request through the provider bound to route.
// Fallback providers receive the request without its model so they
// pick their own default.
func (r *Router) Route(ctx context.Context, route string, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	primary := r.getProvider(route)
	chain := make([]Provider, 0, len(r.fallbacks[route]))
	for _, fbID := range r.fallbacks[route] {
		if fb, ok := r.providers[fbID]; ok {
			chain = append(chain, fb)
		}
	}
	r.mu.RUnlock()

	if primary == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoProvider, route)
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	if len(chain) == 0 {
		return nil, err
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("route", route), zap.String("provider", primary.ID()), zap.Error(err))

	fbReq := *req
	fbReq.Model = ""
	for _, fb := range chain {
		resp, err = fb.Chat(ctx, &fbReq)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", fb.ID()), zap.Error(err))
	}
	return nil, fmt.Errorf("all providers failed for %s: %w", route, err)
}

func (r *Router) getProvider(route string) Provider {
	if pid, ok := r.bindings[route]; ok {
		if p, ok := r.providers[pid]; ok {
			return p
		}
	}
	if p, ok := r.providers[r.defaults]; ok {
		return p
	}
	return nil
}

// Info describes a registered provider as the router sees it.
type Info struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Ready   bool     `json:"ready"`
	Default bool     `json:"default"`
	Routes  []string `json:"routes,omitempty"`
}

// credentialed is implemented by providers that can tell whether they
// have an API key before a request is made.
type credentialed interface {
	HasCredential() bool
}

// Providers returns every registered provider sorted by ID, with the
// routes bound to it and whether it can serve requests. Providers that
// cannot report a credential are assumed ready.
func (r *Router) Providers() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := make(map[string][]string)
	for route, pid := range r.bindings {
		routes[pid] = append(routes[pid], route)
	}
	result := make([]Info, 0, len(r.providers))
	for id, p := range r.providers {
		info := Info{ID: id, Name: p.Name(), Ready: true, Default: id == r.defaults}
		if c, ok := p.(credentialed); ok {
			info.Ready = c.HasCredential()
		}
		info.Routes = routes[id]
		sort.Strings(info.Routes)
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
