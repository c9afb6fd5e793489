// Package registry holds the in-memory snapshot of parsed tool descriptors,
// prompt texts, and server metadata, re-deriving it on config change events
// and exposing guard-filtered views to callers.
package registry

import (
	"context"
	"sync/atomic"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// Snapshot is the immutable, atomically-swapped triple published on each
// successful reload. Readers holding a Snapshot never observe it change.
type Snapshot struct {
	Tools         []cfg.ToolDescriptor
	toolsByName   map[string]cfg.ToolDescriptor
	Prompts       []cfg.PromptDescriptor
	promptsByName map[string]cfg.PromptDescriptor
	Server        cfg.ServerMetadata
}

func buildSnapshot(tools cfg.ToolsDocument, prompts cfg.PromptsDocument, server cfg.ServerMetadata) *Snapshot {
	toolsByName := make(map[string]cfg.ToolDescriptor, len(tools.Tools))
	for _, t := range tools.Tools {
		toolsByName[t.Name] = t
	}
	promptsByName := make(map[string]cfg.PromptDescriptor, len(prompts.Prompts))
	for _, p := range prompts.Prompts {
		promptsByName[p.Name] = p
	}
	return &Snapshot{
		Tools:         tools.Tools,
		toolsByName:   toolsByName,
		Prompts:       prompts.Prompts,
		promptsByName: promptsByName,
		Server:        server,
	}
}

// Registry holds the current snapshot behind an atomically-replaceable
// pointer. Lookups against a captured Snapshot are lock-free for readers.
type Registry struct {
	store    *cfg.Store
	settings cfg.ProcessSettings
	current  atomic.Pointer[Snapshot]
}

// New creates a Registry over store. Call Reload once before serving traffic.
func New(store *cfg.Store, settings cfg.ProcessSettings) *Registry {
	return &Registry{store: store, settings: settings}
}

// Reload reads tools.json, prompts.json, and server.json from the store and,
// on success, publishes a new snapshot. On failure it logs and leaves the
// current snapshot (if any) intact.
func (r *Registry) Reload() error {
	tools, err := r.store.LoadTools()
	if err != nil {
		logging.Error("Registry", err, "failed to reload tools, keeping previous snapshot")
		return err
	}
	prompts, err := r.store.LoadPrompts()
	if err != nil {
		logging.Error("Registry", err, "failed to reload prompts, keeping previous snapshot")
		return err
	}
	server, err := r.store.LoadServerMetadata()
	if err != nil {
		logging.Error("Registry", err, "failed to reload server metadata, keeping previous snapshot")
		return err
	}

	r.current.Store(buildSnapshot(tools, prompts, server))
	logging.Info("Registry", "reloaded snapshot: %d tools, %d prompts", len(tools.Tools), len(prompts.Prompts))
	return nil
}

// Snapshot returns the currently published snapshot, or nil if Reload has
// never succeeded.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// VisibleTools returns the tools whose guards all evaluate true against the
// live process settings, in declaration order.
func (r *Registry) VisibleTools() []cfg.ToolDescriptor {
	snap := r.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]cfg.ToolDescriptor, 0, len(snap.Tools))
	for _, t := range snap.Tools {
		if cfg.EvalGuards(t.Guards, r.settings) {
			out = append(out, t)
		}
	}
	return out
}

// ErrToolNotFound is a zero-valued ToolNotFoundError. ResolveTool does not
// return this value; it returns a *ToolNotFoundError carrying the requested
// name, the same for truly absent tools and guard-hidden ones, so that gated
// tools are not disclosed.
var ErrToolNotFound = &ToolNotFoundError{}

// ToolNotFoundError reports that a tool could not be resolved for a call.
type ToolNotFoundError struct{ Name string }

func (e *ToolNotFoundError) Error() string { return "tool not found: " + e.Name }

// ResolveTool returns the named tool if it exists and its guards currently
// pass; otherwise it returns ToolNotFoundError, whether the tool is absent
// or merely hidden.
func (r *Registry) ResolveTool(name string) (cfg.ToolDescriptor, error) {
	snap := r.current.Load()
	if snap == nil {
		return cfg.ToolDescriptor{}, &ToolNotFoundError{Name: name}
	}
	t, ok := snap.toolsByName[name]
	if !ok || !cfg.EvalGuards(t.Guards, r.settings) {
		return cfg.ToolDescriptor{}, &ToolNotFoundError{Name: name}
	}
	return t, nil
}

// Prompts returns every declared prompt; prompts have no guard concept.
func (r *Registry) Prompts() []cfg.PromptDescriptor {
	snap := r.current.Load()
	if snap == nil {
		return nil
	}
	return snap.Prompts
}

// ResolvePrompt returns the named prompt, or false if absent.
func (r *Registry) ResolvePrompt(name string) (cfg.PromptDescriptor, bool) {
	snap := r.current.Load()
	if snap == nil {
		return cfg.PromptDescriptor{}, false
	}
	p, ok := snap.promptsByName[name]
	return p, ok
}

// ServerMetadata returns the currently published server metadata.
func (r *Registry) ServerMetadata() cfg.ServerMetadata {
	snap := r.current.Load()
	if snap == nil {
		return cfg.ServerMetadata{}
	}
	return snap.Server
}

// Watch subscribes to the watcher's change events and reloads whenever a
// relevant file changes, until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, events <-chan cfg.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == cfg.KindTools || ev.Kind == cfg.KindPrompts || ev.Kind == cfg.KindServer {
				_ = r.Reload()
			}
		}
	}
}
