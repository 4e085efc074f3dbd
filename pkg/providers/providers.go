// Package providers implements the lazy per-project external-data-source
// client factory, per spec.md §4.13: client-cache lookup, credential fetch,
// construct+initialize, cache with TTL, disposer-on-eviction.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/taskforge/platform/pkg/apperr"
	"github.com/taskforge/platform/pkg/cache"
	"github.com/taskforge/platform/pkg/models"
	"github.com/taskforge/platform/pkg/store"
	"github.com/taskforge/platform/pkg/workspace"
)

// Client is the uniform contract every provider implementation exposes,
// per spec.md §4.13's closing paragraph.
type Client interface {
	Initialize(ctx context.Context, config map[string]any) error
	Call(ctx context.Context, operation string, args map[string]any) (any, error)
	Cleanup() error
}

// Constructor builds an uninitialized Client for one provider_type. The
// registry calls Initialize itself after construction.
type Constructor func() Client

// CredentialFetcher is a pure function over the Store resolving a
// (project_id, provider_type) pair to its provider config, per spec.md
// §4.13 step 2. Credentials live on the Project/DataSource documents
// themselves, not in a separate secrets store, in this design.
type CredentialFetcher func(ctx context.Context, s store.Store, projectID, providerType string) (map[string]any, error)

// Registry is the ProviderRegistry of spec.md §4.13.
type Registry struct {
	store        store.Store
	clients      *cache.ClientCache
	constructors map[string]Constructor
	credentials  CredentialFetcher
}

// New builds a Registry. constructors maps provider_type -> Constructor;
// unregistered provider types fail lookup with apperr.NotFound.
func New(s store.Store, clients *cache.ClientCache, constructors map[string]Constructor, fetcher CredentialFetcher) *Registry {
	return &Registry{store: s, clients: clients, constructors: constructors, credentials: fetcher}
}

// disposableClient adapts a Client to cache.Disposable so ClientCache can
// run Cleanup on eviction without depending on this package.
type disposableClient struct{ Client }

func (d disposableClient) Cleanup() error { return d.Client.Cleanup() }

// Get implements spec.md §4.13 steps 1-4.
func (r *Registry) Get(ctx context.Context, projectID, providerType string) (Client, error) {
	ctor, ok := r.constructors[providerType]
	if !ok {
		return nil, fmt.Errorf("providers: unknown provider type %q: %w", providerType, apperr.NotFound)
	}

	config, err := r.credentials(ctx, r.store, projectID, providerType)
	if err != nil {
		return nil, fmt.Errorf("providers: fetch credentials for %s/%s: %w", projectID, providerType, err)
	}

	key := cache.ClientKey{ProjectID: projectID, ProviderType: providerType, ConfigHash: hashConfig(config)}

	// Step 1: consult the client cache.
	if existing, ok := r.clients.Get(key); ok {
		return existing.(disposableClient).Client, nil
	}

	// Step 3: construct and initialize.
	client := ctor()
	if err := client.Initialize(ctx, config); err != nil {
		return nil, fmt.Errorf("providers: initialize %s client: %w", providerType, err)
	}

	// Step 4: cache with TTL.
	r.clients.Put(key, disposableClient{client})
	return client, nil
}

// WorkspaceBinding resolves the MCP tool names and server dict the Runner
// injects into a task's Workspace sandbox file, per spec.md §4.6 step 2.
// Gateways published for this project contribute their enabled tools.
func (r *Registry) WorkspaceBinding(ctx context.Context, projectID string) ([]string, map[string]workspace.MCPServerEntry) {
	results, err := r.store.Find(ctx, models.CollectionMCPTools, store.Filter{"project_id": projectID}, func() store.Document {
		return &models.MCPTool{}
	})
	if err != nil {
		return nil, nil
	}
	var tools []string
	servers := map[string]workspace.MCPServerEntry{}
	for _, doc := range results {
		tool, ok := doc.(*models.MCPTool)
		if !ok || !tool.Enabled || tool.Status != models.MCPToolStatusReady {
			continue
		}
		tools = append(tools, fmt.Sprintf("mcp__%s", tool.ToolName))
	}
	return tools, servers
}

func hashConfig(config map[string]any) string {
	raw, err := json.Marshal(config)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
