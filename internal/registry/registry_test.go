package registry

import (
	"encoding/json"
	"os"
	"testing"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/stretchr/testify/require"
)

type fakeSettings map[string]string

func (f fakeSettings) Lookup(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

func newTestStore(t *testing.T) *cfg.Store {
	t.Helper()
	s, err := cfg.NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRegistry_VisibleToolsHidesGuardedTools(t *testing.T) {
	s := newTestStore(t)

	tools := cfg.ToolsDocument{Tools: []cfg.ToolDescriptor{
		{Name: "search", InputSchema: map[string]interface{}{"type": "object"}, Op: cfg.OpBinding{Type: cfg.OpSearch}},
		{
			Name:        "database_cleanup",
			InputSchema: map[string]interface{}{"type": "object"},
			Op:          cfg.OpBinding{Type: cfg.OpDatabaseCleanup},
			Guards:      []string{"requiresEnvTrue:ODOO_ENABLE_CLEANUP_TOOLS"},
		},
	}}
	b, _ := json.Marshal(tools)
	require.NoError(t, s.Save(cfg.KindTools, b))

	r := New(s, fakeSettings{})
	require.NoError(t, r.Reload())

	visible := r.VisibleTools()
	require.Len(t, visible, 1)
	require.Equal(t, "search", visible[0].Name)

	_, err := r.ResolveTool("database_cleanup")
	require.Error(t, err)
	var notFound *ToolNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRegistry_GuardFlipTakesEffectWithoutReload(t *testing.T) {
	s := newTestStore(t)

	tools := cfg.ToolsDocument{Tools: []cfg.ToolDescriptor{
		{
			Name:        "deep_cleanup",
			InputSchema: map[string]interface{}{"type": "object"},
			Op:          cfg.OpBinding{Type: cfg.OpDeepCleanup},
			Guards:      []string{"requiresEnvTrue:ODOO_ENABLE_CLEANUP_TOOLS"},
		},
	}}
	b, _ := json.Marshal(tools)
	require.NoError(t, s.Save(cfg.KindTools, b))

	settings := fakeSettings{}
	r := New(s, settings)
	require.NoError(t, r.Reload())

	_, err := r.ResolveTool("deep_cleanup")
	require.Error(t, err)

	settings["ODOO_ENABLE_CLEANUP_TOOLS"] = "true"
	tool, err := r.ResolveTool("deep_cleanup")
	require.NoError(t, err)
	require.Equal(t, "deep_cleanup", tool.Name)
}

func TestRegistry_ReloadKeepsPreviousSnapshotOnInvalidFile(t *testing.T) {
	s := newTestStore(t)
	r := New(s, fakeSettings{})
	require.NoError(t, r.Reload())

	before := r.VisibleTools()

	// Corrupt tools.json directly (bypassing Store.Save's validation) to
	// simulate a hand-edited file becoming malformed on disk.
	bad := []byte(`{"tools": [{"name": "", "inputSchema": {"type": "object"}}]}`)
	require.NoError(t, os.WriteFile(s.Dir()+"/"+cfg.KindTools.FileName(), bad, 0o644))

	err := r.Reload()
	require.Error(t, err)

	after := r.VisibleTools()
	require.Equal(t, before, after)
}
