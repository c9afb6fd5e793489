package mcpsession

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/internal/dispatcher"
	"github.com/rachmataditiya/odoo-mcp-server/internal/erpclient"
	"github.com/rachmataditiya/odoo-mcp-server/internal/registry"
)

type fakeSettings map[string]string

func (f fakeSettings) Lookup(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

type fakePool struct{ client erpclient.Client }

func (p *fakePool) Get(desc cfg.InstanceDescriptor) (erpclient.Client, error) {
	return p.client, nil
}

type fakeClient struct{}

func (fakeClient) Search(ctx context.Context, model string, domain []interface{}, opts erpclient.ListOptions) ([]int, error) {
	return []int{1}, nil
}
func (fakeClient) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts erpclient.ListOptions) ([]map[string]interface{}, error) {
	return []map[string]interface{}{{"id": 1}}, nil
}
func (fakeClient) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error) {
	return nil, nil
}
func (fakeClient) Create(ctx context.Context, model string, values map[string]interface{}) (int, error) {
	return 1, nil
}
func (fakeClient) CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error) {
	return nil, nil
}
func (fakeClient) Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error) {
	return true, 0, nil
}
func (fakeClient) Unlink(ctx context.Context, model string, ids []int) (bool, int, error) {
	return true, 0, nil
}
func (fakeClient) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	return 0, nil
}
func (fakeClient) Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return nil, nil
}
func (fakeClient) WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error) {
	return nil, nil
}
func (fakeClient) GenerateReport(ctx context.Context, reportName string, ids []int) ([]byte, error) {
	return nil, nil
}
func (fakeClient) GetModelMetadata(ctx context.Context, model string) (map[string]interface{}, error) {
	return map[string]interface{}{"name": model}, nil
}
func (fakeClient) ListModels(ctx context.Context, domain []interface{}, opts erpclient.ListOptions) ([]erpclient.ModelSummary, error) {
	return []erpclient.ModelSummary{{ID: 1, Model: "res.partner", Name: "Partner"}}, nil
}
func (fakeClient) CheckAccess(ctx context.Context, model, operation string, ids []int) (erpclient.AccessResult, error) {
	return erpclient.AccessResult{HasAccess: true}, nil
}
func (fakeClient) DatabaseCleanup(ctx context.Context) error { return nil }
func (fakeClient) DeepCleanup(ctx context.Context) error     { return nil }

func newTestSession(t *testing.T) (*Session, *cfg.Store, *registry.Registry) {
	t.Helper()
	store, err := cfg.NewStore(t.TempDir())
	require.NoError(t, err)

	instances := cfg.InstancesDocument{Instances: []cfg.InstanceDescriptor{
		{Name: "default", URL: "http://example.test", APIKey: "k"},
	}}
	b, _ := json.Marshal(instances)
	require.NoError(t, store.Save(cfg.KindInstances, b))

	reg := registry.New(store, fakeSettings{})
	require.NoError(t, reg.Reload())

	metadata, err := erpclient.NewMetadataCache(time.Hour)
	require.NoError(t, err)
	disp := dispatcher.New(store, &fakePool{client: fakeClient{}}, metadata, fakeSettings{})

	s := New(reg, disp, "odoo-mcp-server", "0.1.0")
	return s, store, reg
}

func saveTools(t *testing.T, store *cfg.Store, tools ...cfg.ToolDescriptor) {
	t.Helper()
	doc := cfg.ToolsDocument{Tools: tools}
	b, _ := json.Marshal(doc)
	require.NoError(t, store.Save(cfg.KindTools, b))
}

func TestSession_SyncRegistersAndRemovesTools(t *testing.T) {
	s, store, reg := newTestSession(t)

	saveTools(t, store, cfg.ToolDescriptor{
		Name:        "search",
		InputSchema: map[string]interface{}{"type": "object"},
		Op:          cfg.OpBinding{Type: cfg.OpSearch, Map: map[string]string{"model": "/model"}},
	})
	require.NoError(t, reg.Reload())
	s.Sync()
	require.True(t, s.toolNames["search"])

	saveTools(t, store)
	require.NoError(t, reg.Reload())
	s.Sync()
	require.False(t, s.toolNames["search"])
}

func TestSession_ToolHandlerDispatchesAndShapesEnvelope(t *testing.T) {
	s, store, reg := newTestSession(t)
	saveTools(t, store, cfg.ToolDescriptor{
		Name:        "search_read",
		InputSchema: map[string]interface{}{"type": "object"},
		Op: cfg.OpBinding{
			Type: cfg.OpSearchRead,
			Map:  map[string]string{"model": "/model"},
		},
	})
	require.NoError(t, reg.Reload())

	handler := s.toolHandler("search_read")
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"model": "res.partner"}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &envelope))
	require.Equal(t, float64(1), envelope["count"])
}

func TestSession_ToolHandlerUnknownToolReturnsToolError(t *testing.T) {
	s, _, _ := newTestSession(t)
	handler := s.toolHandler("does_not_exist")
	result, err := handler(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestSession_InstancesResourceListsNamesWithoutCredentials(t *testing.T) {
	s, _, _ := newTestSession(t)
	contents, err := s.handleInstancesResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	require.Contains(t, text.Text, "default")
	require.NotContains(t, text.Text, "apiKey")
}

func TestSession_ModelsResourceTemplateReadsInstanceArgument(t *testing.T) {
	s, _, _ := newTestSession(t)
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "odoo://default/models"
	req.Params.Arguments = map[string]interface{}{"instance": "default"}

	contents, err := s.handleModelsResource(context.Background(), req)
	require.NoError(t, err)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	require.Contains(t, text.Text, "res.partner")
}

func TestSession_ModelMetadataResourceMissingArgumentErrors(t *testing.T) {
	s, _, _ := newTestSession(t)
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "odoo://default/metadata/"

	_, err := s.handleModelMetadataResource(context.Background(), req)
	require.Error(t, err)
}
