package dispatcher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/internal/erpclient"
	"github.com/stretchr/testify/require"
)

// fakeClient implements erpclient.Client with scripted, recorded behavior.
type fakeClient struct {
	searchReadFn func(ctx context.Context, model string, domain []interface{}, fields []string, opts erpclient.ListOptions) ([]map[string]interface{}, error)
	createBatchCalls int
}

func (f *fakeClient) Search(ctx context.Context, model string, domain []interface{}, opts erpclient.ListOptions) ([]int, error) {
	return []int{1, 2}, nil
}
func (f *fakeClient) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts erpclient.ListOptions) ([]map[string]interface{}, error) {
	if f.searchReadFn != nil {
		return f.searchReadFn(ctx, model, domain, fields, opts)
	}
	return []map[string]interface{}{{"id": 1, "name": "Acme"}}, nil
}
func (f *fakeClient) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error) {
	return []map[string]interface{}{{"id": ids[0]}}, nil
}
func (f *fakeClient) Create(ctx context.Context, model string, values map[string]interface{}) (int, error) {
	return 42, nil
}
func (f *fakeClient) CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error) {
	f.createBatchCalls++
	ids := make([]int, len(valuesList))
	for i := range valuesList {
		ids[i] = i + 1
	}
	return ids, nil
}
func (f *fakeClient) Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error) {
	return true, len(ids), nil
}
func (f *fakeClient) Unlink(ctx context.Context, model string, ids []int) (bool, int, error) {
	return true, len(ids), nil
}
func (f *fakeClient) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	return 7, nil
}
func (f *fakeClient) Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return "ok", nil
}
func (f *fakeClient) WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error) {
	return "done", nil
}
func (f *fakeClient) GenerateReport(ctx context.Context, reportName string, ids []int) ([]byte, error) {
	return []byte("pdf-bytes"), nil
}
func (f *fakeClient) GetModelMetadata(ctx context.Context, model string) (map[string]interface{}, error) {
	return map[string]interface{}{"name": model}, nil
}
func (f *fakeClient) ListModels(ctx context.Context, domain []interface{}, opts erpclient.ListOptions) ([]erpclient.ModelSummary, error) {
	return []erpclient.ModelSummary{{ID: 1, Model: "res.partner", Name: "Partner"}}, nil
}
func (f *fakeClient) CheckAccess(ctx context.Context, model, operation string, ids []int) (erpclient.AccessResult, error) {
	return erpclient.AccessResult{HasAccess: true, ModelLevel: true, RecordLevel: true}, nil
}
func (f *fakeClient) DatabaseCleanup(ctx context.Context) error { return nil }
func (f *fakeClient) DeepCleanup(ctx context.Context) error     { return nil }

type fakeSettings map[string]string

func (s fakeSettings) Lookup(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

// fakePool hands back one scripted client regardless of descriptor.
type fakePool struct {
	client erpclient.Client
}

func (p *fakePool) Get(desc cfg.InstanceDescriptor) (erpclient.Client, error) {
	return p.client, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *cfg.Store) {
	t.Helper()
	store, err := cfg.NewStore(t.TempDir())
	require.NoError(t, err)

	instances := cfg.InstancesDocument{Instances: []cfg.InstanceDescriptor{
		{Name: "default", URL: "http://example.test", APIKey: "k"},
	}}
	b, _ := json.Marshal(instances)
	require.NoError(t, store.Save(cfg.KindInstances, b))

	pool := &fakePool{client: &fakeClient{}}
	metadata, err := erpclient.NewMetadataCache(time.Hour)
	require.NoError(t, err)

	return New(store, pool, metadata, fakeSettings{}), store
}

func TestDispatcher_ResolveInstanceNormalizesBareURL(t *testing.T) {
	store, err := cfg.NewStore(t.TempDir())
	require.NoError(t, err)

	instances := cfg.InstancesDocument{Instances: []cfg.InstanceDescriptor{
		{Name: "default", URL: "localhost:8069", APIKey: "k"},
	}}
	b, _ := json.Marshal(instances)
	require.NoError(t, store.Save(cfg.KindInstances, b))

	pool := &fakePool{client: &fakeClient{}}
	metadata, err := erpclient.NewMetadataCache(time.Hour)
	require.NoError(t, err)

	d := New(store, pool, metadata, fakeSettings{})

	desc, err := d.ResolveInstance("default")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8069", desc.URL)
}

func searchReadDescriptor() cfg.ToolDescriptor {
	return cfg.ToolDescriptor{
		Name: "search_read",
		Op: cfg.OpBinding{
			Type: cfg.OpSearchRead,
			Map: map[string]string{
				"model":  "/model",
				"domain": "/domain",
				"fields": "/fields",
				"limit":  "/limit",
			},
		},
	}
}

func TestDispatcher_SearchReadEnvelope(t *testing.T) {
	d, _ := newTestDispatcher(t)
	callerArgs := map[string]interface{}{
		"instance": "default",
		"model":    "res.partner",
		"domain":   []interface{}{[]interface{}{"is_company", "=", true}},
		"fields":   []interface{}{"name"},
		"limit":    float64(2),
	}

	envelope, err := d.Dispatch(context.Background(), "req-1", searchReadDescriptor(), callerArgs)
	require.NoError(t, err)
	require.Equal(t, 1, envelope["count"])
	records, ok := envelope["records"].([]map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "Acme", records[0]["name"])
}

func TestDispatcher_UnknownInstanceIsInvalidArgument(t *testing.T) {
	d, _ := newTestDispatcher(t)
	callerArgs := map[string]interface{}{"instance": "nope", "model": "res.partner"}

	_, err := d.Dispatch(context.Background(), "req-1", searchReadDescriptor(), callerArgs)
	require.Error(t, err)
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "instance", invalid.Parameter)
}

func TestDispatcher_MissingRequiredParameterIsInvalidArgument(t *testing.T) {
	d, _ := newTestDispatcher(t)
	callerArgs := map[string]interface{}{"instance": "default"}

	_, err := d.Dispatch(context.Background(), "req-1", searchReadDescriptor(), callerArgs)
	require.Error(t, err)
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "model", invalid.Parameter)
}

func TestDispatcher_CreateBatchCapEnforcedBeforeWireCall(t *testing.T) {
	d, _ := newTestDispatcher(t)

	valuesList := make([]interface{}, erpclient.MaxBatchRows+1)
	for i := range valuesList {
		valuesList[i] = map[string]interface{}{"name": "x"}
	}
	callerArgs := map[string]interface{}{
		"instance":    "default",
		"model":       "res.partner",
		"values_list": valuesList,
	}
	descriptor := cfg.ToolDescriptor{
		Op: cfg.OpBinding{
			Type: cfg.OpCreateBatch,
			Map:  map[string]string{"model": "/model", "values_list": "/values_list"},
		},
	}

	_, err := d.Dispatch(context.Background(), "req-1", descriptor, callerArgs)
	require.Error(t, err)
	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "values_list", invalid.Parameter)
}

func TestDispatcher_GenerateReportBase64Encodes(t *testing.T) {
	d, _ := newTestDispatcher(t)
	callerArgs := map[string]interface{}{
		"instance":    "default",
		"report_name": "sale.report",
		"ids":         []interface{}{float64(1), float64(2)},
	}
	descriptor := cfg.ToolDescriptor{
		Op: cfg.OpBinding{
			Type: cfg.OpGenerateReport,
			Map:  map[string]string{"report_name": "/report_name", "ids": "/ids"},
		},
	}

	envelope, err := d.Dispatch(context.Background(), "req-1", descriptor, callerArgs)
	require.NoError(t, err)
	require.Equal(t, "sale.report", envelope["report_name"])
	require.NotEmpty(t, envelope["pdf_base64"])
}

func TestDispatcher_CancelledContextShortCircuits(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, "req-1", searchReadDescriptor(), map[string]interface{}{"model": "res.partner"})
	require.Error(t, err)
	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
}
