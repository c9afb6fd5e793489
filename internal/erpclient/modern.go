package erpclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// Modern is the stateless, API-key-authenticated JSON variant. Each call is
// an independent POST to <url>/json/2/<endpoint>; there is no session state
// to maintain between calls.
type Modern struct {
	http *resty.Client
	desc cfg.InstanceDescriptor
}

// NewModern constructs a Modern client for the given instance descriptor.
func NewModern(desc cfg.InstanceDescriptor) *Modern {
	client := resty.New().
		SetBaseURL(desc.URL).
		SetTimeout(DefaultTimeoutSeconds * time.Second).
		SetHeader("Authorization", "Bearer "+desc.APIKey).
		SetHeader("Content-Type", "application/json")
	return &Modern{http: client, desc: desc}
}

func (m *Modern) endpoint(name string) string {
	return fmt.Sprintf("/json/2/%s", name)
}

// call posts body to endpoint and unmarshals the response into out.
func (m *Modern) call(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(&modernErrorEnvelope{}).
		Post(m.endpoint(endpoint))
	if err != nil {
		if ctx.Err() != nil {
			return &Error{Kind: ErrTimeout, Message: "request timed out", Cause: err}
		}
		return &Error{Kind: ErrNetwork, Message: "request failed", Cause: err}
	}
	if resp.IsError() {
		envelope, _ := resp.Error().(*modernErrorEnvelope)
		return classifyModernError(resp.StatusCode(), envelope)
	}
	return nil
}

type modernErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func classifyModernError(status int, envelope *modernErrorEnvelope) error {
	msg := "request failed"
	code := ""
	if envelope != nil {
		msg = envelope.Error.Message
		code = envelope.Error.Code
	}
	switch {
	case status == 401 || status == 403 || code == "auth_failed":
		return &Error{Kind: ErrAuth, Message: msg}
	case status == 404 || code == "not_found":
		return &Error{Kind: ErrNotFound, Message: msg}
	case code == "access_denied":
		return &Error{Kind: ErrAccessDenied, Message: msg}
	case status >= 500:
		return &Error{Kind: ErrServerFault, Message: msg}
	default:
		return &Error{Kind: ErrProtocol, Message: msg}
	}
}

func (m *Modern) Search(ctx context.Context, model string, domain []interface{}, opts ListOptions) ([]int, error) {
	var out struct {
		IDs []int `json:"ids"`
	}
	body := map[string]interface{}{"model": model, "domain": domain, "limit": opts.Limit, "offset": opts.Offset, "order": opts.Order}
	if err := m.call(ctx, "search", body, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

func (m *Modern) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts ListOptions) ([]map[string]interface{}, error) {
	var out struct {
		Records []map[string]interface{} `json:"records"`
	}
	body := map[string]interface{}{"model": model, "domain": domain, "fields": fields, "limit": opts.Limit, "offset": opts.Offset, "order": opts.Order}
	if err := m.call(ctx, "search_read", body, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

func (m *Modern) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error) {
	var out struct {
		Records []map[string]interface{} `json:"records"`
	}
	body := map[string]interface{}{"model": model, "ids": ids, "fields": fields}
	if err := m.call(ctx, "read", body, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

func (m *Modern) Create(ctx context.Context, model string, values map[string]interface{}) (int, error) {
	var out struct {
		ID int `json:"id"`
	}
	body := map[string]interface{}{"model": model, "values": values}
	if err := m.call(ctx, "create", body, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (m *Modern) CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error) {
	var out struct {
		IDs []int `json:"ids"`
	}
	body := map[string]interface{}{"model": model, "values_list": valuesList}
	if err := m.call(ctx, "create_batch", body, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

func (m *Modern) Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error) {
	var out struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	body := map[string]interface{}{"model": model, "ids": ids, "values": values}
	if err := m.call(ctx, "write", body, &out); err != nil {
		return false, 0, err
	}
	return out.Success, out.Count, nil
}

func (m *Modern) Unlink(ctx context.Context, model string, ids []int) (bool, int, error) {
	var out struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	body := map[string]interface{}{"model": model, "ids": ids}
	if err := m.call(ctx, "unlink", body, &out); err != nil {
		return false, 0, err
	}
	return out.Success, out.Count, nil
}

func (m *Modern) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	body := map[string]interface{}{"model": model, "domain": domain}
	if err := m.call(ctx, "search_count", body, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (m *Modern) Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	var out struct {
		Result interface{} `json:"result"`
	}
	body := map[string]interface{}{"model": model, "method": method, "args": args, "kwargs": kwargs}
	if err := m.call(ctx, "execute", body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (m *Modern) WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error) {
	var out struct {
		Result interface{} `json:"result"`
	}
	body := map[string]interface{}{"model": model, "ids": ids, "action": action}
	if err := m.call(ctx, "workflow_action", body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (m *Modern) GenerateReport(ctx context.Context, reportName string, ids []int) ([]byte, error) {
	var out struct {
		PDFBase64 string `json:"pdf_base64"`
	}
	body := map[string]interface{}{"report_name": reportName, "ids": ids}
	if err := m.call(ctx, "generate_report", body, &out); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(out.PDFBase64)
	if err != nil {
		return nil, &Error{Kind: ErrProtocol, Message: "malformed report payload", Cause: err}
	}
	return data, nil
}

func (m *Modern) GetModelMetadata(ctx context.Context, model string) (map[string]interface{}, error) {
	var out struct {
		Model map[string]interface{} `json:"model"`
	}
	body := map[string]interface{}{"model": model}
	if err := m.call(ctx, "get_model_metadata", body, &out); err != nil {
		return nil, err
	}
	return out.Model, nil
}

func (m *Modern) ListModels(ctx context.Context, domain []interface{}, opts ListOptions) ([]ModelSummary, error) {
	var out struct {
		Models []ModelSummary `json:"models"`
	}
	body := map[string]interface{}{"domain": domain, "limit": opts.Limit, "offset": opts.Offset}
	if err := m.call(ctx, "list_models", body, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (m *Modern) CheckAccess(ctx context.Context, model, operation string, ids []int) (AccessResult, error) {
	var out struct {
		HasAccess   bool `json:"has_access"`
		ModelLevel  bool `json:"model_level"`
		RecordLevel bool `json:"record_level"`
	}
	body := map[string]interface{}{"model": model, "operation": operation, "ids": ids}
	if err := m.call(ctx, "check_access", body, &out); err != nil {
		return AccessResult{}, err
	}
	return AccessResult{HasAccess: out.HasAccess, ModelLevel: out.ModelLevel, RecordLevel: out.RecordLevel}, nil
}

func (m *Modern) DatabaseCleanup(ctx context.Context) error {
	logging.Audit(logging.AuditEvent{Action: "database_cleanup", Outcome: "attempted", Target: m.desc.Name})
	return m.call(ctx, "database_cleanup", map[string]interface{}{}, &struct{}{})
}

func (m *Modern) DeepCleanup(ctx context.Context) error {
	logging.Audit(logging.AuditEvent{Action: "deep_cleanup", Outcome: "attempted", Target: m.desc.Name})
	return m.call(ctx, "deep_cleanup", map[string]interface{}{}, &struct{}{})
}
