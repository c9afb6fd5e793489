package erpclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// Legacy is the session-cookie JSON-RPC variant. A login call exchanges
// (db, username, password) for a session cookie; every subsequent call rides
// the ORM's execute_kw convention. Exactly one transparent re-login is
// attempted per call when the session has expired.
type Legacy struct {
	http *resty.Client
	desc cfg.InstanceDescriptor

	mu           sync.Mutex
	loggedIn     bool
	reloginCount int64
}

// NewLegacy constructs a Legacy client for the given instance descriptor.
func NewLegacy(desc cfg.InstanceDescriptor) (*Legacy, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := resty.New().
		SetBaseURL(desc.URL).
		SetTimeout(DefaultTimeoutSeconds * time.Second).
		SetCookieJar(jar).
		SetHeader("Content-Type", "application/json")
	return &Legacy{http: client, desc: desc}, nil
}

// ReloginCount returns how many transparent re-logins have occurred so far,
// for diagnostics and tests.
func (l *Legacy) ReloginCount() int64 {
	return atomic.LoadInt64(&l.reloginCount)
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

type jsonRPCResponse struct {
	Result interface{} `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		} `json:"data"`
	} `json:"error"`
}

func (l *Legacy) login(ctx context.Context) error {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]interface{}{
			"db":       l.desc.DB,
			"login":    l.desc.Username,
			"password": l.desc.Password,
		},
		ID: 1,
	}
	var resp jsonRPCResponse
	httpResp, err := l.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/web/session/authenticate")
	if err != nil {
		return &Error{Kind: ErrNetwork, Message: "login request failed", Cause: err}
	}
	if httpResp.IsError() {
		return &Error{Kind: ErrAuth, Message: fmt.Sprintf("login failed with status %d", httpResp.StatusCode())}
	}
	if resp.Error != nil {
		return &Error{Kind: ErrAuth, Message: resp.Error.Message}
	}
	if resp.Result == nil {
		return &Error{Kind: ErrAuth, Message: "login returned no session"}
	}
	l.mu.Lock()
	l.loggedIn = true
	l.mu.Unlock()
	return nil
}

// call invokes method on model via execute_kw, re-logging in exactly once if
// the session has expired, then retrying the call once.
func (l *Legacy) call(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	l.mu.Lock()
	needLogin := !l.loggedIn
	l.mu.Unlock()
	if needLogin {
		if err := l.login(ctx); err != nil {
			return nil, err
		}
	}

	result, err := l.executeKw(ctx, model, method, args, kwargs)
	if err == nil {
		return result, nil
	}
	if !isSessionExpired(err) {
		return nil, err
	}

	logging.Info("ErpClient", "legacy session expired for instance %s, re-authenticating", l.desc.Name)
	l.mu.Lock()
	l.loggedIn = false
	l.mu.Unlock()
	atomic.AddInt64(&l.reloginCount, 1)

	if err := l.login(ctx); err != nil {
		return nil, err
	}
	return l.executeKw(ctx, model, method, args, kwargs)
}

func (l *Legacy) executeKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]interface{}{
			"service": "object",
			"method":  "execute_kw",
			"args":    append([]interface{}{l.desc.DB, 1, l.desc.Password, model, method, args}, kwargsArg(kwargs)...),
		},
		ID: 1,
	}
	var resp jsonRPCResponse
	httpResp, err := l.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/jsonrpc")
	if err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: ErrTimeout, Message: "request timed out", Cause: err}
		}
		return nil, &Error{Kind: ErrNetwork, Message: "request failed", Cause: err}
	}
	if httpResp.IsError() {
		return nil, &Error{Kind: ErrServerFault, Message: fmt.Sprintf("server returned status %d", httpResp.StatusCode())}
	}
	if resp.Error != nil {
		return nil, classifyLegacyError(resp.Error.Data.Name, resp.Error.Message)
	}
	return resp.Result, nil
}

func kwargsArg(kwargs map[string]interface{}) []interface{} {
	if len(kwargs) == 0 {
		return nil
	}
	return []interface{}{kwargs}
}

func isSessionExpired(err error) bool {
	var erpErr *Error
	if e, ok := err.(*Error); ok {
		erpErr = e
	}
	if erpErr == nil {
		return false
	}
	return erpErr.Kind == ErrAuth && strings.Contains(strings.ToLower(erpErr.Message), "session")
}

func classifyLegacyError(name, message string) error {
	lower := strings.ToLower(name + " " + message)
	switch {
	case strings.Contains(lower, "accesserror") || strings.Contains(lower, "access denied"):
		return &Error{Kind: ErrAccessDenied, Message: message}
	case strings.Contains(lower, "session") || strings.Contains(lower, "auth"):
		return &Error{Kind: ErrAuth, Message: message}
	case strings.Contains(lower, "missingerror") || strings.Contains(lower, "does not exist"):
		return &Error{Kind: ErrNotFound, Message: message}
	default:
		return &Error{Kind: ErrProtocol, Message: message}
	}
}

func toIntSlice(v interface{}) []int {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		}
	}
	return out
}

func toRecordSlice(v interface{}) []map[string]interface{} {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func (l *Legacy) Search(ctx context.Context, model string, domain []interface{}, opts ListOptions) ([]int, error) {
	kwargs := map[string]interface{}{"offset": opts.Offset, "limit": opts.Limit, "order": opts.Order}
	result, err := l.call(ctx, model, "search", []interface{}{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	return toIntSlice(result), nil
}

func (l *Legacy) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts ListOptions) ([]map[string]interface{}, error) {
	kwargs := map[string]interface{}{"fields": fields, "offset": opts.Offset, "limit": opts.Limit, "order": opts.Order}
	result, err := l.call(ctx, model, "search_read", []interface{}{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	return toRecordSlice(result), nil
}

func (l *Legacy) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error) {
	kwargs := map[string]interface{}{"fields": fields}
	result, err := l.call(ctx, model, "read", []interface{}{idsToInterface(ids)}, kwargs)
	if err != nil {
		return nil, err
	}
	return toRecordSlice(result), nil
}

func (l *Legacy) Create(ctx context.Context, model string, values map[string]interface{}) (int, error) {
	result, err := l.call(ctx, model, "create", []interface{}{values}, nil)
	if err != nil {
		return 0, err
	}
	id, _ := result.(float64)
	return int(id), nil
}

func (l *Legacy) CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error) {
	ids := make([]int, 0, len(valuesList))
	for _, values := range valuesList {
		id, err := l.Create(ctx, model, values)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (l *Legacy) Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error) {
	result, err := l.call(ctx, model, "write", []interface{}{idsToInterface(ids), values}, nil)
	if err != nil {
		return false, 0, err
	}
	success, _ := result.(bool)
	return success, len(ids), nil
}

func (l *Legacy) Unlink(ctx context.Context, model string, ids []int) (bool, int, error) {
	result, err := l.call(ctx, model, "unlink", []interface{}{idsToInterface(ids)}, nil)
	if err != nil {
		return false, 0, err
	}
	success, _ := result.(bool)
	return success, len(ids), nil
}

func (l *Legacy) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	result, err := l.call(ctx, model, "search_count", []interface{}{domain}, nil)
	if err != nil {
		return 0, err
	}
	count, _ := result.(float64)
	return int(count), nil
}

func (l *Legacy) Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return l.call(ctx, model, method, args, kwargs)
}

func (l *Legacy) WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error) {
	return l.call(ctx, model, action, []interface{}{idsToInterface(ids)}, nil)
}

func (l *Legacy) GenerateReport(ctx context.Context, reportName string, ids []int) ([]byte, error) {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]interface{}{
			"report_name": reportName,
			"ids":         ids,
		},
		ID: 1,
	}
	var resp jsonRPCResponse
	httpResp, err := l.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/report/download")
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Message: "report request failed", Cause: err}
	}
	if httpResp.IsError() {
		return nil, &Error{Kind: ErrServerFault, Message: fmt.Sprintf("server returned status %d", httpResp.StatusCode())}
	}
	if resp.Error != nil {
		return nil, classifyLegacyError(resp.Error.Data.Name, resp.Error.Message)
	}
	encoded, ok := resp.Result.(string)
	if !ok {
		return nil, &Error{Kind: ErrProtocol, Message: "report response missing payload"}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &Error{Kind: ErrProtocol, Message: "malformed report payload", Cause: err}
	}
	return data, nil
}

func (l *Legacy) GetModelMetadata(ctx context.Context, model string) (map[string]interface{}, error) {
	result, err := l.call(ctx, model, "fields_get", nil, map[string]interface{}{"attributes": []string{"string", "type", "required"}})
	if err != nil {
		return nil, err
	}
	fields, _ := result.(map[string]interface{})
	return map[string]interface{}{"name": model, "fields": fields}, nil
}

func (l *Legacy) ListModels(ctx context.Context, domain []interface{}, opts ListOptions) ([]ModelSummary, error) {
	kwargs := map[string]interface{}{"fields": []string{"model", "name"}, "offset": opts.Offset, "limit": opts.Limit}
	result, err := l.call(ctx, "ir.model", "search_read", []interface{}{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	records := toRecordSlice(result)
	out := make([]ModelSummary, 0, len(records))
	for _, r := range records {
		id, _ := r["id"].(float64)
		model, _ := r["model"].(string)
		name, _ := r["name"].(string)
		out = append(out, ModelSummary{ID: int(id), Model: model, Name: name})
	}
	return out, nil
}

func (l *Legacy) CheckAccess(ctx context.Context, model, operation string, ids []int) (AccessResult, error) {
	result, err := l.call(ctx, model, "check_access_rights", []interface{}{operation}, map[string]interface{}{"raise_exception": false})
	if err != nil {
		return AccessResult{}, err
	}
	modelLevel, _ := result.(bool)
	recordLevel := modelLevel
	if modelLevel && len(ids) > 0 {
		if _, err := l.call(ctx, model, "check_access_rule", []interface{}{idsToInterface(ids), operation}, nil); err != nil {
			recordLevel = false
		}
	}
	return AccessResult{HasAccess: modelLevel && recordLevel, ModelLevel: modelLevel, RecordLevel: recordLevel}, nil
}

func (l *Legacy) DatabaseCleanup(ctx context.Context) error {
	logging.Audit(logging.AuditEvent{Action: "database_cleanup", Outcome: "attempted", Target: l.desc.Name})
	_, err := l.call(ctx, "ir.autovacuum", "power_on", nil, nil)
	return err
}

func (l *Legacy) DeepCleanup(ctx context.Context) error {
	logging.Audit(logging.AuditEvent{Action: "deep_cleanup", Outcome: "attempted", Target: l.desc.Name})
	_, err := l.call(ctx, "ir.attachment", "_file_gc", nil, nil)
	return err
}

func idsToInterface(ids []int) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
