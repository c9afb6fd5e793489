// Package erpclient implements the polymorphic ErpClient: two wire-protocol
// variants (Modern, API-key JSON; Legacy, session-cookie JSON-RPC) behind one
// capability set, plus the ClientPool and MetadataCache that sit in front of
// them.
package erpclient

import (
	"context"
	"fmt"
)

// ErrorKind classifies a wire-level failure uniformly across variants.
type ErrorKind string

const (
	ErrNetwork      ErrorKind = "Network"
	ErrAuth         ErrorKind = "Auth"
	ErrProtocol     ErrorKind = "Protocol"
	ErrNotFound     ErrorKind = "NotFound"
	ErrAccessDenied ErrorKind = "AccessDenied"
	ErrServerFault  ErrorKind = "ServerFault"
	ErrTimeout      ErrorKind = "Timeout"
)

// Error is the uniform error shape every ErpClient variant maps wire
// outcomes onto.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("erp %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("erp %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// ListOptions bounds a search/search_read call.
type ListOptions struct {
	Limit  int
	Offset int
	Order  string
}

// AccessResult is the result shape of check_access.
type AccessResult struct {
	HasAccess   bool
	ModelLevel  bool
	RecordLevel bool
}

// ModelSummary is one entry in list_models' result.
type ModelSummary struct {
	ID    int
	Model string
	Name  string
}

// Client is the common capability set every ERP backend variant must
// support.
type Client interface {
	Search(ctx context.Context, model string, domain []interface{}, opts ListOptions) ([]int, error)
	SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts ListOptions) ([]map[string]interface{}, error)
	Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error)
	Create(ctx context.Context, model string, values map[string]interface{}) (int, error)
	CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error)
	Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error)
	Unlink(ctx context.Context, model string, ids []int) (bool, int, error)
	SearchCount(ctx context.Context, model string, domain []interface{}) (int, error)
	Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error)
	WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error)
	GenerateReport(ctx context.Context, reportName string, ids []int) ([]byte, error)
	GetModelMetadata(ctx context.Context, model string) (map[string]interface{}, error)
	ListModels(ctx context.Context, domain []interface{}, opts ListOptions) ([]ModelSummary, error)
	CheckAccess(ctx context.Context, model, operation string, ids []int) (AccessResult, error)
	DatabaseCleanup(ctx context.Context) error
	DeepCleanup(ctx context.Context) error
}

// MaxBatchRows is the per-call cap on create_batch, enforced by OpDispatcher
// before any wire call is made.
const MaxBatchRows = 100

// DefaultTimeoutSeconds is the default per-call ceiling.
const DefaultTimeoutSeconds = 60
