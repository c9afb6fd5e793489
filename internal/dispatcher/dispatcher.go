// Package dispatcher implements OpDispatcher: it projects a tool call's
// caller-supplied arguments onto a primitive ERP operation via the tool
// descriptor's op.map, fetches the target ErpClient from the pool, executes
// the call, and shapes the result into the stable per-operation envelope.
package dispatcher

import (
	"context"
	"encoding/base64"
	"fmt"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/internal/erpclient"
)

// defaultInstanceName is used when caller_args omits "instance".
const defaultInstanceName = "default"

// clientResolver is the slice of *erpclient.ClientPool this package depends
// on, narrowed to an interface so tests can substitute a fake pool.
type clientResolver interface {
	Get(desc cfg.InstanceDescriptor) (erpclient.Client, error)
}

// metadataLoader is the slice of *erpclient.MetadataCache this package
// depends on.
type metadataLoader interface {
	Get(ctx context.Context, instance, model string, load func(context.Context) (map[string]interface{}, error)) (map[string]interface{}, error)
}

// Dispatcher ties the config store (for instance descriptors), the client
// pool, and the metadata cache together to execute one tool call.
type Dispatcher struct {
	store    *cfg.Store
	pool     clientResolver
	metadata metadataLoader
	settings cfg.ProcessSettings
}

// New creates a Dispatcher.
func New(store *cfg.Store, pool clientResolver, metadata metadataLoader, settings cfg.ProcessSettings) *Dispatcher {
	return &Dispatcher{store: store, pool: pool, metadata: metadata, settings: settings}
}

// ResolveInstance loads instances.json fresh and returns the descriptor named
// name, with process-wide env fallbacks applied to any missing fields. This
// is deliberately uncached: instance config changes take effect on the next
// call, without a dedicated reload path.
func (d *Dispatcher) ResolveInstance(name string) (cfg.InstanceDescriptor, error) {
	doc, err := d.store.LoadInstances()
	if err != nil {
		return cfg.InstanceDescriptor{}, &InvalidArgumentError{Parameter: "instance", Reason: "instance configuration unavailable: " + err.Error()}
	}
	fallback := cfg.LoadInstanceDefaults(d.settings)
	for _, inst := range doc.Instances {
		if inst.Name == name {
			return cfg.ApplyDefaults(inst, fallback), nil
		}
	}
	return cfg.InstanceDescriptor{}, &InvalidArgumentError{Parameter: "instance", Reason: fmt.Sprintf("unknown instance %q", name)}
}

func instanceNameFrom(callerArgs map[string]interface{}) string {
	if v, ok := callerArgs["instance"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return defaultInstanceName
}

func checkCancelled(ctx context.Context, requestID string) error {
	if ctx.Err() != nil {
		return &CancelledError{RequestID: requestID}
	}
	return nil
}

// InstanceNames returns the configured instance names, for the
// odoo://instances resource. It never includes credentials.
func (d *Dispatcher) InstanceNames() ([]string, error) {
	doc, err := d.store.LoadInstances()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Instances))
	for _, inst := range doc.Instances {
		names = append(names, inst.Name)
	}
	return names, nil
}

// ListModelsForInstance resolves instance and lists its models, for the
// odoo://<instance>/models resource.
func (d *Dispatcher) ListModelsForInstance(ctx context.Context, instance string) ([]erpclient.ModelSummary, error) {
	desc, err := d.ResolveInstance(instance)
	if err != nil {
		return nil, err
	}
	client, err := d.pool.Get(desc)
	if err != nil {
		return nil, err
	}
	return client.ListModels(ctx, nil, erpclient.ListOptions{})
}

// ModelMetadataForInstance resolves instance and loads model's field
// metadata through the metadata cache, for the
// odoo://<instance>/metadata/<model> resource.
func (d *Dispatcher) ModelMetadataForInstance(ctx context.Context, instance, model string) (map[string]interface{}, error) {
	desc, err := d.ResolveInstance(instance)
	if err != nil {
		return nil, err
	}
	client, err := d.pool.Get(desc)
	if err != nil {
		return nil, err
	}
	return d.metadata.Get(ctx, instance, model, func(ctx context.Context) (map[string]interface{}, error) {
		return client.GetModelMetadata(ctx, model)
	})
}

// Dispatch executes one tool call and returns the envelope to serialize as
// the MCP tool result's text content.
func (d *Dispatcher) Dispatch(ctx context.Context, requestID string, descriptor cfg.ToolDescriptor, callerArgs map[string]interface{}) (map[string]interface{}, error) {
	if err := checkCancelled(ctx, requestID); err != nil {
		return nil, err
	}

	instanceName := instanceNameFrom(callerArgs)
	desc, err := d.ResolveInstance(instanceName)
	if err != nil {
		return nil, err
	}

	client, err := d.pool.Get(desc)
	if err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx, requestID); err != nil {
		return nil, err
	}

	params := resolveParams(descriptor.Op.Map, callerArgs)

	envelope, err := d.execute(ctx, client, instanceName, descriptor.Op.Type, params)
	if err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx, requestID); err != nil {
		return nil, err
	}
	return envelope, nil
}

func (d *Dispatcher) execute(ctx context.Context, client erpclient.Client, instanceName string, op cfg.OpKind, params map[string]interface{}) (map[string]interface{}, error) {
	switch op {
	case cfg.OpSearch:
		return d.execSearch(ctx, client, params)
	case cfg.OpSearchRead:
		return d.execSearchRead(ctx, client, params)
	case cfg.OpRead:
		return d.execRead(ctx, client, params)
	case cfg.OpCreate:
		return d.execCreate(ctx, client, params)
	case cfg.OpCreateBatch:
		return d.execCreateBatch(ctx, client, params)
	case cfg.OpWrite:
		return d.execWrite(ctx, client, params)
	case cfg.OpUnlink:
		return d.execUnlink(ctx, client, params)
	case cfg.OpSearchCount:
		return d.execSearchCount(ctx, client, params)
	case cfg.OpExecute:
		return d.execExecute(ctx, client, params)
	case cfg.OpWorkflowAction:
		return d.execWorkflowAction(ctx, client, params)
	case cfg.OpGenerateReport:
		return d.execGenerateReport(ctx, client, params)
	case cfg.OpGetModelMetadata:
		return d.execGetModelMetadata(ctx, client, instanceName, params)
	case cfg.OpListModels:
		return d.execListModels(ctx, client, params)
	case cfg.OpCheckAccess:
		return d.execCheckAccess(ctx, client, params)
	case cfg.OpDatabaseCleanup:
		return d.execDatabaseCleanup(ctx, client)
	case cfg.OpDeepCleanup:
		return d.execDeepCleanup(ctx, client)
	default:
		return nil, &UnknownOpError{Op: string(op)}
	}
}

func listOptions(params map[string]interface{}) (erpclient.ListOptions, error) {
	limit, err := optionalInt(params, "limit", 0)
	if err != nil {
		return erpclient.ListOptions{}, err
	}
	offset, err := optionalInt(params, "offset", 0)
	if err != nil {
		return erpclient.ListOptions{}, err
	}
	order, err := optionalString(params, "order", "")
	if err != nil {
		return erpclient.ListOptions{}, err
	}
	return erpclient.ListOptions{Limit: limit, Offset: offset, Order: order}, nil
}

func (d *Dispatcher) execSearch(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	domain, err := optionalArray(params, "domain")
	if err != nil {
		return nil, err
	}
	opts, err := listOptions(params)
	if err != nil {
		return nil, err
	}
	ids, err := client.Search(ctx, model, domain, opts)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ids": ids, "count": len(ids)}, nil
}

func (d *Dispatcher) execSearchRead(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	domain, err := optionalArray(params, "domain")
	if err != nil {
		return nil, err
	}
	fields, err := optionalStringSlice(params, "fields")
	if err != nil {
		return nil, err
	}
	opts, err := listOptions(params)
	if err != nil {
		return nil, err
	}
	records, err := client.SearchRead(ctx, model, domain, fields, opts)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"records": records, "count": len(records)}, nil
}

func (d *Dispatcher) execRead(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	fields, err := optionalStringSlice(params, "fields")
	if err != nil {
		return nil, err
	}
	records, err := client.Read(ctx, model, ids, fields)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"records": records}, nil
}

func (d *Dispatcher) execCreate(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	values, err := requireObject(params, "values")
	if err != nil {
		return nil, err
	}
	id, err := client.Create(ctx, model, values)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": id, "success": true}, nil
}

func (d *Dispatcher) execCreateBatch(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	valuesList, err := requireObjectSlice(params, "values_list")
	if err != nil {
		return nil, err
	}
	if len(valuesList) > erpclient.MaxBatchRows {
		return nil, &InvalidArgumentError{Parameter: "values_list", Reason: fmt.Sprintf("exceeds the %d-row batch limit", erpclient.MaxBatchRows)}
	}
	ids, err := client.CreateBatch(ctx, model, valuesList)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ids": ids, "created_count": len(ids), "success": true}, nil
}

func (d *Dispatcher) execWrite(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	values, err := requireObject(params, "values")
	if err != nil {
		return nil, err
	}
	success, count, err := client.Write(ctx, model, ids, values)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": success, "updated_count": count}, nil
}

func (d *Dispatcher) execUnlink(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	success, count, err := client.Unlink(ctx, model, ids)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": success, "deleted_count": count}, nil
}

func (d *Dispatcher) execSearchCount(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	domain, err := optionalArray(params, "domain")
	if err != nil {
		return nil, err
	}
	count, err := client.SearchCount(ctx, model, domain)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": count}, nil
}

func (d *Dispatcher) execExecute(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	method, err := requireString(params, "method")
	if err != nil {
		return nil, err
	}
	args, err := optionalArray(params, "args")
	if err != nil {
		return nil, err
	}
	kwargs, err := optionalObject(params, "kwargs")
	if err != nil {
		return nil, err
	}
	result, err := client.Execute(ctx, model, method, args, kwargs)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"result": result}, nil
}

func (d *Dispatcher) execWorkflowAction(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	action, err := requireString(params, "action")
	if err != nil {
		return nil, err
	}
	result, err := client.WorkflowAction(ctx, model, ids, action)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"result": result, "executed_on": ids}, nil
}

func (d *Dispatcher) execGenerateReport(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	reportName, err := requireString(params, "report_name")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	data, err := client.GenerateReport(ctx, reportName, ids)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"pdf_base64":  base64.StdEncoding.EncodeToString(data),
		"report_name": reportName,
		"record_ids":  ids,
	}, nil
}

func (d *Dispatcher) execGetModelMetadata(ctx context.Context, client erpclient.Client, instanceName string, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	metadata, err := d.metadata.Get(ctx, instanceName, model, func(ctx context.Context) (map[string]interface{}, error) {
		return client.GetModelMetadata(ctx, model)
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"model": metadata}, nil
}

func (d *Dispatcher) execListModels(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	domain, err := optionalArray(params, "domain")
	if err != nil {
		return nil, err
	}
	opts, err := listOptions(params)
	if err != nil {
		return nil, err
	}
	models, err := client.ListModels(ctx, domain, opts)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(models))
	for _, m := range models {
		out = append(out, map[string]interface{}{"id": m.ID, "model": m.Model, "name": m.Name})
	}
	return map[string]interface{}{"models": out}, nil
}

func (d *Dispatcher) execCheckAccess(ctx context.Context, client erpclient.Client, params map[string]interface{}) (map[string]interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	operation, err := requireString(params, "operation")
	if err != nil {
		return nil, err
	}
	ids, err := optionalArrayToInts(params, "ids")
	if err != nil {
		return nil, err
	}
	result, err := client.CheckAccess(ctx, model, operation, ids)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"has_access":   result.HasAccess,
		"model":        model,
		"operation":    operation,
		"model_level":  result.ModelLevel,
		"record_level": result.RecordLevel,
	}, nil
}

func optionalArrayToInts(params map[string]interface{}, name string) ([]int, error) {
	v, ok := params[name]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, &InvalidArgumentError{Parameter: name, Reason: "expected an array of numbers"}
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		n, err := toInt(item, name)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (d *Dispatcher) execDatabaseCleanup(ctx context.Context, client erpclient.Client) (map[string]interface{}, error) {
	if err := client.DatabaseCleanup(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}

func (d *Dispatcher) execDeepCleanup(ctx context.Context, client erpclient.Client) (map[string]interface{}, error) {
	if err := client.DeepCleanup(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}
