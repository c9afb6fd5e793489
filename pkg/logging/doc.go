// Package logging provides the structured logging used across odoo-mcp-server.
//
// It wraps log/slog behind a small subsystem-tagged API so call sites read as
//
//	logging.Info("ConfigStore", "loaded %s from %s", kind, path)
//	logging.Error("ErpClient", err, "search_read failed for model %s", model)
//
// rather than constructing slog.Attr slices inline everywhere. Output is a
// single slog.TextHandler writer configured once at process startup via
// InitForCLI; every call site after that is a plain function call.
//
// # Subsystems in use
//
//   - ConfigStore, ConfigWatcher: configuration load/save/watch
//   - Registry: snapshot rebuild and guard evaluation
//   - ErpClient: wire calls to Modern/Legacy backends
//   - ClientPool: client pooling
//   - McpSession, Transport: protocol state machine and framing
//   - ConfigHttpApi: the configuration REST surface
//   - Bootstrap: process startup/shutdown
//
// # Audit events
//
// Security-sensitive actions (auth token generation, credential changes,
// destructive-tool invocation) additionally call Audit, which emits a single
// INFO-level line with an [AUDIT] prefix so log shippers can filter on it
// without needing a second sink.
package logging
