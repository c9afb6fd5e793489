// Package mcpsession wires the Registry and Dispatcher into a
// transport-agnostic mark3labs/mcp-go server.MCPServer: tool/prompt
// registration synced from the live Registry snapshot, guard-based tool
// visibility evaluated live on every tools/list, and the odoo:// resource
// scheme backed by the Dispatcher.
package mcpsession

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/internal/dispatcher"
	"github.com/rachmataditiya/odoo-mcp-server/internal/registry"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
	toolstrings "github.com/rachmataditiya/odoo-mcp-server/pkg/strings"
)

const (
	resourceInstances     = "odoo://instances"
	templateModels        = "odoo://{instance}/models"
	templateModelMetadata = "odoo://{instance}/metadata/{model}"
)

// Session builds and keeps in sync the mcp-go server for one process. A
// single Session is shared by every transport (stdio, SSE, streamable HTTP,
// WebSocket); mcp-go's server.MCPServer is itself transport-agnostic.
type Session struct {
	reg  *registry.Registry
	disp *dispatcher.Dispatcher

	mcpServer *mcpserver.MCPServer

	mu          sync.Mutex
	toolNames   map[string]bool
	promptNames map[string]bool
}

// New constructs the mcp-go server with full capabilities and a live,
// guard-aware tool filter, but does not yet register any tools — call Sync
// once the Registry has completed its first Reload.
func New(reg *registry.Registry, disp *dispatcher.Dispatcher, serverName, serverVersion string) *Session {
	s := &Session{
		reg:         reg,
		disp:        disp,
		toolNames:   make(map[string]bool),
		promptNames: make(map[string]bool),
	}
	s.mcpServer = mcpserver.NewMCPServer(
		serverName,
		serverVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithToolFilter(s.filterTools),
	)
	s.registerStaticResources()
	return s
}

// MCPServer returns the underlying server.MCPServer for transports to bind.
func (s *Session) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// filterTools is the WithToolFilter callback: it ignores the globally
// registered set mcp-go passes in and instead returns exactly the tools
// whose guards currently pass, so a guard flip is visible on the very next
// tools/list call without any resync.
func (s *Session) filterTools(ctx context.Context, _ []mcp.Tool) []mcp.Tool {
	visible := s.reg.VisibleTools()
	out := make([]mcp.Tool, 0, len(visible))
	for _, t := range visible {
		out = append(out, toMCPTool(t))
	}
	return out
}

func toMCPTool(t cfg.ToolDescriptor) mcp.Tool {
	schema := t.InputSchema
	if schema == nil {
		schema = map[string]interface{}{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		raw = []byte(`{"type":"object"}`)
	}
	return mcp.NewToolWithRawSchema(t.Name, t.Description, raw)
}

// Sync registers every tool and prompt currently in the Registry's snapshot
// (including guard-hidden ones — the filter handles visibility, not
// registration) and removes any previously registered tool/prompt the
// snapshot no longer names. Call after every successful Registry.Reload.
func (s *Session) Sync() {
	snap := s.reg.Snapshot()
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	desired := make(map[string]bool, len(snap.Tools))
	var toolsToAdd []mcpserver.ServerTool
	for _, t := range snap.Tools {
		desired[t.Name] = true
		if !s.toolNames[t.Name] {
			toolsToAdd = append(toolsToAdd, mcpserver.ServerTool{
				Tool:    toMCPTool(t),
				Handler: s.toolHandler(t.Name),
			})
		}
	}
	var obsoleteTools []string
	for name := range s.toolNames {
		if !desired[name] {
			obsoleteTools = append(obsoleteTools, name)
		}
	}
	if len(toolsToAdd) > 0 {
		s.mcpServer.AddTools(toolsToAdd...)
		for _, st := range toolsToAdd {
			s.toolNames[st.Tool.Name] = true
			logging.Debug("McpSession", "registered tool %s: %s", st.Tool.Name,
				toolstrings.TruncateDescription(st.Tool.Description, toolstrings.DefaultDescriptionMaxLen))
		}
	}
	if len(obsoleteTools) > 0 {
		s.mcpServer.DeleteTools(obsoleteTools...)
		for _, name := range obsoleteTools {
			delete(s.toolNames, name)
		}
	}

	desiredPrompts := make(map[string]bool, len(snap.Prompts))
	var promptsToAdd []mcpserver.ServerPrompt
	for _, p := range snap.Prompts {
		desiredPrompts[p.Name] = true
		if !s.promptNames[p.Name] {
			promptsToAdd = append(promptsToAdd, mcpserver.ServerPrompt{
				Prompt:  mcp.Prompt{Name: p.Name, Description: p.Description},
				Handler: s.promptHandler(p.Name),
			})
		}
	}
	var obsoletePrompts []string
	for name := range s.promptNames {
		if !desiredPrompts[name] {
			obsoletePrompts = append(obsoletePrompts, name)
		}
	}
	if len(promptsToAdd) > 0 {
		s.mcpServer.AddPrompts(promptsToAdd...)
		for _, sp := range promptsToAdd {
			s.promptNames[sp.Prompt.Name] = true
		}
	}
	if len(obsoletePrompts) > 0 {
		s.mcpServer.DeletePrompts(obsoletePrompts...)
		for _, name := range obsoletePrompts {
			delete(s.promptNames, name)
		}
	}

	logging.Info("McpSession", "synced snapshot: %d tools, %d prompts registered", len(s.toolNames), len(s.promptNames))
}

// toolHandler builds the mcp-go tool handler for one declared tool name. It
// re-resolves the tool descriptor on every call (rather than closing over
// the one seen at registration time) so a tools.json edit that changes a
// tool's op.map takes effect without a re-registration round trip.
func (s *Session) toolHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		descriptor, err := s.reg.ResolveTool(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		args := req.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		envelope, err := s.disp.Dispatch(ctx, requestIDFromContext(ctx), descriptor, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload, err := json.Marshal(envelope)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
		}, nil
	}
}

func (s *Session) promptHandler(name string) func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		p, ok := s.reg.ResolvePrompt(name)
		if !ok {
			return nil, fmt.Errorf("prompt not found: %s", name)
		}
		return &mcp.GetPromptResult{
			Description: p.Description,
			Messages: []mcp.PromptMessage{
				{
					Role:    mcp.RoleUser,
					Content: mcp.TextContent{Type: "text", Text: p.Content},
				},
			},
		}, nil
	}
}

// registerStaticResources wires the odoo:// resource scheme: a static
// instances listing and two URI templates backed by the Dispatcher's
// instance-scoped read helpers.
func (s *Session) registerStaticResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(
			resourceInstances,
			"ERP Instances",
			mcp.WithMIMEType("application/json"),
			mcp.WithResourceDescription("Configured ERP instance names, without credentials."),
		),
		s.handleInstancesResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			templateModels,
			"Instance Models",
			mcp.WithTemplateMIMEType("application/json"),
			mcp.WithTemplateDescription("Models available on one configured ERP instance."),
		),
		s.handleModelsResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			templateModelMetadata,
			"Model Metadata",
			mcp.WithTemplateMIMEType("application/json"),
			mcp.WithTemplateDescription("Field metadata for one model on one configured ERP instance."),
		),
		s.handleModelMetadataResource,
	)
}

func (s *Session) handleInstancesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	names, err := s.disp.InstanceNames()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(map[string]interface{}{"instances": names})
	if err != nil {
		return nil, err
	}
	return textResource(resourceInstances, data), nil
}

func (s *Session) handleModelsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	instance := templateArg(req, "instance")
	if instance == "" {
		return nil, fmt.Errorf("missing instance in resource URI %s", req.Params.URI)
	}
	models, err := s.disp.ListModelsForInstance(ctx, instance)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(models))
	for _, m := range models {
		out = append(out, map[string]interface{}{"id": m.ID, "model": m.Model, "name": m.Name})
	}
	data, err := json.Marshal(map[string]interface{}{"models": out})
	if err != nil {
		return nil, err
	}
	return textResource(req.Params.URI, data), nil
}

func (s *Session) handleModelMetadataResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	instance := templateArg(req, "instance")
	model := templateArg(req, "model")
	if instance == "" || model == "" {
		return nil, fmt.Errorf("missing instance or model in resource URI %s", req.Params.URI)
	}
	metadata, err := s.disp.ModelMetadataForInstance(ctx, instance, model)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(map[string]interface{}{"model": metadata})
	if err != nil {
		return nil, err
	}
	return textResource(req.Params.URI, data), nil
}

// requestIDFromContext returns the mcp-go client session ID, or "stdio" for
// the single-session stdio transport, for use in CancelledError messages and
// log correlation. It carries no security weight: purely a label, never used
// for token lookup or authorization decisions.
func requestIDFromContext(ctx context.Context) string {
	if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
		if id := session.SessionID(); id != "" {
			return id
		}
	}
	return "stdio"
}

func templateArg(req mcp.ReadResourceRequest, name string) string {
	if req.Params.Arguments == nil {
		return ""
	}
	v, ok := req.Params.Arguments[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func textResource(uri string, data []byte) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}
}
