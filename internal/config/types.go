// Package config implements the ConfigStore, validation, and ConfigWatcher
// components: typed load/save/validate/backup of the four JSON documents
// (instances, tools, prompts, server) under the configuration directory.
package config

import (
	"encoding/json"
	"strconv"
)

// Kind identifies one of the four configuration documents.
type Kind string

const (
	KindInstances Kind = "instances"
	KindTools     Kind = "tools"
	KindPrompts   Kind = "prompts"
	KindServer    Kind = "server"
)

// FileName returns the on-disk file name for a document kind.
func (k Kind) FileName() string {
	return string(k) + ".json"
}

// OpKind enumerates the primitive ERP operations a ToolDescriptor can bind to.
type OpKind string

const (
	OpSearch            OpKind = "search"
	OpSearchRead        OpKind = "search_read"
	OpRead              OpKind = "read"
	OpCreate            OpKind = "create"
	OpWrite             OpKind = "write"
	OpUnlink            OpKind = "unlink"
	OpSearchCount       OpKind = "search_count"
	OpWorkflowAction    OpKind = "workflow_action"
	OpExecute           OpKind = "execute"
	OpGenerateReport    OpKind = "generate_report"
	OpGetModelMetadata  OpKind = "get_model_metadata"
	OpListModels        OpKind = "list_models"
	OpCheckAccess       OpKind = "check_access"
	OpCreateBatch       OpKind = "create_batch"
	OpDatabaseCleanup   OpKind = "database_cleanup"
	OpDeepCleanup       OpKind = "deep_cleanup"
)

// ValidOpKinds lists every recognized OpKind, in declaration order.
var ValidOpKinds = []OpKind{
	OpSearch, OpSearchRead, OpRead, OpCreate, OpWrite, OpUnlink, OpSearchCount,
	OpWorkflowAction, OpExecute, OpGenerateReport, OpGetModelMetadata,
	OpListModels, OpCheckAccess, OpCreateBatch, OpDatabaseCleanup, OpDeepCleanup,
}

// IsValid reports whether k is a recognized OpKind.
func (k OpKind) IsValid() bool {
	for _, v := range ValidOpKinds {
		if v == k {
			return true
		}
	}
	return false
}

// OpBinding binds a tool's declared operation to a primitive and an argument map.
type OpBinding struct {
	Type OpKind            `json:"type"`
	Map  map[string]string `json:"map"`
}

// ToolDescriptor is one callable tool as declared in tools.json.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	Op          OpBinding              `json:"op"`
	Guards      []string               `json:"guards,omitempty"`
}

// ToolsDocument is the top-level shape of tools.json.
type ToolsDocument struct {
	Tools []ToolDescriptor `json:"tools"`
}

// PromptDescriptor is one static prompt as declared in prompts.json.
type PromptDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// PromptsDocument is the top-level shape of prompts.json.
type PromptsDocument struct {
	Prompts []PromptDescriptor `json:"prompts"`
}

// ServerMetadata carries the server's self-description, the ConfigHttpApi's
// own auth state (enabled flag, bearer token, UI credential hash), plus an
// open bag of arbitrary keys preserved verbatim across load/save round
// trips. The auth fields live here rather than in a fifth document so they
// reload on change through the same ConfigStore path as the rest of
// server.json.
type ServerMetadata struct {
	ServerName             string `json:"serverName"`
	Instructions           string `json:"instructions"`
	ProtocolVersionDefault string `json:"protocolVersionDefault"`

	AuthEnabled    bool   `json:"authEnabled"`
	AuthToken      string `json:"authToken"`
	UIUsername     string `json:"uiUsername"`
	UIPasswordHash string `json:"uiPasswordHash"`

	Extra map[string]json.RawMessage `json:"-"`
}

// MarshalJSON flattens the known fields and the open Extra bag into one object.
func (s ServerMetadata) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range s.Extra {
		out[k] = v
	}
	set := func(k string, v interface{}) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[k] = b
		return nil
	}
	if err := set("serverName", s.ServerName); err != nil {
		return nil, err
	}
	if err := set("instructions", s.Instructions); err != nil {
		return nil, err
	}
	if err := set("protocolVersionDefault", s.ProtocolVersionDefault); err != nil {
		return nil, err
	}
	if err := set("authEnabled", s.AuthEnabled); err != nil {
		return nil, err
	}
	if err := set("authToken", s.AuthToken); err != nil {
		return nil, err
	}
	if err := set("uiUsername", s.UIUsername); err != nil {
		return nil, err
	}
	if err := set("uiPasswordHash", s.UIPasswordHash); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON extracts the known fields and keeps the rest in Extra.
func (s *ServerMetadata) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["serverName"]; ok {
		if err := json.Unmarshal(v, &s.ServerName); err != nil {
			return err
		}
		delete(raw, "serverName")
	}
	if v, ok := raw["instructions"]; ok {
		if err := json.Unmarshal(v, &s.Instructions); err != nil {
			return err
		}
		delete(raw, "instructions")
	}
	if v, ok := raw["protocolVersionDefault"]; ok {
		if err := json.Unmarshal(v, &s.ProtocolVersionDefault); err != nil {
			return err
		}
		delete(raw, "protocolVersionDefault")
	}
	if v, ok := raw["authEnabled"]; ok {
		if err := json.Unmarshal(v, &s.AuthEnabled); err != nil {
			return err
		}
		delete(raw, "authEnabled")
	}
	if v, ok := raw["authToken"]; ok {
		if err := json.Unmarshal(v, &s.AuthToken); err != nil {
			return err
		}
		delete(raw, "authToken")
	}
	if v, ok := raw["uiUsername"]; ok {
		if err := json.Unmarshal(v, &s.UIUsername); err != nil {
			return err
		}
		delete(raw, "uiUsername")
	}
	if v, ok := raw["uiPasswordHash"]; ok {
		if err := json.Unmarshal(v, &s.UIPasswordHash); err != nil {
			return err
		}
		delete(raw, "uiPasswordHash")
	}
	s.Extra = raw
	return nil
}

// flexibleInt unmarshals from either a JSON number or a numeric string, which
// Odoo instances sometimes report (e.g. "17.0" for version).
type flexibleInt struct {
	set   bool
	value int
}

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		f.set = true
		f.value = asInt
		return nil
	}
	var asFloat float64
	if err := json.Unmarshal(data, &asFloat); err == nil {
		f.set = true
		f.value = int(asFloat)
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if asString == "" {
			f.set = false
			return nil
		}
		// Accept values like "17.0" by truncating at the first non-digit.
		end := 0
		for end < len(asString) && (asString[end] >= '0' && asString[end] <= '9') {
			end++
		}
		if end == 0 {
			return nil
		}
		n, err := strconv.Atoi(asString[:end])
		if err != nil {
			return err
		}
		f.set = true
		f.value = n
		return nil
	}
	return nil
}

func (f flexibleInt) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// InstanceDescriptor is one configured ERP target.
type InstanceDescriptor struct {
	Name     string      `json:"name"`
	URL      string      `json:"url"`
	DB       string      `json:"db,omitempty"`
	Version  flexibleInt `json:"version,omitempty"`
	APIKey   string      `json:"apiKey,omitempty"`
	Username string      `json:"username,omitempty"`
	Password string      `json:"password,omitempty"`
}

// VersionValue returns the normalized major version, and whether one was set.
func (d InstanceDescriptor) VersionValue() (int, bool) {
	return d.Version.value, d.Version.set
}

// IsLegacy reports whether this instance speaks the Legacy JSON-RPC dialect.
// An absent version defaults to Modern.
func (d InstanceDescriptor) IsLegacy() bool {
	v, set := d.VersionValue()
	return set && v < 19
}

// InstancesDocument is the top-level shape of instances.json.
type InstancesDocument struct {
	Instances []InstanceDescriptor `json:"instances"`
}
