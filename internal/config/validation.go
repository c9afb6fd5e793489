package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure with context.
type ValidationError struct {
	Field   string
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field %q: %s", ve.Field, ve.Message)
}

// ValidationErrors collects zero or more ValidationError.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(ve), strings.Join(parts, "; "))
}

func (ve *ValidationErrors) add(field, msg string, args ...interface{}) {
	*ve = append(*ve, ValidationError{Field: field, Message: fmt.Sprintf(msg, args...)})
}

// HasErrors reports whether any ValidationError has been collected.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// NormalizeURL normalizes a bare "host:port" instance URL to "http://host:port".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

// ValidateInstances validates an InstancesDocument: unique non-empty names,
// absolute URLs, and a credential set consistent with the selected dialect.
func ValidateInstances(doc InstancesDocument) error {
	var errs ValidationErrors
	seen := map[string]bool{}

	for i := range doc.Instances {
		inst := &doc.Instances[i]
		field := fmt.Sprintf("instances[%d]", i)

		if strings.TrimSpace(inst.Name) == "" {
			errs.add(field+".name", "must not be empty")
			continue
		}
		if seen[inst.Name] {
			errs.add(field+".name", "duplicate instance name %q", inst.Name)
			continue
		}
		seen[inst.Name] = true

		inst.URL = NormalizeURL(inst.URL)
		if inst.URL == "" {
			errs.add(field+".url", "must not be empty")
		} else if !strings.HasPrefix(inst.URL, "http://") && !strings.HasPrefix(inst.URL, "https://") {
			errs.add(field+".url", "must be an absolute http(s) origin, got %q", inst.URL)
		}

		legacy := inst.IsLegacy()
		if legacy {
			if strings.TrimSpace(inst.DB) == "" {
				errs.add(field+".db", "required for legacy instances (version < 19)")
			}
			if inst.Username == "" || inst.Password == "" {
				errs.add(field, "legacy instance requires username and password")
			}
		} else {
			if inst.APIKey == "" {
				if inst.Username == "" || inst.Password == "" {
					errs.add(field, "modern instance requires apiKey (or username+password as a fallback)")
				}
			}
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// allowedSchemaTypes enumerates the primitive/array/object types ToolDescriptor
// schemas may declare for a property.
var allowedSchemaTypes = map[string]bool{
	"string": true, "integer": true, "number": true, "boolean": true,
	"array": true, "object": true, "null": true,
}

// ValidateTools validates a ToolsDocument: unique lowercase names, a
// constrained inputSchema shape, and a recognized op binding.
func ValidateTools(doc ToolsDocument) error {
	var errs ValidationErrors
	seen := map[string]bool{}

	for i := range doc.Tools {
		t := &doc.Tools[i]
		field := fmt.Sprintf("tools[%d]", i)

		if strings.TrimSpace(t.Name) == "" {
			errs.add(field+".name", "must not be empty")
			continue
		}
		if t.Name != strings.ToLower(t.Name) {
			errs.add(field+".name", "must be lowercase, got %q", t.Name)
		}
		if seen[t.Name] {
			errs.add(field+".name", "duplicate tool name %q", t.Name)
			continue
		}
		seen[t.Name] = true

		if err := validateInputSchema(t.InputSchema); err != nil {
			errs.add(field+".inputSchema", "%s", err)
		}

		if !t.Op.Type.IsValid() {
			errs.add(field+".op.type", "unrecognized op kind %q", t.Op.Type)
		}

		for _, g := range t.Guards {
			if !strings.HasPrefix(g, "requiresEnvTrue:") && !strings.HasPrefix(g, "requiresEnv:") {
				errs.add(field+".guards", "unrecognized guard predicate %q", g)
			}
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateInputSchema rejects $ref, anyOf/oneOf/allOf, and type-array unions
// at the schema root and, recursively, inside every "properties" entry and
// "items" schema, to preserve compatibility with MCP clients that only
// understand a flat object-of-properties shape. Sub-schemas under any other
// keyword (additionalProperties, $defs, ...) are not inspected.
func validateInputSchema(schema map[string]interface{}) error {
	if schema == nil {
		return fmt.Errorf("must not be nil")
	}
	if t, ok := schema["type"]; !ok || t != "object" {
		return fmt.Errorf("top-level type must be \"object\"")
	}
	return walkSchema(schema, "$")
}

func walkSchema(node map[string]interface{}, path string) error {
	for _, forbidden := range []string{"$ref", "anyOf", "oneOf", "allOf"} {
		if _, ok := node[forbidden]; ok {
			return fmt.Errorf("%s: %q is not permitted in tool schemas", path, forbidden)
		}
	}
	if t, ok := node["type"]; ok {
		switch v := t.(type) {
		case string:
			if !allowedSchemaTypes[v] {
				return fmt.Errorf("%s: unrecognized type %q", path, v)
			}
		case []interface{}:
			return fmt.Errorf("%s: type-array unions are not permitted", path)
		default:
			return fmt.Errorf("%s: type must be a string", path)
		}
	}

	if props, ok := node["properties"].(map[string]interface{}); ok {
		for name, raw := range props {
			child, ok := raw.(map[string]interface{})
			if !ok {
				return fmt.Errorf("%s.properties.%s: must be an object", path, name)
			}
			if err := walkSchema(child, fmt.Sprintf("%s.properties.%s", path, name)); err != nil {
				return err
			}
		}
	}
	if items, ok := node["items"].(map[string]interface{}); ok {
		if err := walkSchema(items, path+".items"); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePrompts validates a PromptsDocument: unique non-empty names.
func ValidatePrompts(doc PromptsDocument) error {
	var errs ValidationErrors
	seen := map[string]bool{}
	for i, p := range doc.Prompts {
		field := fmt.Sprintf("prompts[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			errs.add(field+".name", "must not be empty")
			continue
		}
		if seen[p.Name] {
			errs.add(field+".name", "duplicate prompt name %q", p.Name)
		}
		seen[p.Name] = true
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateServerMetadata validates a ServerMetadata document.
func ValidateServerMetadata(meta ServerMetadata) error {
	var errs ValidationErrors
	if strings.TrimSpace(meta.ServerName) == "" {
		errs.add("serverName", "must not be empty")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
