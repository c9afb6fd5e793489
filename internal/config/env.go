package config

import (
	"os"
	"strconv"
	"strings"
)

// Recognized process setting names.
const (
	EnvInstancesInline   = "ODOO_INSTANCES"
	EnvInstancesJSONPath = "ODOO_INSTANCES_JSON"
	EnvURL               = "ODOO_URL"
	EnvDB                = "ODOO_DB"
	EnvAPIKey             = "ODOO_API_KEY"
	EnvUsername           = "ODOO_USERNAME"
	EnvPassword           = "ODOO_PASSWORD"
	EnvVersion            = "ODOO_VERSION"
	EnvEnableCleanupTools = "ODOO_ENABLE_CLEANUP_TOOLS"
	EnvMetadataCacheTTL   = "ODOO_METADATA_CACHE_TTL_SECS"
	EnvToolsJSON          = "MCP_TOOLS_JSON"
	EnvPromptsJSON        = "MCP_PROMPTS_JSON"
	EnvServerJSON         = "MCP_SERVER_JSON"
	EnvAuthEnabled        = "MCP_AUTH_ENABLED"
	EnvAuthToken          = "MCP_AUTH_TOKEN"
	EnvConfigUIUsername   = "CONFIG_UI_USERNAME"
	EnvConfigUIPassword   = "CONFIG_UI_PASSWORD"
	EnvConfigDir          = "ODOO_CONFIG_DIR"
	EnvConfigServerPort   = "ODOO_CONFIG_SERVER_PORT"
)

// ProcessSettings reads process-wide settings (environment variables today;
// an interface so guard evaluation and tests can substitute a fake source).
// Guards are evaluated per call against the live value, never cached,
// so that flipping a setting takes effect without a config reload.
type ProcessSettings interface {
	// Lookup returns the named setting's value and whether it is present.
	Lookup(name string) (string, bool)
}

// OSProcessSettings reads settings from the OS environment.
type OSProcessSettings struct{}

func (OSProcessSettings) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// IsTruthy reports whether an environment-style string represents "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// EvalGuard evaluates a single guard predicate string against settings.
// Recognized forms: "requiresEnvTrue:<name>" and "requiresEnv:<name>".
// An unrecognized guard form fails closed (evaluates false).
func EvalGuard(guard string, settings ProcessSettings) bool {
	switch {
	case strings.HasPrefix(guard, "requiresEnvTrue:"):
		name := strings.TrimPrefix(guard, "requiresEnvTrue:")
		v, ok := settings.Lookup(name)
		return ok && IsTruthy(v)
	case strings.HasPrefix(guard, "requiresEnv:"):
		name := strings.TrimPrefix(guard, "requiresEnv:")
		_, ok := settings.Lookup(name)
		return ok
	default:
		return false
	}
}

// EvalGuards reports whether every guard in guards evaluates true.
func EvalGuards(guards []string, settings ProcessSettings) bool {
	for _, g := range guards {
		if !EvalGuard(g, settings) {
			return false
		}
	}
	return true
}

// MetadataCacheTTLSeconds returns the configured TTL, defaulting to 3600.
func MetadataCacheTTLSeconds(settings ProcessSettings) int {
	v, ok := settings.Lookup(EnvMetadataCacheTTL)
	if !ok {
		return 3600
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 3600
	}
	return n
}

// InstanceDefaults captures process-wide fallback credentials applied to an
// InstanceDescriptor missing the corresponding field.
type InstanceDefaults struct {
	URL      string
	DB       string
	APIKey   string
	Username string
	Password string
	Version  *int
}

// LoadInstanceDefaults reads the ODOO_URL/ODOO_DB/... fallback fields.
func LoadInstanceDefaults(settings ProcessSettings) InstanceDefaults {
	d := InstanceDefaults{}
	if v, ok := settings.Lookup(EnvURL); ok {
		d.URL = NormalizeURL(v)
	}
	if v, ok := settings.Lookup(EnvDB); ok {
		d.DB = v
	}
	if v, ok := settings.Lookup(EnvAPIKey); ok {
		d.APIKey = v
	}
	if v, ok := settings.Lookup(EnvUsername); ok {
		d.Username = v
	}
	if v, ok := settings.Lookup(EnvPassword); ok {
		d.Password = v
	}
	if v, ok := settings.Lookup(EnvVersion); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			d.Version = &n
		}
	}
	return d
}

// ApplyDefaults fills missing fields on inst from fallback, returning a new
// value. The resulting URL is always normalized (a bare "host:port" becomes
// "http://host:port"), whether it came from inst or from fallback.
func ApplyDefaults(inst InstanceDescriptor, fallback InstanceDefaults) InstanceDescriptor {
	if inst.URL == "" {
		inst.URL = fallback.URL
	}
	inst.URL = NormalizeURL(inst.URL)
	if inst.DB == "" {
		inst.DB = fallback.DB
	}
	if inst.APIKey == "" {
		inst.APIKey = fallback.APIKey
	}
	if inst.Username == "" {
		inst.Username = fallback.Username
	}
	if inst.Password == "" {
		inst.Password = fallback.Password
	}
	if _, set := inst.VersionValue(); !set && fallback.Version != nil {
		inst.Version = flexibleInt{set: true, value: *fallback.Version}
	}
	return inst
}

// DefaultConfigDir returns ODOO_CONFIG_DIR if set, else ~/.config/odoo-mcp.
func DefaultConfigDir(settings ProcessSettings) (string, error) {
	if v, ok := settings.Lookup(EnvConfigDir); ok && v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home + "/.config/odoo-mcp", nil
}
