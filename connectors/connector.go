// Package connectors defines the external-service collaborator contract
// used by executors that need to reach outside the pipeline graph: AI
// inference providers, blob storage, search indexes, and similar services.
// Connectors are configuration-driven, settings-resolved, and lifecycle
// scoped (Initialize/TestConnection/Cleanup), mirroring the rest of the
// engine's executor lifecycle.
package connectors

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Connector is implemented by every external-service collaborator. The
// pipeline engine never calls a Connector directly; executors hold one and
// drive it through this contract.
type Connector interface {
	// Name returns the connector instance's configured name.
	Name() string
	// Type returns the connector's type identifier, e.g. "ai_inference".
	Type() string
	// Initialize performs any async setup (client construction, auth)
	// needed before the connector can be used.
	Initialize(ctx context.Context) error
	// TestConnection verifies the connector can reach its backing service.
	TestConnection(ctx context.Context) (bool, error)
	// Cleanup releases any resources held by the connector.
	Cleanup(ctx context.Context) error
}

// Base provides the settings-resolution behavior shared by every concrete
// connector: name/type validation at construction and environment-variable
// substitution for ${VAR}-style setting values.
type Base struct {
	name     string
	connType string
	settings map[string]any
}

// NewBase constructs a Base connector, validating that name and connType
// are both non-empty.
func NewBase(name, connType string, settings map[string]any) (Base, error) {
	if name == "" {
		return Base{}, fmt.Errorf("connectors: connector name cannot be empty")
	}
	if connType == "" {
		return Base{}, fmt.Errorf("connectors: connector type cannot be empty")
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return Base{name: name, connType: connType, settings: settings}, nil
}

func (b Base) Name() string { return b.name }
func (b Base) Type() string { return b.connType }

// Initialize is a no-op hook; concrete connectors override it by embedding
// Base and defining their own Initialize method.
func (b Base) Initialize(ctx context.Context) error { return nil }

// Cleanup is a no-op hook; concrete connectors override it the same way.
func (b Base) Cleanup(ctx context.Context) error { return nil }

// GetSetting resolves a non-required setting, returning def when the key is
// absent. Environment-variable references that fail to resolve are
// returned unresolved rather than erroring, since the setting isn't
// required.
func (b Base) GetSetting(key string, def any) any {
	v, _ := b.resolveSetting(key, false, def)
	return v
}

// RequireSetting resolves a required setting, returning an error if the key
// is absent or if it names an unset environment variable.
func (b Base) RequireSetting(key string) (any, error) {
	return b.resolveSetting(key, true, nil)
}

// resolveSetting mirrors the original connector base's _resolve_setting:
// look up the raw value, apply ${ENV_VAR} substitution if the value is a
// string of that shape, and only error on an unset/absent value when
// required is true. A required-but-unset environment variable always
// errors, even if a default was supplied, matching the original's
// unconditional raise inside the substitution branch.
func (b Base) resolveSetting(key string, required bool, def any) (any, error) {
	value, ok := b.settings[key]
	if !ok {
		value = def
	}

	if value == nil && required {
		return nil, fmt.Errorf("connectors: required setting %q not found for connector %q", key, b.name)
	}

	if s, ok := value.(string); ok && strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envName := s[2 : len(s)-1]
		resolved, present := os.LookupEnv(envName)
		if !present {
			if required {
				return nil, fmt.Errorf("connectors: environment variable %q for setting %q is not set", envName, key)
			}
			return s, nil
		}
		return resolved, nil
	}

	return value, nil
}

func (b Base) String() string {
	return fmt.Sprintf("%s(name=%q, type=%q)", b.connType, b.name, b.connType)
}
