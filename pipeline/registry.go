package pipeline

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Factory constructs an executor instance from an instance ID and
// already-validated settings. Leaf executor packages call
// RegisterExecutorType from an init() function to make themselves
// available to a Registry without the registry needing to import them.
type Factory func(id string, settings map[string]any) (Executor, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterExecutorType makes factory available under executorType.
// Registering the same type twice panics, since it almost always means two
// packages collided on a name.
func RegisterExecutorType(executorType string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, exists := factories[executorType]; exists {
		panic(fmt.Sprintf("pipeline: executor type %q already registered", executorType))
	}
	factories[executorType] = factory
}

func lookupFactory(executorType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factories[executorType]
	return f, ok
}

// SettingSchema describes one setting an executor type accepts, used to
// validate and coerce instance settings and to drive catalog-browsing UIs.
type SettingSchema struct {
	Type        string   `yaml:"type"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Default     any      `yaml:"default"`
	Options     []string `yaml:"options"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	UIComponent string   `yaml:"ui_component"`
}

// CatalogEntry describes one executor type available for instantiation:
// its registered factory key (Type) and the settings it accepts.
type CatalogEntry struct {
	ID             string                   `yaml:"id"`
	Name           string                   `yaml:"name"`
	Description    string                   `yaml:"description"`
	Type           string                   `yaml:"type"`
	Tags           []string                 `yaml:"tags"`
	Category       string                   `yaml:"category"`
	Version        string                   `yaml:"version"`
	SettingsSchema map[string]SettingSchema `yaml:"settings_schema"`
}

type catalogFile struct {
	Catalog []CatalogEntry `yaml:"executor_catalog"`
}

// LoadCatalogFile parses a YAML executor catalog from path, the shape
// produced by the "executor_catalog:" top-level key.
func LoadCatalogFile(path string) ([]CatalogEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load executor catalog %s: %w", path, err)
	}
	var parsed catalogFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse executor catalog %s: %w", path, err)
	}
	return parsed.Catalog, nil
}

// ValidateSettings checks settings against the entry's settings schema,
// applying defaults for missing keys, coercing string representations of
// integer/number/boolean values, and enforcing min/max range and
// required-options constraints. Settings not named in the schema pass
// through unchanged.
func (e CatalogEntry) ValidateSettings(settings map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(e.SettingsSchema)+len(settings))

	for key, schema := range e.SettingsSchema {
		value, present := settings[key]

		if schema.Required && !present {
			return nil, &ConfigError{Message: fmt.Sprintf("required setting %q missing for executor %q", key, e.ID)}
		}
		if !present {
			value = schema.Default
		}

		if value != nil {
			coerced, err := coerceSettingType(key, e.ID, schema.Type, value)
			if err != nil {
				return nil, err
			}
			value = coerced

			if err := checkRange(key, e.ID, schema, value); err != nil {
				return nil, err
			}
			if schema.Required && len(schema.Options) > 0 && !containsString(schema.Options, fmt.Sprint(value)) {
				return nil, &ConfigError{Message: fmt.Sprintf("setting %q must be one of %v for executor %q, got %v", key, schema.Options, e.ID, value)}
			}
		}

		validated[key] = value
	}

	for key, value := range settings {
		if _, ok := validated[key]; !ok {
			validated[key] = value
		}
	}

	return validated, nil
}

func coerceSettingType(key, executorID, schemaType string, value any) (any, error) {
	switch schemaType {
	case "integer":
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			return int(v), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, &ConfigError{Message: fmt.Sprintf("setting %q must be integer for executor %q, got %q", key, executorID, v)}
			}
			return n, nil
		default:
			return nil, &ConfigError{Message: fmt.Sprintf("setting %q must be integer for executor %q, got %T", key, executorID, value)}
		}
	case "number":
		switch v := value.(type) {
		case int:
			return float64(v), nil
		case float64:
			return v, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, &ConfigError{Message: fmt.Sprintf("setting %q must be a number for executor %q, got %q", key, executorID, v)}
			}
			return f, nil
		default:
			return nil, &ConfigError{Message: fmt.Sprintf("setting %q must be a number for executor %q, got %T", key, executorID, value)}
		}
	case "boolean":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			lower := strings.ToLower(strings.TrimSpace(v))
			return lower == "true" || lower == "1" || lower == "yes", nil
		default:
			return nil, &ConfigError{Message: fmt.Sprintf("setting %q must be boolean for executor %q, got %T", key, executorID, value)}
		}
	case "string":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprint(value), nil
	default:
		return value, nil
	}
}

func checkRange(key, executorID string, schema SettingSchema, value any) error {
	if schema.Min == nil && schema.Max == nil {
		return nil
	}
	n, ok := toFloat64(value)
	if !ok {
		return nil
	}
	if schema.Min != nil && n < *schema.Min {
		return &ConfigError{Message: fmt.Sprintf("setting %q must be >= %v for executor %q, got %v", key, *schema.Min, executorID, value)}
	}
	if schema.Max != nil && n > *schema.Max {
		return &ConfigError{Message: fmt.Sprintf("setting %q must be <= %v for executor %q, got %v", key, *schema.Max, executorID, value)}
	}
	return nil
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func containsString(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

// Registry holds the executor catalog and caches constructed instances by
// (type, instance ID). CreateInstance always constructs a new instance and
// replaces any cached one under the same key; it does not return a cached
// instance.
type Registry struct {
	mu        sync.RWMutex
	catalog   map[string]CatalogEntry
	instances map[string]Executor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		catalog:   make(map[string]CatalogEntry),
		instances: make(map[string]Executor),
	}
}

// LoadCatalog builds a Registry pre-populated with entries.
func LoadCatalog(entries []CatalogEntry) *Registry {
	r := NewRegistry()
	for _, entry := range entries {
		r.catalog[entry.ID] = entry
	}
	return r
}

// RegisterCatalogEntry adds or replaces one catalog entry.
func (r *Registry) RegisterCatalogEntry(entry CatalogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog[entry.ID] = entry
}

// CatalogEntry returns the catalog entry for executorID, if registered.
func (r *Registry) CatalogEntry(executorID string) (CatalogEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.catalog[executorID]
	return e, ok
}

// ListCatalogEntries returns every registered catalog entry.
func (r *Registry) ListCatalogEntries() []CatalogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]CatalogEntry, 0, len(r.catalog))
	for _, e := range r.catalog {
		entries = append(entries, e)
	}
	return entries
}

// CreateInstance validates settings against the named catalog entry's
// schema, builds the executor through its registered Factory, and caches
// the result under (executorID, instanceID).
func (r *Registry) CreateInstance(executorID, instanceID string, settings map[string]any) (Executor, error) {
	r.mu.RLock()
	entry, ok := r.catalog[executorID]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("executor configuration not found: %s", executorID)}
	}

	substituted, unresolved := substituteEnvSettings(settings)
	validated, err := entry.ValidateSettings(substituted)
	if err != nil {
		return nil, err
	}
	for key := range unresolved {
		if schema, ok := entry.SettingsSchema[key]; ok && schema.Required {
			return nil, &ConfigError{Message: fmt.Sprintf("required setting %q references unset environment variable for executor %q", key, entry.ID)}
		}
	}

	factory, ok := lookupFactory(entry.Type)
	if !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("no factory registered for executor type %q (catalog id %s)", entry.Type, executorID)}
	}

	instance, err := factory(instanceID, validated)
	if err != nil {
		return nil, fmt.Errorf("create executor instance %q: %w", instanceID, err)
	}

	cacheKey := executorID + "\x00" + instanceID
	r.mu.Lock()
	r.instances[cacheKey] = instance
	r.mu.Unlock()

	return instance, nil
}

var envVarPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// substituteEnvSettings replaces any string setting value of the exact form
// "${NAME}" with the current value of the NAME environment variable,
// applied before schema validation and coercion so a ${PORT} setting can
// still be coerced to an integer. A reference to an environment variable
// that isn't set is left unresolved (its literal "${NAME}" form) rather than
// silently becoming an empty string, and its key is reported in the
// returned set so CreateInstance can raise ConfigError for required
// settings while leaving optional ones to pass through unresolved,
// matching the original's warn-don't-fail behavior for optional settings.
func substituteEnvSettings(settings map[string]any) (map[string]any, map[string]bool) {
	if settings == nil {
		return nil, nil
	}
	out := make(map[string]any, len(settings))
	unresolved := make(map[string]bool)
	for key, value := range settings {
		if s, ok := value.(string); ok {
			if m := envVarPattern.FindStringSubmatch(s); m != nil {
				if resolved, present := os.LookupEnv(m[1]); present {
					out[key] = resolved
				} else {
					out[key] = s
					unresolved[key] = true
				}
				continue
			}
		}
		out[key] = value
	}
	return out, unresolved
}

// CachedInstance returns a previously created instance, if still cached.
func (r *Registry) CachedInstance(executorID, instanceID string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.instances[executorID+"\x00"+instanceID]
	return instance, ok
}

// ClearCache drops every cached instance.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]Executor)
}

// ExecutorsByCategory returns every catalog entry whose Category matches.
func (r *Registry) ExecutorsByCategory(category string) []CatalogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []CatalogEntry
	for _, e := range r.catalog {
		if e.Category == category {
			matches = append(matches, e)
		}
	}
	return matches
}

// ExecutorsByTag returns every catalog entry carrying tag.
func (r *Registry) ExecutorsByTag(tag string) []CatalogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []CatalogEntry
	for _, e := range r.catalog {
		if containsString(e.Tags, tag) {
			matches = append(matches, e)
		}
	}
	return matches
}
