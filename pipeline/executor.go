package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/contentflow-dev/contentflow/pipeline/condition"
	"github.com/contentflow-dev/contentflow/pipeline/emit"
)

// Executor is a processing unit in a pipeline graph. Every executor embeds
// *BaseExecutor, which supplies settings resolution, condition evaluation,
// and the common invocation lifecycle; ProcessInput supplies the
// executor-specific logic.
//
// ProcessInput receives either a *Content or a []*Content (preserving
// whatever shape Invoke decided to hand it, after condition filtering) and
// must return the same shape: a single *Content in, a single *Content out;
// a list in, a list out.
type Executor interface {
	ID() string
	Base() *BaseExecutor
	ProcessInput(ctx context.Context, input any) (any, error)
}

// BaseExecutor holds the configuration and services shared by every
// executor: enabled flag, condition expression, error policy, settings
// resolution, and the condition evaluator.
type BaseExecutor struct {
	id       string
	settings map[string]any

	Enabled             bool
	Condition           string
	FailPipelineOnError bool
	DebugMode           bool

	evaluator *condition.Evaluator
	log       *slog.Logger
}

// NewBaseExecutor constructs a BaseExecutor from a settings map, reading the
// well-known keys "enabled", "condition", "fail_pipeline_on_error", and
// "debug_mode".
func NewBaseExecutor(id string, settings map[string]any) *BaseExecutor {
	if settings == nil {
		settings = map[string]any{}
	}
	b := &BaseExecutor{
		id:        id,
		settings:  settings,
		evaluator: condition.New(),
		log:       slog.New(slog.NewTextHandler(os.Stderr, nil)).With("executor", id),
	}
	b.Enabled = boolSetting(settings, "enabled", true)
	b.Condition = strings.TrimSpace(stringSetting(settings, "condition", ""))
	b.FailPipelineOnError = boolSetting(settings, "fail_pipeline_on_error", false)
	b.DebugMode = boolSetting(settings, "debug_mode", false)
	return b
}

func (b *BaseExecutor) ID() string        { return b.id }
func (b *BaseExecutor) Base() *BaseExecutor { return b }

func boolSetting(settings map[string]any, key string, def bool) bool {
	v, ok := settings[key]
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func stringSetting(settings map[string]any, key string, def string) string {
	v, ok := settings[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// GetSetting resolves a non-required setting, applying ${ENV_VAR}
// substitution. If the referenced environment variable is unset, the
// unresolved placeholder string is returned and a warning is logged,
// matching the original's "warn, don't fail" behavior for optional
// settings.
func (b *BaseExecutor) GetSetting(key string, def any) any {
	value, ok := b.settings[key]
	if !ok {
		value = def
	}
	if s, ok := value.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return def
		}
		value = trimmed
	}
	return b.resolveSettingValue(value)
}

// RequireSetting resolves a required setting, returning a *ConfigError if
// the key is absent, blank, or names an unset environment variable.
func (b *BaseExecutor) RequireSetting(key string) (any, error) {
	value, ok := b.settings[key]
	if !ok || value == nil {
		return nil, &ConfigError{Message: fmt.Sprintf("required setting %q not found for executor %q", key, b.id)}
	}
	if s, ok := value.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return nil, &ConfigError{Message: fmt.Sprintf("required setting %q is empty for executor %q", key, b.id)}
		}
		value = trimmed
	}
	resolved := b.resolveSettingValue(value)
	if s, ok := resolved.(string); ok && (s == "" || isUnresolvedEnvRef(s)) {
		return nil, &ConfigError{Message: fmt.Sprintf("required setting %q is empty for executor %q", key, b.id)}
	}
	return resolved, nil
}

// isUnresolvedEnvRef reports whether s is still in "${NAME}" placeholder
// form, meaning resolveSettingValue could not find NAME in the environment.
func isUnresolvedEnvRef(s string) bool {
	return strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}")
}

func (b *BaseExecutor) resolveSettingValue(value any) any {
	s, ok := value.(string)
	if !ok || !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return value
	}
	envName := s[2 : len(s)-1]
	resolved, present := os.LookupEnv(envName)
	if !present {
		b.log.Warn("environment variable not set", "env_var", envName, "setting", s)
		return value
	}
	return resolved
}

// TryExtractNestedField walks content.Data along the dot-separated
// fieldPath, returning nil if any segment is missing or not a map.
func (b *BaseExecutor) TryExtractNestedField(content *Content, fieldPath string) any {
	var current any = content.Data
	for _, field := range strings.Split(fieldPath, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[field]
		if !ok {
			return nil
		}
	}
	return current
}

// GenerateSHA1Hash returns the hex-encoded SHA1 digest of s.
func (b *BaseExecutor) GenerateSHA1Hash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// EvaluateCondition evaluates expr against content's flattened evaluation
// data (see contentToEvalData). An empty expr or nil content always
// evaluates true.
func (b *BaseExecutor) EvaluateCondition(content *Content, expr string) (bool, error) {
	if content == nil || content.ID.CanonicalID == "" || expr == "" {
		return true, nil
	}

	evalData, err := contentToEvalData(content)
	if err != nil {
		return false, &ConditionError{Expression: expr, Message: "failed to build evaluation context", Cause: err}
	}

	result, err := b.evaluator.EvaluateString(expr, evalData)
	if err != nil {
		return false, &ConditionError{Expression: expr, Message: err.Error(), Cause: err}
	}
	return result, nil
}

// contentToEvalData builds the flat evaluation root a condition expression
// is matched against: SummaryData and Data merged (Data wins on key
// conflict) so that field paths like "document_type.primary_type" resolve
// directly, plus the identifier under "id" for paths like
// "id.source_type".
func contentToEvalData(content *Content) (map[string]any, error) {
	raw, err := json.Marshal(content.ID)
	if err != nil {
		return nil, err
	}
	var idMap map[string]any
	if err := json.Unmarshal(raw, &idMap); err != nil {
		return nil, err
	}

	data := make(map[string]any, len(content.SummaryData)+len(content.Data)+1)
	for k, v := range content.SummaryData {
		data[k] = v
	}
	for k, v := range content.Data {
		data[k] = v
	}
	data["id"] = idMap
	return data, nil
}

// InvokeParams carries the observability context for a single Invoke call.
type InvokeParams struct {
	RunID        string
	PipelineName string
	Emitter      emit.Emitter
}

// Invoke drives one executor through the standard lifecycle: disabled
// pass-through, per-item condition filtering with skipped items recombined
// by identity, the ProcessInput call, output-type validation, and
// fail_pipeline_on_error handling. It is the single place the engine calls
// into an executor.
func Invoke(ctx context.Context, ex Executor, input any, params InvokeParams) (any, error) {
	base := ex.Base()
	emitter := params.Emitter
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}

	if !base.Enabled {
		emitter.Emit(emit.Event{
			RunID: params.RunID, PipelineName: params.PipelineName,
			ExecutorID: base.id, EventType: "executor_skipped", Timestamp: time.Now(),
		})
		return input, nil
	}

	start := time.Now()
	emitter.Emit(emit.Event{
		RunID: params.RunID, PipelineName: params.PipelineName,
		ExecutorID: base.id, EventType: "executor_start", Timestamp: start,
	})

	items, wasList := Items(input)

	var filtered, skipped []*Content
	if base.Condition != "" && items != nil {
		for _, item := range items {
			should, err := base.EvaluateCondition(item, base.Condition)
			if err != nil {
				return nil, err
			}
			if should {
				filtered = append(filtered, item)
			} else {
				skipped = append(skipped, item)
			}
		}
	} else {
		filtered = items
	}

	var processed any
	var err error
	switch {
	case base.Condition != "" && len(filtered) == 0 && len(skipped) > 0:
		// every item was filtered out; pass through untouched.
		processed = input
	case len(filtered) > 0:
		processed, err = ex.ProcessInput(ctx, SingleOrList(filtered, wasList))
		if err == nil {
			processed = recombine(processed, skipped)
		}
	default:
		processed, err = ex.ProcessInput(ctx, input)
	}

	if err != nil {
		emitter.Emit(emit.Event{
			RunID: params.RunID, PipelineName: params.PipelineName,
			ExecutorID: base.id, EventType: "executor_failed", Err: err, Timestamp: time.Now(),
		})
		if base.FailPipelineOnError {
			return nil, &ExecutorError{ExecutorID: base.id, Message: err.Error(), FailPipeline: true, Cause: err}
		}
		return input, nil
	}

	if !validOutputShape(processed) {
		return nil, &ExecutorError{
			ExecutorID: base.id,
			Message:    fmt.Sprintf("must return a Content or []*Content, got %T", processed),
		}
	}

	emitter.Emit(emit.Event{
		RunID: params.RunID, PipelineName: params.PipelineName,
		ExecutorID: base.id, EventType: "executor_complete",
		Data: map[string]any{"duration_ms": time.Since(start).Milliseconds()}, Timestamp: time.Now(),
	})

	return processed, nil
}

func validOutputShape(v any) bool {
	switch v.(type) {
	case *Content, []*Content:
		return true
	default:
		return false
	}
}

// recombine merges skipped items back into processed's output, matching
// the original's "filtered_inputs processed, skipped_inputs appended
// verbatim" behavior. Order is processed-then-skipped, which is what the
// original produces.
func recombine(processed any, skipped []*Content) any {
	if len(skipped) == 0 {
		return processed
	}
	switch p := processed.(type) {
	case *Content:
		return append([]*Content{p}, skipped...)
	case []*Content:
		return append(p, skipped...)
	default:
		return processed
	}
}
