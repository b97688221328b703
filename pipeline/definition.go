package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PipelineDefinition describes one pipeline as loaded from YAML: its
// executor instances and either an ExecutionSequence (a simple chain) or
// an explicit Edges list covering all four edge kinds.
type PipelineDefinition struct {
	Name              string                `yaml:"name"`
	Executors         []ExecutorInstanceDef `yaml:"executors"`
	ExecutionSequence []string              `yaml:"execution_sequence"`
	Edges             []EdgeDef             `yaml:"edges"`
	MaxIterations     int                   `yaml:"max_iterations"`
}

// ExecutorInstanceDef references a catalog entry by Type and supplies
// instance-specific Settings.
type ExecutorInstanceDef struct {
	ID       string         `yaml:"id"`
	Type     string         `yaml:"type"`
	Settings map[string]any `yaml:"settings"`
}

// EdgeDef is one entry in a pipeline definition's edges list. From and To
// accept either a bare string or a list — yaml.v3 decodes either shape
// into `any` as a string or a []interface{} — normalized by FromIDs,
// ToIDs, and ToConditions.
type EdgeDef struct {
	Type         string `yaml:"type"`
	From         any    `yaml:"from"`
	To           any    `yaml:"to"`
	WaitStrategy string `yaml:"wait_strategy"`
}

// ConditionalTarget is one entry of a conditional edge's To list.
type ConditionalTarget struct {
	Target    string `yaml:"target"`
	Condition string `yaml:"condition"`
}

// FromIDs normalizes From into a slice regardless of whether the YAML
// supplied a single ID or a list.
func (e EdgeDef) FromIDs() []string {
	return stringsOf(e.From)
}

// ToIDs normalizes To into a slice of target IDs for sequential, parallel,
// and join edges (not conditional, which uses ToConditions instead).
func (e EdgeDef) ToIDs() []string {
	return stringsOf(e.To)
}

// ToConditions normalizes To into a slice of ConditionalTarget for
// conditional edges, where each entry is a {target, condition} map (a bare
// string entry is treated as an unconditional "default" target).
func (e EdgeDef) ToConditions() []ConditionalTarget {
	items, ok := e.To.([]any)
	if !ok {
		return nil
	}
	targets := make([]ConditionalTarget, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			cond, _ := v["condition"].(string)
			targets = append(targets, ConditionalTarget{
				Target:    fmt.Sprint(v["target"]),
				Condition: cond,
			})
		case string:
			targets = append(targets, ConditionalTarget{Target: v, Condition: ""})
		}
	}
	return targets
}

func stringsOf(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	default:
		return nil
	}
}

type pipelinesFile struct {
	Pipelines []PipelineDefinition `yaml:"pipelines"`
	Pipeline  *PipelineDefinition  `yaml:"pipeline"`
}

// LoadPipelineDefinitions parses every pipeline definition from a YAML
// config file, supporting both the "pipelines:" list form and the single
// "pipeline:" form (or both at once).
func LoadPipelineDefinitions(path string) (map[string]PipelineDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config %s: %w", path, err)
	}

	var parsed pipelinesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse pipeline config %s: %w", path, err)
	}

	defs := make(map[string]PipelineDefinition, len(parsed.Pipelines)+1)
	for _, def := range parsed.Pipelines {
		defs[def.Name] = def
	}
	if parsed.Pipeline != nil {
		defs[parsed.Pipeline.Name] = *parsed.Pipeline
	}
	return defs, nil
}
