package pipeline

import (
	"fmt"
)

// Graph is the fully resolved, ready-to-run representation of one
// pipeline: its executors by instance ID, its edges, and which executor
// starts the run.
type Graph struct {
	Name      string
	Executors map[string]Executor
	Edges     []Edge
	StartID   string

	MaxIterations int
}

// PipelineFactory builds Graphs from PipelineDefinitions, resolving
// executor instances through a Registry. Runner is used when a definition
// references a sub-pipeline executor; it is typically set to the owning
// run engine's graph-execution method once one exists.
type PipelineFactory struct {
	registry    *Registry
	definitions map[string]PipelineDefinition

	Runner SubPipelineRunner
}

// NewPipelineFactory builds a PipelineFactory backed by registry.
func NewPipelineFactory(registry *Registry) *PipelineFactory {
	return &PipelineFactory{
		registry:    registry,
		definitions: make(map[string]PipelineDefinition),
	}
}

// LoadDefinitionsFile parses a pipeline config YAML file and adds every
// definition found in it.
func (f *PipelineFactory) LoadDefinitionsFile(path string) error {
	defs, err := LoadPipelineDefinitions(path)
	if err != nil {
		return err
	}
	for name, def := range defs {
		f.definitions[name] = def
	}
	return nil
}

// LoadDefinition registers a single pipeline definition, e.g. one
// constructed in code rather than parsed from YAML.
func (f *PipelineFactory) LoadDefinition(def PipelineDefinition) {
	f.definitions[def.Name] = def
}

// PipelineNames returns every loaded pipeline's name.
func (f *PipelineFactory) PipelineNames() []string {
	names := make([]string, 0, len(f.definitions))
	for name := range f.definitions {
		names = append(names, name)
	}
	return names
}

const defaultMaxIterations = 100

// Build resolves pipelineName's definition into an executable Graph:
// instantiates every executor (recursively building nested graphs for
// sub-pipeline executors), then wires edges either from an explicit edges
// list or, absent one, from a simple execution_sequence chain.
func (f *PipelineFactory) Build(pipelineName string) (*Graph, error) {
	def, ok := f.definitions[pipelineName]
	if !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("pipeline %q not found; available: %v", pipelineName, f.PipelineNames())}
	}

	maxIterations := def.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	executors, err := f.createExecutors(def)
	if err != nil {
		return nil, err
	}

	var edges []Edge
	if len(def.Edges) > 0 {
		edges, err = f.buildEdgesFromDefs(def.Edges, executors)
		if err != nil {
			return nil, err
		}
	} else {
		edges = buildSequentialEdges(def.ExecutionSequence, executors)
	}

	declOrder := make([]string, len(def.Executors))
	for i, instDef := range def.Executors {
		declOrder[i] = instDef.ID
	}

	startID, err := determineStartExecutor(executors, def.Edges, def.ExecutionSequence, declOrder)
	if err != nil {
		return nil, err
	}

	return &Graph{
		Name:          pipelineName,
		Executors:     executors,
		Edges:         edges,
		StartID:       startID,
		MaxIterations: maxIterations,
	}, nil
}

func (f *PipelineFactory) createExecutors(def PipelineDefinition) (map[string]Executor, error) {
	executors := make(map[string]Executor, len(def.Executors))

	for _, instDef := range def.Executors {
		if instDef.Type == "sub-pipeline" {
			subName, _ := instDef.Settings["pipeline"].(string)
			if subName == "" {
				return nil, &ConfigError{Message: fmt.Sprintf("sub-pipeline executor %q missing settings.pipeline", instDef.ID)}
			}

			subGraph, err := f.Build(subName)
			if err != nil {
				return nil, fmt.Errorf("building sub-pipeline %q for executor %q: %w", subName, instDef.ID, err)
			}

			executors[instDef.ID] = NewSubPipeline(instDef.ID, instDef.Settings, subGraph, f.Runner)
			continue
		}

		instance, err := f.registry.CreateInstance(instDef.Type, instDef.ID, instDef.Settings)
		if err != nil {
			return nil, fmt.Errorf("creating executor %q (type %q): %w", instDef.ID, instDef.Type, err)
		}
		executors[instDef.ID] = instance
	}

	return executors, nil
}

func buildSequentialEdges(sequence []string, executors map[string]Executor) []Edge {
	edges := make([]Edge, 0, len(sequence))
	for i := 0; i < len(sequence)-1; i++ {
		from, to := sequence[i], sequence[i+1]
		if _, ok := executors[from]; !ok {
			continue
		}
		if _, ok := executors[to]; !ok {
			continue
		}
		edges = append(edges, Edge{From: from, To: to, Kind: EdgeSequential})
	}
	return edges
}

func (f *PipelineFactory) buildEdgesFromDefs(defs []EdgeDef, executors map[string]Executor) ([]Edge, error) {
	var edges []Edge
	for _, d := range defs {
		var (
			defEdges []Edge
			err      error
		)
		switch d.Type {
		case "", "sequential":
			defEdges, err = sequentialEdgesFromDef(d, executors)
		case "parallel":
			defEdges, err = parallelEdgesFromDef(d, executors)
		case "join":
			defEdges, err = joinEdgesFromDef(d, executors)
		case "conditional":
			defEdges, err = conditionalEdgesFromDef(d, executors)
		default:
			err = &ConfigError{Message: fmt.Sprintf("unknown edge type %q", d.Type)}
		}
		if err != nil {
			return nil, err
		}
		edges = append(edges, defEdges...)
	}
	return edges, nil
}

func sequentialEdgesFromDef(d EdgeDef, executors map[string]Executor) ([]Edge, error) {
	froms, tos := d.FromIDs(), d.ToIDs()
	if len(froms) != 1 || len(tos) != 1 {
		return nil, &ConfigError{Message: fmt.Sprintf("sequential edge requires exactly one from and one to, got from=%v to=%v", froms, tos)}
	}
	if err := requireExecutors(executors, froms[0], tos[0]); err != nil {
		return nil, err
	}
	return []Edge{{From: froms[0], To: tos[0], Kind: EdgeSequential}}, nil
}

func parallelEdgesFromDef(d EdgeDef, executors map[string]Executor) ([]Edge, error) {
	froms := d.FromIDs()
	if len(froms) != 1 {
		return nil, &ConfigError{Message: fmt.Sprintf("parallel edge requires exactly one from, got %v", froms)}
	}
	from := froms[0]
	if err := requireExecutors(executors, from); err != nil {
		return nil, err
	}

	var edges []Edge
	for _, to := range d.ToIDs() {
		if err := requireExecutors(executors, to); err != nil {
			return nil, err
		}
		edges = append(edges, Edge{From: from, To: to, Kind: EdgeParallel})
	}
	return edges, nil
}

func joinEdgesFromDef(d EdgeDef, executors map[string]Executor) ([]Edge, error) {
	tos := d.ToIDs()
	if len(tos) != 1 {
		return nil, &ConfigError{Message: fmt.Sprintf("join edge requires exactly one to, got %v", tos)}
	}
	to := tos[0]
	if err := requireExecutors(executors, to); err != nil {
		return nil, err
	}

	joinGroup := to
	var edges []Edge
	for _, from := range d.FromIDs() {
		if err := requireExecutors(executors, from); err != nil {
			return nil, err
		}
		edges = append(edges, Edge{From: from, To: to, Kind: EdgeJoin, JoinGroup: joinGroup})
	}
	return edges, nil
}

func conditionalEdgesFromDef(d EdgeDef, executors map[string]Executor) ([]Edge, error) {
	froms := d.FromIDs()
	if len(froms) != 1 {
		return nil, &ConfigError{Message: fmt.Sprintf("conditional edge requires exactly one from, got %v", froms)}
	}
	from := froms[0]
	if err := requireExecutors(executors, from); err != nil {
		return nil, err
	}

	var edges []Edge
	for _, target := range d.ToConditions() {
		if err := requireExecutors(executors, target.Target); err != nil {
			return nil, err
		}
		edges = append(edges, Edge{From: from, To: target.Target, Kind: EdgeConditional, Condition: target.Condition})
	}
	return edges, nil
}

// requireExecutors returns a ConfigError naming the first id in ids that
// does not resolve to an executor instance in executors.
func requireExecutors(executors map[string]Executor, ids ...string) error {
	for _, id := range ids {
		if _, ok := executors[id]; !ok {
			return &ConfigError{Message: fmt.Sprintf("edge references unknown executor id %q", id)}
		}
	}
	return nil
}

// determineStartExecutor picks the executor that begins a run: the first
// edge source (in declaration order) that is never also a target, falling
// back to the first entry of execution_sequence, and finally to the first
// executor declared in the pipeline definition. Candidates are scanned in
// declaration order, unlike a map iteration, so the choice is deterministic.
func determineStartExecutor(executors map[string]Executor, edgeDefs []EdgeDef, executionSequence, declOrder []string) (string, error) {
	if len(executors) == 0 {
		return "", &ConfigError{Message: "pipeline has no executors"}
	}

	if len(edgeDefs) > 0 {
		sources := map[string]bool{}
		targets := map[string]bool{}
		for _, d := range edgeDefs {
			for _, id := range d.FromIDs() {
				sources[id] = true
			}
			if d.Type == "conditional" {
				for _, t := range d.ToConditions() {
					targets[t.Target] = true
				}
			} else {
				for _, id := range d.ToIDs() {
					targets[id] = true
				}
			}
		}
		for _, id := range declOrder {
			if sources[id] && !targets[id] && executors[id] != nil {
				return id, nil
			}
		}
	}

	if len(executionSequence) > 0 {
		if _, ok := executors[executionSequence[0]]; ok {
			return executionSequence[0], nil
		}
	}

	for _, id := range declOrder {
		if _, ok := executors[id]; ok {
			return id, nil
		}
	}

	return "", &ConfigError{Message: "could not determine start executor: no source-only edge, no execution_sequence, and no declared executors"}
}
