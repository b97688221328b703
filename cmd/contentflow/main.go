// Command contentflow loads an executor catalog and a pipeline definition
// file, builds the named pipeline, and runs it once against a JSON content
// item read from stdin (or an empty seed document if stdin is empty).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/contentflow-dev/contentflow/pipeline"
	"github.com/contentflow-dev/contentflow/pipeline/emit"

	_ "github.com/contentflow-dev/contentflow/executors"
)

func main() {
	catalogPath := flag.String("catalog", "", "path to executor catalog YAML")
	definitionsPath := flag.String("pipelines", "", "path to pipeline definitions YAML")
	pipelineName := flag.String("pipeline", "", "name of the pipeline to run")
	jsonLogs := flag.Bool("json-logs", false, "emit run events as JSON lines instead of plain text")
	flag.Parse()

	if *catalogPath == "" || *definitionsPath == "" || *pipelineName == "" {
		fmt.Fprintln(os.Stderr, "usage: contentflow -catalog FILE -pipelines FILE -pipeline NAME [-json-logs]")
		os.Exit(2)
	}

	if err := run(*catalogPath, *definitionsPath, *pipelineName, *jsonLogs); err != nil {
		log.Fatalf("contentflow: %v", err)
	}
}

func run(catalogPath, definitionsPath, pipelineName string, jsonLogs bool) error {
	catalogEntries, err := pipeline.LoadCatalogFile(catalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	registry := pipeline.LoadCatalog(catalogEntries)

	factory := pipeline.NewPipelineFactory(registry)
	if err := factory.LoadDefinitionsFile(definitionsPath); err != nil {
		return fmt.Errorf("loading pipeline definitions: %w", err)
	}

	emitter := emit.NewLogEmitter(os.Stderr, jsonLogs)
	exec := pipeline.NewPipelineExecutor(pipelineName, factory, emitter)

	// Resolve sub-pipeline runs with an engine that shares the parent's emitter.
	var engineForSub *pipeline.Engine
	factory.Runner = func(ctx context.Context, graph *pipeline.Graph, input any) (any, error) {
		if engineForSub == nil {
			engineForSub = pipeline.NewEngine("sub-"+graph.Name, graph.Name, emitter)
		}
		return engineForSub.RunGraph(ctx, graph, input)
	}

	seed, err := readSeedContent()
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	result, err := exec.Run(context.Background(), seed)
	if err != nil {
		return fmt.Errorf("running pipeline %q: %w", pipelineName, err)
	}

	fmt.Printf("pipeline %q finished: status=%s duration=%.3fs\n", result.PipelineName, result.Status, result.DurationSeconds)
	encoded, err := json.MarshalIndent(result.Documents, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result documents: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

// readSeedContent reads a single JSON-encoded Content from stdin. An empty
// stdin (e.g. a terminal with no piped input) produces a fresh, empty seed
// document instead of erroring, so the command can drive an input/crawler
// executor pipeline that ignores its seed entirely.
func readSeedContent() (*pipeline.Content, error) {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return pipeline.NewContent(pipeline.ContentIdentifier{CanonicalID: "seed"}), nil
	}
	var content pipeline.Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("parsing seed content JSON: %w", err)
	}
	return &content, nil
}
