package executors

import (
	"context"
	"fmt"

	"github.com/contentflow-dev/contentflow/connectors"
	"github.com/contentflow-dev/contentflow/pipeline"
)

func init() {
	pipeline.RegisterExecutorType("ai_agent", func(id string, settings map[string]any) (pipeline.Executor, error) {
		return NewAIAgentExecutor(id, settings)
	})
}

// AIAgentExecutor sends each content item's text field to a configured AI
// inference provider and writes the completion back onto the item,
// processing a batch with ParallelExecutor's bounded-concurrency fan-out.
//
// Settings:
//   - provider (required): "anthropic", "openai", or "google"
//   - api_key (required): supports ${ENV_VAR} substitution
//   - model (optional): provider-specific default if omitted
//   - prompt_template (optional): a fmt-style template with one %s verb for
//     the item's text; defaults to passing the text through unchanged
//   - text_field (optional, default "text"): the Data key read as input and
//     the Data key the completion is written back to
type AIAgentExecutor struct {
	*pipeline.ParallelExecutor

	connector      *connectors.AIInferenceConnector
	promptTemplate string
	textField      string
}

// NewAIAgentExecutor builds the connector from settings and wraps it in a
// ParallelExecutor-backed executor.
func NewAIAgentExecutor(id string, settings map[string]any) (*AIAgentExecutor, error) {
	connector, err := connectors.NewAIInferenceConnector(id, settings)
	if err != nil {
		return nil, err
	}

	parallel := pipeline.NewParallelExecutor(id, settings)
	promptTemplate, _ := parallel.GetSetting("prompt_template", "%s").(string)
	textField, _ := parallel.GetSetting("text_field", "text").(string)
	if textField == "" {
		textField = "text"
	}

	return &AIAgentExecutor{
		ParallelExecutor: parallel,
		connector:        connector,
		promptTemplate:   promptTemplate,
		textField:        textField,
	}, nil
}

// ProcessInput fans the batch out through ParallelExecutor.Process, calling
// ProcessContentItem for each item.
func (a *AIAgentExecutor) ProcessInput(ctx context.Context, input any) (any, error) {
	if err := a.connector.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("ai_agent %s: initializing connector: %w", a.ID(), err)
	}
	return a.Process(ctx, input, a)
}

// ProcessContentItem implements pipeline.ItemProcessor: it sends the
// configured text field through the connector and writes the completion
// back under the same field.
func (a *AIAgentExecutor) ProcessContentItem(ctx context.Context, content *pipeline.Content) (*pipeline.Content, error) {
	text, _ := content.Data[a.textField].(string)
	prompt := fmt.Sprintf(a.promptTemplate, text)

	completion, err := a.connector.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := content.Clone()
	result.Data[a.textField] = completion
	return result, nil
}
