package agent

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/pkg/errors"

	"github.com/odaihq/odai-server/pkg/config"
	"github.com/odaihq/odai-server/pkg/tools"
)

// Orchestrator produces one model round over the current transcript.
// The dispatcher calls Step repeatedly until a round ends without
// tool calls.
type Orchestrator interface {
	Step(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error)
}

// ModelOrchestrator is the production Orchestrator backed by an
// OpenAI-compatible chat model with the registered capabilities bound.
type ModelOrchestrator struct {
	model einomodel.BaseChatModel
}

// NewModelOrchestrator builds the chat model from config and binds the
// capability registry to it.
func NewModelOrchestrator(ctx context.Context, cfg *config.AppConfig) (*ModelOrchestrator, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.Model.BaseURL,
		APIKey:  cfg.Model.APIKey,
		Model:   cfg.ModelName(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create chat model")
	}

	var bound einomodel.BaseChatModel = chatModel
	if infos := tools.ToolInfos(); len(infos) > 0 {
		toolsModel, err := chatModel.WithTools(infos)
		if err != nil {
			return nil, errors.Wrap(err, "bind capabilities to chat model")
		}
		bound = toolsModel
	}

	return &ModelOrchestrator{model: bound}, nil
}

func (o *ModelOrchestrator) Step(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	return o.model.Stream(ctx, messages)
}
