package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/farmsense/server/internal/agent/model"
	logx "github.com/farmsense/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey          string
	BaseURL         string
	DecomposeConfig *model.DecomposeModelConfig
	RespConfig      *model.ResponseModelConfig
}

// ChatModels holds the decomposition and response chat models and the Gemini
// client they share, which is also used for embeddings.
type ChatModels struct {
	Client             *genai.Client
	Decompose          *gemini.ChatModel
	Response           *gemini.ChatModel
	DecomposeModelName string
	ResponseModelName  string
}

// NewGeminiClient creates the Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates both chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.DecomposeConfig == nil || config.RespConfig == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	client, err := NewGeminiClient(ctx, config.APIKey, config.BaseURL)
	if err != nil {
		return nil, err
	}

	// Decomposition is a formatting task; thinking is off unless configured.
	chatModelDecompose, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.DecomposeConfig.Model,
		Temperature: &config.DecomposeConfig.Temperature,
		MaxTokens:   &config.DecomposeConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(config.DecomposeConfig.ThinkingBudget),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating decompose model")
		return nil, fmt.Errorf("error creating decompose model: %w", err)
	}

	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(config.RespConfig.ThinkingBudget),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	return &ChatModels{
		Client:             client,
		Decompose:          chatModelDecompose,
		Response:           chatModelResponse,
		DecomposeModelName: config.DecomposeConfig.Model,
		ResponseModelName:  config.RespConfig.Model,
	}, nil
}
