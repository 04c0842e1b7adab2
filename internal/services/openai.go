package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/adventure-engine/internal/metrics"
	"github.com/jwebster45206/adventure-engine/pkg/prompts"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

const (
	DefaultOpenAITextModel  = openai.GPT4oMini
	DefaultOpenAIImageModel = openai.CreateImageModelDallE3

	DefaultOpenAITemperature = 0.9
)

// OpenAIService implements Generator using the OpenAI API
type OpenAIService struct {
	client     *openai.Client
	textModel  string
	imageModel string
	logger     *slog.Logger
}

var _ Generator = (*OpenAIService)(nil)

func NewOpenAIService(apiKey, textModel, imageModel string, logger *slog.Logger) *OpenAIService {
	return newOpenAIService(openai.NewClient(apiKey), textModel, imageModel, logger)
}

// NewOpenAIServiceWithConfig allows pointing the client at a compatible endpoint.
func NewOpenAIServiceWithConfig(cfg openai.ClientConfig, textModel, imageModel string, logger *slog.Logger) *OpenAIService {
	return newOpenAIService(openai.NewClientWithConfig(cfg), textModel, imageModel, logger)
}

func newOpenAIService(client *openai.Client, textModel, imageModel string, logger *slog.Logger) *OpenAIService {
	if textModel == "" {
		textModel = DefaultOpenAITextModel
	}
	if imageModel == "" {
		imageModel = DefaultOpenAIImageModel
	}
	return &OpenAIService{
		client:     client,
		textModel:  textModel,
		imageModel: imageModel,
		logger:     logger,
	}
}

func (o *OpenAIService) GenerateJSON(ctx context.Context, req *prompts.Request) ([]byte, error) {
	if req.Schema == nil {
		return nil, fmt.Errorf("request %q has no schema", req.Kind)
	}
	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   string(req.Kind),
			Schema: json.RawMessage(schema),
			// Strict mode would force discoveryTag and combatInfo to be present.
			Strict: false,
		},
	}
	text, err := o.chatCompletion(ctx, req, format)
	if err != nil {
		return nil, err
	}
	if err := requireContent("OpenAI", text); err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// GenerateText returns the reply as is. An empty reply is not an error;
// callers decide what silence means.
func (o *OpenAIService) GenerateText(ctx context.Context, req *prompts.Request) (string, error) {
	return o.chatCompletion(ctx, req, nil)
}

func (o *OpenAIService) chatCompletion(ctx context.Context, req *prompts.Request, format *openai.ChatCompletionResponseFormat) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	start := time.Now()
	o.logger.Debug("Sending request to OpenAI", "model", o.textModel, "kind", req.Kind, "prompt_bytes", len(req.Prompt))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          o.textModel,
		Messages:       messages,
		Temperature:    DefaultOpenAITemperature,
		ResponseFormat: format,
	})
	if err != nil {
		metrics.ObserveGeneration("openai", string(req.Kind), start, err)
		o.logger.Warn("OpenAI request failed", "kind", req.Kind, "error", err, "duration", time.Since(start))
		return "", fmt.Errorf("openai generate %s: %w", req.Kind, err)
	}
	metrics.ObserveGeneration("openai", string(req.Kind), start, nil)
	o.logger.Debug("OpenAI response received",
		"kind", req.Kind,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start))
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAIService) GenerateImage(ctx context.Context, req *prompts.Request, aspectRatio string) (*state.Image, error) {
	start := time.Now()
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          o.imageModel,
		Size:           imageSize(aspectRatio),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	})
	metrics.ObserveGeneration("openai", string(prompts.KindImage), start, err)
	if err != nil {
		return nil, fmt.Errorf("openai generate image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return &state.Image{MIMEType: "image/png", Data: data}, nil
}

func (o *OpenAIService) IsReady(ctx context.Context) (bool, error) {
	if _, err := o.client.GetModel(ctx, o.textModel); err != nil {
		return false, fmt.Errorf("openai model %s unavailable: %w", o.textModel, err)
	}
	return true, nil
}

func (o *OpenAIService) Close() error {
	return nil
}

// imageSize maps an aspect-ratio hint to the closest supported size.
func imageSize(aspectRatio string) string {
	switch aspectRatio {
	case "16:9":
		return openai.CreateImageSize1792x1024
	case "9:16":
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}
