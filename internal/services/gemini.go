package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jwebster45206/adventure-engine/internal/metrics"
	"github.com/jwebster45206/adventure-engine/pkg/prompts"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

const (
	DefaultGeminiTextModel  = "gemini-3-flash-preview"
	DefaultGeminiImageModel = "gemini-2.5-flash-image"

	DefaultGeminiTemperature = 0.9
)

// GeminiService implements Generator for Google Gemini
type GeminiService struct {
	client     *genai.Client
	textModel  string
	imageModel string
	logger     *slog.Logger
}

var _ Generator = (*GeminiService)(nil)

func NewGeminiService(ctx context.Context, apiKey, textModel, imageModel string, logger *slog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if textModel == "" {
		textModel = DefaultGeminiTextModel
	}
	if imageModel == "" {
		imageModel = DefaultGeminiImageModel
	}
	return &GeminiService{
		client:     client,
		textModel:  textModel,
		imageModel: imageModel,
		logger:     logger,
	}, nil
}

// model configures a GenerativeModel for one request. Models are cheap
// value holders, so a fresh one per call keeps requests independent.
func (g *GeminiService) model(req *prompts.Request) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.textModel)
	m.SetTemperature(DefaultGeminiTemperature)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Schema != nil {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = toGenaiSchema(req.Schema)
	}
	return m
}

func (g *GeminiService) GenerateJSON(ctx context.Context, req *prompts.Request) ([]byte, error) {
	if req.Schema == nil {
		return nil, fmt.Errorf("request %q has no schema", req.Kind)
	}
	text, err := g.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := requireContent("Gemini", text); err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// GenerateText returns the reply as is. An empty reply is not an error.
func (g *GeminiService) GenerateText(ctx context.Context, req *prompts.Request) (string, error) {
	return g.generate(ctx, req)
}

func (g *GeminiService) generate(ctx context.Context, req *prompts.Request) (string, error) {
	start := time.Now()
	g.logger.Debug("Sending request to Gemini", "model", g.textModel, "kind", req.Kind, "prompt_bytes", len(req.Prompt))

	resp, err := g.model(req).GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		metrics.ObserveGeneration("gemini", string(req.Kind), start, err)
		g.logger.Warn("Gemini request failed", "kind", req.Kind, "error", err, "duration", time.Since(start))
		return "", fmt.Errorf("gemini generate %s: %w", req.Kind, err)
	}

	text := responseText(resp)
	metrics.ObserveGeneration("gemini", string(req.Kind), start, nil)
	g.logger.Debug("Gemini response received", "kind", req.Kind, "bytes", len(text), "duration", time.Since(start))
	return text, nil
}

func (g *GeminiService) GenerateImage(ctx context.Context, req *prompts.Request, aspectRatio string) (*state.Image, error) {
	start := time.Now()
	m := g.client.GenerativeModel(g.imageModel)

	// This SDK has no image config, so the ratio travels in the prompt.
	prompt := req.Prompt
	if aspectRatio != "" {
		prompt = fmt.Sprintf("%s Aspect ratio %s.", prompt, aspectRatio)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	metrics.ObserveGeneration("gemini", string(prompts.KindImage), start, err)
	if err != nil {
		return nil, fmt.Errorf("gemini generate image: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
				return &state.Image{MIMEType: blob.MIMEType, Data: blob.Data}, nil
			}
		}
	}
	return nil, nil
}

func (g *GeminiService) IsReady(ctx context.Context) (bool, error) {
	if _, err := g.client.GenerativeModel(g.textModel).Info(ctx); err != nil {
		return false, fmt.Errorf("gemini model %s unavailable: %w", g.textModel, err)
	}
	return true, nil
}

func (g *GeminiService) Close() error {
	return g.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}

// toGenaiSchema translates a prompt schema into Gemini's response schema.
func toGenaiSchema(s *prompts.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case prompts.TypeObject:
		out.Type = genai.TypeObject
	case prompts.TypeArray:
		out.Type = genai.TypeArray
	case prompts.TypeInteger:
		out.Type = genai.TypeInteger
	default:
		out.Type = genai.TypeString
	}
	if len(s.Enum) > 0 {
		out.Format = "enum"
		out.Enum = s.Enum
	}
	if s.Items != nil {
		out.Items = toGenaiSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}
