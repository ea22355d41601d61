package provider

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GenAI generates with Gemini, through either the Gemini API or Vertex AI.
type GenAI struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

type GenAIConfig struct {
	APIKey   string
	Model    string
	Vertex   bool
	Project  string
	Location string
	Logger   *slog.Logger
}

func NewGenAI(ctx context.Context, cfg GenAIConfig) (*GenAI, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	cc := &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: cfg.APIKey}
	if cfg.Vertex {
		cc = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GenAI{client: client, model: cfg.Model, logger: cfg.Logger}, nil
}

func (g *GenAI) Name() string { return "genai" }

func (g *GenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, nil)
	if err != nil {
		return "", fmt.Errorf("genai %s: %w", g.model, err)
	}
	return resp.Text(), nil
}
