package compat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"example.com/fitsocial/internal/domain"
)

// ErrMalformedResponse is returned when the model reply cannot be normalized.
var ErrMalformedResponse = errors.New("malformed compatibility response")

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiScorer asks a Gemini model for a structured compatibility analysis.
type GeminiScorer struct {
	models contentGenerator
	model  string
}

// NewGeminiScorer creates a scorer backed by the Gemini API.
func NewGeminiScorer(ctx context.Context, apiKey, model string) (*GeminiScorer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiScorer(client.Models, model), nil
}

func newGeminiScorer(models contentGenerator, model string) *GeminiScorer {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiScorer{models: models, model: model}
}

var recommendationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":             {Type: genai.TypeInteger, Description: "Compatibility from 0 to 100"},
		"reasoning":         {Type: genai.TypeString, Description: "Short reason why they fit together (max 2 sentences)"},
		"suggestedActivity": {Type: genai.TypeString, Description: "One concrete joint workout idea"},
	},
	Required: []string{"score", "reasoning", "suggestedActivity"},
}

// Score implements Scorer.
func (g *GeminiScorer) Score(ctx context.Context, viewer, candidate domain.UserProfile) (domain.Recommendation, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(viewer, candidate)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   recommendationSchema,
	})
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return domain.Recommendation{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	return parseRecommendation(resp.Text())
}

func buildPrompt(viewer, candidate domain.UserProfile) string {
	var b strings.Builder
	b.WriteString("Analyse how compatible these two athletes are for training together.\n\n")
	writeAthlete(&b, "Athlete 1", viewer)
	writeAthlete(&b, "Athlete 2", candidate)
	b.WriteString("\nReturn the result as JSON.")
	return b.String()
}

func writeAthlete(b *strings.Builder, label string, p domain.UserProfile) {
	sports := make([]string, 0, len(p.Sports))
	for _, s := range p.Sports {
		sports = append(sports, string(s))
	}
	fmt.Fprintf(b, "%s: %s, %d years, level: %s, sports: %s, bio: %q\n",
		label, p.Name, p.Age, p.Level, strings.Join(sports, ", "), p.Bio)
}

type geminiReply struct {
	Score             *float64 `json:"score"`
	Reasoning         string   `json:"reasoning"`
	SuggestedActivity string   `json:"suggestedActivity"`
}

func parseRecommendation(text string) (domain.Recommendation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Recommendation{}, fmt.Errorf("%w: no text", ErrMalformedResponse)
	}

	var reply geminiReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return domain.Recommendation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if reply.Score == nil || math.IsNaN(*reply.Score) {
		return domain.Recommendation{}, fmt.Errorf("%w: missing score", ErrMalformedResponse)
	}
	if strings.TrimSpace(reply.Reasoning) == "" || strings.TrimSpace(reply.SuggestedActivity) == "" {
		return domain.Recommendation{}, fmt.Errorf("%w: missing text fields", ErrMalformedResponse)
	}

	return domain.Recommendation{
		Score:             clampScore(int(math.Round(*reply.Score))),
		Reasoning:         strings.TrimSpace(reply.Reasoning),
		SuggestedActivity: strings.TrimSpace(reply.SuggestedActivity),
		Source:            domain.SourceAI,
	}, nil
}
