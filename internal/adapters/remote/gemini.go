package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// MaxOutputTokens is the largest max_tokens accepted; zero leaves the model default.
const MaxOutputTokens = 65536

// GeminiVision implements Vision on the Gemini API.
type GeminiVision struct {
	client    *genai.Client
	modelName string
	maxTokens int32
}

// NewGeminiVision connects to Gemini with apiKey.
func NewGeminiVision(ctx context.Context, apiKey, modelName string, maxTokens int) (*GeminiVision, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if maxTokens < 0 || maxTokens > MaxOutputTokens {
		return nil, fmt.Errorf("%w: %d not in [0,%d]", ErrMaxTokens, maxTokens, MaxOutputTokens)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiVision{client: client, modelName: modelName, maxTokens: int32(maxTokens)}, nil
}

// Generate sends the image and prompts and concatenates the text parts of the
// first candidate.
func (g *GeminiVision) Generate(ctx context.Context, image []byte, mimeType, system, user string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0)
	if g.maxTokens > 0 {
		m.SetMaxOutputTokens(g.maxTokens)
	}

	res, err := m.GenerateContent(ctx, genai.Blob{MIMEType: mimeType, Data: image}, genai.Text(user))
	if err != nil {
		return "", err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		text, ok := part.(genai.Text)
		if !ok {
			return "", ErrUnexpectedPart
		}
		b.WriteString(string(text))
	}
	return b.String(), nil
}

// Close releases the underlying client.
func (g *GeminiVision) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
