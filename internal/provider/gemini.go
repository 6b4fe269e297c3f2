package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
)

// geminiProvider is the remote fallback, reached through Genkit's Google AI
// plugin.
type geminiProvider struct {
	genkit *genkit.Genkit
	model  string
}

func NewGemini(ctx context.Context, cfg config.GeminiConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not set")
	}

	googleAI := &googlegenai.GoogleAI{
		APIKey: cfg.APIKey,
	}
	g := genkit.Init(ctx, genkit.WithPlugins(googleAI))

	return &geminiProvider{
		genkit: g,
		model:  cfg.Model,
	}, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := genkit.Generate(ctx, p.genkit,
		ai.WithPrompt(prompt),
		ai.WithModelName(p.model),
	)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Class: classifyGeminiErr(err), Err: err}
	}

	text := response.Text()
	if text == "" {
		return "", &CallError{
			Provider: p.Name(),
			Class:    ClassTransient,
			Err:      fmt.Errorf("gemini returned an empty response"),
		}
	}

	return text, nil
}

func classifyGeminiErr(err error) ErrorClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "permission"),
		strings.Contains(msg, "invalid argument"),
		strings.Contains(msg, "not found"):
		return ClassPermanent
	default:
		return ClassTransient
	}
}
