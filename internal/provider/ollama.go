package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/pkg/util"
)

// ollamaProvider calls a local Ollama instance through its native generate
// API. A cold Ollama answers 500 with a "loading model" body while it pages
// the model in; that is reported as ClassLoading so the router waits longer
// instead of giving up.
type ollamaProvider struct {
	client *resty.Client
	host   string
	model  string
}

func NewOllama(cfg config.OllamaConfig, providersCfg config.ProvidersConfig) Provider {
	client := util.NewRestyClient().
		SetBaseURL(cfg.Host).
		SetTimeout(providersCfg.CallTimeout)

	return &ollamaProvider{
		client: client,
		host:   cfg.Host,
		model:  cfg.Model,
	}
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (p *ollamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	var out ollamaGenerateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(ollamaGenerateRequest{Model: p.model, Prompt: prompt, Stream: false}).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return "", &CallError{Provider: p.Name(), Class: ClassTransient, Err: err}
	}

	if resp.IsError() {
		return "", &CallError{
			Provider: p.Name(),
			Class:    classifyHTTP(resp.StatusCode(), resp.String()),
			Err:      fmt.Errorf("ollama returned %d: %s", resp.StatusCode(), resp.String()),
		}
	}

	if out.Response == "" {
		return "", &CallError{
			Provider: p.Name(),
			Class:    ClassTransient,
			Err:      fmt.Errorf("ollama returned an empty response"),
		}
	}

	return out.Response, nil
}

func classifyHTTP(status int, body string) ErrorClass {
	if status >= 500 {
		if strings.Contains(strings.ToLower(body), "loading model") {
			return ClassLoading
		}
		return ClassTransient
	}
	return ClassPermanent
}
