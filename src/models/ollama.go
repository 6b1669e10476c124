package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

type OllamaLLM struct {
	Client *ollama.Client
	Model  string
}

func NewOllamaLLM(model string) (*OllamaLLM, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	if model == "" {
		model = "llama3.2"
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}
	return &OllamaLLM{Client: ollama.NewClient(u, httpClient), Model: model}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, req Request) (string, error) {
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	var text strings.Builder
	genReq := &ollama.GenerateRequest{
		Model:   o.Model,
		Prompt:  req.Prompt,
		Options: options,
	}
	err := o.Client.Generate(ctx, genReq, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if text.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return text.String(), nil
}

func (o *OllamaLLM) Name() string { return "ollama/" + o.Model }

var _ Generator = (*OllamaLLM)(nil)
