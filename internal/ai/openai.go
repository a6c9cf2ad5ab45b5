package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docuchat/docuchat/internal/common"
)

// OpenAIProvider speaks the OpenAI-compatible chat completions and
// embeddings APIs.
type OpenAIProvider struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	Client     *http.Client
}

func NewOpenAIProvider(baseURL, apiKey, model, embedModel string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if embedModel == "" {
		embedModel = "text-embedding-3-large"
	}
	return &OpenAIProvider{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		EmbedModel: embedModel,
		Client:     &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OpenAIProvider) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: openai: %v", common.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: openai: status %d", common.ErrProvider, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: openai: %v", common.ErrProvider, err)
	}
	return nil
}

type openaiChatReq struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type openaiChatResp struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	var decoded openaiChatResp
	if err := p.post(ctx, "/chat/completions", openaiChatReq{Model: p.Model, Messages: messages}, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: no choices", common.ErrProvider)
	}
	return decoded.Choices[0].Message.Content, nil
}

type openaiEmbedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResp struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	var decoded openaiEmbedResp
	if err := p.post(ctx, "/embeddings", openaiEmbedReq{Model: p.EmbedModel, Input: inputs}, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: openai: got %d embeddings for %d inputs", common.ErrProvider, len(decoded.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: openai: embedding index %d out of range", common.ErrProvider, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
