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

// OllamaProvider talks to a local Ollama server for both chat completions
// and embeddings.
type OllamaProvider struct {
	BaseURL    string
	Model      string
	EmbedModel string
	Client     *http.Client
}

func NewOllamaProvider(baseURL, model, embedModel string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	return &OllamaProvider{
		BaseURL:    baseURL,
		Model:      model,
		EmbedModel: embedModel,
		Client:     &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", fmt.Errorf("%w: ollama: http client is nil", common.ErrProvider)
	}

	reqBody := ollamaChatReq{
		Model:  p.Model,
		Stream: false,
		Messages: func() []ollamaMsg {
			out := make([]ollamaMsg, 0, len(messages))
			for _, m := range messages {
				out = append(out, ollamaMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/api/chat", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: ollama: %v", common.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: ollama: status %d", common.ErrProvider, resp.StatusCode)
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: ollama: %v", common.ErrProvider, err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", common.ErrProvider, decoded.Error)
	}
	return decoded.Message.Content, nil
}

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed embeds inputs one by one; the Ollama embeddings endpoint takes a
// single prompt per call.
func (p *OllamaProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if p.Client == nil {
		return nil, fmt.Errorf("%w: ollama: http client is nil", common.ErrProvider)
	}

	out := make([][]float32, 0, len(inputs))
	url := fmt.Sprintf("%s/api/embeddings", p.BaseURL)

	for _, input := range inputs {
		b, err := json.Marshal(ollamaEmbedReq{Model: p.EmbedModel, Prompt: input})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.Client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: ollama: %v", common.ErrProvider, err)
		}

		var decoded ollamaEmbedResp
		decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: ollama: status %d", common.ErrProvider, resp.StatusCode)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("%w: ollama: %v", common.ErrProvider, decodeErr)
		}
		if decoded.Error != "" {
			return nil, fmt.Errorf("%w: ollama: %s", common.ErrProvider, decoded.Error)
		}
		if len(decoded.Embedding) == 0 {
			return nil, fmt.Errorf("%w: ollama: empty embedding", common.ErrProvider)
		}
		out = append(out, decoded.Embedding)
	}
	return out, nil
}
