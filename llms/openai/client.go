// Package openai talks to OpenAI-compatible servers for chat, embeddings and
// reranking.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/smallnest/hybridrag/rag"
)

var (
	ErrNotSetAuth    = errors.New("API key not set")
	ErrEmptyResponse = errors.New("empty response")
)

// Client implements rag.LLM, rag.Embedder and rag.Reranker.
type Client struct {
	client     *goopenai.Client
	httpClient *http.Client
	apiKey     string
	baseURL    string
	opts       options
}

var (
	_ rag.LLM      = (*Client)(nil)
	_ rag.Embedder = (*Client)(nil)
	_ rag.Reranker = (*Client)(nil)
)

// New returns a client. The API key comes from WithAPIKey or $OPENAI_API_KEY.
//
// Example:
//
//	c, err := openai.New(
//		openai.WithBaseURL("https://api.siliconflow.cn/v1"),
//		openai.WithEmbeddingModel("Qwen/Qwen3-Embedding-8B"),
//		openai.WithDimensions(4096),
//	)
func New(opts ...Option) (*Client, error) {
	o := options{
		apiKey:         getEnvOrDefault("OPENAI_API_KEY", ""),
		baseURL:        getEnvOrDefault("OPENAI_BASE_URL", defaultBaseURL),
		chatModel:      defaultChatModel,
		embeddingModel: defaultEmbeddingModel,
		dimensions:     defaultDimensions,
		temperature:    defaultTemperature,
		topP:           1,
		maxTokens:      defaultMaxTokens,
		httpClient:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, fmt.Errorf(`%w
You can pass auth info by using openai.New(openai.WithAPIKey("{API Key}"))
or
export OPENAI_API_KEY={API Key}`, ErrNotSetAuth)
	}

	cfg := goopenai.DefaultConfig(o.apiKey)
	cfg.BaseURL = strings.TrimSuffix(o.baseURL, "/")
	cfg.HTTPClient = o.httpClient

	return &Client{
		client:     goopenai.NewClientWithConfig(cfg),
		httpClient: o.httpClient,
		apiKey:     o.apiKey,
		baseURL:    cfg.BaseURL,
		opts:       o,
	}, nil
}

// Chat sends prompt as a single user message and returns the reply.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.opts.chatModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.opts.temperature,
		TopP:        c.opts.topP,
		MaxTokens:   c.opts.maxTokens,
	})
	if err != nil {
		return "", classify("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      []string{text},
		Model:      goopenai.EmbeddingModel(c.opts.embeddingModel),
		Dimensions: c.opts.dimensions,
	})
	if err != nil {
		return nil, classify("embed", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: %w", ErrEmptyResponse)
	}
	return resp.Data[0].Embedding, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank posts to {base}/rerank and returns the results in server order.
func (c *Client) Rerank(ctx context.Context, query string, documents []string) ([]rag.RerankResult, error) {
	if documents == nil {
		documents = []string{}
	}
	body, err := json.Marshal(rerankRequest{Model: c.opts.rerankModel, Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify("rerank", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank: status code %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]rag.RerankResult, 0, len(rr.Results))
	for _, r := range rr.Results {
		out = append(out, rag.RerankResult{Index: r.Index, Score: r.RelevanceScore})
	}
	return out, nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, rag.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
