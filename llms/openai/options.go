package openai

import (
	"net/http"
	"os"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultChatModel      = "gpt-3.5-turbo"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultDimensions     = 256
	defaultTemperature    = 0.7
	defaultMaxTokens      = 1024
)

type options struct {
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	rerankModel    string
	dimensions     int
	temperature    float32
	topP           float32
	maxTokens      int
	httpClient     *http.Client
}

// Option configures the client.
type Option func(*options)

// WithAPIKey sets the API key. Defaults to $OPENAI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.apiKey = apiKey
	}
}

// WithBaseURL points the client at any OpenAI-compatible server.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithChatModel sets the chat completion model.
func WithChatModel(model string) Option {
	return func(o *options) {
		o.chatModel = model
	}
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) Option {
	return func(o *options) {
		o.embeddingModel = model
	}
}

// WithRerankModel sets the model sent to the rerank endpoint.
func WithRerankModel(model string) Option {
	return func(o *options) {
		o.rerankModel = model
	}
}

// WithDimensions sets the requested embedding width.
func WithDimensions(n int) Option {
	return func(o *options) {
		o.dimensions = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(o *options) {
		o.temperature = t
	}
}

// WithTopP sets nucleus sampling.
func WithTopP(p float32) Option {
	return func(o *options) {
		o.topP = p
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
