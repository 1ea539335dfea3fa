package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/studiumlab/studium/internal/domain"
)

const (
	// DefaultEmbeddingModel is the model used for generating embeddings
	DefaultEmbeddingModel = "openai/text-embedding-3-small"
	// DefaultEmbeddingDimensions is the expected dimension of embeddings
	DefaultEmbeddingDimensions = 1536
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions, expected 1536")
)

// ChatMessage is one turn handed to the model
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest describes a generation call
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// API is the provider surface the services depend on
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error)
	StreamChat(ctx context.Context, req ChatRequest, onToken func(token string) error) (domain.TokenUsage, error)
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Client wraps an OpenAI-compatible gateway such as OpenRouter
type Client struct {
	api        API
	dimensions int
}

type GatewayAdapter struct {
	client         *openai.Client
	embeddingModel string
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
}

func NewGatewayAdapter(apiKey, baseURL, embeddingModel string) *GatewayAdapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &GatewayAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: embeddingModel,
	}
}

// CreateEmbeddings calls the gateway to embed a single text
func (a *GatewayAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(a.embeddingModel),
	})
	if err != nil {
		return nil, classifyUpstream(err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateEmbeddingsBatch embeds several texts in one gateway call,
// preserving input order.
func (a *GatewayAdapter) CreateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(a.embeddingModel),
	})
	if err != nil {
		return nil, classifyUpstream(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

// StreamChat runs a streaming completion, invoking onToken for every
// content delta in arrival order. Usage comes from the final stream
// chunk the provider sends when usage reporting is requested.
func (a *GatewayAdapter) StreamChat(ctx context.Context, req ChatRequest, onToken func(token string) error) (domain.TokenUsage, error) {
	var usage domain.TokenUsage

	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toProviderMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	})
	if err != nil {
		return usage, classifyUpstream(err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return usage, classifyUpstream(err)
		}

		if chunk.Usage != nil {
			usage.PromptTokens = chunk.Usage.PromptTokens
			usage.CompletionTokens = chunk.Usage.CompletionTokens
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		if err := onToken(token); err != nil {
			return usage, err
		}
	}

	return usage, nil
}

// Complete runs a short non-streaming completion, used for titles
func (a *GatewayAdapter) Complete(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toProviderMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", classifyUpstream(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func toProviderMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// classifyUpstream turns provider transport and 5xx errors into the
// upstream-unavailable domain error; 4xx responses pass through so
// validation problems stay visible.
func classifyUpstream(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode < 500 {
		return err
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable, "language model provider call failed", err)
}

// NewClient creates a client for an OpenAI-compatible gateway
func NewClient(apiKey, baseURL string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey, BaseURL: baseURL})
}

// NewClientWithConfig creates a client with explicit configuration
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        NewGatewayAdapter(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel),
		dimensions: dimensions,
	}
}

// NewClientWithAPI wires a custom provider implementation, used in tests
func NewClientWithAPI(api API) *Client {
	return &Client{api: api, dimensions: DefaultEmbeddingDimensions}
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}

// GenerateEmbeddings embeds a batch of texts, preserving order.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	embeddings, err := c.api.CreateEmbeddingsBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	for _, e := range embeddings {
		if len(e) != c.dimensions {
			return nil, ErrWrongDimensions
		}
	}
	return embeddings, nil
}

// StreamChat proxies to the underlying provider
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, onToken func(token string) error) (domain.TokenUsage, error) {
	return c.api.StreamChat(ctx, req, onToken)
}

// Complete proxies to the underlying provider
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	return c.api.Complete(ctx, req)
}
