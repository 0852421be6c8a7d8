package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// OpenAIProvider calls the OpenAI embeddings API (or any server speaking
// the same protocol via BaseURL). Transient failures retry with
// exponential backoff; exhausted retries surface as a retryable
// embedding-unavailable error so callers can degrade instead of failing.
type OpenAIProvider struct {
	model      string
	dimensions int
	apiKey     string
	baseURL    string
	maxRetries int
	timeout    time.Duration
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider for the OpenAI embeddings API.
// The API key falls back to the OPENAI_API_KEY environment variable.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	cfg.ApplyDefaults()

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.ErrCodeConfigInvalid,
			"OpenAI provider requires api_key (or OPENAI_API_KEY environment variable)")
	}
	if cfg.Dimensions <= 0 {
		return nil, types.NewError(types.ErrCodeConfigInvalid, "embedding dimensions must be positive")
	}

	timeout := cfg.RequestTimeout()
	return &OpenAIProvider{
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		apiKey:     apiKey,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed generates an embedding vector for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embeddingRequest{
		Input:          texts,
		Model:          p.model,
		Dimensions:     p.dimensions,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, types.WrapError(ErrCodeEmbeddingBatchFailed, "failed to marshal embedding request", err)
	}

	var result embeddingResponse
	err = p.retryWithBackoff(ctx, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(payload))
		if err != nil {
			return types.WrapError(ErrCodeEmbeddingBatchFailed, "failed to build embedding request", err)
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return types.NewEmbeddingUnavailableError("embedding endpoint unreachable", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return types.NewEmbeddingUnavailableError(
				fmt.Sprintf("embedding request failed with status %d", resp.StatusCode),
				fmt.Errorf("response: %s", string(body)))
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return types.NewError(ErrCodeEmbeddingBatchFailed,
				fmt.Sprintf("embedding request rejected with status %d: %s", resp.StatusCode, string(body)))
		}

		result = embeddingResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return types.WrapError(ErrCodeEmbeddingBatchFailed, "failed to decode embedding response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Data) != len(texts) {
		return nil, types.NewError(ErrCodeEmbeddingBatchFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(result.Data)))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, types.NewError(ErrCodeEmbeddingBatchFailed,
				fmt.Sprintf("embedding index %d out of range", item.Index))
		}
		if len(item.Embedding) != p.dimensions {
			return nil, types.NewError(ErrCodeEmbeddingFailed,
				fmt.Sprintf("embedding has %d dimensions, expected %d", len(item.Embedding), p.dimensions))
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, types.NewError(ErrCodeEmbeddingBatchFailed,
				fmt.Sprintf("no embedding returned for input %d", i))
		}
	}

	return vectors, nil
}

// Dimensions returns the dimensionality of the embedding vectors.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Model returns the name of the embedding model being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Health checks whether the API answers with the configured key.
func (p *OpenAIProvider) Health(ctx context.Context) types.HealthStatus {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return types.Unhealthy(fmt.Sprintf("failed to build health request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Unhealthy(fmt.Sprintf("embedding endpoint unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Degraded(fmt.Sprintf("embedding endpoint returned status %d", resp.StatusCode))
	}
	return types.Healthy("embedding endpoint reachable")
}

// retryWithBackoff runs op until it succeeds, returns a non-retryable
// error, or attempts run out. Delay doubles per attempt, capped, and
// respects context cancellation.
func (p *OpenAIProvider) retryWithBackoff(ctx context.Context, op func() error) error {
	maxAttempts := p.maxRetries + 1
	baseDelay := 250 * time.Millisecond
	maxDelay := 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !types.IsRetryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<uint(attempt))
		if delay > maxDelay {
			delay = maxDelay
		}

		select {
		case <-ctx.Done():
			return types.NewEmbeddingUnavailableError("embedding request cancelled", ctx.Err())
		case <-time.After(delay):
		}
	}

	return lastErr
}
