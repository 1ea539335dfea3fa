// Package pricing resolves per-token model prices from the gateway's
// model catalog.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/studiumlab/studium/internal/domain"
)

const catalogTTL = 5 * time.Minute

// Source resolves the price of a model. Generation is refused when the
// price cannot be determined, so costs are never guessed.
type Source interface {
	PriceFor(ctx context.Context, model string) (domain.ModelPrice, error)
}

// Client reads the OpenRouter-style /models catalog over HTTP and
// caches it briefly.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu        sync.Mutex
	catalog   map[string]domain.ModelPrice
	fetchedAt time.Time
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PriceFor returns the per-token prices for a model, refreshing the
// catalog when the cache has expired.
func (c *Client) PriceFor(ctx context.Context, model string) (domain.ModelPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog == nil || time.Since(c.fetchedAt) > catalogTTL {
		catalog, err := c.fetchCatalog(ctx)
		if err != nil {
			return domain.ModelPrice{}, err
		}
		c.catalog = catalog
		c.fetchedAt = time.Now()
	}

	price, ok := c.catalog[model]
	if !ok {
		return domain.ModelPrice{}, domain.ErrModelNotFound
	}
	return price, nil
}

func (c *Client) fetchCatalog(ctx context.Context) (map[string]domain.ModelPrice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable, "model catalog unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("model catalog returned status %d", resp.StatusCode), nil)
	}

	var body struct {
		Data []struct {
			ID      string `json:"id"`
			Pricing struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable, "model catalog returned malformed response", err)
	}

	now := time.Now().UTC()
	catalog := make(map[string]domain.ModelPrice, len(body.Data))
	for _, m := range body.Data {
		prompt, err := strconv.ParseFloat(m.Pricing.Prompt, 64)
		if err != nil {
			continue
		}
		completion, err := strconv.ParseFloat(m.Pricing.Completion, 64)
		if err != nil {
			continue
		}
		catalog[m.ID] = domain.ModelPrice{
			Model:           m.ID,
			PromptPrice:     prompt,
			CompletionPrice: completion,
			FetchedAt:       now,
		}
	}
	return catalog, nil
}
