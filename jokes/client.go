package jokes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultBaseURL is the public Chuck Norris joke API.
const DefaultBaseURL = "https://api.chucknorris.io"

// Client fetches random jokes from a chucknorris.io-compatible API.
type Client struct {
	http    *http.Client
	baseURL string
}

type jokeResponse struct {
	Value string `json:"value"`
}

// NewClient creates a joke client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

// Random returns one random joke.
func (c *Client) Random(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jokes/random", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build joke request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("joke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("joke API returned status %d", resp.StatusCode)
	}

	var joke jokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&joke); err != nil {
		return "", fmt.Errorf("failed to decode joke response: %w", err)
	}
	if joke.Value == "" {
		return "", fmt.Errorf("joke API returned an empty joke")
	}
	return joke.Value, nil
}
