package breeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultURL     = "https://api.thecatapi.com/v1/breeds"
	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 4 << 20
)

// ErrRegistryUnavailable marks a failed registry fetch: transport, status or decode.
var ErrRegistryUnavailable = errors.New("breed registry unavailable")

type Breed struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Registry lists every breed the external authority recognizes.
type Registry interface {
	Breeds(ctx context.Context) ([]Breed, error)
}

// HTTPRegistry fetches the breed list from a JSON endpoint returning [{"name": ...}, ...].
type HTTPRegistry struct {
	URL    string
	APIKey string
	Client *http.Client
}

// NewHTTPRegistry builds a registry client with a bounded request timeout.
func NewHTTPRegistry(url, apiKey string, timeout time.Duration) *HTTPRegistry {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRegistry{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRegistry) Breeds(ctx context.Context) ([]Breed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.APIKey != "" {
		req.Header.Set("x-api-key", r.APIKey)
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: status %d", ErrRegistryUnavailable, resp.StatusCode)
	}
	var out []Breed
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrRegistryUnavailable, err)
	}
	return out, nil
}

// StaticRegistry serves a fixed breed list. Used for offline setups and tests.
type StaticRegistry []string

func (s StaticRegistry) Breeds(context.Context) ([]Breed, error) {
	out := make([]Breed, 0, len(s))
	for _, name := range s {
		out = append(out, Breed{Name: name})
	}
	return out, nil
}
