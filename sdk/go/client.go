package spycatsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Spy Cat Agency HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. baseURL includes the API prefix, e.g. http://host:8000/api/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Cat struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	YearsOfExperience int     `json:"years_of_experience"`
	Breed             string  `json:"breed"`
	Salary            float64 `json:"salary"`
}

type Target struct {
	ID        int64  `json:"id"`
	MissionID int64  `json:"mission_id"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	Notes     string `json:"notes"`
	Complete  bool   `json:"complete"`
}

type Mission struct {
	ID       int64    `json:"id"`
	CatID    *int64   `json:"cat_id"`
	Complete bool     `json:"complete"`
	Cat      *Cat     `json:"cat"`
	Targets  []Target `json:"targets"`
}

// NewCat is the payload for recruiting a cat.
type NewCat struct {
	Name              string  `json:"name"`
	YearsOfExperience int     `json:"years_of_experience"`
	Breed             string  `json:"breed"`
	Salary            float64 `json:"salary"`
}

// NewTarget is one target of a mission being created.
type NewTarget struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Notes   string `json:"notes,omitempty"`
}

// TargetUpdate carries the fields to change; nil fields are left untouched.
type TargetUpdate struct {
	Notes    *string `json:"notes,omitempty"`
	Complete *bool   `json:"complete,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) CreateCat(ctx context.Context, cat NewCat) (Cat, error) {
	var resp Cat
	err := c.do(ctx, http.MethodPost, "spy-cats", cat, &resp)
	return resp, err
}

// ListCats returns one window of cats; skip and limit map to the query parameters.
func (c *Client) ListCats(ctx context.Context, skip, limit int) ([]Cat, error) {
	var resp []Cat
	err := c.do(ctx, http.MethodGet, withWindow("spy-cats", skip, limit), nil, &resp)
	return resp, err
}

func (c *Client) AvailableCats(ctx context.Context) ([]Cat, error) {
	var resp []Cat
	err := c.do(ctx, http.MethodGet, "spy-cats/available", nil, &resp)
	return resp, err
}

func (c *Client) GetCat(ctx context.Context, id int64) (Cat, error) {
	var resp Cat
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("spy-cats/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) UpdateCatSalary(ctx context.Context, id int64, salary float64) (Cat, error) {
	var resp Cat
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("spy-cats/%d", id), map[string]any{"salary": salary}, &resp)
	return resp, err
}

func (c *Client) DeleteCat(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("spy-cats/%d", id), nil, nil)
}

func (c *Client) CreateMission(ctx context.Context, targets []NewTarget) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodPost, "missions", map[string]any{"targets": targets}, &resp)
	return resp, err
}

func (c *Client) ListMissions(ctx context.Context, skip, limit int) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, withWindow("missions", skip, limit), nil, &resp)
	return resp, err
}

func (c *Client) GetMission(ctx context.Context, id int64) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("missions/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) AssignCat(ctx context.Context, missionID, catID int64) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("missions/%d/assign", missionID), map[string]any{"cat_id": catID}, &resp)
	return resp, err
}

func (c *Client) DeleteMission(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("missions/%d", id), nil, nil)
}

func (c *Client) GetTarget(ctx context.Context, id int64) (Target, error) {
	var resp Target
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("missions/targets/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) UpdateTarget(ctx context.Context, id int64, update TargetUpdate) (Target, error) {
	var resp Target
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("missions/targets/%d", id), update, &resp)
	return resp, err
}

func withWindow(endpoint string, skip, limit int) string {
	q := url.Values{}
	q.Set("skip", fmt.Sprint(skip))
	q.Set("limit", fmt.Sprint(limit))
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
