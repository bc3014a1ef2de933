package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sjsage522/pricemonitor/services/store"
	"sjsage522/pricemonitor/services/tracker"
)

// Adding a product can sit through several block backoffs
const defaultClientTimeout = 6 * time.Minute

// APIError is a non-2xx answer the client has no sentinel for
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("admin API returned %d: %s", e.Status, e.Message)
}

// Client talks to the admin API of a running monitor
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL, e.g. "http://127.0.0.1:8085"
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
}

// Add registers rawURL for chatID and returns the stored entry
func (c *Client) Add(ctx context.Context, chatID int64, rawURL string) (store.Entry, error) {
	body, err := json.Marshal(AddRequest{URL: rawURL})
	if err != nil {
		return store.Entry{}, err
	}

	var entry store.Entry
	err = c.do(ctx, http.MethodPost, c.productsURL(chatID), bytes.NewReader(body), &entry)
	return entry, err
}

// List returns chatID's monitored products
func (c *Client) List(ctx context.Context, chatID int64) ([]store.Entry, error) {
	var entries []store.Entry
	err := c.do(ctx, http.MethodGet, c.productsURL(chatID), nil, &entries)
	return entries, err
}

// Remove stops monitoring rawURL for chatID
func (c *Client) Remove(ctx context.Context, chatID int64, rawURL string) (store.Product, error) {
	var product store.Product
	target := c.productsURL(chatID) + "?url=" + url.QueryEscape(rawURL)
	err := c.do(ctx, http.MethodDelete, target, nil, &product)
	return product, err
}

// Status reports the check interval and chatID's product count
func (c *Client) Status(ctx context.Context, chatID int64) (tracker.Status, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, c.chatURL(chatID)+"/status", nil, &resp); err != nil {
		return tracker.Status{}, err
	}
	return tracker.Status{
		CheckInterval: time.Duration(resp.CheckIntervalSeconds) * time.Second,
		Products:      resp.Products,
	}, nil
}

func (c *Client) chatURL(chatID int64) string {
	return c.baseURL + "/api/v1/chats/" + strconv.FormatInt(chatID, 10)
}

func (c *Client) productsURL(chatID int64) string {
	return c.chatURL(chatID) + "/products"
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("monitor not reachable at %s (is `pricemonitor run` running?): %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	var apiErr errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	switch resp.StatusCode {
	case http.StatusConflict:
		return store.ErrDuplicate
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusUnprocessableEntity:
		return tracker.ErrPriceUnavailable
	}
	return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
}
