package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrDisabled is returned by Notify when no push service is configured.
var ErrDisabled = errors.New("push service not configured")

// Client talks to the Web Push service (services/push). With an empty base URL every call is a no-op.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return &Client{}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether a push service URL was configured.
func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

type SubscribeRequest struct {
	Username     string           `json:"username"`
	Subscription PushSubscription `json:"subscription"`
}

// PushSubscription is the browser's PushSubscription JSON.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (c *Client) post(ctx context.Context, method, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("push %s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}

// Subscribe stores a browser subscription for username on the push service.
func (c *Client) Subscribe(ctx context.Context, username string, sub PushSubscription) error {
	if !c.Enabled() {
		return nil
	}
	return c.post(ctx, http.MethodPost, "/api/subscribe", SubscribeRequest{Username: username, Subscription: sub})
}

// Unsubscribe removes the subscription with endpoint.
func (c *Client) Unsubscribe(ctx context.Context, username, endpoint string) error {
	if !c.Enabled() {
		return nil
	}
	return c.post(ctx, http.MethodDelete, "/api/subscribe", map[string]string{"username": username, "endpoint": endpoint})
}

type NotifyRequest struct {
	Username string            `json:"username"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
}

// Notify asks the push service to deliver a Web Push to every subscription of username.
func (c *Client) Notify(ctx context.Context, username, title, body string, data map[string]string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	return c.post(ctx, http.MethodPost, "/api/notify", NotifyRequest{Username: username, Title: title, Body: body, Data: data})
}
