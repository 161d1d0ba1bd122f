package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/diegolsarmond/qchat/pkg/provider/types"
)

// Client talks to the third-party WhatsApp Business API provider.
type Client interface {
	FindChats(ctx context.Context) ([]types.Chat, error)
	FindMessages(ctx context.Context, req types.FindMessagesRequest) (*types.FindMessagesResponse, error)
	SendText(ctx context.Context, req types.SendTextRequest) (*types.SendResponse, error)
	SendMedia(ctx context.Context, req types.SendMediaRequest) (*types.SendResponse, error)
	SendLocation(ctx context.Context, req types.SendLocationRequest) (*types.SendResponse, error)
	SendContact(ctx context.Context, req types.SendContactRequest) (*types.SendResponse, error)
	SendMenu(ctx context.Context, req types.SendMenuRequest) (*types.SendResponse, error)
	Listen(ctx context.Context, timeout time.Duration) ([]types.StreamEvent, error)
}

type client struct {
	config     types.ClientConfig
	httpClient *http.Client
}

// NewClient creates a provider client for one credential.
func NewClient(config types.ClientConfig) Client {
	return &client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (c *client) FindChats(ctx context.Context) ([]types.Chat, error) {
	body, err := c.post(ctx, "/chat/find", map[string]any{})
	if err != nil {
		return nil, err
	}

	// The provider has returned both a bare array and a wrapped object.
	var wrapped types.FindChatsResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Chats != nil {
		return wrapped.Chats, nil
	}
	var chats []types.Chat
	if err := json.Unmarshal(body, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chat list: %w", err)
	}
	return chats, nil
}

func (c *client) FindMessages(ctx context.Context, req types.FindMessagesRequest) (*types.FindMessagesResponse, error) {
	body, err := c.post(ctx, "/message/find", req)
	if err != nil {
		return nil, err
	}

	var resp types.FindMessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode message page: %w", err)
	}
	return &resp, nil
}

func (c *client) SendText(ctx context.Context, req types.SendTextRequest) (*types.SendResponse, error) {
	return c.send(ctx, "/send/text", req)
}

func (c *client) SendMedia(ctx context.Context, req types.SendMediaRequest) (*types.SendResponse, error) {
	return c.send(ctx, "/send/media", req)
}

func (c *client) SendLocation(ctx context.Context, req types.SendLocationRequest) (*types.SendResponse, error) {
	return c.send(ctx, "/send/location", req)
}

func (c *client) SendContact(ctx context.Context, req types.SendContactRequest) (*types.SendResponse, error) {
	return c.send(ctx, "/send/contact", req)
}

func (c *client) SendMenu(ctx context.Context, req types.SendMenuRequest) (*types.SendResponse, error) {
	return c.send(ctx, "/send/menu", req)
}

func (c *client) send(ctx context.Context, endpoint string, payload any) (*types.SendResponse, error) {
	body, err := c.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var result types.SendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode send response: %w", err)
	}
	if result.Error != "" {
		return &result, fmt.Errorf("provider rejected send: %s", result.Error)
	}
	return &result, nil
}

func (c *client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("X-Subdomain", c.config.Subdomain)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr types.ErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return body, nil
}

// StatusError is returned for non-2xx provider responses so callers can
// map status to retryability.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider request failed with status %d: %s", e.StatusCode, e.Message)
}
