package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to the server's REST surface. It implements API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
	}
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, http.StatusOK, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetHistory(ctx context.Context, peerID int64) ([]Message, error) {
	var messages []Message
	path := fmt.Sprintf("/api/messages/%d", peerID)
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, peerID int64, text string, image string) (*Message, error) {
	body := map[string]string{}
	if text != "" {
		body["text"] = text
	}
	if image != "" {
		body["image"] = image
	}

	var message Message
	path := fmt.Sprintf("/api/messages/send/%d", peerID)
	if err := c.do(ctx, http.MethodPost, path, body, http.StatusCreated, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) TogglePin(ctx context.Context, messageID int64) (*Message, error) {
	var response struct {
		Updated *Message `json:"updated"`
	}
	path := fmt.Sprintf("/api/messages/%d/pin", messageID)
	if err := c.do(ctx, http.MethodPut, path, nil, http.StatusOK, &response); err != nil {
		return nil, err
	}
	if response.Updated == nil {
		return nil, fmt.Errorf("toggle pin: missing updated message in response")
	}
	return response.Updated, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var serverErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 2048)).Decode(&serverErr); err == nil && serverErr.Error != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, serverErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
