// Package whatsapp sends outbound messages through the Meta WhatsApp
// Business Cloud API.
package whatsapp

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

const (
	defaultBaseURL       = "https://graph.facebook.com/v24.0"
	maxResponseSizeBytes = 1 << 20
)

type Config struct {
	BaseURL       string        `envconfig:"BASE_URL" split_words:"true" default:"https://graph.facebook.com/v24.0"`
	AccessToken   string        `envconfig:"ACCESS_TOKEN" split_words:"true" required:"true"`
	PhoneNumberID string        `envconfig:"PHONE_NUMBER_ID" split_words:"true" required:"true"`
	Timeout       time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid graph api url: %w", err)
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsapp access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp phone number id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:       baseURL,
		accessToken:   strings.TrimSpace(cfg.AccessToken),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		httpClient:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func MustNew(cfg Config, opts ...Option) *Client {
	c, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *graphError `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *graphError) Error() string {
	return fmt.Sprintf("graph api error code=%d type=%s: %s", e.Code, e.Type, e.Message)
}

// SendText delivers a free-form text message. Only works inside the 24h
// customer service window; outside it the Graph API rejects the send.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return c.send(ctx, payload)
}

// SendTemplate delivers an approved template message with positional body
// parameters.
func (c *Client) SendTemplate(ctx context.Context, to, template, lang string, bodyParams []string) (string, error) {
	if strings.TrimSpace(lang) == "" {
		lang = "es_CL"
	}

	params := make([]map[string]string, 0, len(bodyParams))
	for _, p := range bodyParams {
		params = append(params, map[string]string{"type": "text", "text": p})
	}

	var components []map[string]any
	if len(params) > 0 {
		components = append(components, map[string]any{
			"type":       "body",
			"parameters": params,
		})
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name":       template,
			"language":   map[string]string{"code": lang},
			"components": components,
		},
	}
	return c.send(ctx, payload)
}

func (c *Client) send(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal send payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("read send response: %w", err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode send response status=%d: %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", parsed.Error
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("graph api http status=%d body=%s", resp.StatusCode, string(raw))
	}
	if len(parsed.Messages) == 0 {
		return "", errors.New("graph api response has no message id")
	}
	return parsed.Messages[0].ID, nil
}
