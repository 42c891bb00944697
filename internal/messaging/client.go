// Package messaging is the HTTP client for the tenant-configured channel
// gateway instances (WhatsApp and similar) that carry outbound automation
// traffic. Instances are stored per tenant, so every call takes the instance
// credentials instead of binding them at construction.
package messaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crm_routing_backend/platform/logger"
	"crm_routing_backend/platform/phone"
)

// Instance identifies one connected channel gateway.
type Instance struct {
	BaseURL string
	APIKey  string
}

type Client struct {
	http *http.Client
	log  *logger.Logger
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type presenceRequest struct {
	Phone    string `json:"phone"`
	Presence string `json:"presence"`
	Duration int    `json:"duration"`
}

func NewClient(log *logger.Logger) *Client {
	return &Client{
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// SendText delivers a text message to a phone number through the instance.
func (c *Client) SendText(ctx context.Context, inst Instance, phoneNumber, text string) error {
	normalized := strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+")

	payload := sendRequest{
		Phone:   normalized,
		Message: text,
	}

	if err := c.post(ctx, inst, "/send/message", payload); err != nil {
		return err
	}

	c.log.Info("channel message sent", "phone", normalized)
	return nil
}

// SetTyping signals a composing presence for the given number of seconds.
func (c *Client) SetTyping(ctx context.Context, inst Instance, phoneNumber string, seconds int) error {
	normalized := strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+")

	payload := presenceRequest{
		Phone:    normalized,
		Presence: "composing",
		Duration: seconds,
	}

	return c.post(ctx, inst, "/chat/presence", payload)
}

func (c *Client) post(ctx context.Context, inst Instance, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal channel payload: %w", err)
	}

	url := strings.TrimRight(inst.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if inst.APIKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(inst.APIKey))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("channel request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("channel gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
