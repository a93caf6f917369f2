// Package chat sends report texts through a tenant-configured WhatsApp
// gateway (Evolution-style HTTP JSON API).
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blockedby/stockwatch-os/internal/logger"
)

// ErrGateway classifies every non-2xx response and transport failure from
// the gateway.
var ErrGateway = errors.New("chat: gateway delivery failed")

// maxErrorBody caps how much of an error response body lands in logs and
// dispatch result details.
const maxErrorBody = 512

// Client is a reusable HTTP client for the chat gateway. Unlike the SMTP
// client it holds no per-send state and is safe for concurrent use.
type Client struct {
	http *http.Client
	log  *logger.Logger
}

// NewClient creates a gateway client with the given total request timeout.
func NewClient(timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// SendRequest carries one text message and the tenant's gateway coordinates.
type SendRequest struct {
	GatewayURL string
	APIKey     string
	Instance   string
	Number     string
	Text       string
}

type sendTextBody struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// SendText posts the message to {gateway}/message/sendText/{instance} with
// the tenant API key. Any non-2xx status is returned as an ErrGateway with
// the status and a truncated response body for diagnostics.
func (c *Client) SendText(ctx context.Context, req SendRequest) error {
	if req.GatewayURL == "" || req.Instance == "" {
		return fmt.Errorf("%w: gateway url and instance are required", ErrGateway)
	}

	endpoint := strings.TrimRight(req.GatewayURL, "/") + "/message/sendText/" + req.Instance

	payload, err := json.Marshal(sendTextBody{Number: req.Number, Text: req.Text})
	if err != nil {
		return fmt.Errorf("%w: marshal body: %v", ErrGateway, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrGateway, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", req.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.log.Debug().Str("instance", req.Instance).Int("status", resp.StatusCode).Msg("chat message sent")
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, strings.TrimSpace(string(body)))
}
