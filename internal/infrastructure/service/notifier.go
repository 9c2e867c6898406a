// Package service implements infrastructure adapters consumed by the
// application layer: outbound notification delivery and ID generation.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/civic-hub/civic-sim-hub/pkg/circuitbreaker"
	"github.com/civic-hub/civic-sim-hub/pkg/logger"
	"github.com/civic-hub/civic-sim-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// NotifierConfig contains configuration for the WhatsApp gateway notifier.
type NotifierConfig struct {
	// GatewayURL is the message gateway endpoint.
	GatewayURL string

	// APIKey authenticates against the gateway.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Retry controls delivery retries.
	Retry retry.Config

	// Breaker protects the engine from a degraded gateway.
	Breaker circuitbreaker.Config
}

// DefaultNotifierConfig returns sensible defaults for the gateway client.
func DefaultNotifierConfig(gatewayURL string) NotifierConfig {
	return NotifierConfig{
		GatewayURL: gatewayURL,
		Timeout:    10 * time.Second,
		Retry:      retry.DefaultConfig(),
		Breaker:    circuitbreaker.DefaultConfig("whatsapp-gateway"),
	}
}

// WhatsAppNotifier delivers completion notifications through a WhatsApp
// message gateway. Delivery is best-effort by contract: the caller swallows
// errors and a completion never fails because the gateway is down.
type WhatsAppNotifier struct {
	config     NotifierConfig
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	log        *logger.Logger
}

// NewWhatsAppNotifier creates a new WhatsAppNotifier.
func NewWhatsAppNotifier(cfg NotifierConfig, log *logger.Logger) *WhatsAppNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WhatsAppNotifier{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuitbreaker.New(cfg.Breaker),
		log:        log,
	}
}

// completionMessage is the gateway payload.
type completionMessage struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Score  int    `json:"score"`
	Text   string `json:"text"`
}

// NotifyCompletion sends the completion message through the gateway,
// retrying transient failures behind the circuit breaker.
func (n *WhatsAppNotifier) NotifyCompletion(ctx context.Context, userID, title string, score int) error {
	msg := completionMessage{
		UserID: userID,
		Title:  title,
		Score:  score,
		Text:   fmt.Sprintf("Симуляция «%s» завершена: %d из 100 баллов.", title, score),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notifier: failed to encode message: %w", err)
	}

	return retry.Do(ctx, n.config.Retry, func(ctx context.Context) error {
		return n.breaker.Execute(ctx, func(ctx context.Context) error {
			return n.send(ctx, body)
		})
	})
}

func (n *WhatsAppNotifier) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("notifier: failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if n.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.config.APIKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("notifier: gateway request failed: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(fmt.Errorf("notifier: gateway returned %d", resp.StatusCode))
	default:
		// 4xx besides 429 will not improve on retry
		return retry.Permanent(fmt.Errorf("notifier: gateway rejected message with %d", resp.StatusCode))
	}
}

// NopNotifier discards notifications. Used when no gateway is configured.
type NopNotifier struct{}

// NotifyCompletion implements the notifier contract as a no-op.
func (NopNotifier) NotifyCompletion(context.Context, string, string, int) error {
	return nil
}
