package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/llm"
)

const systemPrompt = "Tu extrais des données fiscales françaises et tu réponds uniquement en JSON."

// Complete implements llm.Completer against chat/completions. The message
// content is returned untouched, even when it is not JSON.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	if status/100 != 2 {
		err := statusError(status, raw)
		c.log.Error("llm.openai.status_error", "status", status, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.openai.decode_error", "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("%w: decode openai response: %w", llm.ErrTransport, err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.openai.no_choices", "raw_bytes", len(raw))
		return "", fmt.Errorf("%w: no choices in openai response", llm.ErrTransport)
	}

	c.log.Info("llm.openai.ok",
		"model", c.cfg.Model,
		"content_bytes", len(cc.Choices[0].Message.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return cc.Choices[0].Message.Content, nil
}

func statusError(status int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: openai status %d: %s", llm.ErrAuth, status, msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: openai status %d: %s", llm.ErrRateLimited, status, msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: openai status %d", llm.ErrTimeout, status)
	}
	return fmt.Errorf("%w: openai status %d: %s", llm.ErrTransport, status, msg)
}

func classifyTransport(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", llm.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", llm.ErrTransport, err)
}
