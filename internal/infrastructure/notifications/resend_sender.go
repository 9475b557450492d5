package notifications

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

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
)

// ErrNotConfigured is returned when no Resend API key is set
var ErrNotConfigured = errors.New("email service not configured")

// ResendSender sends email through the Resend HTTP API
type ResendSender struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

var _ providers.EmailSender = (*ResendSender)(nil)

// NewResendSender creates a sender. A missing API key is not an error here;
// Send reports ErrNotConfigured so callers can log and carry on.
func NewResendSender(cfg *config.EmailConfig) *ResendSender {
	return &ResendSender{
		apiKey:  cfg.ResendAPIKey,
		from:    cfg.FromAddress,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether an API key is present
func (s *ResendSender) Configured() bool {
	return s.apiKey != ""
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// Send delivers msg and returns the provider message ID
func (s *ResendSender) Send(ctx context.Context, msg *entities.EmailMessage) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return "", errors.New("email has no recipients")
	}

	jsonData, err := json.Marshal(resendEmail{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if msg.ID != "" {
		req.Header.Set("Idempotency-Key", msg.ID)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr resendError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("Resend API error (status %d): %s", resp.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("Resend API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out resendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("no message ID in response")
	}
	return out.ID, nil
}
