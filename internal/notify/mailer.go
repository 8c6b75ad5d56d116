package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"grdmonitor/internal/config"
)

// MailClient talks to the mensagelo mail microservice. Only the async API is
// used: "success" means the service accepted and queued the request, not
// that SMTP delivered anything.
type MailClient struct {
	sendURL    string
	apiKey     string
	http       *http.Client
	maxRetries uint64
	initial    time.Duration
	max        time.Duration
}

// NewMailClient builds a client from the mail config.
func NewMailClient(cfg config.MailConfig) *MailClient {
	return &MailClient{
		sendURL:    strings.TrimRight(cfg.BaseURL, "/") + "/send_async",
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: cfg.Timeout},
		maxRetries: uint64(cfg.MaxRetries),
		initial:    cfg.BackoffInitial,
		max:        cfg.BackoffMax,
	}
}

type enqueueRequest struct {
	Recipients  []string `json:"recipients"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	MessageType string   `json:"message_type"`
}

type enqueueResponse struct {
	OK      bool   `json:"ok"`
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// Enqueue posts the email to the async endpoint. Network failures and
// overload responses (429/503) retry with capped exponential backoff; auth
// failures and other HTTP errors are terminal. Returns whether the request
// was accepted plus a diagnostic message.
func (c *MailClient) Enqueue(recipients []string, subject, body, messageType string) (bool, string) {
	payload, err := json.Marshal(enqueueRequest{
		Recipients:  recipients,
		Subject:     subject,
		Body:        body,
		MessageType: messageType,
	})
	if err != nil {
		return false, fmt.Sprintf("marshal request: %v", err)
	}

	var accepted bool
	var detail string

	op := func() error {
		req, err := http.NewRequest(http.MethodPost, c.sendURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			detail = fmt.Sprintf("network error or timeout: %v", err)
			return err // retryable
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusAccepted:
			var r enqueueResponse
			if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
				detail = "202 response without valid JSON"
				return nil
			}
			accepted = r.OK && r.Queued
			detail = r.Message
			if detail == "" {
				detail = "request accepted"
			}
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			detail = "unauthorized: check API key"
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
			detail = fmt.Sprintf("service overloaded: %s", readDetail(resp.Body))
			return fmt.Errorf("mail service overloaded: http %d", resp.StatusCode) // retryable
		default:
			detail = fmt.Sprintf("http %d: %s", resp.StatusCode, readDetail(resp.Body))
			return nil
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initial
	bo.MaxInterval = c.max
	bo.MaxElapsedTime = 0 // bounded by the retry count, not wall time

	if err := backoff.Retry(op, backoff.WithMaxRetries(bo, c.maxRetries)); err != nil {
		return false, detail
	}
	return accepted, detail
}

func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(b, &body) == nil && body.Detail != "" {
		return body.Detail
	}
	return strings.TrimSpace(string(b))
}
