// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/metrics"
	"github.com/telekom/form-relay/pkg/validation"
)

// ErrNoRecipient is returned when neither the alert nor the client carries a
// destination number.
var ErrNoRecipient = errors.New("sms recipient is not configured")

// Alert is the escalation message sent to the operator's phone.
type Alert struct {
	Body string `json:"body"`
	To   string `json:"to,omitempty"`
}

// NewAlert builds the escalation alert for a submission whose email delivery
// was exhausted. An empty to falls back to the client's configured recipient.
func NewAlert(sub validation.Submission, to string) Alert {
	return Alert{
		Body: fmt.Sprintf("Failed to send email from %s. Message: %s", sub.Email, sub.Message),
		To:   to,
	}
}

// Sender delivers alerts.
type Sender interface {
	Send(ctx context.Context, a Alert) error
}

// APIError is the error body returned by the messaging API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sms api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("sms api returned status %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Client sends alerts through the Messages resource of the REST API.
type Client struct {
	http       *resty.Client
	accountSID string
	from       string
	to         string
	limiter    *rate.Limiter
	log        *zap.SugaredLogger
}

// NewClient creates a Client from configuration.
func NewClient(cfg config.SMS, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	return &Client{
		http:       httpClient,
		accountSID: cfg.AccountSID,
		from:       cfg.From,
		to:         cfg.To,
		limiter:    rate.NewLimiter(limit, burst),
		log:        log,
	}
}

// Send delivers one alert. Calls block while the outgoing rate is exceeded.
func (c *Client) Send(ctx context.Context, a Alert) error {
	to := a.To
	if to == "" {
		to = c.to
	}
	if to == "" {
		metrics.SMSSendFailure.Inc()
		return ErrNoRecipient
	}

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.SMSSendFailure.Inc()
		return fmt.Errorf("waiting for sms rate limiter: %w", err)
	}

	var result messageResponse
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("accountSID", c.accountSID).
		SetFormData(map[string]string{
			"Body": a.Body,
			"To":   to,
			"From": c.from,
		}).
		SetResult(&result).
		SetError(apiErr).
		Post("/2010-04-01/Accounts/{accountSID}/Messages.json")
	if err != nil {
		metrics.SMSSendFailure.Inc()
		return fmt.Errorf("sending sms: %w", err)
	}
	if resp.IsError() {
		metrics.SMSSendFailure.Inc()
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}

	c.log.Infow("Escalation alert sent", "to", to, "sid", result.SID, "status", result.Status)
	metrics.SMSSendSuccess.Inc()
	return nil
}

// Noop drops alerts. It is used when SMS escalation is disabled.
type Noop struct {
	log *zap.SugaredLogger
}

func NewNoop(log *zap.SugaredLogger) *Noop {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Noop{log: log}
}

func (n *Noop) Send(_ context.Context, a Alert) error {
	n.log.Warnw("SMS escalation disabled, alert not sent", "body", a.Body)
	return nil
}

// New returns the Sender matching the configuration.
func New(cfg config.SMS, log *zap.SugaredLogger) Sender {
	if !cfg.Enabled {
		return NewNoop(log)
	}
	return NewClient(cfg, log)
}
