package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// wellKnownMailServices maps provider shortcuts to their SMTP submission endpoints.
var wellKnownMailServices = map[string]struct {
	host string
	port int
}{
	"gmail":   {"smtp.gmail.com", 587},
	"outlook": {"smtp-mail.outlook.com", 587},
	"hotmail": {"smtp-mail.outlook.com", 587},
	"yahoo":   {"smtp.mail.yahoo.com", 465},
}

// Defaults fills every unset value with the reference deployment setting.
func (c *Config) Defaults() {
	if c.Server.Port != "" {
		c.Server.ListenAddress = ":" + strings.TrimPrefix(c.Server.Port, ":")
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":3000"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.HealthPath == "" {
		c.Server.HealthPath = "/health-check-route"
	}

	if svc, ok := wellKnownMailServices[strings.ToLower(c.Mail.Service)]; ok {
		if c.Mail.Host == "" {
			c.Mail.Host = svc.host
		}
		if c.Mail.Port == 0 {
			c.Mail.Port = svc.port
		}
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.Subject == "" {
		c.Mail.Subject = "New Portfolio Form Submission"
	}

	if c.SMS.BaseURL == "" {
		c.SMS.BaseURL = "https://api.twilio.com"
	}
	if c.SMS.Timeout <= 0 {
		c.SMS.Timeout = 10 * time.Second
	}
	if c.SMS.Rate <= 0 {
		c.SMS.Rate = 1
	}
	if c.SMS.Burst <= 0 {
		c.SMS.Burst = 5
	}

	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = 24 * time.Hour
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = 5
	}
	if c.RateLimit.CleanupInterval <= 0 {
		c.RateLimit.CleanupInterval = time.Minute
	}

	if c.Delivery.AckMode == "" {
		c.Delivery.AckMode = AckImmediate
	}
	if c.Delivery.MaxRetries <= 0 {
		c.Delivery.MaxRetries = 5
	}
	if c.Delivery.Backoff == "" {
		c.Delivery.Backoff = "random"
	}
	if c.Delivery.MinDelay <= 0 {
		c.Delivery.MinDelay = 5 * time.Second
	}
	if c.Delivery.MaxDelay <= 0 {
		c.Delivery.MaxDelay = 20 * time.Second
	}
	if c.Delivery.Workers <= 0 {
		c.Delivery.Workers = 4
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = 1000
	}
	if c.Queue.EnqueueTimeout <= 0 {
		c.Queue.EnqueueTimeout = 2 * time.Second
	}
	if c.Queue.RedisAddr == "" {
		c.Queue.RedisAddr = "localhost:6379"
	}
	if c.Queue.RedisKey == "" {
		c.Queue.RedisKey = "form-relay:email"
	}

	if c.Fallback.Table == "" {
		c.Fallback.Table = "failed_emails"
	}

	if c.Events.KafkaTopic == "" {
		c.Events.KafkaTopic = "form-relay-delivery"
	}

	if c.Captcha.VerifyURL == "" {
		c.Captcha.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if c.Captcha.Timeout <= 0 {
		c.Captcha.Timeout = 5 * time.Second
	}

	if c.Liveness.Schedule == "" {
		c.Liveness.Schedule = "@every 14m"
	}
	if c.Liveness.Timeout <= 0 {
		c.Liveness.Timeout = 10 * time.Second
	}

	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 7
	}
}

// Validate reports settings that cannot work together. It expects Defaults to have run.
func (c *Config) Validate() error {
	var errs []error
	switch c.Delivery.AckMode {
	case AckImmediate, AckFirstAttempt:
	default:
		errs = append(errs, fmt.Errorf("delivery.ackMode must be %q or %q, got %q", AckImmediate, AckFirstAttempt, c.Delivery.AckMode))
	}
	switch c.Delivery.Backoff {
	case "random", "exponential":
	default:
		errs = append(errs, fmt.Errorf("delivery.backoff must be \"random\" or \"exponential\", got %q", c.Delivery.Backoff))
	}
	if c.Delivery.MinDelay > c.Delivery.MaxDelay {
		errs = append(errs, fmt.Errorf("delivery.minDelay (%s) exceeds delivery.maxDelay (%s)", c.Delivery.MinDelay, c.Delivery.MaxDelay))
	}
	switch c.Queue.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("queue.driver must be \"memory\" or \"redis\", got %q", c.Queue.Driver))
	}
	switch c.Fallback.Driver {
	case "", "sqlite", "sqlserver":
	default:
		errs = append(errs, fmt.Errorf("fallback.driver must be \"sqlite\" or \"sqlserver\", got %q", c.Fallback.Driver))
	}
	if c.Fallback.Driver != "" && c.Fallback.DSN == "" {
		errs = append(errs, errors.New("fallback.dsn is required when fallback.driver is set"))
	}
	if c.SMS.Enabled && (c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.To == "") {
		errs = append(errs, errors.New("sms.accountSID, sms.authToken and sms.to are required when sms is enabled"))
	}
	return errors.Join(errs...)
}
