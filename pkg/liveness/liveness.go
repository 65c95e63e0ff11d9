// Package liveness periodically requests the service's own health route so
// that hosting platforms which idle inactive instances keep it running.
package liveness

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/metrics"
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Probe struct {
	c       *cron.Cron
	http    *resty.Client
	url     string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// New schedules a GET of cfg.URL on cfg.Schedule. The probe does not run until
// Start is called.
func New(cfg config.Liveness, log *zap.SugaredLogger) (*Probe, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("liveness url is required")
	}
	sched, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid liveness schedule %q: %w", cfg.Schedule, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p := &Probe{
		c:       cron.New(cron.WithParser(parser)),
		http:    resty.New().SetTimeout(timeout),
		url:     cfg.URL,
		timeout: timeout,
		log:     log,
	}
	p.c.Schedule(sched, cron.FuncJob(p.run))
	return p, nil
}

func (p *Probe) run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		p.log.Warnw("Liveness check failed", "url", p.url, "error", err)
		return
	}
	p.log.Debugw("Liveness check ok", "url", p.url)
}

// Ping requests the health URL once.
func (p *Probe) Ping(ctx context.Context) error {
	resp, err := p.http.R().SetContext(ctx).Get(p.url)
	if err != nil {
		metrics.LivenessProbes.WithLabelValues("error").Inc()
		return err
	}
	if resp.IsError() {
		metrics.LivenessProbes.WithLabelValues("failure").Inc()
		return fmt.Errorf("health route returned status %d", resp.StatusCode())
	}
	metrics.LivenessProbes.WithLabelValues("success").Inc()
	return nil
}

func (p *Probe) Start() {
	p.log.Infow("Liveness probe started", "url", p.url)
	p.c.Start()
}

// Stop stops scheduling and waits for a running check or ctx, whichever is first.
func (p *Probe) Stop(ctx context.Context) {
	select {
	case <-p.c.Stop().Done():
	case <-ctx.Done():
	}
}
