package dispatch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"lcamail-engine/internal/config"
)

type PacingConfig struct {
	MessageDelay time.Duration // minimum gap between two sends
	BatchSize    int           // 0 disables batch pauses
	BatchDelay   time.Duration // pause after every BatchSize sends
}

func PacingFromConfig(cfg config.Config) PacingConfig {
	return PacingConfig{
		MessageDelay: time.Duration(cfg.Pacing.MessageDelayMS) * time.Millisecond,
		BatchSize:    cfg.Pacing.BatchSize,
		BatchDelay:   time.Duration(cfg.Pacing.BatchDelayMS) * time.Millisecond,
	}
}

// Pacer spaces outbound sends: a token bucket holding one token refilled
// every MessageDelay, plus a BatchDelay pause before each new batch. A Pacer
// belongs to one dispatch and is not safe for concurrent use.
type Pacer struct {
	cfg     PacingConfig
	clock   Clock
	limiter *rate.Limiter
	count   int
}

func NewPacer(cfg PacingConfig, clock Clock) *Pacer {
	if clock == nil {
		clock = realClock{}
	}
	limit := rate.Inf
	if cfg.MessageDelay > 0 {
		limit = rate.Every(cfg.MessageDelay)
	}
	return &Pacer{cfg: cfg, clock: clock, limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next send may start. The first call returns
// immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.cfg.BatchSize > 0 && p.count > 0 && p.count%p.cfg.BatchSize == 0 && p.cfg.BatchDelay > 0 {
		if err := p.sleep(ctx, p.cfg.BatchDelay); err != nil {
			return err
		}
	}

	now := p.clock.Now()
	r := p.limiter.ReserveN(now, 1)
	if !r.OK() {
		return errors.New("pacer: reservation exceeds burst")
	}
	if d := r.DelayFrom(now); d > 0 {
		if err := p.sleep(ctx, d); err != nil {
			r.CancelAt(p.clock.Now())
			return err
		}
	}
	p.count++
	return nil
}

func (p *Pacer) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}

// Sent reports how many waits have completed.
func (p *Pacer) Sent() int { return p.count }
