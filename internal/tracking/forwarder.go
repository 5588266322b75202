// Package tracking records send outcomes without ever slowing down a send.
//
// Delivery is at most once. Forward never blocks: when the queue is full the
// event is dropped, logged and counted. Storage errors are logged and counted
// and never reach the sender.
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"lcamail-engine/internal/metrics"
	"lcamail-engine/internal/store"
)

// Store persists one application and later attaches its logo.
type Store interface {
	Insert(ctx context.Context, app store.Application) (int64, error)
	SetLogo(ctx context.Context, id int64, logoKey string) error
}

// LogoResolver maps an employer domain to a cached logo key.
type LogoResolver interface {
	CacheFaviconForDomain(ctx context.Context, domain string) (string, error)
}

type Forwarder struct {
	store  Store
	logos  LogoResolver
	log    *zap.Logger
	queue  chan store.Application
	insert time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewForwarder starts the worker. logos may be nil.
func NewForwarder(st Store, logos LogoResolver, queueSize int, log *zap.Logger) *Forwarder {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	f := &Forwarder{
		store:  st,
		logos:  logos,
		log:    log,
		queue:  make(chan store.Application, queueSize),
		insert: 10 * time.Second,
		done:   make(chan struct{}),
	}
	go f.run()
	return f
}

// Forward enqueues app and reports whether it was accepted.
func (f *Forwarder) Forward(app store.Application) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.drop(app, "closed")
		return false
	}
	select {
	case f.queue <- app:
		return true
	default:
		f.drop(app, "queue full")
		return false
	}
}

func (f *Forwarder) drop(app store.Application, why string) {
	metrics.IncrementTracking("dropped")
	f.log.Warn("tracking event dropped",
		zap.String("reason", why),
		zap.Int64("user_id", app.UserID),
		zap.String("case_number", app.CaseNumber),
		zap.String("status", app.Status),
	)
}

func (f *Forwarder) run() {
	defer close(f.done)
	for app := range f.queue {
		f.persist(app)
	}
}

func (f *Forwarder) persist(app store.Application) {
	ctx, cancel := context.WithTimeout(context.Background(), f.insert)
	defer cancel()

	id, err := f.store.Insert(ctx, app)
	if err != nil {
		metrics.IncrementTracking("error")
		f.log.Error("tracking insert failed",
			zap.Int64("user_id", app.UserID),
			zap.String("case_number", app.CaseNumber),
			zap.Error(err),
		)
		return
	}
	metrics.IncrementTracking("stored")

	// the row is stored first; a slow favicon fetch only delays the logo
	if f.logos == nil || app.LogoKey != "" || app.EmployerDomain == "" || app.Status != store.StatusSent {
		return
	}
	lctx, lcancel := context.WithTimeout(context.Background(), f.insert)
	defer lcancel()
	key, err := f.logos.CacheFaviconForDomain(lctx, app.EmployerDomain)
	if err != nil || key == "" {
		f.log.Debug("logo cache", zap.String("domain", app.EmployerDomain), zap.Error(err))
		return
	}
	if err := f.store.SetLogo(lctx, id, key); err != nil {
		f.log.Warn("logo attach failed", zap.Int64("application_id", id), zap.Error(err))
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to
// end, whichever is first.
func (f *Forwarder) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("tracking forwarder already closed")
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
