package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

// inflight tracks which controls have a request outstanding.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// begin claims every key or none of them.
func (f *inflight) begin(keys ...string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	for _, key := range keys {
		if _, busy := f.keys[key]; busy {
			return nil, domain.Reject(domain.ErrBusy, "This action is already in progress. Please wait for it to finish.")
		}
	}
	for _, key := range keys {
		f.keys[key] = struct{}{}
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, key := range keys {
			delete(f.keys, key)
		}
	}, nil
}

// bindLifetime derives a call context that also ends when the owning screen closes.
func bindLifetime(ctx, lifetime context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(lifetime, func() {
		cancel(domain.ErrClosed)
	})
	return callCtx, func() {
		stop()
		cancel(nil)
	}
}

// alive reports ErrClosed once the owning screen has gone away.
func alive(lifetime context.Context) error {
	if lifetime.Err() != nil {
		return domain.ErrClosed
	}
	return nil
}
