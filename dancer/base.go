// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dancer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/stacklok/toolhive-oauth/async"
	"github.com/stacklok/toolhive-oauth/exchange"
	"github.com/stacklok/toolhive-oauth/expression"
	"github.com/stacklok/toolhive-oauth/listener"
	"github.com/stacklok/toolhive-oauth/lock"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/state"
)

// Notification event names, used in logs.
const (
	eventTokenRefreshed         = "token_refreshed"
	eventTokenInvalidated       = "token_invalidated"
	eventAuthorizationCompleted = "authorization_completed"
)

// listenerType constrains the listener interfaces a Base notifies.
type listenerType interface {
	comparable
	TokenListener
}

// Base holds what the grant types have in common: the context store and its
// locks, the token exchange and the listeners.
//
// Every mutation of a resource owner's context happens while the owner's lock
// is held. The store lock, which serialises the creation of contexts, is never
// acquired while an owner lock is held.
type Base[L listenerType] struct {
	cfg       Config
	exchanger *exchange.Client
	notifier  *listener.Notifier[L]
	logger    *slog.Logger
	inflight  singleflight.Group
}

func newBase[L listenerType](cfg Config, location CredentialsLocation) (*Base[L], error) {
	cfg = cfg.withDefaults(location)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger.With("dancer", cfg.Name)
	return &Base[L]{
		cfg: cfg,
		exchanger: exchange.NewClient(
			cfg.Transport,
			expression.NewExtractor(cfg.Evaluator),
			cfg.Expressions,
			exchange.WithLogger(logger),
		),
		notifier: listener.NewNotifier[L](logger),
		logger:   logger,
	}, nil
}

// Name returns the dancer name used in lock ids.
func (b *Base[L]) Name() string {
	return b.cfg.Name
}

// Start starts the transport.
func (b *Base[L]) Start() error {
	return b.cfg.Transport.Start()
}

// Stop stops the transport.
func (b *Base[L]) Stop() error {
	return b.cfg.Transport.Stop()
}

// AddListener registers l and returns a function that removes it.
func (b *Base[L]) AddListener(l L) (remove func()) {
	return b.notifier.Add(l)
}

// RemoveListener unregisters l and reports whether it was registered.
func (b *Base[L]) RemoveListener(l L) bool {
	return b.notifier.Remove(l)
}

// resolve returns the normalised owner id and its store key.
func (b *Base[L]) resolve(ownerID string) (owner, key string, err error) {
	owner = ownerID
	if owner == "" {
		owner = state.DefaultResourceOwnerID
	}
	key = b.cfg.ResourceOwnerIDTransformer(owner)
	if key == "" {
		return "", "", fmt.Errorf("%w: %q has an empty key", ErrInvalidResourceOwner, ownerID)
	}
	return owner, key, nil
}

func (b *Base[L]) storeLock() lock.Lock {
	return b.cfg.Locks.NewLock(b.cfg.Name + "-config-oauth-context")
}

func (b *Base[L]) ownerLock(key string) lock.Lock {
	id := b.cfg.Name
	if strings.TrimSpace(key) != "" {
		id += "-" + key
	}
	return b.cfg.Locks.NewLock(id)
}

// unlock releases l even when ctx is done. A failure only means the lock is
// released later by its owner or its expiry, so it is logged.
func (b *Base[L]) unlock(ctx context.Context, l lock.Lock, key string) {
	if err := l.Unlock(context.WithoutCancel(ctx)); err != nil {
		b.logger.Warn("failed to release lock", "resource_owner", key, "error", err)
	}
}

// GetContext returns the context of ownerID, creating it when the store has
// none. An empty ownerID selects state.DefaultResourceOwnerID. The context
// comes with a fresh lock handle for its owner.
func (b *Base[L]) GetContext(ctx context.Context, ownerID string) (*state.ResourceOwnerContext, error) {
	owner, key, err := b.resolve(ownerID)
	if err != nil {
		return nil, err
	}

	rc, ok, err := b.cfg.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		rc.SetRefreshLock(b.ownerLock(key))
		return rc, nil
	}

	sl := b.storeLock()
	if err := sl.Lock(ctx); err != nil {
		return nil, fmt.Errorf("acquiring store lock: %w", err)
	}
	defer b.unlock(ctx, sl, key)

	rc, ok, err = b.cfg.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		rc.SetRefreshLock(b.ownerLock(key))
		return rc, nil
	}

	rc = state.NewResourceOwnerContext(owner, b.ownerLock(key))
	if err := b.cfg.Store.Put(ctx, key, rc); err != nil {
		return nil, err
	}
	b.logger.Debug("created resource owner context", "resource_owner", key)
	return rc, nil
}

// InvalidateContext removes the context of ownerID and notifies the listeners
// while the owner lock is still held. Invalidating an owner without a
// context does nothing.
func (b *Base[L]) InvalidateContext(ctx context.Context, ownerID string) error {
	owner, key, err := b.resolve(ownerID)
	if err != nil {
		return err
	}

	l := b.ownerLock(key)
	if err := l.Lock(ctx); err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", key, err)
	}
	defer b.unlock(ctx, l, key)

	_, ok, err := b.cfg.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := b.cfg.Store.Delete(ctx, key); err != nil {
		return err
	}

	b.logger.Debug("invalidated resource owner context", "resource_owner", key)
	b.notifier.Notify(eventTokenInvalidated, func(l L) error {
		return l.OnTokenInvalidated(ctx, owner)
	})
	return nil
}

// UpdateContext writes rc to the store while holding its owner's lock.
func (b *Base[L]) UpdateContext(ctx context.Context, rc *state.ResourceOwnerContext) error {
	_, key, err := b.resolve(rc.ResourceOwnerID)
	if err != nil {
		return err
	}

	l := rc.RefreshLock()
	if l == nil {
		l = b.ownerLock(key)
	}
	if err := l.Lock(ctx); err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", key, err)
	}
	defer b.unlock(ctx, l, key)

	return b.cfg.Store.Put(ctx, key, rc)
}

// danceRequest describes one token exchange for a resource owner.
type danceRequest[L listenerType] struct {
	ownerID string

	// coalesce allows concurrent identical dances to share one exchange.
	coalesce bool

	// build turns the current context into the token request. It runs while
	// the owner lock is held.
	build func(rc *state.ResourceOwnerContext) (exchange.Request, error)

	// apply folds the response into the context before it is persisted.
	apply func(rc *state.ResourceOwnerContext, tr *exchange.TokenResponse)

	event  string
	notify func(ctx context.Context, l L, rc *state.ResourceOwnerContext) error
}

// dance runs d on its own goroutine.
func (b *Base[L]) dance(ctx context.Context, d danceRequest[L]) *async.Future[*state.ResourceOwnerContext] {
	return async.Go(func() (*state.ResourceOwnerContext, error) {
		return b.runDance(ctx, d)
	})
}

func (b *Base[L]) runDance(ctx context.Context, d danceRequest[L]) (*state.ResourceOwnerContext, error) {
	if !d.coalesce || !b.cfg.Coalesce {
		return b.exchangeLocked(ctx, d)
	}

	_, key, err := b.resolve(d.ownerID)
	if err != nil {
		return nil, err
	}
	v, err, shared := b.inflight.Do(d.event+"/"+key, func() (any, error) {
		return b.exchangeLocked(context.WithoutCancel(ctx), d)
	})
	if err != nil {
		return nil, err
	}
	rc := v.(*state.ResourceOwnerContext)
	if shared {
		rc = rc.Clone()
	}
	return rc, nil
}

// exchangeLocked performs d while holding the owner lock. Nothing is written
// when the exchange fails. Listeners are notified after the lock is released.
func (b *Base[L]) exchangeLocked(ctx context.Context, d danceRequest[L]) (*state.ResourceOwnerContext, error) {
	rc, err := b.GetContext(ctx, d.ownerID)
	if err != nil {
		return nil, err
	}
	owner, key, err := b.resolve(d.ownerID)
	if err != nil {
		return nil, err
	}

	l := rc.RefreshLock()
	if err := l.Lock(ctx); err != nil {
		return nil, fmt.Errorf("acquiring lock for %s: %w", key, err)
	}
	locked := true
	defer func() {
		if locked {
			b.unlock(ctx, l, key)
		}
	}()

	// Another holder may have changed the context while we waited.
	current, ok, err := b.cfg.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		current.SetRefreshLock(l)
		rc = current
	} else {
		rc = state.NewResourceOwnerContext(owner, l)
	}

	req, err := d.build(rc)
	if err != nil {
		return nil, err
	}

	// The exchange outlives the caller; once sent it is not cancelled.
	detached := context.WithoutCancel(ctx)
	tr, err := b.exchanger.Exchange(detached, req).Result()
	if err != nil {
		b.logger.Debug("token exchange failed", "resource_owner", key, "error", err)
		return nil, err
	}

	d.apply(rc, tr)
	if err := b.cfg.Store.Put(detached, key, rc); err != nil {
		return nil, err
	}

	locked = false
	b.unlock(ctx, l, key)
	b.logger.Debug("token exchange succeeded", "resource_owner", key, "event", d.event)

	snapshot := rc.Clone()
	b.notifier.Notify(d.event, func(l L) error {
		return d.notify(ctx, l, snapshot)
	})
	return rc, nil
}

// credentials adds the client credentials to req as configured.
func (b *Base[L]) credentials(req *exchange.Request) {
	if b.cfg.CredentialsLocation == CredentialsInBody {
		req.Form[oauth.ParamClientID] = b.cfg.ClientID
		req.Form[oauth.ParamClientSecret] = b.cfg.ClientSecret
		return
	}
	req.Authorization = exchange.BasicAuthorization(b.cfg.ClientID, b.cfg.ClientSecret)
}

// newRequest returns a token request to the configured endpoint carrying form
// and the client credentials.
func (b *Base[L]) newRequest(form map[string]string, headers map[string]string) exchange.Request {
	req := exchange.Request{
		TokenURL: b.cfg.TokenURL,
		Form:     form,
		Headers:  headers,
		Encoding: b.cfg.Encoding,
	}
	b.credentials(&req)
	return req
}

// mergeResponse copies the fields returned by the token endpoint into rc. The
// refresh token is replaced only when a new one was returned.
func mergeResponse(rc *state.ResourceOwnerContext, tr *exchange.TokenResponse) {
	rc.AccessToken = tr.AccessToken
	rc.ExpiresIn = tr.ExpiresIn
	if tr.RefreshToken != "" {
		rc.RefreshToken = tr.RefreshToken
	}
	if len(tr.CustomResponseParameters) > 0 {
		if rc.CustomResponseParameters == nil {
			rc.CustomResponseParameters = make(map[string]any, len(tr.CustomResponseParameters))
		}
		maps.Copy(rc.CustomResponseParameters, tr.CustomResponseParameters)
	}
}
