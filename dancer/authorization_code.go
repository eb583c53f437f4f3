// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dancer

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/stacklok/toolhive-oauth/async"
	"github.com/stacklok/toolhive-oauth/exchange"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/state"
	httpval "github.com/stacklok/toolhive-oauth/validation/http"
)

// stateOwnerMarker separates the state from the resource owner id it carries.
const stateOwnerMarker = ":resourceOwnerId="

// CallbackContext carries values from the before-dance callback to the
// parameter suppliers and the after-dance callback of the same authorization.
type CallbackContext interface {
	Parameter(key string) (any, bool)
}

// CallbackParams is a map-backed CallbackContext.
type CallbackParams map[string]any

// Parameter implements CallbackContext.
func (p CallbackParams) Parameter(key string) (any, bool) {
	v, ok := p[key]
	return v, ok
}

// AuthorizationCodeRequest describes the authorization a callback completes.
type AuthorizationCodeRequest struct {
	ResourceOwnerID  string
	AuthorizationURL string
	TokenURL         string
	ClientID         string
	ClientSecret     string
	Scopes           string
	// State is the state the authorization was started with, without the
	// resource owner id.
	State string
}

// CallbackRequest is the redirect the authorization server sends the
// resource owner back with.
type CallbackRequest struct {
	Code  string
	State string
	// QueryParams are bound as attributes.queryParams for the extraction
	// expressions.
	QueryParams url.Values
}

// AuthorizationCodeConfig configures an AuthorizationCodeDancer.
type AuthorizationCodeConfig struct {
	Config

	AuthorizationURL string
	// ExternalCallbackURL is the redirect_uri registered with the authorization server.
	ExternalCallbackURL string
	RedirectURIPolicy   oauth.RedirectURIPolicy

	// State is sent with every authorization request and must come back on
	// the callback. When empty, every request gets a random nonce signed
	// together with the resource owner id, and the callback must carry a
	// signature that matches its owner.
	State string
	// StateKey signs generated states. A random key is created when empty,
	// so dancers that handle each other's callbacks must share one.
	StateKey []byte

	// CustomParameters supplies extra authorization request parameters.
	CustomParameters func(CallbackContext) map[string]string
	// CustomHeaders supplies extra token request headers. Headers are
	// validated when they are sent.
	CustomHeaders func(CallbackContext) map[string]string

	// BeforeDance runs before the code is exchanged. An error aborts the callback.
	BeforeDance func(ctx context.Context, req AuthorizationCodeRequest) (CallbackContext, error)
	// AfterDance runs after the tokens were stored.
	AfterDance func(ctx context.Context, cc CallbackContext, rc *state.ResourceOwnerContext)
}

// AuthorizationCodeDancer obtains tokens on behalf of resource owners with
// the authorization code grant (RFC 6749 Section 4.1).
type AuthorizationCodeDancer struct {
	*Base[AuthorizationCodeListener]

	authorizationURL string
	callbackURL      string
	state            string
	stateKey         []byte
	customParameters func(CallbackContext) map[string]string
	customHeaders    func(CallbackContext) map[string]string
	beforeDance      func(context.Context, AuthorizationCodeRequest) (CallbackContext, error)
	afterDance       func(context.Context, CallbackContext, *state.ResourceOwnerContext)
}

// NewAuthorizationCodeDancer validates cfg and returns a stopped dancer.
func NewAuthorizationCodeDancer(cfg AuthorizationCodeConfig) (*AuthorizationCodeDancer, error) {
	if err := httpval.ValidateEndpointURL(cfg.AuthorizationURL); err != nil {
		return nil, fmt.Errorf("%w: authorization URL: %w", ErrInvalidConfig, err)
	}
	if err := oauth.ValidateRedirectURI(cfg.ExternalCallbackURL, cfg.RedirectURIPolicy); err != nil {
		return nil, fmt.Errorf("%w: external callback URL: %w", ErrInvalidConfig, err)
	}
	b, err := newBase[AuthorizationCodeListener](cfg.Config, CredentialsInBody)
	if err != nil {
		return nil, err
	}

	d := &AuthorizationCodeDancer{
		Base:             b,
		authorizationURL: cfg.AuthorizationURL,
		callbackURL:      cfg.ExternalCallbackURL,
		state:            cfg.State,
		stateKey:         cfg.StateKey,
		customParameters: cfg.CustomParameters,
		customHeaders:    cfg.CustomHeaders,
		beforeDance:      cfg.BeforeDance,
		afterDance:       cfg.AfterDance,
	}
	if len(d.stateKey) == 0 {
		d.stateKey = []byte(rand.Text())
	}
	if d.beforeDance == nil {
		d.beforeDance = func(context.Context, AuthorizationCodeRequest) (CallbackContext, error) {
			return CallbackParams{}, nil
		}
	}
	return d, nil
}

// AuthorizationURL returns the URL the resource owner is sent to in order to
// grant access. The state parameter carries ownerID back to the callback.
func (d *AuthorizationCodeDancer) AuthorizationURL(ownerID string) (string, error) {
	owner, _, err := d.resolve(ownerID)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(d.authorizationURL)
	if err != nil {
		return "", fmt.Errorf("parsing authorization URL: %w", err)
	}
	q := u.Query()
	if d.customParameters != nil {
		for k, v := range d.customParameters(CallbackParams{}) {
			q.Set(k, v)
		}
	}
	q.Set(oauth.ParamResponseType, oauth.ResponseTypeCode)
	q.Set(oauth.ParamClientID, d.cfg.ClientID)
	q.Set(oauth.ParamRedirectURI, d.callbackURL)
	if d.cfg.Scopes != "" {
		q.Set(oauth.ParamScope, d.cfg.Scopes)
	}

	st := d.state
	if st == "" {
		st = d.signState(uuid.NewString(), owner)
	}
	q.Set(oauth.ParamState, EncodeState(st, owner))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HandleCallback exchanges the authorization code of a callback for tokens
// and stores them for the resource owner named in the state.
func (d *AuthorizationCodeDancer) HandleCallback(ctx context.Context, cb CallbackRequest) *async.Future[*state.ResourceOwnerContext] {
	if cb.Code == "" {
		return async.Failed[*state.ResourceOwnerContext](ErrMissingAuthorizationCode)
	}
	originalState, owner := DecodeState(cb.State)
	if err := d.checkState(originalState, owner); err != nil {
		return async.Failed[*state.ResourceOwnerContext](err)
	}

	return async.Go(func() (*state.ResourceOwnerContext, error) {
		cc, err := d.beforeDance(ctx, AuthorizationCodeRequest{
			ResourceOwnerID:  owner,
			AuthorizationURL: d.authorizationURL,
			TokenURL:         d.cfg.TokenURL,
			ClientID:         d.cfg.ClientID,
			ClientSecret:     d.cfg.ClientSecret,
			Scopes:           d.cfg.Scopes,
			State:            originalState,
		})
		if err != nil {
			return nil, fmt.Errorf("before dance callback: %w", err)
		}
		if cc == nil {
			cc = CallbackParams{}
		}
		headers, err := d.headers(cc)
		if err != nil {
			return nil, err
		}

		rc, err := d.runDance(ctx, danceRequest[AuthorizationCodeListener]{
			ownerID: owner,
			build: func(*state.ResourceOwnerContext) (exchange.Request, error) {
				req := d.newRequest(map[string]string{
					oauth.ParamCode:        cb.Code,
					oauth.ParamRedirectURI: d.callbackURL,
					oauth.ParamGrantType:   oauth.GrantTypeAuthorizationCode,
				}, headers)
				req.RetrieveRefreshToken = true
				req.QueryParams = cb.QueryParams
				if req.QueryParams == nil {
					req.QueryParams = url.Values{}
				}
				return req, nil
			},
			apply: func(rc *state.ResourceOwnerContext, tr *exchange.TokenResponse) {
				mergeResponse(rc, tr)
				rc.State = originalState
			},
			event: eventAuthorizationCompleted,
			notify: func(ctx context.Context, l AuthorizationCodeListener, rc *state.ResourceOwnerContext) error {
				return l.OnAuthorizationCompleted(ctx, rc)
			},
		})
		if err != nil {
			return nil, err
		}

		if d.afterDance != nil {
			d.afterDance(ctx, cc, rc.Clone())
		}
		return rc, nil
	})
}

// RefreshToken exchanges the stored refresh token of ownerID for new tokens.
// It fails with ErrNoRefreshToken when the context holds none.
func (d *AuthorizationCodeDancer) RefreshToken(ctx context.Context, ownerID string) *async.Future[*state.ResourceOwnerContext] {
	headers, err := d.headers(CallbackParams{})
	if err != nil {
		return async.Failed[*state.ResourceOwnerContext](err)
	}

	return d.dance(ctx, danceRequest[AuthorizationCodeListener]{
		ownerID:  ownerID,
		coalesce: true,
		build: func(rc *state.ResourceOwnerContext) (exchange.Request, error) {
			if rc.RefreshToken == "" {
				return exchange.Request{}, fmt.Errorf("%w %s", ErrNoRefreshToken, rc.ResourceOwnerID)
			}
			req := d.newRequest(map[string]string{
				oauth.ParamGrantType:    oauth.GrantTypeRefreshToken,
				oauth.ParamRefreshToken: rc.RefreshToken,
				oauth.ParamRedirectURI:  d.callbackURL,
			}, headers)
			req.RetrieveRefreshToken = true
			return req, nil
		},
		apply: mergeResponse,
		event: eventTokenRefreshed,
		notify: func(ctx context.Context, l AuthorizationCodeListener, rc *state.ResourceOwnerContext) error {
			return l.OnTokenRefreshed(ctx, rc)
		},
	})
}

// AccessToken returns the stored access token of ownerID. It fails with
// ErrNoAccessToken when the owner has not authorized yet.
func (d *AuthorizationCodeDancer) AccessToken(ctx context.Context, ownerID string) (string, error) {
	rc, err := d.GetContext(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if !rc.HasAccessToken() {
		return "", fmt.Errorf("%w %s", ErrNoAccessToken, rc.ResourceOwnerID)
	}
	return rc.AccessToken, nil
}

// TokenSource returns an oauth2.TokenSource serving the access token of ownerID.
func (d *AuthorizationCodeDancer) TokenSource(ctx context.Context, ownerID string) oauth2.TokenSource {
	return NewTokenSource(ctx, func(ctx context.Context) (string, error) {
		return d.AccessToken(ctx, ownerID)
	})
}

func (d *AuthorizationCodeDancer) headers(cc CallbackContext) (map[string]string, error) {
	if d.customHeaders == nil {
		return nil, nil
	}
	headers := maps.Clone(d.customHeaders(cc))
	if err := httpval.ValidateHeaders(headers); err != nil {
		return nil, fmt.Errorf("custom headers: %w", err)
	}
	return headers, nil
}

// signState binds nonce to owner: "<nonce>.<mac>".
func (d *AuthorizationCodeDancer) signState(nonce, owner string) string {
	mac := hmac.New(sha256.New, d.stateKey)
	mac.Write([]byte(nonce))
	mac.Write([]byte{0})
	mac.Write([]byte(owner))
	return nonce + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// checkState verifies the state a callback came back with against the
// configured state, or against owner when states are generated.
func (d *AuthorizationCodeDancer) checkState(st, owner string) error {
	if d.state != "" {
		if st != d.state {
			return fmt.Errorf("%w: got %q", ErrInvalidState, st)
		}
		return nil
	}
	nonce, _, ok := strings.Cut(st, ".")
	if !ok || !hmac.Equal([]byte(st), []byte(d.signState(nonce, owner))) {
		return fmt.Errorf("%w: not issued for resource owner %s", ErrInvalidState, owner)
	}
	return nil
}

// EncodeState appends ownerID to st.
func EncodeState(st, ownerID string) string {
	return st + stateOwnerMarker + ownerID
}

// DecodeState splits a state produced by EncodeState. A state without an
// owner id belongs to state.DefaultResourceOwnerID.
func DecodeState(encoded string) (st, ownerID string) {
	st, ownerID, found := strings.Cut(encoded, stateOwnerMarker)
	if !found || ownerID == "" {
		return st, state.DefaultResourceOwnerID
	}
	return st, ownerID
}
