// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"
	"maps"

	"github.com/stacklok/toolhive-oauth/lock"
)

// DefaultResourceOwnerID identifies the resource owner when none is given.
// Client credentials dancers keep their single context under this id.
const DefaultResourceOwnerID = "_default"

// ResourceOwnerContext is the OAuth state held for one resource owner.
//
// Values handed out by a Store are copies. Changes become visible to other
// callers only when the context is written back while its lock is held.
type ResourceOwnerContext struct {
	ResourceOwnerID string `json:"resourceOwnerId"`

	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`

	// ExpiresIn is kept as returned by the token endpoint.
	ExpiresIn string `json:"expiresIn,omitempty"`

	// State correlates an authorization request with its callback.
	State string `json:"state,omitempty"`

	CustomResponseParameters map[string]any `json:"customResponseParameters,omitempty"`

	refreshLock lock.Lock
}

// NewResourceOwnerContext returns an empty context for ownerID guarded by l.
func NewResourceOwnerContext(ownerID string, l lock.Lock) *ResourceOwnerContext {
	return &ResourceOwnerContext{
		ResourceOwnerID:          ownerID,
		CustomResponseParameters: map[string]any{},
		refreshLock:              l,
	}
}

// RefreshLock returns the lock that guards mutations of this context.
func (c *ResourceOwnerContext) RefreshLock() lock.Lock {
	return c.refreshLock
}

// SetRefreshLock replaces the lock that guards mutations of this context.
func (c *ResourceOwnerContext) SetRefreshLock(l lock.Lock) {
	c.refreshLock = l
}

// HasAccessToken reports whether an exchange has produced an access token.
func (c *ResourceOwnerContext) HasAccessToken() bool {
	return c.AccessToken != ""
}

// Clone returns a deep copy of c. The copy shares c's lock handle.
func (c *ResourceOwnerContext) Clone() *ResourceOwnerContext {
	if c == nil {
		return nil
	}
	out := *c
	out.CustomResponseParameters = cloneParams(c.CustomResponseParameters)
	return &out
}

// Marshal encodes the persisted fields of c. The lock is not persisted.
func (c *ResourceOwnerContext) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal decodes a context written by Marshal. The result has no lock.
func Unmarshal(data []byte) (*ResourceOwnerContext, error) {
	var c ResourceOwnerContext
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.CustomResponseParameters == nil {
		c.CustomResponseParameters = map[string]any{}
	}
	return &c, nil
}

// NormalizeParams returns params as a store that persists JSON reads them
// back: numbers become float64, lists []any and objects map[string]any. The
// result is never nil.
func NormalizeParams(params map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(params) == 0 {
		return out, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// cloneParams copies nested maps and slices so that copies never alias.
func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneParams(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
