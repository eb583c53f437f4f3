// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

// Grant types as defined by RFC 6749.
const (
	// GrantTypeAuthorizationCode is the authorization code grant type (RFC 6749 Section 4.1).
	GrantTypeAuthorizationCode = "authorization_code"

	// GrantTypeClientCredentials is the client credentials grant type (RFC 6749 Section 4.4).
	GrantTypeClientCredentials = "client_credentials"

	// GrantTypeRefreshToken is the refresh token grant type (RFC 6749 Section 6).
	GrantTypeRefreshToken = "refresh_token"
)

// Response types as defined by RFC 6749.
const (
	// ResponseTypeCode is the authorization code response type (RFC 6749 Section 4.1.1).
	ResponseTypeCode = "code"
)

// Request and response parameter names used by the authorization and token endpoints.
const (
	ParamClientID     = "client_id"
	ParamClientSecret = "client_secret"
	ParamGrantType    = "grant_type"
	ParamScope        = "scope"
	ParamCode         = "code"
	ParamRedirectURI  = "redirect_uri"
	ParamRefreshToken = "refresh_token"
	ParamState        = "state"
	ParamResponseType = "response_type"

	// ParamError and ParamErrorDescription are returned on the redirect when the
	// resource owner denies access (RFC 6749 Section 4.1.2.1).
	ParamError            = "error"
	ParamErrorDescription = "error_description"
)

// Token endpoint authentication methods as defined by RFC 7591.
const (
	// TokenEndpointAuthMethodClientSecretBasic sends the client credentials in an
	// HTTP Basic Authorization header.
	TokenEndpointAuthMethodClientSecretBasic = "client_secret_basic"

	// TokenEndpointAuthMethodClientSecretPost sends the client credentials as
	// form parameters in the request body.
	TokenEndpointAuthMethodClientSecretPost = "client_secret_post"
)

// ContentTypeForm is the media type of every token endpoint request body.
const ContentTypeForm = "application/x-www-form-urlencoded"
