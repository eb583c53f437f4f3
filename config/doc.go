// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package config loads dancers and the infrastructure they share from a YAML
file.

The file lives at DefaultPath, under the XDG config home, unless another
path is given. It is validated against an embedded JSON schema before it is
decoded:

	logging:
	  format: json        # json or text
	  level: info
	redis:
	  address: localhost:6379
	store:
	  type: redis         # memory, redis, sqlite or postgres
	  ttl: 24h
	locks:
	  type: redis         # local or redis
	dancers:
	  - name: github
	    grant: authorization_code
	    tokenUrl: https://github.com/login/oauth/access_token
	    authorizationUrl: https://github.com/login/oauth/authorize
	    externalCallbackUrl: https://app.example.com/oauth/callback

Secrets are best kept out of the file. TOOLHIVE_OAUTH_CLIENT_ID,
TOOLHIVE_OAUTH_CLIENT_SECRET and TOOLHIVE_OAUTH_REDIS_PASSWORD override the
file, and TOOLHIVE_OAUTH_GITHUB_CLIENT_SECRET overrides the secret of the
dancer named github only. TOOLHIVE_OAUTH_GITHUB_STATE_KEY sets the key that
signs its generated states; replicas serving the same callbacks need the same
key.

Build turns a Config into a Stack of stopped dancers. The dancers share the
store, so each keeps its contexts under StoreKey(name, owner):

	cfg, err := config.Load("", &env.OSReader{})
	if err != nil {
		return err
	}
	stack, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	d := stack.AuthorizationCode["github"]
	if err := d.Start(); err != nil {
		return err
	}
	defer d.Stop()

# Stability

This package is Alpha stability. The API may change without notice.
*/
package config
