// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package cel evaluates token response extraction expressions written in the
Common Expression Language.

# Evaluator

Evaluator is the default expression.Evaluator. A configured string is an
expression when it is wrapped in #[ and ]; the text in between is CEL with
the payload, attributes and dataType variables declared:

	e := cel.NewEvaluator()
	v, err := e.Evaluate("#[payload.access_token]", input.Bindings())

Selecting a key the payload does not contain, or a JSON null, evaluates to nil
so that optional fields such as refresh_token can simply be absent. Compiled
programs are cached per expression.

Use Check to validate configured expressions at startup:

	if err := e.Check(cfg.AccessTokenExpr); err != nil {
	    // reject the configuration
	}

# Engine

Engine is the lower level compiler behind the evaluator. It creates the CEL
environment once, reports rejected expressions as *ExpressionError with the
failing stage and line and column details, and bounds both expression length
and runtime cost:

	engine := cel.NewEngine(
	    []celgo.EnvOption{celgo.Variable("payload", celgo.DynType)},
	    cel.WithMaxExpressionLength(5000),
	    cel.WithCostLimit(500000),
	)

	prg, err := engine.Compile(`payload.expires_in > 0.0`)
	var exprErr *cel.ExpressionError
	if errors.As(err, &exprErr) {
	    log.Printf("%s error at %v", exprErr.Stage, exprErr.Issues)
	}

Engine, Program and Evaluator are safe for concurrent use.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package cel
