// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package cel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

const (
	// DefaultMaxExpressionLength bounds the source length of an expression.
	DefaultMaxExpressionLength = 10000

	// DefaultCostLimit bounds the runtime cost of one evaluation.
	DefaultCostLimit = 1000000
)

// Engine compiles expressions against a fixed set of variable declarations.
// It is safe for concurrent use.
type Engine struct {
	options []cel.EnvOption

	once   sync.Once
	env    *cel.Env
	envErr error

	maxLength int
	costLimit uint64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxExpressionLength sets the longest accepted expression source.
func WithMaxExpressionLength(n int) EngineOption {
	return func(e *Engine) {
		e.maxLength = n
	}
}

// WithCostLimit sets the runtime cost a single evaluation may spend.
func WithCostLimit(limit uint64) EngineOption {
	return func(e *Engine) {
		e.costLimit = limit
	}
}

// NewEngine returns an engine whose environment declares vars. The
// environment is created on first use.
//
//	engine := cel.NewEngine([]celgo.EnvOption{
//	    celgo.Variable("payload", celgo.DynType),
//	})
func NewEngine(vars []cel.EnvOption, opts ...EngineOption) *Engine {
	e := &Engine{
		options:   vars,
		maxLength: DefaultMaxExpressionLength,
		costLimit: DefaultCostLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) environment() (*cel.Env, error) {
	e.once.Do(func() {
		e.env, e.envErr = cel.NewEnv(e.options...)
	})
	return e.env, e.envErr
}

// checked parses and type-checks source.
func (e *Engine) checked(source string) (*cel.Env, *cel.Ast, error) {
	if len(source) > e.maxLength {
		return nil, nil, lengthError(source, e.maxLength)
	}
	env, err := e.environment()
	if err != nil {
		return nil, nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	parsed, issues := env.Parse(source)
	if issues.Err() != nil {
		return nil, nil, issuesError(StageParse, source, issues)
	}
	ast, issues := env.Check(parsed)
	if issues.Err() != nil {
		return nil, nil, issuesError(StageCheck, source, issues)
	}
	return env, ast, nil
}

// Check reports whether source would compile. Failures are *ExpressionError.
func (e *Engine) Check(source string) error {
	_, _, err := e.checked(source)
	return err
}

// Compile turns source into a Program that can be run many times.
// Failures to parse or type-check are *ExpressionError.
func (e *Engine) Compile(source string) (*Program, error) {
	env, ast, err := e.checked(source)
	if err != nil {
		return nil, err
	}
	prg, err := env.Program(ast, cel.CostLimit(e.costLimit))
	if err != nil {
		return nil, fmt.Errorf("creating CEL program for %q: %w", source, err)
	}
	return &Program{source: source, prg: prg}, nil
}

// Program is a compiled expression. It is safe for concurrent use.
type Program struct {
	source string
	prg    cel.Program
}

// Source returns the expression the program was compiled from.
func (p *Program) Source() string {
	return p.source
}

// Eval runs the program against vars. Selecting a key that is not present in
// a map fails with an error wrapping both ErrEvaluation and ErrNoSuchKey.
func (p *Program) Eval(vars map[string]any) (ref.Val, error) {
	out, _, err := p.prg.Eval(vars)
	if err == nil {
		return out, nil
	}
	if strings.HasPrefix(err.Error(), "no such key") {
		return nil, fmt.Errorf("%w: %w: %s", ErrEvaluation, ErrNoSuchKey, err)
	}
	return nil, fmt.Errorf("%w: %s", ErrEvaluation, err)
}
