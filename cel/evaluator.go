// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package cel

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/stacklok/toolhive-oauth/expression"
)

// Delimiters that mark a configured string as an expression.
const (
	ExpressionPrefix = "#["
	ExpressionSuffix = "]"
)

var (
	nativeListType = reflect.TypeOf([]any{})
	nativeMapType  = reflect.TypeOf(map[string]any{})
)

// Evaluator implements expression.Evaluator with CEL. Strings wrapped in
// #[ and ] are expressions; the text between the delimiters is compiled once
// and cached.
type Evaluator struct {
	engine   *Engine
	programs sync.Map // source -> *Program
}

var _ expression.Evaluator = (*Evaluator)(nil)

// NewEvaluator returns an Evaluator that declares the payload, attributes and
// dataType variables.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		engine: NewEngine([]cel.EnvOption{
			cel.Variable(expression.VarPayload, cel.DynType),
			cel.Variable(expression.VarAttributes, cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable(expression.VarDataType, cel.MapType(cel.StringType, cel.StringType)),
		}),
	}
}

// IsExpression reports whether s is wrapped in the expression delimiters.
func (*Evaluator) IsExpression(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= len(ExpressionPrefix)+len(ExpressionSuffix) &&
		strings.HasPrefix(s, ExpressionPrefix) &&
		strings.HasSuffix(s, ExpressionSuffix)
}

// Check reports whether expr compiles. Literals are always valid.
func (e *Evaluator) Check(expr string) error {
	if !e.IsExpression(expr) {
		return nil
	}
	return e.engine.Check(unwrap(expr))
}

// Evaluate evaluates expr against bindings. Selecting a key that the payload
// or attributes do not contain yields nil, as does a null value. Lists and
// maps are converted to []any and map[string]any.
func (e *Evaluator) Evaluate(expr string, bindings expression.Bindings) (any, error) {
	if !e.IsExpression(expr) {
		return expr, nil
	}

	program, err := e.compile(unwrap(expr))
	if err != nil {
		return nil, err
	}

	out, err := program.Eval(bindings)
	if errors.Is(err, ErrNoSuchKey) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toNative(out)
}

func (e *Evaluator) compile(source string) (*Program, error) {
	if cached, ok := e.programs.Load(source); ok {
		return cached.(*Program), nil
	}
	program, err := e.engine.Compile(source)
	if err != nil {
		return nil, err
	}
	actual, _ := e.programs.LoadOrStore(source, program)
	return actual.(*Program), nil
}

func unwrap(expr string) string {
	expr = strings.TrimSpace(expr)
	return strings.TrimSpace(expr[len(ExpressionPrefix) : len(expr)-len(ExpressionSuffix)])
}

func toNative(v ref.Val) (any, error) {
	switch v.Type() {
	case types.NullType:
		return nil, nil
	case types.ListType:
		return convert(v, nativeListType)
	case types.MapType:
		return convert(v, nativeMapType)
	default:
		return v.Value(), nil
	}
}

func convert(v ref.Val, t reflect.Type) (any, error) {
	out, err := v.ConvertToNative(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResult, err)
	}
	return out, nil
}
