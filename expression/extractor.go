// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package expression

//go:generate mockgen -copyright_file=../.github/license-header.txt -source=extractor.go -destination=mocks/mock_evaluator.go -package=mocks Evaluator

import (
	"fmt"
	"strconv"
)

// Evaluator recognises and evaluates dynamic expressions. The extractor has no
// knowledge of the expression grammar beyond what an Evaluator tells it.
type Evaluator interface {
	// IsExpression reports whether s must be evaluated rather than used literally.
	IsExpression(s string) bool
	// Evaluate evaluates expr against bindings. A nil result means the
	// referenced value is absent.
	Evaluate(expr string, bindings Bindings) (any, error)
}

// Extractor pulls fields out of token endpoint responses through an Evaluator.
type Extractor struct {
	evaluator Evaluator
}

// NewExtractor returns an Extractor backed by e.
func NewExtractor(e Evaluator) *Extractor {
	return &Extractor{evaluator: e}
}

// Extract resolves expr against in. An empty expr is not configured and yields
// nil. A literal, which the evaluator does not recognise as an expression, is
// returned unchanged.
func (x *Extractor) Extract(expr string, in *Input) (any, error) {
	if expr == "" {
		return nil, nil
	}
	if !x.evaluator.IsExpression(expr) {
		return expr, nil
	}
	v, err := x.evaluator.Evaluate(expr, in.Bindings())
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	return v, nil
}

// ExtractString resolves expr like Extract and coerces the result to a string.
// The boolean is false when the value is absent or empty.
func (x *Extractor) ExtractString(expr string, in *Input) (string, bool, error) {
	v, err := x.Extract(expr, in)
	if err != nil {
		return "", false, err
	}
	s, ok := ToString(v)
	if !ok {
		if v != nil {
			return "", false, fmt.Errorf("%w: %q produced %T", ErrNotAString, expr, v)
		}
		return "", false, nil
	}
	return s, s != "", nil
}

// ExtractAll resolves every expression in exprs, keeping the configured keys.
// Absent values are left out of the result.
func (x *Extractor) ExtractAll(exprs map[string]string, in *Input) (map[string]any, error) {
	out := make(map[string]any, len(exprs))
	for key, expr := range exprs {
		v, err := x.Extract(expr, in)
		if err != nil {
			return nil, fmt.Errorf("custom parameter %q: %w", key, err)
		}
		if v != nil {
			out[key] = v
		}
	}
	return out, nil
}

// ToString converts scalar values to their string form. Whole numbers are
// written without a fraction or exponent. It reports false for nil and for
// values that are not scalars.
func ToString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return "", false
	}
}
