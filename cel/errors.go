// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package cel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

var (
	// ErrExpressionCheck is wrapped by every expression rejected before evaluation.
	ErrExpressionCheck = errors.New("invalid expression")

	// ErrEvaluation is wrapped by every failure at evaluation time.
	ErrEvaluation = errors.New("expression evaluation failed")

	// ErrInvalidResult is returned when a result cannot be converted to a Go value.
	ErrInvalidResult = errors.New("expression produced an unsupported value")

	// ErrNoSuchKey is returned when an expression selects a map key that is not present.
	ErrNoSuchKey = errors.New("no such key")
)

// Stage is the compilation step an expression failed at.
type Stage string

const (
	// StageLength rejects expressions longer than the engine allows.
	StageLength Stage = "length"
	// StageParse rejects syntax errors.
	StageParse Stage = "parse"
	// StageCheck rejects references to undeclared variables and type errors.
	StageCheck Stage = "check"
)

// Issue locates one problem in an expression. Line and Column are 1-based.
type Issue struct {
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// String formats the issue as line:column: message.
func (i Issue) String() string {
	if i.Line == 0 {
		return i.Message
	}
	return fmt.Sprintf("%d:%d: %s", i.Line, i.Column, i.Message)
}

// ExpressionError reports an expression that failed to compile.
// errors.Is(err, ErrExpressionCheck) holds for every ExpressionError.
type ExpressionError struct {
	Stage  Stage   `json:"stage"`
	Source string  `json:"source"`
	Issues []Issue `json:"issues,omitempty"`
}

func (e *ExpressionError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.String())
	}
	return fmt.Sprintf("%s: %s error in %q: %s", ErrExpressionCheck, e.Stage, e.Source, strings.Join(msgs, "; "))
}

// Is reports whether target is ErrExpressionCheck.
func (*ExpressionError) Is(target error) bool {
	return target == ErrExpressionCheck
}

func lengthError(source string, limit int) *ExpressionError {
	return &ExpressionError{
		Stage:  StageLength,
		Source: source,
		Issues: []Issue{{Message: fmt.Sprintf("length %d exceeds maximum of %d", len(source), limit)}},
	}
}

func issuesError(stage Stage, source string, issues *cel.Issues) *ExpressionError {
	e := &ExpressionError{Stage: stage, Source: source}
	for _, ce := range issues.Errors() {
		e.Issues = append(e.Issues, Issue{
			Line:    ce.Location.Line(),
			Column:  ce.Location.Column() + 1,
			Message: ce.Message,
		})
	}
	return e
}
