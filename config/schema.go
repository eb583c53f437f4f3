// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed data/config.schema.json
var schemaData []byte

// ErrSchemaValidation is wrapped by every schema violation.
var ErrSchemaValidation = errors.New("config schema validation failed")

// Schema returns the JSON schema configuration files are validated against.
func Schema() []byte {
	return append([]byte(nil), schemaData...)
}

// ValidateSchema validates a YAML (or JSON) configuration document against
// the embedded schema. An empty document is valid.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert config to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaValidation, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return formatNumberedErrors(msgs)
}

// formatNumberedErrors formats a list of messages as a single error with a numbered list.
func formatNumberedErrors(msgs []string) error {
	if len(msgs) == 1 {
		return fmt.Errorf("%w: %s", ErrSchemaValidation, msgs[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "with %d errors:\n", len(msgs))
	for i, msg := range msgs {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, msg)
	}
	return fmt.Errorf("%w %s", ErrSchemaValidation, strings.TrimSuffix(b.String(), "\n"))
}
