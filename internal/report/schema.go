package report

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed snapshot.schema.json
var snapshotSchema string

const schemaResource = "snapshot.schema.json"

// ValidationErrors represents a collection of schema violations
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// ValidateSnapshot checks a snapshot document against the required keys.
// Any failure wraps ErrMalformedSnapshot.
func ValidateSnapshot(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, strings.NewReader(snapshotSchema)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile(schemaResource)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrMalformedSnapshot, err)
	}

	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %v", ErrMalformedSnapshot, extractValidationErrors(verr))
		}
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	return nil
}

// extractValidationErrors flattens a jsonschema.ValidationError tree.
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	var errs ValidationErrors

	if err.Message != "" && len(err.Causes) == 0 {
		errs = append(errs, fmt.Errorf("at %q: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		errs = append(errs, extractValidationErrors(cause)...)
	}

	return errs
}
