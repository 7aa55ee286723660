// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" jsonschema:"format=email"`
	Password string `json:"password" jsonschema:"minLength=6"`
}

// RegisterRequest is the body of POST /api/users/register.
type RegisterRequest struct {
	FirstName string `json:"firstName" jsonschema:"minLength=1,pattern=^\\S+$"`
	LastName  string `json:"lastName" jsonschema:"minLength=1,pattern=^\\S+$"`
	Email     string `json:"email" jsonschema:"format=email"`
	Password  string `json:"password" jsonschema:"minLength=6,pattern=^\\S+$"`
}

// fieldMessages are the per-field messages reported to clients.
var fieldMessages = map[string]string{
	"firstName": "First Name is required",
	"lastName":  "Last Name is required",
	"email":     "Email is required",
	"password":  "Password with 6 or more characters required",
}

// FieldError names one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RequestValidator checks a request body against a schema reflected from
// its Go type.
type RequestValidator struct {
	schema  *jschema.Schema
	fields  []string
	trimmed []string
}

// RequestSchema pairs a request body type with the file its published
// schema is written to.
type RequestSchema struct {
	Name  string
	Title string
	Type  any
}

// RequestSchemas lists the request bodies accepted by the API.
func RequestSchemas() []RequestSchema {
	return []RequestSchema{
		{Name: "login", Title: "Login request", Type: &LoginRequest{}},
		{Name: "register", Title: "Registration request", Type: &RegisterRequest{}},
	}
}

// GenerateSchema renders the JSON Schema the API validates rs against.
func GenerateSchema(rs RequestSchema) ([]byte, error) {
	schema := reflectSchema(rs.Type)
	schema.Title = rs.Title

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", rs.Name).Wrap(err)
	}
	return data, nil
}

func reflectSchema(v any) *jsonschema.Schema {
	r := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	return r.Reflect(v)
}

// NewRequestValidator reflects v's type into a JSON Schema and compiles it
// with format assertion enabled. String values of the trimmed fields lose
// surrounding whitespace before validation.
func NewRequestValidator(v any, trimmed ...string) (*RequestValidator, error) {
	reflected := reflectSchema(v)

	var fields []string
	if reflected.Properties != nil {
		for pair := reflected.Properties.Oldest(); pair != nil; pair = pair.Next() {
			fields = append(fields, pair.Key)
		}
	}

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").Wrapf(err, "marshal schema")
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").Wrapf(err, "parse schema")
	}

	c := jschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource("request.json", doc); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").Wrapf(err, "add schema resource")
	}
	compiled, err := c.Compile("request.json")
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").Wrapf(err, "compile schema")
	}

	return &RequestValidator{schema: compiled, fields: fields, trimmed: trimmed}, nil
}

// Decode validates body and unmarshals it into dst. It returns the violated
// fields in declaration order; a nil slice with a nil error means dst is
// populated.
func (rv *RequestValidator) Decode(body []byte, dst any) ([]FieldError, error) {
	instance, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return rv.fieldErrors(rv.fields), nil
	}
	if obj, ok := instance.(map[string]any); ok {
		for _, field := range rv.trimmed {
			if s, ok := obj[field].(string); ok {
				obj[field] = strings.TrimSpace(s)
			}
		}
	}

	if err := rv.schema.Validate(instance); err != nil {
		var verr *jschema.ValidationError
		if !errors.As(err, &verr) {
			return nil, oops.Code("REQUEST_VALIDATION_FAILED").Wrap(err)
		}
		return rv.fieldErrors(rv.violated(verr)), nil
	}

	normalized, err := json.Marshal(instance)
	if err != nil {
		return nil, oops.Code("REQUEST_VALIDATION_FAILED").Wrap(err)
	}
	if err := json.Unmarshal(normalized, dst); err != nil {
		return rv.fieldErrors(rv.fields), nil
	}
	return nil, nil
}

// violated collects the fields named by the leaf causes of verr.
func (rv *RequestValidator) violated(verr *jschema.ValidationError) []string {
	var names []string
	var walk func(e *jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		switch k := e.ErrorKind.(type) {
		case *kind.Required:
			names = append(names, k.Missing...)
		default:
			if len(e.InstanceLocation) > 0 {
				names = append(names, e.InstanceLocation[0])
			} else {
				names = append(names, rv.fields...)
			}
		}
	}
	walk(verr)
	return names
}

// fieldErrors orders and deduplicates names by declaration order.
func (rv *RequestValidator) fieldErrors(names []string) []FieldError {
	out := make([]FieldError, 0, len(names))
	for _, field := range rv.fields {
		if !slices.Contains(names, field) {
			continue
		}
		out = append(out, FieldError{Field: field, Message: fieldMessages[field]})
	}
	if len(out) == 0 && len(names) > 0 {
		return rv.fieldErrors(rv.fields)
	}
	return out
}

// invalidRequestMessage lists the rejected field names.
func invalidRequestMessage(errs []FieldError) string {
	names := make([]string, len(errs))
	for i, e := range errs {
		names[i] = e.Field
	}
	return "Invalid request: " + strings.Join(names, ", ")
}
