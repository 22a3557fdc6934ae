// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
validator.go - Struct Validation

A single go-playground/validator instance checks every option struct before
work starts: restore and deletion requests, export options, API query
parameters and CLI flag sets.

Field naming:

Errors name the field the caller actually typed. A `flag:"tenant"` tag
reports as --tenant, a `json:"limit"` tag as limit, and untagged fields keep
their Go name. CLI flag structs therefore produce messages such as

	--tenant must be a valid identifier (letters, digits and underscores, at most 63 characters)

and API requests report the query parameter name.
*/

//nolint:staticcheck // File documentation, not package doc
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/pgdriver"
)

// CodeValidation is the API error code for rejected input.
const CodeValidation = "VALIDATION_ERROR"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is one rejected field.
type ValidationError struct {
	field   string
	tag     string
	message string
}

// Field returns the caller-facing field name, e.g. --tenant or Tables[1].
func (e *ValidationError) Field() string { return e.field }

// Tag returns the failed rule.
func (e *ValidationError) Tag() string { return e.tag }

func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects every rejected field of one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the rejected fields in struct order.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error joins the field messages with "; ".
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.errors))
	for i := range ve.errors {
		messages[i] = ve.errors[i].message
	}
	return strings.Join(messages, "; ")
}

// ToAPIError converts the failure to the error payload of the API envelope.
func (ve *RequestValidationError) ToAPIError() *models.APIError {
	return &models.APIError{Code: CodeValidation, Message: ve.Error()}
}

// GetValidator returns the shared validator with the identifier, backuptype
// and deletiontype rules registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(fieldName)

		mustRegister(v, "identifier", func(fl validator.FieldLevel) bool {
			return pgdriver.ValidIdentifier(fl.Field().String())
		})
		mustRegister(v, "backuptype", func(fl validator.FieldLevel) bool {
			return models.BackupType(fl.Field().String()).Valid()
		})
		mustRegister(v, "deletiontype", func(fl validator.FieldLevel) bool {
			return models.DeletionType(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// fieldName picks the name reported in errors: --flag, then json, then the
// Go field name.
func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("flag"), ","); name != "" {
		return "--" + name
	}
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return f.Name
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// ValidateStruct returns nil when s passes every rule.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}}}
	}

	out := make([]ValidationError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = ValidationError{field: fe.Field(), tag: fe.Tag(), message: message(fe)}
	}
	return &RequestValidationError{errors: out}
}

var identifierRule = fmt.Sprintf("letters, digits and underscores, at most %d characters", pgdriver.MaxIdentifierLength)

func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "identifier":
		return fmt.Sprintf("%s must be a valid identifier (%s)", field, identifierRule)
	case "backuptype":
		return field + " must be one of: full incremental snapshot"
	case "deletiontype":
		return field + " must be one of: hard soft anonymize"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be %s %s characters", field, bound, param)
		case reflect.Slice, reflect.Map:
			return fmt.Sprintf("%s must have %s %s items", field, bound, param)
		default:
			return fmt.Sprintf("%s must be %s %s", field, bound, param)
		}
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
