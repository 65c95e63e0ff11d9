// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Messages reported for each field rule.
const (
	MsgNameRequired    = "Name is required"
	MsgInvalidEmail    = "Invalid email address"
	MsgMessageRequired = "Message is required"
	MsgItemNotObject   = "Each item must be a non-empty object"
)

var fieldMessages = map[string]string{
	"name":    MsgNameRequired,
	"email":   MsgInvalidEmail,
	"message": MsgMessageRequired,
}

// Input is a raw submission as decoded from the request body.
type Input struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

// Submission is a validated, trimmed submission.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// FieldError is one violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Item is a valid element of a batch together with its position.
type Item struct {
	Index      int
	Submission Submission
}

// Validator validates submissions. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator that reports JSON field names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate trims the input and checks every rule. On failure the returned errors
// are ordered name, email, message.
func (val *Validator) Validate(in Input) (Submission, []FieldError) {
	in = Input{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Message: strings.TrimSpace(in.Message),
	}

	err := val.v.Struct(in)
	if err == nil {
		return Submission(in), nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// only reachable on programmer error (non-struct input)
		return Submission{}, []FieldError{{Field: "body", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return Submission{}, out
}

// ValidateObject validates one JSON object. Fields of the wrong JSON type are
// treated as missing so they surface as field errors rather than decode errors.
func (val *Validator) ValidateObject(obj map[string]json.RawMessage) (Submission, []FieldError) {
	return val.Validate(Input{
		Name:    stringField(obj, "name"),
		Email:   stringField(obj, "email"),
		Message: stringField(obj, "message"),
	})
}

// ValidateBatch validates each element independently. Every element must be a
// non-empty JSON object before field rules apply. Field paths are reported as
// "[i].field" using the zero-based element index.
func (val *Validator) ValidateBatch(items []json.RawMessage) ([]Item, []FieldError) {
	var (
		valid []Item
		errs  []FieldError
	)
	for i, raw := range items {
		prefix := fmt.Sprintf("[%d]", i)

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil || len(obj) == 0 {
			errs = append(errs, FieldError{Field: prefix, Message: MsgItemNotObject})
			continue
		}

		sub, ferrs := val.ValidateObject(obj)
		if len(ferrs) > 0 {
			for _, fe := range ferrs {
				errs = append(errs, FieldError{Field: prefix + "." + fe.Field, Message: fe.Message})
			}
			continue
		}
		valid = append(valid, Item{Index: i, Submission: sub})
	}
	return valid, errs
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
