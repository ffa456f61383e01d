// Package changeset collects field-keyed validation errors for a proposed
// entity mutation. Handlers serialize the error map directly as the 422
// response body.
package changeset

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Changeset struct {
	errors map[string][]string
}

func New() *Changeset {
	return &Changeset{errors: make(map[string][]string)}
}

func (c *Changeset) Valid() bool {
	return len(c.errors) == 0
}

func (c *Changeset) Errors() map[string][]string {
	return c.errors
}

// Add appends a message to a field's error list.
func (c *Changeset) Add(field, msg string) {
	c.errors[field] = append(c.errors[field], msg)
}

// Error implements error so a failed changeset can travel up the usecase
// call chain; handlers unwrap it with errors.As.
func (c *Changeset) Error() string {
	fields := make([]string, 0, len(c.errors))
	for f := range c.errors {
		fields = append(fields, f)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// Required adds an error when value is blank.
func (c *Changeset) Required(field, value string) *Changeset {
	if strings.TrimSpace(value) == "" {
		c.Add(field, "can't be blank")
	}
	return c
}

// Length enforces byte-length bounds. Passing 0 skips the respective bound.
func (c *Changeset) Length(field, value string, min, max int) *Changeset {
	if value == "" {
		return c
	}
	if min > 0 && len(value) < min {
		c.Add(field, fmt.Sprintf("should be at least %d character(s)", min))
	}
	if max > 0 && len(value) > max {
		c.Add(field, fmt.Sprintf("should be at most %d character(s)", max))
	}
	return c
}

// Email enforces the account-identifier shape: syntactically valid
// address, no whitespace, at most 160 characters.
func (c *Changeset) Email(field, value string) *Changeset {
	if value == "" {
		return c
	}
	if strings.ContainsAny(value, " \t\n") || validate.Var(value, "email") != nil {
		c.Add(field, "must have the @ sign and no spaces")
	}
	c.Length(field, value, 0, 160)
	return c
}
