// Package validation holds the jellydator/validation rules shared by request DTOs and
// the email job use case.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/mailqueue/internal/errors"
)

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// WrapValidationError converts a validation failure into apperrors.ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Email accepts a plain addr-spec. Display names ("Jane <jane@example.com>") are rejected.
var Email = validation.NewStringRuleWithError(
	addressPattern.MatchString,
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// NotBlank rejects strings made only of whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// NoLineBreaks rejects CR and LF. Values that end up in message headers must be single-line.
var NoLineBreaks = validation.NewStringRuleWithError(
	func(s string) bool {
		return !strings.ContainsAny(s, "\r\n")
	},
	validation.NewError("validation_no_line_breaks", "must not contain line breaks"),
)

// RecipientRules validate an address written to the To header.
func RecipientRules() []validation.Rule {
	return []validation.Rule{validation.Required, NoLineBreaks, Email}
}

// SubjectRules validate a single-line subject of at most maxLength runes.
func SubjectRules(maxLength int) []validation.Rule {
	return []validation.Rule{
		validation.Required,
		NotBlank,
		NoLineBreaks,
		validation.RuneLength(1, maxLength),
	}
}

// BodyRules validate a message body. Bodies may span lines.
func BodyRules() []validation.Rule {
	return []validation.Rule{validation.Required, NotBlank}
}
