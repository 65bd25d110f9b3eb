// Package validation holds input rules for registration, passwords and posts.
package validation

import (
	"strings"
	"unicode/utf8"

	"forum/internal/models"
)

const (
	minUsernameLength = 3
	minPasswordLength = 3
	// MaxPasswordBytes is the longest password bcrypt accepts.
	MaxPasswordBytes = 72
	// MaxTitleLength bounds post titles in runes.
	MaxTitleLength = 300
)

// Messages returned in field errors.
const (
	MsgInvalidEmail     = "Invalid email"
	MsgUsernameTooShort = "Username must be greater than 2 characters"
	MsgUsernameHasAt    = "Username cannot contain an @ symbol"
	MsgPasswordTooShort = "Password must be greater than 2 characters"
	MsgPasswordTooLong  = "Password must be at most 72 bytes"
	MsgTitleRequired    = "Title is required"
	MsgTitleTooLong     = "Title must be at most 300 characters"
	MsgTextRequired     = "Text is required"
)

// RegisterInput is the raw registration form.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidateRegister returns one field error per offending field, ordered email, username, password.
// It returns nil when the input is acceptable.
func ValidateRegister(in RegisterInput) []models.FieldError {
	var errs []models.FieldError

	if !strings.Contains(in.Email, "@") {
		errs = append(errs, models.FieldError{Field: "email", Message: MsgInvalidEmail})
	}

	switch {
	case utf8.RuneCountInString(in.Username) < minUsernameLength:
		errs = append(errs, models.FieldError{Field: "username", Message: MsgUsernameTooShort})
	case strings.Contains(in.Username, "@"):
		errs = append(errs, models.FieldError{Field: "username", Message: MsgUsernameHasAt})
	}

	if fe := ValidatePassword("password", in.Password); fe != nil {
		errs = append(errs, *fe)
	}

	return errs
}

// ValidatePassword checks the password length bounds and reports failures against field.
// The upper bound is in bytes, not runes.
func ValidatePassword(field, password string) *models.FieldError {
	switch {
	case utf8.RuneCountInString(password) < minPasswordLength:
		return &models.FieldError{Field: field, Message: MsgPasswordTooShort}
	case len(password) > MaxPasswordBytes:
		return &models.FieldError{Field: field, Message: MsgPasswordTooLong}
	}
	return nil
}

// ValidatePost checks a post's title and text.
func ValidatePost(title, text string) []models.FieldError {
	var errs []models.FieldError

	title = strings.TrimSpace(title)
	switch {
	case title == "":
		errs = append(errs, models.FieldError{Field: "title", Message: MsgTitleRequired})
	case utf8.RuneCountInString(title) > MaxTitleLength:
		errs = append(errs, models.FieldError{Field: "title", Message: MsgTitleTooLong})
	}

	if strings.TrimSpace(text) == "" {
		errs = append(errs, models.FieldError{Field: "text", Message: MsgTextRequired})
	}

	return errs
}
