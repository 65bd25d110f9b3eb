package validation

import (
	"strings"
	"testing"

	"forum/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    RegisterInput
		expected []models.FieldError
	}{
		{
			name:  "Valid",
			input: RegisterInput{Username: "ben", Email: "ben@example.com", Password: "abc"},
		},
		{
			name:     "Email Without At",
			input:    RegisterInput{Username: "ben", Email: "ben.example.com", Password: "abc"},
			expected: []models.FieldError{{Field: "email", Message: MsgInvalidEmail}},
		},
		{
			name:     "Username Too Short",
			input:    RegisterInput{Username: "bo", Email: "bo@example.com", Password: "abc"},
			expected: []models.FieldError{{Field: "username", Message: MsgUsernameTooShort}},
		},
		{
			name:     "Username With At",
			input:    RegisterInput{Username: "ben@home", Email: "ben@example.com", Password: "abc"},
			expected: []models.FieldError{{Field: "username", Message: MsgUsernameHasAt}},
		},
		{
			name:     "Short Username With At Reports Length",
			input:    RegisterInput{Username: "@b", Email: "b@example.com", Password: "abc"},
			expected: []models.FieldError{{Field: "username", Message: MsgUsernameTooShort}},
		},
		{
			name:     "Password Too Short",
			input:    RegisterInput{Username: "ben", Email: "ben@example.com", Password: "ab"},
			expected: []models.FieldError{{Field: "password", Message: MsgPasswordTooShort}},
		},
		{
			name:     "Password Too Long",
			input:    RegisterInput{Username: "ben", Email: "ben@example.com", Password: strings.Repeat("p", 80)},
			expected: []models.FieldError{{Field: "password", Message: MsgPasswordTooLong}},
		},
		{
			name:  "Password At Bcrypt Limit",
			input: RegisterInput{Username: "ben", Email: "ben@example.com", Password: strings.Repeat("p", MaxPasswordBytes)},
		},
		{
			name:  "Everything Wrong Keeps Order",
			input: RegisterInput{Username: "x", Email: "x", Password: ""},
			expected: []models.FieldError{
				{Field: "email", Message: MsgInvalidEmail},
				{Field: "username", Message: MsgUsernameTooShort},
				{Field: "password", Message: MsgPasswordTooShort},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateRegister(tt.input))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		message  string
	}{
		{"Minimum", "abc", ""},
		{"Too Short", "ab", MsgPasswordTooShort},
		{"At Limit", strings.Repeat("p", MaxPasswordBytes), ""},
		{"Over Limit", strings.Repeat("p", MaxPasswordBytes+1), MsgPasswordTooLong},
		// 25 three-byte runes are 75 bytes
		{"Multibyte Over Limit", strings.Repeat("€", 25), MsgPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := ValidatePassword("newPassword", tt.password)
			if tt.message == "" {
				assert.Nil(t, fe)
				return
			}
			if assert.NotNil(t, fe) {
				assert.Equal(t, "newPassword", fe.Field)
				assert.Equal(t, tt.message, fe.Message)
			}
		})
	}
}

func TestValidatePost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		title  string
		text   string
		fields []string
	}{
		{"Valid", "Hello", "World", nil},
		{"Blank Title", "   ", "World", []string{"title"}},
		{"Long Title", strings.Repeat("t", MaxTitleLength+1), "World", []string{"title"}},
		{"Max Title", strings.Repeat("t", MaxTitleLength), "World", nil},
		{"Missing Text", "Hello", "", []string{"text"}},
		{"Both Missing", "", "", []string{"title", "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields []string
			for _, fe := range ValidatePost(tt.title, tt.text) {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}
