package identity

import (
	"strings"
	"unicode/utf8"
)

// Column widths of the users table, in characters.
const (
	MaxUsernameLen = 50
	MaxEmailLen    = 254
)

// NormalizeUsername folds case and surrounding whitespace. The unique index
// and every lookup use this form; the display username keeps its casing.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CheckCredentialInput rejects usernames and emails the users table cannot
// hold: invalid UTF-8, NUL bytes, or more characters than the column allows.
// An empty email is accepted.
func CheckCredentialInput(username, email string) error {
	const op = "identity.CheckCredentialInput"
	username = strings.TrimSpace(username)
	if username == "" {
		return invalid(op, "missing username")
	}
	if err := checkText(op, "username", username, MaxUsernameLen); err != nil {
		return err
	}
	return checkText(op, "email", strings.TrimSpace(email), MaxEmailLen)
}

func checkText(op, field, s string, maxLen int) error {
	switch {
	case !utf8.ValidString(s):
		return invalid(op, field+" is not valid UTF-8")
	case strings.IndexByte(s, 0) >= 0:
		return invalid(op, field+" contains a NUL byte")
	case utf8.RuneCountInString(s) > maxLen:
		return invalid(op, field+" is too long")
	}
	return nil
}
