package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

// ValidationError acumula todas las reglas violadas de una peticion.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, " ")
}

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s'-]{2,50}$`)
	tokenRe = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

func isValidName(name string) bool {
	return nameRe.MatchString(strings.TrimSpace(name))
}

func isValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func isValidTokenFormat(token string) bool {
	return tokenRe.MatchString(token)
}

// sanitizeName normaliza espacios y capitaliza cada palabra.
func sanitizeName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(input RegisterInput) []string {
	var violations []string
	if strings.TrimSpace(input.FirstName) == "" || !isValidName(input.FirstName) {
		violations = append(violations, "First name is required and must contain only letters, spaces, hyphens and apostrophes (2-50 characters).")
	}
	if strings.TrimSpace(input.LastName) == "" || !isValidName(input.LastName) {
		violations = append(violations, "Last name is required and must contain only letters, spaces, hyphens and apostrophes (2-50 characters).")
	}
	if !isValidEmail(input.Email) {
		violations = append(violations, "A valid email address is required.")
	}
	if input.Password == "" {
		violations = append(violations, "Password is required.")
	} else {
		violations = append(violations, validatePasswordStrength(input.Password)...)
	}
	return violations
}

func validatePasswordReset(newPassword, confirmation string) []string {
	var violations []string
	if newPassword == "" {
		violations = append(violations, "Password is required.")
	} else {
		violations = append(violations, validatePasswordStrength(newPassword)...)
	}
	if confirmation == "" {
		violations = append(violations, "Password confirmation is required.")
	} else if newPassword != confirmation {
		violations = append(violations, "Passwords do not match.")
	}
	return violations
}
