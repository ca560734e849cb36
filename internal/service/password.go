package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

// PasswordHasher deriva y verifica hashes argon2id en formato PHC.
type PasswordHasher struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

const passwordMinLength = 8

var errMalformedHash = errors.New("malformed password hash")

// NewPasswordHasher crea un hasher con los parametros de produccion.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{
		memory:  64 * 1024, // 64 MiB
		time:    4,
		threads: 3,
		saltLen: 16,
		keyLen:  32,
	}
}

// NewPasswordHasherWithParams permite parametros reducidos en tests.
func NewPasswordHasherWithParams(memory, time uint32, threads uint8) *PasswordHasher {
	h := NewPasswordHasher()
	if memory > 0 {
		h.memory = memory
	}
	if time > 0 {
		h.time = time
	}
	if threads > 0 {
		h.threads = threads
	}
	return h
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, h.keyLen)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify compara en tiempo constante usando los parametros embebidos en el hash.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, errMalformedHash
	}
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, errMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errMalformedHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, errMalformedHash
	}

	key := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// validatePasswordStrength devuelve todas las reglas violadas, no solo la primera.
func validatePasswordStrength(password string) []string {
	var violations []string
	if len(password) < passwordMinLength {
		violations = append(violations, fmt.Sprintf("Password must be at least %d characters long.", passwordMinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		violations = append(violations, "Password must contain at least one uppercase letter.")
	}
	if !hasLower {
		violations = append(violations, "Password must contain at least one lowercase letter.")
	}
	if !hasDigit {
		violations = append(violations, "Password must contain at least one number.")
	}
	if !hasSymbol {
		violations = append(violations, "Password must contain at least one special character.")
	}
	return violations
}
