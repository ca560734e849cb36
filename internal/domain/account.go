package domain

import "time"

// Account representa la cuenta persistida de un usuario.
type Account struct {
	ID                         string     `json:"id"`
	FirstName                  string     `json:"first_name"`
	LastName                   string     `json:"last_name"`
	Email                      string     `json:"email"`
	PasswordHash               string     `json:"-"`
	NewsletterOptIn            bool       `json:"newsletter_subscribed"`
	EmailVerifiedAt            *time.Time `json:"email_verified_at,omitempty"`
	EmailVerificationToken     string     `json:"-"`
	EmailVerificationExpiresAt *time.Time `json:"-"`
	PasswordResetToken         string     `json:"-"`
	PasswordResetExpiresAt     *time.Time `json:"-"`
	FailedLoginAttempts        int        `json:"-"`
	LockedUntil                *time.Time `json:"-"`
	LastLoginAt                *time.Time `json:"last_login_at,omitempty"`
	IsActive                   bool       `json:"-"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at"`
}

// Verified indica si la cuenta ya confirmo su email.
func (a Account) Verified() bool {
	return a.EmailVerifiedAt != nil
}

// LockedAt indica si la cuenta esta bloqueada en el instante dado.
func (a Account) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// FullName devuelve el nombre completo para correos salientes.
func (a Account) FullName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}
