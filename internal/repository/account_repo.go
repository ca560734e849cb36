package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadmap-auth/internal/domain"
)

// ErrDuplicateEmail indica violacion del indice unico de email activo.
var ErrDuplicateEmail = errors.New("duplicate email")

// AccountRepository define el contrato de persistencia para cuentas.
// Las busquedas devuelven solo cuentas activas; las mutaciones condicionales
// devuelven pgx.ErrNoRows cuando ninguna fila cumple la condicion.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByVerificationToken(ctx context.Context, token string, now time.Time) (domain.Account, error)
	GetByResetToken(ctx context.Context, token string, now time.Time) (domain.Account, error)
	MarkEmailVerified(ctx context.Context, id, token string, verifiedAt time.Time) error
	UpdateVerificationToken(ctx context.Context, id, token string, expiresAt, now time.Time) error
	RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockedUntil, now time.Time) error
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error
	UpdateResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error
	UpdatePassword(ctx context.Context, id, token, passwordHash string, at time.Time) error
	SoftDelete(ctx context.Context, id string) error
}

// PgAccountRepository implementa AccountRepository usando pgxpool.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

const accountColumns = `
	id, first_name, last_name, email, password_hash, newsletter_opt_in,
	email_verified_at, email_verification_token, email_verification_expires_at,
	password_reset_token, password_reset_expires_at,
	failed_login_attempts, locked_until, last_login_at,
	is_active, created_at, updated_at
`

func (r *PgAccountRepository) Create(ctx context.Context, account domain.Account) error {
	const query = `
		INSERT INTO accounts (
			id, first_name, last_name, email, password_hash, newsletter_opt_in,
			email_verification_token, email_verification_expires_at,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.FirstName,
		account.LastName,
		account.Email,
		account.PasswordHash,
		account.NewsletterOptIn,
		nullIfEmpty(account.EmailVerificationToken),
		account.EmailVerificationExpiresAt,
		account.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE lower(email) = lower($1) AND is_active = TRUE
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1 AND is_active = TRUE
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByVerificationToken filtra tokens vencidos en la consulta, asi un token
// expirado es indistinguible de uno inexistente.
func (r *PgAccountRepository) GetByVerificationToken(ctx context.Context, token string, now time.Time) (domain.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email_verification_token = $1
		  AND email_verification_expires_at > $2
		  AND is_active = TRUE
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, token, now))
}

func (r *PgAccountRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (domain.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE password_reset_token = $1
		  AND password_reset_expires_at > $2
		  AND is_active = TRUE
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, token, now))
}

// MarkEmailVerified limpia el par de verificacion solo si el token presentado
// sigue vigente; dos requests concurrentes no pueden consumirlo dos veces.
func (r *PgAccountRepository) MarkEmailVerified(ctx context.Context, id, token string, verifiedAt time.Time) error {
	const query = `
		UPDATE accounts
		SET email_verified_at = $3,
		    email_verification_token = NULL,
		    email_verification_expires_at = NULL,
		    updated_at = $3
		WHERE id = $1 AND email_verification_token = $2 AND is_active = TRUE
	`
	return r.execExpectingRow(ctx, query, id, token, verifiedAt)
}

func (r *PgAccountRepository) UpdateVerificationToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	const query = `
		UPDATE accounts
		SET email_verification_token = $2,
		    email_verification_expires_at = $3,
		    updated_at = $4
		WHERE id = $1 AND is_active = TRUE
	`
	return r.execExpectingRow(ctx, query, id, token, expiresAt, now)
}

// RecordFailedLogin incrementa el contador y fija locked_until en una sola
// sentencia para no perder intentos bajo logins concurrentes.
func (r *PgAccountRepository) RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockedUntil, now time.Time) error {
	const query = `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN $3
		        ELSE locked_until
		    END,
		    updated_at = $4
		WHERE id = $1 AND is_active = TRUE
	`
	return r.execExpectingRow(ctx, query, id, maxAttempts, lockedUntil, now)
}

func (r *PgAccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE accounts
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login_at = $2,
		    updated_at = $2
		WHERE id = $1 AND is_active = TRUE
	`
	return r.execExpectingRow(ctx, query, id, at)
}

func (r *PgAccountRepository) UpdateResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) error {
	const query = `
		UPDATE accounts
		SET password_reset_token = $2,
		    password_reset_expires_at = $3,
		    updated_at = $4
		WHERE id = $1 AND is_active = TRUE
	`
	return r.execExpectingRow(ctx, query, id, token, expiresAt, now)
}

// UpdatePassword reemplaza el hash y consume el token de reset en una sola
// sentencia condicionada al token presentado.
func (r *PgAccountRepository) UpdatePassword(ctx context.Context, id, token, passwordHash string, at time.Time) error {
	const query = `
		UPDATE accounts
		SET password_hash = $3,
		    password_reset_token = NULL,
		    password_reset_expires_at = NULL,
		    updated_at = $4
		WHERE id = $1 AND password_reset_token = $2 AND is_active = TRUE
	`
	return r.execExpectingRow(ctx, query, id, token, passwordHash, at)
}

func (r *PgAccountRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `
		UPDATE accounts
		SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
	`
	return r.execExpectingRow(ctx, query, id)
}

func (r *PgAccountRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgAccountRepository) scanOne(row pgx.Row) (domain.Account, error) {
	var (
		a          domain.Account
		verifToken *string
		resetToken *string
	)
	err := row.Scan(
		&a.ID,
		&a.FirstName,
		&a.LastName,
		&a.Email,
		&a.PasswordHash,
		&a.NewsletterOptIn,
		&a.EmailVerifiedAt,
		&verifToken,
		&a.EmailVerificationExpiresAt,
		&resetToken,
		&a.PasswordResetExpiresAt,
		&a.FailedLoginAttempts,
		&a.LockedUntil,
		&a.LastLoginAt,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	if verifToken != nil {
		a.EmailVerificationToken = *verifToken
	}
	if resetToken != nil {
		a.PasswordResetToken = *resetToken
	}
	return a, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
