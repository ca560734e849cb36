package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"roadmap-auth/internal/domain"
	"roadmap-auth/internal/email"
	"roadmap-auth/internal/repository"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailSendFailure   = errors.New("email send failed")
)

// LockedError indica cuenta bloqueada por intentos fallidos de login.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
}

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour

	defaultMaxLoginAttempts = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// AccountServiceConfig agrupa los parametros de negocio configurables.
type AccountServiceConfig struct {
	AppURL           string
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	Hasher           *PasswordHasher
}

// AccountService orquesta el ciclo de vida de credenciales de una cuenta:
// registro, verificacion de email, login con bloqueo temporal y reset de password.
type AccountService struct {
	logger      *zap.Logger
	accounts    repository.AccountRepository
	emailSender email.Sender
	hasher      *PasswordHasher

	appURL           string
	maxLoginAttempts int
	lockoutDuration  time.Duration

	now func() time.Time
}

func NewAccountService(logger *zap.Logger, accounts repository.AccountRepository, emailSender email.Sender, cfg AccountServiceConfig) *AccountService {
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = defaultMaxLoginAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaultLockoutDuration
	}
	if cfg.Hasher == nil {
		cfg.Hasher = NewPasswordHasher()
	}
	return &AccountService{
		logger:           logger,
		accounts:         accounts,
		emailSender:      emailSender,
		hasher:           cfg.Hasher,
		appURL:           cfg.AppURL,
		maxLoginAttempts: cfg.MaxLoginAttempts,
		lockoutDuration:  cfg.LockoutDuration,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	NewsletterOptIn bool
}

// Register crea una cuenta sin verificar y dispara el correo de verificacion.
// Si el correo no puede enviarse, el registro falla.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	if violations := validateRegistration(input); len(violations) > 0 {
		return domain.Account{}, &ValidationError{Violations: violations}
	}

	emailAddr := normalizeEmail(input.Email)
	if _, err := s.accounts.GetByEmail(ctx, emailAddr); err == nil {
		return domain.Account{}, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.Account{}, err
	}

	token, err := generateToken()
	if err != nil {
		return domain.Account{}, err
	}

	now := s.now()
	expiresAt := now.Add(verificationTokenTTL)
	account := domain.Account{
		ID:                         uuid.NewString(),
		FirstName:                  sanitizeName(input.FirstName),
		LastName:                   sanitizeName(input.LastName),
		Email:                      emailAddr,
		PasswordHash:               passwordHash,
		NewsletterOptIn:            input.NewsletterOptIn,
		EmailVerificationToken:     token,
		EmailVerificationExpiresAt: &expiresAt,
		IsActive:                   true,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.Account{}, ErrEmailTaken
		}
		return domain.Account{}, err
	}

	if err := s.sendVerification(ctx, account, token); err != nil {
		return domain.Account{}, err
	}

	return sanitize(account), nil
}

// VerifyEmail consume el token de verificacion y activa la cuenta.
// Token desconocido, vencido o ya consumido fallan igual, sin distincion.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (domain.Account, error) {
	if !isValidTokenFormat(token) {
		return domain.Account{}, ErrInvalidToken
	}

	now := s.now()
	account, err := s.accounts.GetByVerificationToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidToken
		}
		return domain.Account{}, err
	}

	if err := s.accounts.MarkEmailVerified(ctx, account.ID, token, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidToken
		}
		return domain.Account{}, err
	}

	account.EmailVerifiedAt = &now
	account.EmailVerificationToken = ""
	account.EmailVerificationExpiresAt = nil
	return sanitize(account), nil
}

// ResendVerification reemplaza el token pendiente y reenvia el correo.
// Responde generico exista o no la cuenta, para no revelar emails registrados.
func (s *AccountService) ResendVerification(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if !isValidEmail(emailAddr) {
		return nil
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if account.Verified() {
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.accounts.UpdateVerificationToken(ctx, account.ID, token, now.Add(verificationTokenTTL), now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	return s.sendVerification(ctx, account, token)
}

// Login autentica email/password aplicando el bloqueo temporal.
// El chequeo de bloqueo ocurre antes de comparar el password; el de
// verificacion de email, despues de que el password coincide.
func (s *AccountService) Login(ctx context.Context, emailAddr, password string) (domain.Account, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, err
	}

	now := s.now()
	if account.LockedAt(now) {
		return domain.Account{}, &LockedError{RetryAfter: account.LockedUntil.Sub(now)}
	}

	match, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		s.logger.Error("password verify failed", zap.Error(err), zap.String("account_id", account.ID))
		return domain.Account{}, ErrInvalidCredentials
	}
	if !match {
		if err := s.accounts.RecordFailedLogin(ctx, account.ID, s.maxLoginAttempts, now.Add(s.lockoutDuration), now); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("record failed login", zap.Error(err), zap.String("account_id", account.ID))
		}
		return domain.Account{}, ErrInvalidCredentials
	}

	if !account.Verified() {
		return domain.Account{}, ErrEmailNotVerified
	}

	if err := s.accounts.RecordSuccessfulLogin(ctx, account.ID, now); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error("record successful login", zap.Error(err), zap.String("account_id", account.ID))
	}

	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	account.LastLoginAt = &now
	return sanitize(account), nil
}

// ForgotPassword responde generico exista o no la cuenta. Si existe, genera
// el token de reset con vigencia de una hora y envia el correo.
func (s *AccountService) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if !isValidEmail(emailAddr) {
		return nil
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	token, err := generateToken()
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.accounts.UpdateResetToken(ctx, account.ID, token, now.Add(resetTokenTTL), now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	link := s.appURL + "/reset-password?token=" + token
	if err := s.emailSender.SendPasswordReset(ctx, account.Email, account.FullName(), token, link); err != nil {
		s.logger.Warn("send password reset failed", zap.Error(err), zap.String("email", account.Email))
		return ErrEmailSendFailure
	}
	return nil
}

// ResetPassword consume el token de reset y reemplaza el hash. No inicia sesion.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword, confirmation string) error {
	if violations := validatePasswordReset(newPassword, confirmation); len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	if !isValidTokenFormat(token) {
		return ErrInvalidToken
	}

	now := s.now()
	account, err := s.accounts.GetByResetToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidToken
		}
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, token, passwordHash, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

// Profile devuelve la cuenta sanitizada por id.
func (s *AccountService) Profile(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}
	return sanitize(account), nil
}

// Deactivate marca la cuenta como inactiva; nunca se borra fisicamente.
func (s *AccountService) Deactivate(ctx context.Context, id string) error {
	if err := s.accounts.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

func (s *AccountService) sendVerification(ctx context.Context, account domain.Account, token string) error {
	link := s.appURL + "/verify-email?token=" + token
	if err := s.emailSender.SendVerification(ctx, account.Email, account.FullName(), token, link); err != nil {
		s.logger.Warn("send verification failed", zap.Error(err), zap.String("email", account.Email))
		return ErrEmailSendFailure
	}
	return nil
}

// sanitize limpia campos sensibles antes de devolver la cuenta al caller.
func sanitize(account domain.Account) domain.Account {
	account.PasswordHash = ""
	account.EmailVerificationToken = ""
	account.EmailVerificationExpiresAt = nil
	account.PasswordResetToken = ""
	account.PasswordResetExpiresAt = nil
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	return account
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
