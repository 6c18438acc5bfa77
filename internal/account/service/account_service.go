package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"zetsuserv/internal/account/domain"
	"zetsuserv/internal/account/repository"
	"zetsuserv/internal/audit"
	"zetsuserv/internal/clock"
	"zetsuserv/internal/credential"
	"zetsuserv/internal/devcode"
	"zetsuserv/internal/security"
)

// Sentinel errors for the account service; handler maps them to HTTP codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrEmailNotVerified       = errors.New("email not verified")
	ErrAlreadyVerified        = errors.New("email already verified")
)

// credentialStore adapts the account repository to the credential store
// contract, keyed by account id.
type credentialStore struct {
	repo repository.Repository
}

func (s credentialStore) Read(ctx context.Context, ref credential.Ref) (*credential.Record, error) {
	return s.repo.ReadCredential(ctx, ref.ID)
}

func (s credentialStore) Write(ctx context.Context, ref credential.Ref, rec credential.Record, prevLastSentAt *time.Time) error {
	return s.repo.WriteCredential(ctx, ref.ID, rec, prevLastSentAt)
}

func (s credentialStore) Consume(ctx context.Context, ref credential.Ref, expectedHash string) error {
	return s.repo.ConsumeCredential(ctx, ref.ID, expectedHash)
}

func accountRef(id string) credential.Ref {
	return credential.Ref{Entity: credential.EntityAccount, ID: id}
}

// AccountService implements registration, login, and email verification.
type AccountService struct {
	repo    repository.Repository
	hasher  *security.Hasher
	issuer  *credential.Issuer
	gate    *credential.Gate
	clk     clock.Clock
	auditor audit.AuditLogger

	// devCodes receives issued plaintext codes when dev code mode is on.
	// nil in production.
	devCodes        devcode.Store
	verificationTTL time.Duration
}

// NewAccountService returns an AccountService wired over repo. The verification
// code lifecycle (generation, hashing, cooldown, expiry, one-time consumption)
// runs through the credential issuer and gate.
func NewAccountService(
	repo repository.Repository,
	hasher *security.Hasher,
	gen credential.Generator,
	dispatcher credential.Dispatcher,
	clk clock.Clock,
	auditor audit.AuditLogger,
	verificationTTL, resendCooldown time.Duration,
	devCodes devcode.Store,
) (*AccountService, error) {
	store := credentialStore{repo: repo}
	gate, err := credential.NewGate(store, hasher, clk)
	if err != nil {
		return nil, err
	}
	return &AccountService{
		repo:            repo,
		hasher:          hasher,
		issuer:          credential.NewIssuer(store, gen, hasher, dispatcher, clk, verificationTTL, resendCooldown),
		gate:            gate,
		clk:             clk,
		auditor:         auditor,
		devCodes:        devCodes,
		verificationTTL: verificationTTL,
	}, nil
}

// Register creates an unverified account and sends the first verification
// code. A delivery failure leaves the account and its code committed; the
// returned error then wraps credential.ErrDeliveryFailed so the handler can
// tell the user to use resend.
func (s *AccountService) Register(ctx context.Context, email, password, name string) (*domain.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	account := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, account.ID, "account_registered", "account/"+account.ID, "")
	}
	if err := s.sendCode(ctx, account); err != nil {
		return account, err
	}
	return account, nil
}

// Login authenticates with email/password. An unverified account fails with
// ErrEmailNotVerified; when its code is missing or expired a fresh one is sent
// first, so the user is never stuck with a dead code.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil || account.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !account.Verified {
		if s.codeMissingOrExpired(ctx, account.ID) {
			// Best-effort: a cooldown or delivery failure still lets the user
			// reach the verification screen and use resend.
			_ = s.sendCode(ctx, account)
		}
		return account, ErrEmailNotVerified
	}
	return account, nil
}

// VerifyEmail checks the submitted code for the account with the given email.
// Success consumes the code and marks the account verified atomically. Missing
// account, wrong code, and expired code are distinct errors internally but
// must all render as credential.GenericAuthMessage.
func (s *AccountService) VerifyEmail(ctx context.Context, email, code string) (*domain.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	id := ""
	if account != nil {
		id = account.ID
	}
	// An unknown email flows through the gate with a blank id so the bcrypt
	// timing pad still runs.
	if _, err := s.gate.Verify(ctx, accountRef(id), credential.KindVerificationCode, code, ""); err != nil {
		if account != nil && s.auditor != nil && credential.IsAuthFailure(err) {
			s.auditor.LogEvent(ctx, account.ID, "email_verification_failed", "account/"+account.ID, "")
		}
		return nil, err
	}
	account.Verified = true
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, account.ID, "email_verified", "account/"+account.ID, "")
	}
	return account, nil
}

// ResendVerification sends a fresh code to an unverified account, superseding
// any previous one. Inside the cooldown window it fails with
// *credential.RateLimitedError carrying retry_after.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account == nil {
		return credential.ErrNotFound
	}
	if account.Verified {
		return ErrAlreadyVerified
	}
	return s.sendCode(ctx, account)
}

// GetByEmail returns the account for email, or nil if not found.
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.repo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
}

func (s *AccountService) sendCode(ctx context.Context, a *domain.Account) error {
	plaintext, err := s.issuer.Issue(ctx, accountRef(a.ID), credential.KindVerificationCode, a.Email)
	if err != nil && !errors.Is(err, credential.ErrDeliveryFailed) {
		return err
	}
	if s.devCodes != nil && plaintext != "" {
		s.devCodes.Put(ctx, a.Email, plaintext, s.clk.Now().Add(s.verificationTTL))
	}
	return err
}

func (s *AccountService) codeMissingOrExpired(ctx context.Context, id string) bool {
	rec, err := s.repo.ReadCredential(ctx, id)
	if err != nil || rec == nil || rec.Hash == "" {
		return true
	}
	return rec.ExpiresAt != nil && !s.clk.Now().Before(*rec.ExpiresAt)
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
