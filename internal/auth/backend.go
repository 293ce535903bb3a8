package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
)

// User-facing provider messages.
const (
	msgEmailInUse         = "email already in use"
	msgInvalidEmail       = "invalid email address"
	msgInvalidCredentials = "invalid email or password"
	msgWeakPassword       = "password must be at least %d characters"
)

// Backend holds the credential store shared by all clients.
type Backend struct {
	creds     repository.CredentialRepository
	tokens    *TokenIssuer
	mailer    Mailer
	validate  *validator.Validate
	cost      int
	minPwLen  int
	verifyTTL time.Duration
	verifyURL string
}

func NewBackend(creds repository.CredentialRepository, tokens *TokenIssuer, mailer Mailer, cfg config.AuthConfig) *Backend {
	if mailer == nil {
		mailer = LogMailer{}
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	minLen := cfg.MinPasswordLen
	if minLen <= 0 {
		minLen = 6
	}
	ttl := cfg.VerifyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Backend{
		creds:     creds,
		tokens:    tokens,
		mailer:    mailer,
		validate:  validator.New(),
		cost:      cost,
		minPwLen:  minLen,
		verifyTTL: ttl,
		verifyURL: cfg.VerifyURL,
	}
}

// NewClient returns a signed-out client for one session.
func (b *Backend) NewClient() *Client {
	return &Client{backend: b, listeners: map[int]Listener{}}
}

func (b *Backend) create(ctx context.Context, email, password string) (*Identity, error) {
	if err := b.validate.Var(email, "required,email"); err != nil {
		return nil, &apperr.AuthError{Message: msgInvalidEmail, Err: err}
	}
	if len(password) < b.minPwLen {
		return nil, &apperr.AuthError{Message: fmt.Sprintf(msgWeakPassword, b.minPwLen)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	c, err := b.creds.Create(ctx, email, string(hash))
	if errors.Is(err, repository.ErrEmailInUse) {
		return nil, &apperr.AuthError{Message: msgEmailInUse, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}
	return &Identity{ID: c.ID, Email: c.Email, EmailVerified: c.EmailVerified}, nil
}

func (b *Backend) verify(ctx context.Context, email, password string) (*Identity, error) {
	c, err := b.creds.GetByEmail(ctx, email)
	if apperr.IsNotFound(err) {
		return nil, &apperr.AuthError{Message: msgInvalidCredentials}
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, &apperr.AuthError{Message: msgInvalidCredentials}
	}
	return &Identity{ID: c.ID, Email: c.Email, EmailVerified: c.EmailVerified}, nil
}

func (b *Backend) lookup(ctx context.Context, id string) (*Identity, error) {
	c, err := b.creds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: c.ID, Email: c.Email, EmailVerified: c.EmailVerified}, nil
}

// VerificationLink builds the link mailed to a new user.
func (b *Backend) VerificationLink(id *Identity) (string, error) {
	token, err := b.tokens.Issue(PurposeVerifyEmail, id.ID, "", b.verifyTTL)
	if err != nil {
		return "", err
	}
	if b.verifyURL == "" {
		return token, nil
	}
	return b.verifyURL + "?token=" + url.QueryEscape(token), nil
}

func (b *Backend) sendVerification(ctx context.Context, id *Identity) error {
	link, err := b.VerificationLink(id)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	return b.mailer.SendVerification(ctx, id.Email, link)
}

// ConfirmEmail marks the credential named by a verification token verified.
func (b *Backend) ConfirmEmail(ctx context.Context, token string) (*Identity, error) {
	claims, err := b.tokens.Parse(token, PurposeVerifyEmail)
	if err != nil {
		return nil, &apperr.AuthError{Message: "invalid or expired verification link", Err: err}
	}
	if err := b.creds.MarkVerified(ctx, claims.UserID); err != nil {
		return nil, err
	}
	return b.lookup(ctx, claims.UserID)
}
