package auth

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"collabwiki/internal/apperr"
	"collabwiki/internal/logger"
	"collabwiki/pkg/models"
)

const (
	minNameLen     = 3
	maxNameLen     = 30
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
	maxEmailLen    = 255
)

// AccountStore is the persistence the account flows need. *Repo satisfies it.
type AccountStore interface {
	TokenVersions
	Create(ctx context.Context, a *Account) error
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Get(ctx context.Context, id string) (*Account, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	Revoke(ctx context.Context, id string) error
}

var _ AccountStore = (*Repo)(nil)

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordChange struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Profile is the public view of an account. Username is the contributor name
// recorded on contributions.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	User      Profile   `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Accounts runs registration, login and token revocation for contributors.
type Accounts struct {
	store  AccountStore
	tokens TokenService
	log    *logger.Logger
	cost   int
}

type AccountsOption func(*Accounts)

func WithAccountsLogger(l *logger.Logger) AccountsOption {
	return func(a *Accounts) {
		if l != nil {
			a.log = l
		}
	}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) AccountsOption {
	return func(a *Accounts) { a.cost = cost }
}

func NewAccounts(store AccountStore, tokens TokenService, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		store:  store,
		tokens: tokens,
		log:    logger.Nop(),
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("component", "auth")
	return a
}

// Register creates an account and signs its first token. Names are unique by
// key and may not shadow the Anonymous/Unknown placeholders.
func (s *Accounts) Register(ctx context.Context, r Registration) (*Session, error) {
	const op = "auth.Register"
	name := strings.TrimSpace(r.Username)
	email := normalizeEmail(r.Email)
	log := s.log.With("op", op, "username", name)

	if err := validateName(op, name); err != nil {
		return nil, err
	}
	if !strings.Contains(email, "@") || len(email) > maxEmailLen {
		return nil, apperr.InvalidRequest(op, "invalid email")
	}
	if err := validatePassword(op, r.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		log.Error("hash password failed", "err", err)
		return nil, &apperr.Error{Kind: apperr.KindInternal, Op: op, Msg: "hash failed", Err: err}
	}

	acct := &Account{Name: name, Email: email, PasswordHash: string(hash)}
	if err := s.store.Create(ctx, acct); err != nil {
		switch {
		case errors.Is(err, ErrNameTaken):
			return nil, apperr.Conflict(op, "username already exists")
		case errors.Is(err, ErrEmailTaken):
			return nil, apperr.Conflict(op, "email already exists")
		}
		log.Error("create account failed", "err", err)
		return nil, apperr.Persistence(op, err)
	}

	log.Info("contributor registered", "account_id", acct.ID)
	return s.session(op, acct)
}

// Login never says which of email or password was wrong.
func (s *Accounts) Login(ctx context.Context, c Credentials) (*Session, error) {
	const op = "auth.Login"
	email := normalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return nil, apperr.InvalidRequest(op, "email and password required")
	}

	acct, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("lookup failed", "op", op, "err", err)
		return nil, apperr.Persistence(op, err)
	}
	if acct == nil || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(c.Password)) != nil {
		return nil, apperr.Unauthorized(op, "invalid credentials")
	}
	return s.session(op, acct)
}

// ChangePassword verifies the old password, stores the new hash and revokes
// every outstanding token, including the one used for this call.
func (s *Accounts) ChangePassword(ctx context.Context, accountID string, pc PasswordChange) error {
	const op = "auth.ChangePassword"
	if pc.OldPassword == "" || pc.NewPassword == "" {
		return apperr.InvalidRequest(op, "old and new password required")
	}
	if err := validatePassword(op, pc.NewPassword); err != nil {
		return err
	}

	acct, err := s.account(ctx, op, accountID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(pc.OldPassword)) != nil {
		return apperr.Unauthorized(op, "invalid credentials")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pc.NewPassword), s.cost)
	if err != nil {
		return &apperr.Error{Kind: apperr.KindInternal, Op: op, Msg: "hash failed", Err: err}
	}
	if err := s.store.SetPassword(ctx, acct.ID, string(hash)); err != nil {
		s.log.Error("set password failed", "op", op, "account_id", acct.ID, "err", err)
		return apperr.Persistence(op, err)
	}
	s.log.Info("password changed", "op", op, "account_id", acct.ID)
	return nil
}

func (s *Accounts) Logout(ctx context.Context, accountID string) error {
	const op = "auth.Logout"
	if err := s.store.Revoke(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return apperr.Unauthorized(op, "invalid token")
		}
		s.log.Error("revoke failed", "op", op, "account_id", accountID, "err", err)
		return apperr.Persistence(op, err)
	}
	return nil
}

func (s *Accounts) Profile(ctx context.Context, accountID string) (*Profile, error) {
	acct, err := s.account(ctx, "auth.Profile", accountID)
	if err != nil {
		return nil, err
	}
	p := profileOf(acct)
	return &p, nil
}

func (s *Accounts) account(ctx context.Context, op, id string) (*Account, error) {
	acct, err := s.store.Get(ctx, id)
	if err != nil {
		s.log.Error("lookup failed", "op", op, "account_id", id, "err", err)
		return nil, apperr.Persistence(op, err)
	}
	if acct == nil {
		return nil, apperr.Unauthorized(op, "invalid token")
	}
	return acct, nil
}

func (s *Accounts) session(op string, acct *Account) (*Session, error) {
	token, exp, err := s.tokens.Sign(acct)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInternal, Op: op, Msg: "token failed", Err: err}
	}
	return &Session{User: profileOf(acct), Token: token, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

func profileOf(a *Account) Profile {
	return Profile{ID: a.ID, Username: a.Name, Email: a.Email, CreatedAt: a.CreatedAt}
}

func validateName(op, name string) error {
	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return apperr.InvalidRequest(op, "username must be 3-30 chars")
	}
	if strings.ContainsFunc(name, unicode.IsControl) {
		return apperr.InvalidRequest(op, "username contains control characters")
	}
	if models.ReservedContributor(name) {
		return apperr.InvalidRequest(op, "username is reserved")
	}
	return nil
}

func validatePassword(op, pw string) error {
	if len(pw) < minPasswordLen || len(pw) > maxPasswordLen {
		return apperr.InvalidRequest(op, "password must be 8-72 chars")
	}
	return nil
}
