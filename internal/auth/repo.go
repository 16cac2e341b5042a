package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"collabwiki/pkg/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrNameTaken means another account already owns the contributor name,
	// compared by key.
	ErrNameTaken  = errors.New("contributor name already taken")
	ErrEmailTaken = errors.New("email already registered")
)

// Account is a registered contributor. Name is recorded on every contribution
// made with the account's token.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	TokenVersion int
	CreatedAt    time.Time
}

// Repo stores contributor accounts. name_key enforces one account per
// contributor identity the same way articles.title_key does for titles.
// Find/Get return nil, nil when nothing matches.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const accountColumns = `id, name, email, password_hash, token_version, created_at`

// Create inserts a, assigning an id and creation time when empty.
func (r *Repo) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Name = strings.TrimSpace(a.Name)
	a.Email = normalizeEmail(a.Email)

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO contributors (id, name, name_key, email, password_hash, token_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, models.Key(a.Name), a.Email, a.PasswordHash, a.TokenVersion, a.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			if strings.Contains(sqliteErr.Error(), "contributors.email") {
				return fmt.Errorf("create account %q: %w", a.Name, ErrEmailTaken)
			}
			return fmt.Errorf("create account %q: %w", a.Name, ErrNameTaken)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *Repo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM contributors
		WHERE email = ?
	`, normalizeEmail(email))

	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("find by email: %w", err)
	}
	return a, nil
}

// FindByName looks a contributor up by key, so "Alice" finds "alice".
func (r *Repo) FindByName(ctx context.Context, name string) (*Account, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM contributors
		WHERE name_key = ?
	`, models.Key(name))

	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return a, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Account, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM contributors
		WHERE id = ?
	`, id)

	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetTokenVersion returns ErrAccountNotFound for deleted or unknown ids so
// their tokens stop verifying.
func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `SELECT token_version FROM contributors WHERE id = ?`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

// SetPassword replaces the hash and revokes outstanding tokens in one write.
func (r *Repo) SetPassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE contributors
		SET password_hash = ?, token_version = token_version + 1
		WHERE id = ?
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return expectOne(res, "set password", id)
}

// Revoke invalidates every token issued to id so far.
func (r *Repo) Revoke(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE contributors
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return expectOne(res, "revoke tokens", id)
}

func expectOne(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrAccountNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (*Account, error) {
	var a Account
	if err := s.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.TokenVersion, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
