package article

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"collabwiki/pkg/models"
)

var (
	// ErrStaleVersion means another writer saved the article after it was read.
	ErrStaleVersion = errors.New("article: stale version")
	// ErrDuplicateTitle means an article with the same normalized title exists.
	ErrDuplicateTitle = errors.New("article: title already exists")
)

// Store persists Article aggregates as whole documents.
// Find/Get return nil, nil when nothing matches.
type Store interface {
	FindByTitle(ctx context.Context, title string) (*models.Article, error)
	GetByID(ctx context.Context, id string) (*models.Article, error)
	Create(ctx context.Context, a *models.Article) error
	Save(ctx context.Context, a *models.Article) error
	List(ctx context.Context) ([]models.Article, error)
}

var _ Store = (*Repo)(nil)

// Repo stores one JSON document per article in SQLite. The version column is
// the concurrency token for Save.
type Repo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Repo) FindByTitle(ctx context.Context, title string) (*models.Article, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, doc, version
		FROM articles
		WHERE title_key = ?
	`, TitleKey(title))

	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("find by title: %w", err)
	}
	return a, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Article, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, doc, version
		FROM articles
		WHERE id = ?
	`, strings.TrimSpace(id))

	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return a, nil
}

// Create inserts a new article with version 1, assigning an id when empty.
func (r *Repo) Create(ctx context.Context, a *models.Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := r.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	a.Version = 1
	normalize(a)

	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO articles (id, title, title_key, doc, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Title, TitleKey(a.Title), string(doc), a.Version, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("insert article %q: %w", a.Title, ErrDuplicateTitle)
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// Save writes a back only if nobody saved it since it was read; otherwise it
// returns ErrStaleVersion and leaves a untouched.
func (r *Repo) Save(ctx context.Context, a *models.Article) error {
	next := *a
	next.Version = a.Version + 1
	next.UpdatedAt = r.now()
	normalize(&next)

	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE articles
		SET title = ?, title_key = ?, doc = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, next.Title, TitleKey(next.Title), string(doc), next.Version, next.UpdatedAt, a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update article %s at version %d: %w", a.ID, a.Version, ErrStaleVersion)
	}

	*a = next
	return nil
}

func (r *Repo) List(ctx context.Context) ([]models.Article, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, doc, version
		FROM articles
		ORDER BY title_key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(s scanner) (*models.Article, error) {
	var (
		id      string
		doc     string
		version int64
	)
	if err := s.Scan(&id, &doc, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var a models.Article
	if err := json.Unmarshal([]byte(doc), &a); err != nil {
		return nil, fmt.Errorf("decode article %s: %w", id, err)
	}
	a.ID = id
	a.Version = version
	normalize(&a)
	return &a, nil
}

// normalize replaces nil slices so documents always carry [] instead of null.
func normalize(a *models.Article) {
	if a.Category == nil {
		a.Category = []string{}
	}
	if a.Contributors == nil {
		a.Contributors = []string{}
	}
	if a.Sections == nil {
		a.Sections = []models.Section{}
	}
	for i := range a.Sections {
		if a.Sections[i].Modifications == nil {
			a.Sections[i].Modifications = []models.Contribution{}
		}
	}
}
