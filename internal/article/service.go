package article

import (
	"context"
	"errors"
	"strings"
	"time"

	"collabwiki/internal/apperr"
	"collabwiki/internal/logger"
	"collabwiki/internal/revision"
	"collabwiki/pkg/models"
)

const DefaultMaxAttempts = 3

// Event types published after successful writes.
const (
	EventArticleCreated    = "article.created"
	EventSectionMerged     = "section.merged"
	EventSectionSummarized = "section.summarized"
)

// Reviser is the text revision client used by the merge and summary flows.
type Reviser interface {
	Revise(ctx context.Context, original, contribution string) (string, error)
	Summarize(ctx context.Context, in revision.SummaryInput) (string, error)
}

// Publisher receives change events. Implementations must not block.
type Publisher interface {
	Publish(ev Event)
}

type Event struct {
	Type         string    `json:"type"`
	ArticleID    string    `json:"article_id"`
	ArticleTitle string    `json:"article_title"`
	SectionTitle string    `json:"section_title,omitempty"`
	Contributor  string    `json:"contributor,omitempty"`
	Version      int64     `json:"version"`
	At           time.Time `json:"at"`
}

type MergeRequest struct {
	ArticleTitle    string `json:"article_title"`
	SectionTitle    string `json:"section_title"`
	OriginalContent string `json:"original_content"`
	NewContribution string `json:"new_contribution"`
	Contributor     string `json:"contributor,omitempty"`
}

type MergeResult struct {
	UpdatedSection string              `json:"updated_section"`
	ArticleID      string              `json:"article_id"`
	Version        int64               `json:"version"`
	Contribution   models.Contribution `json:"contribution"`
}

type SummaryRequest struct {
	ArticleTitle    string `json:"article_title"`
	SectionTitle    string `json:"section_title"`
	NewContribution string `json:"new_contribution"`
	Contributor     string `json:"contributor,omitempty"`
}

type SummaryResult struct {
	UpdatedSummary string              `json:"updated_summary"`
	ArticleID      string              `json:"article_id"`
	Version        int64               `json:"version"`
	Contribution   models.Contribution `json:"contribution"`
}

type SectionInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type CreateRequest struct {
	Title        string         `json:"title"`
	Author       models.Author  `json:"author"`
	Sections     []SectionInput `json:"sections"`
	Category     []string       `json:"category,omitempty"`
	Image        string         `json:"image,omitempty"`
	Contributors []string       `json:"contributors,omitempty"`
}

type SectionHistory struct {
	ArticleID       string                `json:"article_id"`
	SectionTitle    string                `json:"section_title"`
	CurrentContent  string                `json:"current_content"`
	OriginalContent string                `json:"original_content"`
	Modifications   []models.Contribution `json:"modifications"`
}

// Service runs the contribution flows. It keeps no state between requests;
// every call reads the article fresh and writes it back with a version check.
type Service struct {
	store       Store
	reviser     Reviser
	events      Publisher
	log         *logger.Logger
	now         func() time.Time
	maxAttempts int
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxAttempts bounds how often a write is retried after losing a
// version race.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewService(store Store, reviser Reviser, opts ...Option) *Service {
	s := &Service{
		store:       store,
		reviser:     reviser,
		log:         logger.Nop(),
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "article")
	return s
}

// Merge folds req.NewContribution into the section's current content via the
// reviser and appends the result to the section history.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	const op = "article.Merge"
	req.ArticleTitle = strings.TrimSpace(req.ArticleTitle)
	req.SectionTitle = strings.TrimSpace(req.SectionTitle)
	if req.ArticleTitle == "" || req.SectionTitle == "" ||
		strings.TrimSpace(req.OriginalContent) == "" || strings.TrimSpace(req.NewContribution) == "" {
		return nil, s.fail(s.log.With("op", op), op, apperr.InvalidRequest(op, "article_title, section_title, original_content and new_contribution are required"))
	}
	contributor := contributorOrAnonymous(req.Contributor)
	log := s.log.With("op", op, "article", req.ArticleTitle, "section", req.SectionTitle)

	var (
		res      *MergeResult
		announce bool
	)
	err := s.withRetry(ctx, log, func() error {
		a, err := s.findOrCreateArticle(ctx, req.ArticleTitle, models.Author{})
		if err != nil {
			return err
		}
		announce = len(a.Sections) == 0

		sec := FindOrCreateSection(a, req.SectionTitle, req.OriginalContent)
		if strings.TrimSpace(sec.Content) == "" {
			// Sections created empty (explicitly or by the summary flow)
			// take the caller's original content as their starting point.
			sec.Content = req.OriginalContent
			if sec.OriginalContent == "" {
				sec.OriginalContent = req.OriginalContent
			}
		}

		revised, err := s.reviser.Revise(ctx, sec.Content, req.NewContribution)
		if err != nil {
			return err
		}

		rec := models.Contribution{
			Contributor:  contributor,
			AddedText:    req.NewContribution,
			FinalContent: revised,
			Kind:         models.KindMerge,
			Timestamp:    s.now(),
		}
		AppendContribution(sec, rec)
		RecordContributor(a, contributor)

		if err := s.store.Save(ctx, a); err != nil {
			return err
		}

		res = &MergeResult{UpdatedSection: revised, ArticleID: a.ID, Version: a.Version, Contribution: rec}
		return nil
	})
	if err != nil {
		return nil, s.fail(log, op, err)
	}

	log.Info("contribution merged", "article_id", res.ArticleID, "version", res.Version, "contributor", contributor)
	if announce {
		s.publish(EventArticleCreated, res.ArticleID, req.ArticleTitle, "", "", res.Version)
	}
	s.publish(EventSectionMerged, res.ArticleID, req.ArticleTitle, req.SectionTitle, contributor, res.Version)
	return res, nil
}

// Summarize expands the section's running summary with req.NewContribution.
// The history keeps the raw addition; the section content holds the summary.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error) {
	const op = "article.Summarize"
	req.ArticleTitle = strings.TrimSpace(req.ArticleTitle)
	req.SectionTitle = strings.TrimSpace(req.SectionTitle)
	if req.ArticleTitle == "" || req.SectionTitle == "" || strings.TrimSpace(req.NewContribution) == "" {
		return nil, s.fail(s.log.With("op", op), op, apperr.InvalidRequest(op, "article_title, section_title and new_contribution are required"))
	}
	contributor := contributorOrAnonymous(req.Contributor)
	log := s.log.With("op", op, "article", req.ArticleTitle, "section", req.SectionTitle)

	var (
		res      *SummaryResult
		announce bool
	)
	err := s.withRetry(ctx, log, func() error {
		a, err := s.findOrCreateArticle(ctx, req.ArticleTitle, models.Author{})
		if err != nil {
			return err
		}
		announce = len(a.Sections) == 0

		sec := FindOrCreateSection(a, req.SectionTitle, "")
		summary, err := s.reviser.Summarize(ctx, revision.SummaryInput{
			Summary:      sec.Content,
			History:      Transcript(sec),
			Contribution: req.NewContribution,
		})
		if err != nil {
			return err
		}

		rec := models.Contribution{
			Contributor:  contributor,
			AddedText:    req.NewContribution,
			FinalContent: req.NewContribution,
			Kind:         models.KindSummary,
			Timestamp:    s.now(),
		}
		AppendSummaryContribution(sec, rec, summary)
		RecordContributor(a, contributor)

		if err := s.store.Save(ctx, a); err != nil {
			return err
		}

		res = &SummaryResult{UpdatedSummary: summary, ArticleID: a.ID, Version: a.Version, Contribution: rec}
		return nil
	})
	if err != nil {
		return nil, s.fail(log, op, err)
	}

	log.Info("contribution summarized", "article_id", res.ArticleID, "version", res.Version, "contributor", contributor)
	if announce {
		s.publish(EventArticleCreated, res.ArticleID, req.ArticleTitle, "", "", res.Version)
	}
	s.publish(EventSectionSummarized, res.ArticleID, req.ArticleTitle, req.SectionTitle, contributor, res.Version)
	return res, nil
}

// History returns the current content and full modification log of a section.
func (s *Service) History(ctx context.Context, articleID, sectionTitle string) (*SectionHistory, error) {
	const op = "article.History"
	articleID = strings.TrimSpace(articleID)
	if articleID == "" || strings.TrimSpace(sectionTitle) == "" {
		return nil, s.fail(s.log.With("op", op), op, apperr.InvalidRequest(op, "article id and section title are required"))
	}
	log := s.log.With("op", op, "article_id", articleID, "section", sectionTitle)

	a, err := s.store.GetByID(ctx, articleID)
	if err != nil {
		return nil, s.fail(log, op, apperr.Persistence(op, err))
	}
	if a == nil {
		return nil, s.fail(log, op, apperr.NotFound(op, "article not found"))
	}
	sec := FindSection(a, sectionTitle)
	if sec == nil {
		return nil, s.fail(log, op, apperr.NotFound(op, "section not found"))
	}

	return &SectionHistory{
		ArticleID:       a.ID,
		SectionTitle:    sec.Title,
		CurrentContent:  sec.Content,
		OriginalContent: sec.OriginalContent,
		Modifications:   sec.Modifications,
	}, nil
}

// Create stores a new article. Titles are unique ignoring case.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Article, error) {
	const op = "article.Create"
	title := strings.TrimSpace(req.Title)
	log := s.log.With("op", op, "article", title)
	if title == "" {
		return nil, s.fail(log, op, apperr.InvalidRequest(op, "title is required"))
	}
	author := req.Author
	author.Name = strings.TrimSpace(author.Name)
	if author.Name == "" {
		author.Name = models.UnknownAuthor
	}

	a := &models.Article{
		Title:    title,
		Author:   author,
		Category: req.Category,
		Image:    req.Image,
	}
	for _, c := range req.Contributors {
		if c = strings.TrimSpace(c); c != "" {
			RecordContributor(a, c)
		}
	}
	for _, in := range req.Sections {
		if strings.TrimSpace(in.Title) == "" {
			return nil, s.fail(log, op, apperr.InvalidRequest(op, "section title is required"))
		}
		if FindSection(a, in.Title) != nil {
			return nil, s.fail(log, op, apperr.InvalidRequest(op, "duplicate section title "+strings.TrimSpace(in.Title)))
		}
		FindOrCreateSection(a, in.Title, in.Content)
	}

	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateTitle) {
			return nil, s.fail(log, op, apperr.Conflict(op, "article already exists"))
		}
		return nil, s.fail(log, op, apperr.Persistence(op, err))
	}

	log.Info("article created", "article_id", a.ID)
	if len(a.Sections) > 0 {
		s.publish(EventArticleCreated, a.ID, a.Title, "", "", a.Version)
	}
	return a, nil
}

func (s *Service) GetByTitle(ctx context.Context, title string) (*models.Article, error) {
	const op = "article.GetByTitle"
	log := s.log.With("op", op, "article", title)
	if strings.TrimSpace(title) == "" {
		return nil, s.fail(log, op, apperr.InvalidRequest(op, "title is required"))
	}
	a, err := s.store.FindByTitle(ctx, title)
	if err != nil {
		return nil, s.fail(log, op, apperr.Persistence(op, err))
	}
	if a == nil {
		return nil, s.fail(log, op, apperr.NotFound(op, "article not found"))
	}
	return a, nil
}

func (s *Service) List(ctx context.Context) ([]models.Article, error) {
	const op = "article.List"
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fail(s.log.With("op", op), op, apperr.Persistence(op, err))
	}
	return items, nil
}

// findOrCreateArticle returns the stored article for title or creates it.
// Creation is not announced here; the first save that gives the article a
// section does that.
// Losing a concurrent create race falls back to reading the winner.
func (s *Service) findOrCreateArticle(ctx context.Context, title string, author models.Author) (*models.Article, error) {
	const op = "article.findOrCreate"
	a, err := s.store.FindByTitle(ctx, title)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if a != nil {
		return a, nil
	}

	if strings.TrimSpace(author.Name) == "" {
		author.Name = models.UnknownAuthor
	}
	a = &models.Article{Title: strings.TrimSpace(title), Author: author}
	err = s.store.Create(ctx, a)
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, ErrDuplicateTitle):
		a, err = s.store.FindByTitle(ctx, title)
		if err != nil {
			return nil, apperr.Persistence(op, err)
		}
		if a == nil {
			return nil, apperr.Persistence(op, errors.New("article vanished after duplicate create"))
		}
		return a, nil
	default:
		return nil, apperr.Persistence(op, err)
	}
}

// withRetry runs one read-modify-write cycle and restarts it from a fresh
// read when the save loses a version race.
func (s *Service) withRetry(ctx context.Context, log *logger.Logger, cycle func() error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := cycle()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStaleVersion) {
			var appErr *apperr.Error
			if errors.As(err, &appErr) {
				return err
			}
			return apperr.Persistence("article.save", err)
		}
		log.Warn("version conflict, restarting", "attempt", attempt)
		if err := ctx.Err(); err != nil {
			return apperr.Persistence("article.save", err)
		}
	}
	return apperr.Conflict("article.save", "section was updated concurrently, please retry")
}

func (s *Service) fail(log *logger.Logger, op string, err error) error {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindInvalidRequest, apperr.KindNotFound, apperr.KindConflict:
		log.Warn("request rejected", "kind", kind.String(), "err", err)
	default:
		log.Error("request failed", "kind", kind.String(), "err", err)
	}
	return err
}

func (s *Service) publish(typ, articleID, articleTitle, sectionTitle, contributor string, version int64) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{
		Type:         typ,
		ArticleID:    articleID,
		ArticleTitle: articleTitle,
		SectionTitle: sectionTitle,
		Contributor:  contributor,
		Version:      version,
		At:           s.now(),
	})
}
