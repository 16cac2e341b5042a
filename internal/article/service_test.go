package article

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabwiki/internal/apperr"
	"collabwiki/internal/revision"
	"collabwiki/pkg/database"
	"collabwiki/pkg/models"
)

type reviseCall struct {
	original     string
	contribution string
}

// fakeReviser concatenates texts so results are predictable.
type fakeReviser struct {
	mu        sync.Mutex
	revisions []reviseCall
	summaries []revision.SummaryInput
	err       error
}

func (f *fakeReviser) Revise(_ context.Context, original, contribution string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revisions = append(f.revisions, reviseCall{original: original, contribution: contribution})
	if f.err != nil {
		return "", f.err
	}
	return original + " " + contribution, nil
}

func (f *fakeReviser) Summarize(_ context.Context, in revision.SummaryInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, in)
	if f.err != nil {
		return "", f.err
	}
	if in.Summary == "" {
		return "Summary: " + in.Contribution, nil
	}
	return in.Summary + " + " + in.Contribution, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db"), MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewRepo(db)
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store, rev Reviser, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(store, rev, opts...)
}

func TestMerge_CreatesArticleAndSection(t *testing.T) {
	repo := newTestRepo(t)
	pub := &recordingPublisher{}
	svc := newTestService(t, repo, &fakeReviser{}, WithPublisher(pub))
	ctx := context.Background()

	res, err := svc.Merge(ctx, MergeRequest{
		ArticleTitle:    "Cats",
		SectionTitle:    "Habits",
		OriginalContent: "Cats sleep.",
		NewContribution: "They purr.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Cats sleep. They purr.", res.UpdatedSection)
	assert.NotEmpty(t, res.ArticleID)

	a, err := repo.FindByTitle(ctx, "cats")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, models.UnknownAuthor, a.Author.Name)
	assert.Equal(t, []string{models.AnonymousContributor}, a.Contributors)

	sec := FindSection(a, "habits")
	require.NotNil(t, sec)
	assert.Equal(t, "Cats sleep.", sec.OriginalContent)
	require.Len(t, sec.Modifications, 1)
	assert.Equal(t, models.AnonymousContributor, sec.Modifications[0].Contributor)
	assert.Equal(t, models.KindMerge, sec.Modifications[0].Kind)
	assert.True(t, fixedNow.Equal(sec.Modifications[0].Timestamp))

	assert.Equal(t, []string{EventArticleCreated, EventSectionMerged}, pub.types())
}

func TestMerge_GuideScenario(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeReviser{})
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{
		Title:    "Guide",
		Author:   models.Author{Name: "Bob"},
		Sections: []SectionInput{{Title: "Intro", Content: "Hello"}},
	})
	require.NoError(t, err)
	assert.Empty(t, created.Contributors)

	res, err := svc.Merge(ctx, MergeRequest{
		ArticleTitle:    "Guide",
		SectionTitle:    "Intro",
		OriginalContent: "Hello",
		NewContribution: "World addition",
		Contributor:     "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.ArticleID)

	hist, err := svc.History(ctx, created.ID, "Intro")
	require.NoError(t, err)
	require.Len(t, hist.Modifications, 1)
	assert.Equal(t, "World addition", hist.Modifications[0].AddedText)
	assert.Equal(t, "Alice", hist.Modifications[0].Contributor)
	assert.Equal(t, res.UpdatedSection, hist.CurrentContent)

	a, err := svc.GetByTitle(ctx, "guide")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, a.Contributors)
	assert.Equal(t, "Bob", a.Author.Name)
}

func TestMerge_SecondCallUsesFirstResult(t *testing.T) {
	repo := newTestRepo(t)
	rev := &fakeReviser{}
	svc := newTestService(t, repo, rev)
	ctx := context.Background()

	req := MergeRequest{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "seed", NewContribution: "one"}
	first, err := svc.Merge(ctx, req)
	require.NoError(t, err)

	req.NewContribution = "two"
	second, err := svc.Merge(ctx, req)
	require.NoError(t, err)

	require.Len(t, rev.revisions, 2)
	assert.Equal(t, "seed", rev.revisions[0].original)
	assert.Equal(t, first.UpdatedSection, rev.revisions[1].original)
	assert.Equal(t, "seed one two", second.UpdatedSection)
	assert.Equal(t, first.Version+1, second.Version)
}

func TestMerge_HistoryIsAppendOnly(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeReviser{})
	ctx := context.Background()

	req := MergeRequest{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "seed"}
	snapshot := []models.Contribution{}
	for i, text := range []string{"a", "b", "c", "d"} {
		req.NewContribution = text
		res, err := svc.Merge(ctx, req)
		require.NoError(t, err)

		hist, err := svc.History(ctx, res.ArticleID, "S")
		require.NoError(t, err)
		require.Len(t, hist.Modifications, i+1)
		assert.Equal(t, snapshot, hist.Modifications[:i], "prior records must be unchanged")
		snapshot = append([]models.Contribution(nil), hist.Modifications...)
	}
}

func TestMerge_ContributorRecordedOnce(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeReviser{})
	ctx := context.Background()

	for _, text := range []string{"x", "y", "z"} {
		_, err := svc.Merge(ctx, MergeRequest{
			ArticleTitle: "A", SectionTitle: "S", OriginalContent: "seed", NewContribution: text, Contributor: "Alice",
		})
		require.NoError(t, err)
	}

	a, err := svc.GetByTitle(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, a.Contributors)
}

func TestMerge_CaseInsensitiveTitles(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeReviser{})
	ctx := context.Background()

	first, err := svc.Merge(ctx, MergeRequest{ArticleTitle: "Foo", SectionTitle: "Intro", OriginalContent: "x", NewContribution: "1"})
	require.NoError(t, err)
	second, err := svc.Merge(ctx, MergeRequest{ArticleTitle: "foo", SectionTitle: "INTRO", OriginalContent: "x", NewContribution: "2"})
	require.NoError(t, err)

	assert.Equal(t, first.ArticleID, second.ArticleID)
	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Len(t, items[0].Sections, 1)
}

func TestMerge_Validation(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeReviser{})

	cases := []MergeRequest{
		{SectionTitle: "S", OriginalContent: "o", NewContribution: "n"},
		{ArticleTitle: "A", OriginalContent: "o", NewContribution: "n"},
		{ArticleTitle: "A", SectionTitle: "S", NewContribution: "n"},
		{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "o", NewContribution: "  "},
	}
	for _, req := range cases {
		_, err := svc.Merge(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	}
}

func TestMerge_UpstreamFailurePersistsNoHistory(t *testing.T) {
	repo := newTestRepo(t)
	rev := &fakeReviser{err: apperr.Upstream("revision.Revise", errors.New("timeout"))}
	svc := newTestService(t, repo, rev)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Title: "A", Sections: []SectionInput{{Title: "S", Content: "seed"}}})
	require.NoError(t, err)

	_, err = svc.Merge(ctx, MergeRequest{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "seed", NewContribution: "n", Contributor: "Alice"})
	require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)

	a, err := repo.FindByTitle(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Version)
	assert.Empty(t, a.Contributors)
	assert.Empty(t, FindSection(a, "S").Modifications)
}

func TestMerge_UpstreamFailureOnNewTitleAnnouncesNothing(t *testing.T) {
	repo := newTestRepo(t)
	rev := &fakeReviser{err: apperr.Upstream("revision.Revise", errors.New("timeout"))}
	pub := &recordingPublisher{}
	svc := newTestService(t, repo, rev, WithPublisher(pub))
	ctx := context.Background()

	req := MergeRequest{ArticleTitle: "Fresh", SectionTitle: "S", OriginalContent: "seed", NewContribution: "n"}
	_, err := svc.Merge(ctx, req)
	require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Empty(t, pub.types())

	// The empty article stays; the first save that fills it announces it.
	rev.err = nil
	res, err := svc.Merge(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{EventArticleCreated, EventSectionMerged}, pub.types())
	assert.Equal(t, res.ArticleID, pub.events[0].ArticleID)
	assert.Equal(t, res.Version, pub.events[0].Version)

	_, err = svc.Merge(ctx, MergeRequest{ArticleTitle: "fresh", SectionTitle: "T", OriginalContent: "more", NewContribution: "m"})
	require.NoError(t, err)
	assert.Equal(t, []string{EventArticleCreated, EventSectionMerged, EventSectionMerged}, pub.types())
}

func TestCreate_AnnouncesOnlyArticlesWithSections(t *testing.T) {
	repo := newTestRepo(t)
	pub := &recordingPublisher{}
	svc := newTestService(t, repo, &fakeReviser{}, WithPublisher(pub))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Title: "Full", Sections: []SectionInput{{Title: "S", Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{EventArticleCreated}, pub.types())

	_, err = svc.Create(ctx, CreateRequest{Title: "Empty"})
	require.NoError(t, err)
	assert.Equal(t, []string{EventArticleCreated}, pub.types())

	_, err = svc.Summarize(ctx, SummaryRequest{ArticleTitle: "Empty", SectionTitle: "Day 1", NewContribution: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{EventArticleCreated, EventArticleCreated, EventSectionSummarized}, pub.types())
}

type failingSaveStore struct {
	Store
}

func (f failingSaveStore) Save(context.Context, *models.Article) error {
	return errors.New("disk I/O error")
}

func TestMerge_PersistenceFailure(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, failingSaveStore{Store: repo}, &fakeReviser{})

	_, err := svc.Merge(context.Background(), MergeRequest{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "o", NewContribution: "n"})
	require.ErrorIs(t, err, apperr.ErrPersistenceFailure)
	assert.NotContains(t, apperr.Message(err), "disk")

	a, err := repo.FindByTitle(context.Background(), "A")
	require.NoError(t, err)
	assert.Empty(t, a.Sections)
}

// racingStore lets another writer commit right before the first Save.
type racingStore struct {
	Store
	once      sync.Once
	interfere func()
}

func (r *racingStore) Save(ctx context.Context, a *models.Article) error {
	r.once.Do(r.interfere)
	return r.Store.Save(ctx, a)
}

func TestMerge_RestartsAfterVersionConflict(t *testing.T) {
	repo := newTestRepo(t)
	rev := &fakeReviser{}
	ctx := context.Background()

	seedSvc := newTestService(t, repo, rev)
	_, err := seedSvc.Create(ctx, CreateRequest{Title: "A", Sections: []SectionInput{{Title: "S", Content: "seed"}}})
	require.NoError(t, err)

	store := &racingStore{Store: repo}
	store.interfere = func() {
		other, err := repo.FindByTitle(ctx, "A")
		require.NoError(t, err)
		AppendContribution(FindSection(other, "S"), models.Contribution{Contributor: "Bob", AddedText: "bob", FinalContent: "seed bob", Kind: models.KindMerge})
		RecordContributor(other, "Bob")
		require.NoError(t, repo.Save(ctx, other))
	}
	svc := newTestService(t, store, rev)

	res, err := svc.Merge(ctx, MergeRequest{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "seed", NewContribution: "alice", Contributor: "Alice"})
	require.NoError(t, err)

	require.Len(t, rev.revisions, 2)
	assert.Equal(t, "seed", rev.revisions[0].original)
	assert.Equal(t, "seed bob", rev.revisions[1].original, "retry must revise the winner's content")
	assert.Equal(t, "seed bob alice", res.UpdatedSection)

	a, err := repo.FindByTitle(ctx, "A")
	require.NoError(t, err)
	mods := FindSection(a, "S").Modifications
	require.Len(t, mods, 2)
	assert.Equal(t, "Bob", mods[0].Contributor)
	assert.Equal(t, "Alice", mods[1].Contributor)
	assert.Equal(t, []string{"Bob", "Alice"}, a.Contributors)
}

type alwaysStaleStore struct {
	Store
}

func (alwaysStaleStore) Save(context.Context, *models.Article) error {
	return ErrStaleVersion
}

func TestMerge_GivesUpAfterMaxAttempts(t *testing.T) {
	rev := &fakeReviser{}
	svc := newTestService(t, alwaysStaleStore{Store: newTestRepo(t)}, rev, WithMaxAttempts(2))

	_, err := svc.Merge(context.Background(), MergeRequest{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "o", NewContribution: "n"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Len(t, rev.revisions, 2)
}

func TestMerge_ConcurrentWritersAllLand(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeReviser{}, WithMaxAttempts(50))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Title: "A", Sections: []SectionInput{{Title: "S", Content: "seed"}}})
	require.NoError(t, err)

	const writers = 5
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Merge(ctx, MergeRequest{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "seed", NewContribution: string(rune('a' + i))})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	a, err := repo.FindByTitle(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, FindSection(a, "S").Modifications, writers)
	assert.Equal(t, int64(1+writers), a.Version)
}

func TestSummarize_TracksRawHistoryAndSummary(t *testing.T) {
	repo := newTestRepo(t)
	rev := &fakeReviser{}
	pub := &recordingPublisher{}
	svc := newTestService(t, repo, rev, WithPublisher(pub))
	ctx := context.Background()

	first, err := svc.Summarize(ctx, SummaryRequest{ArticleTitle: "Notes", SectionTitle: "Day 1", NewContribution: "We met.", Contributor: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Summary: We met.", first.UpdatedSummary)

	second, err := svc.Summarize(ctx, SummaryRequest{ArticleTitle: "notes", SectionTitle: "day 1", NewContribution: "We ate.", Contributor: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Summary: We met. + We ate.", second.UpdatedSummary)

	require.Len(t, rev.summaries, 2)
	assert.Empty(t, rev.summaries[0].History)
	assert.Equal(t, []string{"We met."}, rev.summaries[1].History)
	assert.Equal(t, "Summary: We met.", rev.summaries[1].Summary)

	hist, err := svc.History(ctx, second.ArticleID, "Day 1")
	require.NoError(t, err)
	assert.Equal(t, second.UpdatedSummary, hist.CurrentContent)
	assert.Equal(t, "", hist.OriginalContent)
	require.Len(t, hist.Modifications, 2)
	for _, m := range hist.Modifications {
		assert.Equal(t, models.KindSummary, m.Kind)
		assert.Equal(t, m.AddedText, m.FinalContent)
	}
	assert.Equal(t, []string{EventArticleCreated, EventSectionSummarized, EventSectionSummarized}, pub.types())
}

func TestMerge_AfterSummaryStartsFromSummary(t *testing.T) {
	repo := newTestRepo(t)
	rev := &fakeReviser{}
	svc := newTestService(t, repo, rev)
	ctx := context.Background()

	_, err := svc.Summarize(ctx, SummaryRequest{ArticleTitle: "A", SectionTitle: "S", NewContribution: "x"})
	require.NoError(t, err)
	_, err = svc.Merge(ctx, MergeRequest{ArticleTitle: "A", SectionTitle: "S", OriginalContent: "ignored", NewContribution: "y"})
	require.NoError(t, err)

	require.Len(t, rev.revisions, 1)
	assert.Equal(t, "Summary: x", rev.revisions[0].original)
}

func TestHistory_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &fakeReviser{})
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateRequest{Title: "A", Sections: []SectionInput{{Title: "S", Content: "x"}}})
	require.NoError(t, err)

	_, err = svc.History(ctx, a.ID, "Missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.History(ctx, "no-such-id", "S")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate_Conflict(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeReviser{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Title: "Guide"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRequest{Title: "GUIDE "})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreate_ValidatesAndDefaults(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeReviser{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = svc.Create(ctx, CreateRequest{Title: "X", Sections: []SectionInput{{Title: "A"}, {Title: "a"}}})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	a, err := svc.Create(ctx, CreateRequest{
		Title:        "Y",
		Category:     []string{"science"},
		Contributors: []string{"Alice", "Alice", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, models.UnknownAuthor, a.Author.Name)
	assert.Equal(t, []string{"Alice"}, a.Contributors)
	assert.Equal(t, []string{"science"}, a.Category)
}

func TestGetByTitle_NotFound(t *testing.T) {
	svc := newTestService(t, newTestRepo(t), &fakeReviser{})
	_, err := svc.GetByTitle(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
