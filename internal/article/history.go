package article

import (
	"strings"

	"collabwiki/pkg/models"
)

// TitleKey is the normalized form used for every title comparison, for
// articles and sections alike.
func TitleKey(title string) string {
	return models.Key(title)
}

// FindSection returns the section of a whose title matches, or nil.
func FindSection(a *models.Article, sectionTitle string) *models.Section {
	key := TitleKey(sectionTitle)
	for i := range a.Sections {
		if TitleKey(a.Sections[i].Title) == key {
			return &a.Sections[i]
		}
	}
	return nil
}

// FindOrCreateSection returns the matching section, or appends a new one
// seeded with seed and an empty history. The change lives only in a until the
// article is saved. The returned pointer is invalidated by the next append to
// a.Sections.
func FindOrCreateSection(a *models.Article, sectionTitle, seed string) *models.Section {
	if s := FindSection(a, sectionTitle); s != nil {
		return s
	}
	a.Sections = append(a.Sections, models.Section{
		Title:           strings.TrimSpace(sectionTitle),
		Content:         seed,
		OriginalContent: seed,
		Modifications:   []models.Contribution{},
	})
	return &a.Sections[len(a.Sections)-1]
}

// AppendContribution appends rec to the section history and makes its
// FinalContent the current content.
func AppendContribution(s *models.Section, rec models.Contribution) {
	s.Modifications = append(s.Modifications, rec)
	s.Content = rec.FinalContent
}

// AppendSummaryContribution appends rec (which keeps the raw addition) and
// sets the current content to the expanded summary.
func AppendSummaryContribution(s *models.Section, rec models.Contribution, summary string) {
	s.Modifications = append(s.Modifications, rec)
	s.Content = summary
}

// RecordContributor adds id to the contributor set unless a contributor with
// the same key is already present. The first spelling seen is kept.
func RecordContributor(a *models.Article, id string) {
	key := models.Key(id)
	for _, c := range a.Contributors {
		if models.Key(c) == key {
			return
		}
	}
	a.Contributors = append(a.Contributors, id)
}

// Transcript lists the raw additions of a section in causal order.
func Transcript(s *models.Section) []string {
	out := make([]string, 0, len(s.Modifications))
	for _, m := range s.Modifications {
		out = append(out, m.AddedText)
	}
	return out
}

func contributorOrAnonymous(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return models.AnonymousContributor
	}
	return id
}
