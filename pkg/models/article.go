package models

import "time"

const (
	// AnonymousContributor is recorded when a contribution carries no identity.
	AnonymousContributor = "Anonymous"
	// UnknownAuthor is the author name given to articles created implicitly.
	UnknownAuthor = "Unknown"
)

// Contribution kinds. A merge record stores the revised section text in
// FinalContent; a summary record stores the raw addition there and the
// expanded summary lives only in Section.Content.
const (
	KindMerge   = "merge"
	KindSummary = "summary"
)

type Author struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Contribution is one append-only history record of a section.
type Contribution struct {
	Contributor  string    `json:"contributor"`
	AddedText    string    `json:"added_text"`
	FinalContent string    `json:"final_content"`
	Kind         string    `json:"kind"`
	Timestamp    time.Time `json:"timestamp"`
}

type Section struct {
	Title           string         `json:"section_title"`
	Content         string         `json:"content"`
	OriginalContent string         `json:"original_content"`
	Modifications   []Contribution `json:"modifications"`
}

// Article is the aggregate persisted as a single document. Version is owned
// by the store and bumped on every successful save.
type Article struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Author       Author    `json:"author"`
	Category     []string  `json:"category"`
	Image        string    `json:"image,omitempty"`
	Contributors []string  `json:"contributors"`
	Sections     []Section `json:"sections"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
