package article

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"collabwiki/pkg/models"
)

var ledgerHeader = []string{
	"article_id", "article_title", "section_title", "seq", "kind", "contributor", "added_text", "final_content", "timestamp",
}

// WriteLedgerCSV writes one row per contribution, grouped by article and
// section in history order, and returns the number of rows written.
func WriteLedgerCSV(w io.Writer, items []models.Article) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledgerHeader); err != nil {
		return 0, err
	}
	n := 0
	for _, a := range items {
		for _, s := range a.Sections {
			for i, m := range s.Modifications {
				if err := cw.Write([]string{
					a.ID,
					a.Title,
					s.Title,
					strconv.Itoa(i + 1),
					m.Kind,
					m.Contributor,
					m.AddedText,
					m.FinalContent,
					m.Timestamp.UTC().Format(time.RFC3339),
				}); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	cw.Flush()
	return n, cw.Error()
}
