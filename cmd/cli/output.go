package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"collabwiki/internal/article"
	"collabwiki/pkg/models"
)

const maxTitleWidth = 40

// renderArticleTable lays out articles in aligned columns. Widths are display
// widths so CJK and emoji titles line up.
func renderArticleTable(items []models.Article) string {
	rows := [][]string{{"TITLE", "SECTIONS", "CONTRIBUTORS", "VERSION", "UPDATED"}}
	for _, a := range items {
		updated := ""
		if !a.UpdatedAt.IsZero() {
			updated = a.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			runewidth.Truncate(a.Title, maxTitleWidth, "…"),
			strconv.Itoa(len(a.Sections)),
			strconv.Itoa(len(a.Contributors)),
			strconv.FormatInt(a.Version, 10),
			updated,
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeJSON(path string, items []models.Article) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeContributionsCSV(path string, items []models.Article) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return article.WriteLedgerCSV(file, items)
}
