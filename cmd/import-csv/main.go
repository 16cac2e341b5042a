package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"collabwiki/internal/app"
	"collabwiki/internal/apperr"
	"collabwiki/internal/article"
	"collabwiki/internal/logger"
	"collabwiki/pkg/database"
	"collabwiki/pkg/models"
	"collabwiki/pkg/utils"
)

// Seed files carry one row per section:
//
//	title,author,category,section_title,content
//
// Rows sharing a title form one article; category is ';'-separated and read
// from the first row of each article.
func main() {
	in := flag.String("in", "data/articles.csv", "input CSV path for seed articles")
	flag.Parse()

	cfg, err := utils.Resolve()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logr := logger.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(app.DatabaseConfig(cfg))
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatalf("open %s: %v", *in, err)
	}
	defer f.Close()

	reqs, err := readSeed(f)
	if err != nil {
		log.Fatalf("read seed failed: %v", err)
	}

	// Create never calls the reviser.
	svc := article.NewService(article.NewRepo(db), nil, article.WithLogger(logr))
	created, skipped, err := seed(ctx, svc, reqs)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}
	log.Printf("✅ imported %d articles from %s (%d already present)", created, *in, skipped)
}

type creator interface {
	Create(ctx context.Context, req article.CreateRequest) (*models.Article, error)
}

// seed creates every article, skipping titles that already exist.
func seed(ctx context.Context, svc creator, reqs []article.CreateRequest) (created, skipped int, err error) {
	for _, req := range reqs {
		if _, err := svc.Create(ctx, req); err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("create %q: %w", req.Title, err)
		}
		created++
	}
	return created, skipped, nil
}

func readSeed(r io.Reader) ([]article.CreateRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if _, ok := header["title"]; !ok {
		return nil, errors.New("seed csv: missing title column")
	}

	var (
		out   []article.CreateRequest
		index = map[string]int{}
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		title := valueAt(header, row, "title")
		if title == "" {
			continue
		}
		key := article.TitleKey(title)
		i, ok := index[key]
		if !ok {
			req := article.CreateRequest{
				Title:  title,
				Author: models.Author{Name: valueAt(header, row, "author")},
			}
			for _, c := range strings.Split(valueAt(header, row, "category"), ";") {
				if c = strings.TrimSpace(c); c != "" {
					req.Category = append(req.Category, c)
				}
			}
			out = append(out, req)
			i = len(out) - 1
			index[key] = i
		}

		if st := valueAt(header, row, "section_title"); st != "" {
			out[i].Sections = append(out[i].Sections, article.SectionInput{
				Title:   st,
				Content: valueAt(header, row, "content"),
			})
		}
	}
	return out, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
