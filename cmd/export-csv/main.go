package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"collabwiki/internal/app"
	"collabwiki/internal/article"
	"collabwiki/pkg/database"
	"collabwiki/pkg/utils"
)

func main() {
	out := flag.String("out", "data/contributions.csv", "output CSV path for the contribution ledger")
	flag.Parse()

	cfg, err := utils.Resolve()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(app.DatabaseConfig(cfg))
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	items, err := article.NewRepo(db).List(ctx)
	if err != nil {
		log.Fatalf("list articles failed: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create %s: %v", *out, err)
	}
	defer f.Close()

	n, err := article.WriteLedgerCSV(f, items)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
	log.Printf("✅ exported %d contributions from %d articles to %s", n, len(items), *out)
}
