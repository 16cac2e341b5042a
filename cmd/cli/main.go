package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"collabwiki/internal/article"
	"collabwiki/internal/auth"
	"collabwiki/internal/grpcserver"
	"collabwiki/internal/improv"
	"collabwiki/internal/persona"
	"collabwiki/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type authResponse struct {
	Token string `json:"token"`
}

type articleListResponse struct {
	Items []models.Article `json:"items"`
	Count int              `json:"count"`
}

func main() {
	global := flag.NewFlagSet("collabwiki", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	rest := []string{}
	if len(args) > 1 {
		sub = args[1]
		rest = args[2:]
	}

	// Merges wait on the upstream model, so allow more than a plain API call.
	client := &http.Client{Timeout: 90 * time.Second}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, rest)
	case "article":
		handleArticle(ctx, client, *baseURL, *tokenPath, sub, rest)
	case "contribute":
		handleContribute(ctx, client, *baseURL, *tokenPath, sub, rest)
	case "ask":
		handleAsk(ctx, client, *baseURL, args[1:])
	case "improv":
		handleImprov(ctx, client, *baseURL, sub, rest)
	case "watch":
		handleWatch(*baseURL, args[1:])
	case "export":
		handleExport(ctx, client, *baseURL, sub, rest)
	case "grpc":
		handleGRPC(ctx, sub, rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}

		payload := map[string]string{"email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *username == "" || *email == "" || *password == "" {
			log.Fatal("username, email, and password are required")
		}

		payload := map[string]string{"username": *username, "email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/register", "", payload, &resp); err != nil {
			log.Fatalf("register failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ registered and logged in")
	case "whoami":
		token, err := readToken(tokenPath)
		if err != nil || token == "" {
			log.Fatal("not logged in")
		}
		var p auth.Profile
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/auth/me", token, nil, &p); err != nil {
			log.Fatalf("whoami failed: %v", err)
		}
		fmt.Printf("%s <%s>\n", p.Username, p.Email)
	case "logout":
		if token, err := readToken(tokenPath); err == nil && token != "" {
			// Revoke server-side too; a stale token is harmless if this fails.
			if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/logout", token, nil, nil); err != nil {
				log.Printf("server logout failed: %v", err)
			}
		}
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	default:
		log.Fatal("usage: collabwiki auth <login|register|whoami|logout>")
	}
}

type sectionFlags []article.SectionInput

func (s *sectionFlags) String() string { return fmt.Sprint(len(*s)) }

// Set parses "Title=content".
func (s *sectionFlags) Set(v string) error {
	title, content, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(title) == "" {
		return fmt.Errorf("section must look like Title=content")
	}
	*s = append(*s, article.SectionInput{Title: strings.TrimSpace(title), Content: content})
	return nil
}

func handleArticle(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "list":
		var resp articleListResponse
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/articles", "", nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		fmt.Print(renderArticleTable(resp.Items))
	case "show":
		fs := flag.NewFlagSet("article show", flag.ExitOnError)
		title := fs.String("title", "", "article title")
		_ = fs.Parse(args)
		if *title == "" {
			log.Fatal("title is required")
		}

		var a models.Article
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/articles?title="+url.QueryEscape(*title), "", nil, &a); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(a)
	case "create":
		fs := flag.NewFlagSet("article create", flag.ExitOnError)
		title := fs.String("title", "", "article title")
		author := fs.String("author", "", "author name")
		category := fs.String("category", "", "comma-separated categories")
		var sections sectionFlags
		fs.Var(&sections, "section", "section as Title=content (repeatable)")
		_ = fs.Parse(args)
		if *title == "" {
			log.Fatal("title is required")
		}

		req := article.CreateRequest{
			Title:    *title,
			Author:   models.Author{Name: *author},
			Sections: sections,
		}
		if *category != "" {
			req.Category = strings.Split(*category, ",")
		}
		var a models.Article
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/articles", optionalToken(tokenPath), req, &a); err != nil {
			log.Fatalf("create failed: %v", err)
		}
		printJSON(a)
	case "history":
		fs := flag.NewFlagSet("article history", flag.ExitOnError)
		id := fs.String("id", "", "article id")
		section := fs.String("section", "", "section title")
		html := fs.Bool("html", false, "include rendered HTML")
		_ = fs.Parse(args)
		if *id == "" || *section == "" {
			log.Fatal("id and section are required")
		}

		endpoint := baseURL + "/api/articles/" + url.PathEscape(*id) + "/sections/" + url.PathEscape(*section) + "/history"
		if *html {
			endpoint += "?render=html"
		}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, endpoint, "", nil, &resp); err != nil {
			log.Fatalf("history failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: collabwiki article <list|show|create|history>")
	}
}

func handleContribute(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	fs := flag.NewFlagSet("contribute "+sub, flag.ExitOnError)
	articleTitle := fs.String("article", "", "article title")
	section := fs.String("section", "", "section title")
	original := fs.String("original", "", "original section content (merge only)")
	text := fs.String("text", "", "new contribution")
	contributor := fs.String("as", "", "contributor name when not logged in")
	_ = fs.Parse(args)

	if *articleTitle == "" || *section == "" || *text == "" {
		log.Fatal("article, section and text are required")
	}
	token := optionalToken(tokenPath)

	switch sub {
	case "merge":
		if *original == "" {
			log.Fatal("original is required for merge")
		}
		req := article.MergeRequest{
			ArticleTitle:    *articleTitle,
			SectionTitle:    *section,
			OriginalContent: *original,
			NewContribution: *text,
			Contributor:     *contributor,
		}
		var resp article.MergeResult
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/contributions", token, req, &resp); err != nil {
			log.Fatalf("merge failed: %v", err)
		}
		printJSON(resp)
	case "summary":
		req := article.SummaryRequest{
			ArticleTitle:    *articleTitle,
			SectionTitle:    *section,
			NewContribution: *text,
			Contributor:     *contributor,
		}
		var resp article.SummaryResult
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/contributions/summary", token, req, &resp); err != nil {
			log.Fatalf("summary failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: collabwiki contribute <merge|summary>")
	}
}

func handleAsk(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	p := fs.String("persona", "general", "persona id")
	question := fs.String("q", "", "question")
	_ = fs.Parse(args)
	if *question == "" {
		log.Fatal("question is required")
	}

	var resp persona.AskResult
	endpoint := baseURL + "/api/ask/" + url.PathEscape(*p)
	if err := doJSON(ctx, client, http.MethodPost, endpoint, "", persona.AskRequest{Question: *question}, &resp); err != nil {
		log.Fatalf("ask failed: %v", err)
	}
	printJSON(resp.Answer)
}

func handleImprov(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	var turn improv.Turn
	switch sub {
	case "start":
	case "play":
		fs := flag.NewFlagSet("improv play", flag.ExitOnError)
		scenario := fs.Int("scenario", -1, "scenario index from improv start")
		text := fs.String("text", "", "your line, starting with \"Yes, and\"")
		hint := fs.Bool("hint", false, "ask for a hint")
		_ = fs.Parse(args)
		if *scenario < 0 {
			log.Fatal("scenario is required")
		}
		turn = improv.Turn{UserInput: *text, ScenarioIndex: scenario, Hint: *hint}
	default:
		log.Fatal("usage: collabwiki improv <start|play>")
	}

	var reply improv.Reply
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/improv", "", turn, &reply); err != nil {
		log.Fatalf("improv failed: %v", err)
	}
	fmt.Println(reply.AIResponse)
	if reply.ScenarioIndex != nil {
		fmt.Println("scenario: " + strconv.Itoa(*reply.ScenarioIndex))
	}
}

func handleWatch(baseURL string, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
	tcpAddr := fs.String("tcp", "", "read the TCP feed at this address instead")
	_ = fs.Parse(args)

	if *tcpAddr != "" {
		for {
			if err := runFeedTCP(*tcpAddr, true); err != nil {
				log.Printf("[watch] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	}

	endpoint := *wsURL
	if endpoint == "" {
		var err error
		endpoint, err = websocketURL(baseURL, "/ws")
		if err != nil {
			log.Fatalf("ws url: %v", err)
		}
	}
	if err := runWebSocket(endpoint); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}

func handleExport(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	fs := flag.NewFlagSet("export "+sub, flag.ExitOnError)
	out := fs.String("out", "", "output path")
	_ = fs.Parse(args)

	var resp articleListResponse
	if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/articles", "", nil, &resp); err != nil {
		log.Fatalf("export failed: %v", err)
	}

	switch sub {
	case "json":
		path := *out
		if path == "" {
			path = "data/articles.json"
		}
		if err := writeJSON(path, resp.Items); err != nil {
			log.Fatalf("write json failed: %v", err)
		}
		log.Printf("✅ exported %d articles to %s", len(resp.Items), path)
	case "csv":
		path := *out
		if path == "" {
			path = "data/contributions.csv"
		}
		n, err := writeContributionsCSV(path, resp.Items)
		if err != nil {
			log.Fatalf("write csv failed: %v", err)
		}
		log.Printf("✅ exported %d contributions to %s", n, path)
	default:
		log.Fatal("usage: collabwiki export <json|csv>")
	}
}

func handleGRPC(ctx context.Context, sub string, args []string) {
	fs := flag.NewFlagSet("grpc "+sub, flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:9090", "gRPC server address")
	title := fs.String("title", "", "article title (show only)")
	_ = fs.Parse(args)

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("grpc dial: %v", err)
	}
	defer conn.Close()
	gc := grpcserver.NewClient(conn)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch sub {
	case "list":
		items, err := gc.ListArticles(ctx)
		if err != nil {
			log.Fatalf("grpc list failed: %v", err)
		}
		fmt.Print(renderArticleTable(items))
	case "show":
		if *title == "" {
			log.Fatal("title is required")
		}
		a, err := gc.GetArticleByTitle(ctx, *title)
		if err != nil {
			log.Fatalf("grpc show failed: %v", err)
		}
		printJSON(a)
	default:
		log.Fatal("usage: collabwiki grpc <list|show>")
	}
}

func printUsage() {
	fmt.Println("collabwiki <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|whoami|logout")
	fmt.Println("  article list|show|create|history")
	fmt.Println("  contribute merge|summary")
	fmt.Println("  ask -persona <id> -q <question>")
	fmt.Println("  improv start|play")
	fmt.Println("  watch [-ws url | -tcp addr]")
	fmt.Println("  export json|csv")
	fmt.Println("  grpc list|show")
}
