package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"collabwiki/internal/article"
	"collabwiki/pkg/models"
)

// Client calls ArticleService over an existing connection using the JSON codec.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *Client) MergeContribution(ctx context.Context, req article.MergeRequest) (*article.MergeResult, error) {
	out := new(article.MergeResult)
	if err := c.invoke(ctx, "MergeContribution", &req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SummarizeContribution(ctx context.Context, req article.SummaryRequest) (*article.SummaryResult, error) {
	out := new(article.SummaryResult)
	if err := c.invoke(ctx, "SummarizeContribution", &req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSectionHistory(ctx context.Context, articleID, sectionTitle string) (*article.SectionHistory, error) {
	out := new(article.SectionHistory)
	if err := c.invoke(ctx, "GetSectionHistory", &HistoryRequest{ArticleID: articleID, SectionTitle: sectionTitle}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateArticle(ctx context.Context, req article.CreateRequest) (*models.Article, error) {
	out := new(models.Article)
	if err := c.invoke(ctx, "CreateArticle", &req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetArticleByTitle(ctx context.Context, title string) (*models.Article, error) {
	out := new(models.Article)
	if err := c.invoke(ctx, "GetArticleByTitle", &GetArticleRequest{Title: title}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListArticles(ctx context.Context) ([]models.Article, error) {
	out := new(ListArticlesResponse)
	if err := c.invoke(ctx, "ListArticles", &ListArticlesRequest{}, out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
